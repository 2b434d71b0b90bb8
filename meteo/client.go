package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.met.no/weatherapi/locationforecast/2.0"

// Client represents a client for the MET Norway Location Forecast API
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// NewClient creates a new client for the MET Norway Location Forecast API
func NewClient(userAgent string) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: 30 * time.Second}, userAgent)
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client
func NewClientWithHTTPClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     zap.NewNop().Sugar(),
	}
}

// SetBaseURL sets the base URL for the API (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetLogger sets the logger used for request tracing.
func (c *Client) SetLogger(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c.logger = logger
}

// SetRateLimit sets the maximum request rate; non-positive rps disables it.
func (c *Client) SetRateLimit(rps float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, burst)
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// GetCompact retrieves compact forecast data for the specified location
func (c *Client) GetCompact(ctx context.Context, params QueryParams) (*METJSONForecast, error) {
	return c.getForecast(ctx, "compact", params)
}

// Ambient returns conditions at each of times for one site.
func (c *Client) Ambient(ctx context.Context, latitude, longitude float64, times []time.Time) ([]Conditions, error) {
	forecast, err := c.GetCompact(ctx, QueryParams{
		Location: Location{Latitude: latitude, Longitude: longitude},
	})
	if err != nil {
		return nil, err
	}
	return forecast.Conditions(times), nil
}

func (c *Client) getForecast(ctx context.Context, endpoint string, params QueryParams) (*METJSONForecast, error) {
	if err := ValidateLocation(params.Location); err != nil {
		return nil, err
	}
	if c.userAgent == "" {
		return nil, &ValidationError{Field: "UserAgent", Message: "MET Norway rejects anonymous requests"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	reqURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debugw("requesting MET forecast", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    string(body),
		}
	}

	var forecast METJSONForecast
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &forecast, nil
}

// buildURL constructs the API URL with query parameters. MET Norway asks for
// coordinates truncated to four decimals to keep its caches effective.
func (c *Client) buildURL(endpoint string, params QueryParams) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	u.Path = fmt.Sprintf("%s/%s", u.Path, endpoint)

	query := u.Query()
	query.Set("lat", strconv.FormatFloat(params.Location.Latitude, 'f', 4, 64))
	query.Set("lon", strconv.FormatFloat(params.Location.Longitude, 'f', 4, 64))

	if params.Location.Altitude != nil {
		query.Set("altitude", strconv.Itoa(*params.Location.Altitude))
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ValidateLocation validates that the location parameters are within acceptable ranges
func ValidateLocation(loc Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return &ValidationError{Field: "Latitude", Message: fmt.Sprintf("must be between -90 and 90, got %f", loc.Latitude)}
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return &ValidationError{Field: "Longitude", Message: fmt.Sprintf("must be between -180 and 180, got %f", loc.Longitude)}
	}
	if loc.Altitude != nil && *loc.Altitude < 0 {
		return &ValidationError{Field: "Altitude", Message: fmt.Sprintf("must be non-negative, got %d", *loc.Altitude)}
	}
	return nil
}
