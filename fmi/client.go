package fmi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/devskill-org/pvforecast/pvmodel"
	"github.com/devskill-org/pvforecast/utils"
)

const defaultBaseURL = "https://opendata.fmi.fi/wfs"

// Client represents a client for the FMI open data WFS service
type Client struct {
	httpClient  *http.Client
	baseURL     string
	storedQuery string
	userAgent   string
	limiter     *rate.Limiter
	logger      *zap.SugaredLogger
}

// NewClient creates a new client for the FMI open data WFS service
func NewClient(userAgent string) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: 30 * time.Second}, userAgent)
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client
func NewClientWithHTTPClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     defaultBaseURL,
		storedQuery: DefaultStoredQuery,
		userAgent:   userAgent,
		limiter:     rate.NewLimiter(rate.Limit(1), 1),
		logger:      zap.NewNop().Sugar(),
	}
}

// SetBaseURL sets the base URL for the API (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetStoredQuery overrides the stored query id.
func (c *Client) SetStoredQuery(id string) {
	c.storedQuery = id
}

// SetRateLimit sets the maximum request rate. rps may be fractional; a
// non-positive rps disables limiting.
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

// SetLogger sets the logger used for request tracing.
func (c *Client) SetLogger(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c.logger = logger
}

// GetForecast retrieves the point forecast described by params
func (c *Client) GetForecast(ctx context.Context, params QueryParams) (*Forecast, error) {
	if err := ValidateLocation(params.Location); err != nil {
		return nil, err
	}
	if params.EndTime.Before(params.StartTime) {
		return nil, &ValidationError{Field: "EndTime", Message: "must not be before StartTime"}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	reqURL, err := c.buildURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/xml")

	c.logger.Debugw("requesting FMI forecast", "url", reqURL)
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Operation: "stored query", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    decodeException(body),
		}
	}

	forecast, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debugw("FMI forecast received",
		"points", forecast.Len(),
		"fields", forecast.Fields,
		"elapsed", time.Since(started))
	return forecast, nil
}

// FetchRaw retrieves the PV model inputs for one site. Accumulators are
// passed through unchanged; cloud cover is converted from percent to a
// fraction.
func (c *Client) FetchRaw(ctx context.Context, latitude, longitude float64, start, end time.Time) ([]pvmodel.RawRow, error) {
	forecast, err := c.GetForecast(ctx, QueryParams{
		Location:  Location{Latitude: latitude, Longitude: longitude},
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, err
	}
	return forecast.RawRows(), nil
}

// RawRows converts decoded points to PV model input rows.
func (f *Forecast) RawRows() []pvmodel.RawRow {
	rows := make([]pvmodel.RawRow, 0, f.Len())
	for _, p := range f.Points {
		rows = append(rows, pvmodel.RawRow{
			Time:       p.Time,
			AirTemp:    p.Value(ParamTemperature),
			GHIAccum:   p.Value(ParamGlobalRadiationAccum),
			NetSWAccum: p.Value(ParamNetSWRadiationAccum),
			DirHIAccum: p.Value(ParamSWRadiationAccum),
			Wind:       p.Value(ParamWindSpeed),
			CloudCover: p.Value(ParamTotalCloudCover) / 100,
		})
	}
	return rows
}

// buildURL constructs the stored query URL
func (c *Client) buildURL(params QueryParams) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	parameters := params.Parameters
	if len(parameters) == 0 {
		parameters = DefaultParameters
	}

	query := u.Query()
	query.Set("service", "WFS")
	query.Set("version", "2.0.0")
	query.Set("request", "getFeature")
	query.Set("storedquery_id", c.storedQuery)
	query.Set("latlon", formatFloat(params.Location.Latitude)+","+formatFloat(params.Location.Longitude))
	query.Set("starttime", utils.GetUTCString(params.StartTime))
	query.Set("endtime", utils.GetUTCString(params.EndTime))
	query.Set("parameters", strings.Join(parameters, ","))
	if params.Timestep > 0 {
		query.Set("timestep", strconv.Itoa(params.Timestep))
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}

// formatFloat formats a float64 to a string with appropriate precision
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ValidateLocation validates that the location parameters are within acceptable ranges
func ValidateLocation(loc Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return &ValidationError{Field: "Latitude", Message: fmt.Sprintf("must be between -90 and 90, got %f", loc.Latitude)}
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return &ValidationError{Field: "Longitude", Message: fmt.Sprintf("must be between -180 and 180, got %f", loc.Longitude)}
	}
	return nil
}
