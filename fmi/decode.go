package fmi

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// featureCollection maps the parts of a WFS multipoint coverage response we
// read. Tags match on local names, so namespace prefixes are ignored.
type featureCollection struct {
	XMLName xml.Name `xml:"FeatureCollection"`
	Members []member `xml:"member"`
}

type member struct {
	Positions string  `xml:"GridSeriesObservation>result>MultiPointCoverage>domainSet>SimpleMultiPoint>positions"`
	Tuples    string  `xml:"GridSeriesObservation>result>MultiPointCoverage>rangeSet>DataBlock>doubleOrNilReasonTupleList"`
	Fields    []field `xml:"GridSeriesObservation>result>MultiPointCoverage>rangeType>DataRecord>field"`
}

type field struct {
	Name string `xml:"name,attr"`
}

// exceptionReport is returned by the service for rejected requests.
type exceptionReport struct {
	XMLName    xml.Name `xml:"ExceptionReport"`
	Exceptions []struct {
		Code  string   `xml:"exceptionCode,attr"`
		Texts []string `xml:"ExceptionText"`
	} `xml:"Exception"`
}

// Decode parses a multipoint coverage response. A collection without members
// decodes to an empty forecast.
func Decode(r io.Reader) (*Forecast, error) {
	var fc featureCollection
	if err := xml.NewDecoder(r).Decode(&fc); err != nil {
		return nil, &DecodeError{Reason: "invalid feature collection", Err: err}
	}

	out := &Forecast{}
	for i, m := range fc.Members {
		names := make([]string, len(m.Fields))
		for j, f := range m.Fields {
			names[j] = f.Name
		}
		if i == 0 {
			out.Fields = names
		}

		points, err := decodeMember(m.Positions, m.Tuples, names)
		if err != nil {
			return nil, err
		}
		out.Points = append(out.Points, points...)
	}

	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Time.Before(out.Points[j].Time)
	})
	return out, nil
}

func decodeMember(positions, tuples string, names []string) ([]Point, error) {
	pos := strings.Fields(positions)
	if len(pos)%3 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("positions hold %d values, not lat/lon/time triples", len(pos))}
	}
	n := len(pos) / 3

	vals := strings.Fields(tuples)
	if len(names) == 0 {
		if len(vals) > 0 {
			return nil, &DecodeError{Reason: "values present but no fields declared"}
		}
	} else if len(vals) != n*len(names) {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected %d values for %d points, got %d", n*len(names), n, len(vals))}
	}

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		lat, err := strconv.ParseFloat(pos[3*i], 64)
		if err != nil {
			return nil, &DecodeError{Reason: "bad latitude", Err: err}
		}
		lon, err := strconv.ParseFloat(pos[3*i+1], 64)
		if err != nil {
			return nil, &DecodeError{Reason: "bad longitude", Err: err}
		}
		epoch, err := strconv.ParseInt(pos[3*i+2], 10, 64)
		if err != nil {
			return nil, &DecodeError{Reason: "bad epoch", Err: err}
		}

		values := make(map[string]float64, len(names))
		for j, name := range names {
			values[name] = parseValue(vals[i*len(names)+j])
		}

		points[i] = Point{
			Latitude:  lat,
			Longitude: lon,
			Time:      time.Unix(epoch, 0).UTC(),
			Values:    values,
		}
	}
	return points, nil
}

// parseValue reads one tuple entry. The service writes "NaN" for missing
// values; anything unparsable is treated the same way.
func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// decodeException extracts a readable message from an exception report body.
// It returns the raw body when it is not one.
func decodeException(body []byte) string {
	var rep exceptionReport
	if err := xml.Unmarshal(body, &rep); err != nil || len(rep.Exceptions) == 0 {
		return strings.TrimSpace(string(body))
	}
	var parts []string
	for _, e := range rep.Exceptions {
		parts = append(parts, e.Code+": "+strings.Join(e.Texts, " "))
	}
	return strings.Join(parts, "; ")
}
