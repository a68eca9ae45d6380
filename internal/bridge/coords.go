package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// ParseCoordinates reads a "<lat>;<lon>" body. Values are passed through
// as parsed; range checks are left to the weather provider.
func ParseCoordinates(body []byte) (Coordinates, error) {
	parts := strings.Split(string(body), ";")
	if len(parts) != 2 {
		return Coordinates{}, fmt.Errorf("%w: want 2 fields separated by ';', got %d", ErrMalformedPayload, len(parts))
	}
	lat, err := parseFloat(parts[0])
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: latitude: %w", ErrMalformedPayload, err)
	}
	lon, err := parseFloat(parts[1])
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: longitude: %w", ErrMalformedPayload, err)
	}
	return Coordinates{Latitude: lat, Longitude: lon}, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
