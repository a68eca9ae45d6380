package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrNoConditions = errors.New("weather response has no current conditions")

// Client queries the OpenWeatherMap One Call API for current conditions.
type Client struct {
	BaseURL string
	APIKey  string
	Units   string
	Timeout time.Duration
	Logger  zerolog.Logger
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	// Mocking
	MockEnabled bool
	MockFile    string
	MockJSON    string
}

type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

// Response is the subset of the One Call payload the bridge reads.
type Response struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Current struct {
		Dt      int64       `json:"dt"`
		Temp    float64     `json:"temp"`
		Weather []condition `json:"weather"`
	} `json:"current"`
}

// Current returns the condition label and temperature at the coordinates.
func (c Client) Current(ctx context.Context, lat, lon float64) (Snapshot, error) {
	resp, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return Snapshot{}, err
	}
	if len(resp.Current.Weather) == 0 {
		return Snapshot{}, ErrNoConditions
	}
	return Snapshot{
		Status:       resp.Current.Weather[0].Main,
		TemperatureC: resp.Current.Temp,
	}, nil
}

func (c Client) fetch(ctx context.Context, lat, lon float64) (Response, error) {
	var out Response
	// Mock override
	if c.MockEnabled {
		var data []byte
		if strings.TrimSpace(c.MockJSON) != "" {
			data = []byte(c.MockJSON)
		} else if strings.TrimSpace(c.MockFile) != "" {
			b, err := os.ReadFile(c.MockFile)
			if err != nil {
				return out, fmt.Errorf("read mock file: %w", err)
			}
			data = b
		} else {
			return out, errors.New("mock_enabled is true but no mock_json or mock_file provided")
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("invalid mock json: %w", err)
		}
		return out, nil
	}

	units := c.Units
	if units == "" {
		units = "metric"
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return out, fmt.Errorf("weather base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.APIKey)
	q.Set("units", units)
	q.Set("exclude", "minutely,hourly,daily,alerts")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	begin := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	c.Logger.Debug().
		Int("status", resp.StatusCode).
		Dur("took", time.Since(begin)).
		Msg("weather api response")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return out, fmt.Errorf("weather http %d: %s", resp.StatusCode, strings.TrimSpace(string(bb)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode weather response: %w", err)
	}
	return out, nil
}
