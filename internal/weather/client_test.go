package weather_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-bridge/internal/weather"
)

const cloudsJSON = `{"lat":52.5,"lon":13.4,"current":{"dt":1700000000,"temp":9.3,"weather":[{"id":803,"main":"Clouds","description":"broken clouds"}]}}`

func newClient(url string) weather.Client {
	return weather.Client{
		BaseURL: url,
		APIKey:  "secret",
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
	}
}

func TestCurrent(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cloudsJSON))
	}))
	defer srv.Close()

	snap, err := newClient(srv.URL).Current(context.Background(), 52.5, 13.4)
	require.NoError(t, err)
	assert.Equal(t, weather.Snapshot{Status: "Clouds", TemperatureC: 9.3}, snap)

	require.NotNil(t, got)
	q := got.URL.Query()
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "52.5", q.Get("lat"))
	assert.Equal(t, "13.4", q.Get("lon"))
	assert.Equal(t, "secret", q.Get("appid"))
	assert.Equal(t, "metric", q.Get("units"))
	assert.Equal(t, "minutely,hourly,daily,alerts", q.Get("exclude"))
}

func TestCurrentKeepsBaseURLQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(cloudsJSON))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL+"/onecall?lang=de").Current(context.Background(), 1.5, 2.5)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/onecall", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "de", q.Get("lang"))
	assert.Equal(t, "1.5", q.Get("lat"))
	assert.Equal(t, "2.5", q.Get("lon"))
	assert.Equal(t, "secret", q.Get("appid"))
}

func TestCurrentBadBaseURL(t *testing.T) {
	_, err := newClient("http://[::1").Current(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather base url")
}

func TestCurrentPassesBoundaryCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon         float64
		wantLat, wantLon string
	}{
		{90, 180, "90", "180"},
		{-90, -180, "-90", "-180"},
		{-33.8688, 151.2093, "-33.8688", "151.2093"},
	}
	for _, tc := range cases {
		var lat, lon string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lat, lon = r.URL.Query().Get("lat"), r.URL.Query().Get("lon")
			_, _ = w.Write([]byte(cloudsJSON))
		}))
		_, err := newClient(srv.URL).Current(context.Background(), tc.lat, tc.lon)
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, tc.wantLat, lat)
		assert.Equal(t, tc.wantLon, lon)
	}
}

func TestCurrentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401,"message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Current(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather http 401")
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestCurrentNoConditions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"temp":1.5,"weather":[]}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Current(context.Background(), 0, 0)
	assert.ErrorIs(t, err, weather.ErrNoConditions)
}

func TestCurrentBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Current(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode weather response")
}

func TestCurrentCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cloudsJSON))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(srv.URL).Current(ctx, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCurrentMock(t *testing.T) {
	c := weather.Client{MockEnabled: true, MockJSON: `{"current":{"temp":25,"weather":[{"main":"Clear"}]}}`}
	snap, err := c.Current(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Clear;25.0", snap.Format())

	path := filepath.Join(t.TempDir(), "mock.json")
	require.NoError(t, os.WriteFile(path, []byte(cloudsJSON), 0o600))
	c = weather.Client{MockEnabled: true, MockFile: path}
	snap, err = c.Current(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Clouds", snap.Status)

	_, err = weather.Client{MockEnabled: true}.Current(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestSnapshotFormat(t *testing.T) {
	cases := []struct {
		snap weather.Snapshot
		want string
	}{
		{weather.Snapshot{Status: "Clouds", TemperatureC: 9.3}, "Clouds;9.3"},
		{weather.Snapshot{Status: "Clear", TemperatureC: 25}, "Clear;25.0"},
		{weather.Snapshot{Status: "Snow", TemperatureC: -3.25}, "Snow;-3.25"},
		{weather.Snapshot{Status: "Mist", TemperatureC: 0}, "Mist;0.0"},
		{weather.Snapshot{Status: "Rain", TemperatureC: -12}, "Rain;-12.0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.snap.Format())
	}
}
