package weather

import (
	"strconv"
	"strings"
)

// Snapshot is the current condition at one location.
type Snapshot struct {
	Status       string
	TemperatureC float64
}

// Format renders the device payload "<status>;<temperature>". Integral
// temperatures keep a trailing ".0" so devices always see a decimal.
func (s Snapshot) Format() string {
	return s.Status + ";" + formatTemperature(s.TemperatureC)
}

func formatTemperature(v float64) string {
	t := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(t, ".NI") {
		t += ".0"
	}
	return t
}
