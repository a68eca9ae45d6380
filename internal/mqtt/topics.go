package mqtt

import "strings"

// EventsTopic returns the telemetry topic a device publishes under; an
// empty subFolder yields the device's root events topic.
func EventsTopic(deviceID, subFolder string) string {
	t := "/devices/" + deviceID + "/events"
	if subFolder != "" {
		t += "/" + subFolder
	}
	return t
}

// ConfigTopic returns the topic a device reads its desired config from.
func ConfigTopic(deviceID string) string {
	return "/devices/" + deviceID + "/config"
}

// ParseEventsTopic splits "/devices/{deviceId}/events[/{subFolder}]". The
// sub-folder may itself contain slashes.
func ParseEventsTopic(topic string) (deviceID, subFolder string, ok bool) {
	rest, found := strings.CutPrefix(topic, "/devices/")
	if !found {
		return "", "", false
	}
	deviceID, rest, found = strings.Cut(rest, "/")
	if !found || deviceID == "" {
		return "", "", false
	}
	if rest == "events" {
		return deviceID, "", true
	}
	subFolder, found = strings.CutPrefix(rest, "events/")
	if !found {
		return "", "", false
	}
	return deviceID, subFolder, true
}
