// Package device identifies a device in a cloud IoT registry.
package device

import (
	"errors"
	"fmt"
)

// Attribute keys carried on inbound messages that address the target device.
const (
	AttrProjectID        = "projectId"
	AttrRegistryLocation = "deviceRegistryLocation"
	AttrRegistryID       = "deviceRegistryId"
	AttrDeviceID         = "deviceId"
)

var ErrMissingAttribute = errors.New("missing required attribute")

// Address is the fully qualified identity of a registry device.
type Address struct {
	ProjectID        string
	RegistryLocation string
	RegistryID       string
	DeviceID         string
}

// FromAttributes extracts an Address from message attributes. The first
// absent or empty key is reported, checked in a fixed order.
func FromAttributes(attrs map[string]string) (Address, error) {
	var a Address
	fields := []struct {
		key string
		dst *string
	}{
		{AttrProjectID, &a.ProjectID},
		{AttrRegistryLocation, &a.RegistryLocation},
		{AttrRegistryID, &a.RegistryID},
		{AttrDeviceID, &a.DeviceID},
	}
	for _, f := range fields {
		v := attrs[f.key]
		if v == "" {
			return Address{}, fmt.Errorf("%w: %s", ErrMissingAttribute, f.key)
		}
		*f.dst = v
	}
	return a, nil
}

// Name returns the resource path the device manager API addresses devices by.
func (a Address) Name() string {
	return fmt.Sprintf("projects/%s/locations/%s/registries/%s/devices/%s",
		a.ProjectID, a.RegistryLocation, a.RegistryID, a.DeviceID)
}

func (a Address) String() string { return a.Name() }
