// Package uainfo derives the device/browser/OS facts the pipeline needs from
// a raw User-Agent string. Both the click recorder and device redirect rules
// share this derivation so they can never disagree.
package uainfo

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device classes.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

type Info struct {
	Device  string
	Browser string
	OS      string
}

// Parse derives structured UA facts. An empty UA yields DeviceUnknown.
func Parse(rawUA string) Info {
	if strings.TrimSpace(rawUA) == "" {
		return Info{Device: DeviceUnknown}
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()

	lower := strings.ToLower(rawUA)
	device := DeviceDesktop
	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		device = DeviceTablet
	case ua.Mobile():
		device = DeviceMobile
	}

	// Apple mobile UAs report the raw "CPU iPhone OS x like Mac OS X"
	// token rather than an OS name.
	os := ua.OS()
	if strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") || strings.Contains(lower, "ipod") {
		os = "iOS"
	}

	return Info{
		Device:  device,
		Browser: browser,
		OS:      os,
	}
}
