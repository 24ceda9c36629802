package analytics

import (
	"github.com/mileusna/useragent"
)

// client is the parsed form of a User-Agent header.
type client struct {
	Browser string
	OS      string
	Device  string
	Bot     bool
}

// parseUserAgent extracts browser, OS, and device type from a user agent string.
func parseUserAgent(uaString string) client {
	ua := useragent.Parse(uaString)

	result := client{
		Browser: ua.Name,
		OS:      ua.OS,
		Bot:     ua.Bot,
	}

	if result.Browser == "" {
		result.Browser = "Unknown"
	}
	if result.OS == "" {
		result.OS = "Unknown"
	}

	switch {
	case ua.Bot:
		result.Device = "bot"
	case ua.Tablet:
		result.Device = "tablet"
	case ua.Mobile:
		result.Device = "mobile"
	default:
		result.Device = "desktop"
	}

	return result
}
