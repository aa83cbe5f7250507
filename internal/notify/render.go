package notify

import (
	"strings"

	"wanwatch/internal/types"
)

// valueOrNone renders an optional address for display.
func valueOrNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// changeLines lists the per-protocol transitions for a non-first-run event.
func changeLines(event *types.ChangeEvent) []string {
	var lines []string
	if event.Current.IPv4 != event.Previous.IPv4 {
		lines = append(lines, "IPv4: "+valueOrNone(event.Previous.IPv4)+" -> "+valueOrNone(event.Current.IPv4))
	}
	if event.Current.IPv6 != event.Previous.IPv6 {
		lines = append(lines, "IPv6: "+valueOrNone(event.Previous.IPv6)+" -> "+valueOrNone(event.Current.IPv6))
	}
	return lines
}

// geoLocation joins the non-empty location parts.
func geoLocation(geo *types.GeoInfo) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{geo.City, geo.Region, geo.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// changelogPreview extracts the first bullet lines from release notes,
// capped to keep notifications short.
func changelogPreview(body string) string {
	var bullets []string
	lines := strings.Split(body, "\n")
	if len(lines) > 8 {
		lines = lines[:8]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			cleaned := strings.TrimSpace(strings.TrimLeft(line, "-* "))
			if cleaned != "" && !strings.HasPrefix(cleaned, "#") {
				bullets = append(bullets, "- "+cleaned)
			}
		}
	}

	if len(bullets) > 5 {
		bullets = bullets[:5]
	}
	if len(bullets) == 0 {
		return "See release notes for details"
	}
	return strings.Join(bullets, "\n")
}
