package notify

import (
	"testing"

	"wanwatch/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestChangeLines(t *testing.T) {
	event := &types.ChangeEvent{
		Kind:     types.ChangeBoth,
		Current:  types.AddressPair{IPv4: "2.2.2.2"},
		Previous: types.AddressPair{IPv4: "1.1.1.1", IPv6: "2001:db8::1"},
	}

	lines := changeLines(event)
	assert.Equal(t, []string{
		"IPv4: 1.1.1.1 -> 2.2.2.2",
		"IPv6: 2001:db8::1 -> None",
	}, lines)
}

func TestGeoLocation(t *testing.T) {
	assert.Equal(t, "Berlin, Berlin, DE",
		geoLocation(&types.GeoInfo{City: "Berlin", Region: "Berlin", Country: "DE"}))
	assert.Equal(t, "DE", geoLocation(&types.GeoInfo{Country: "DE"}))
	assert.Empty(t, geoLocation(&types.GeoInfo{}))
}

func TestChangelogPreview(t *testing.T) {
	body := `## v1.4.1

- Fixed provider timeout handling
* Added IPv6 eligibility checks
- Improved logging
- Fourth change
- Fifth change
- Sixth change beyond the scan window
`
	preview := changelogPreview(body)
	assert.Contains(t, preview, "- Fixed provider timeout handling")
	assert.Contains(t, preview, "- Added IPv6 eligibility checks")
	assert.NotContains(t, preview, "Sixth change")
}

func TestChangelogPreviewNoBullets(t *testing.T) {
	assert.Equal(t, "See release notes for details", changelogPreview("plain prose release"))
	assert.Equal(t, "See release notes for details", changelogPreview(""))
}
