package timezone

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZoneFile(t *testing.T, root string, name string, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
}

func TestCatalog_Zones(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeZoneFile(t, root, "Europe/Paris", "TZif2 fake")
	writeZoneFile(t, root, "Asia/Kolkata", "TZif2 fake")
	writeZoneFile(t, root, "America/Argentina/Buenos_Aires", "TZif2 fake")
	writeZoneFile(t, root, "zone.tab", "TZif not a zone")
	writeZoneFile(t, root, "iso3166.tab", "# table")
	writeZoneFile(t, root, "right/Europe/Paris", "TZif2 fake")
	writeZoneFile(t, root, "posixrules", "TZif2 fake")
	writeZoneFile(t, root, "Not/Azone", "plain text")
	writeZoneFile(t, root, "Mars/Olympus", "TZif2 fake")

	catalog := NewCatalog(WithZoneDirs(root), WithClock(fixedClock))
	zones := catalog.Zones()

	assert.Equal(t, []Zone{
		{Id: "America/Argentina/Buenos_Aires", DisplayName: "America/Argentina/Buenos_Aires (-03:00)"},
		{Id: "Asia/Kolkata", DisplayName: "Asia/Kolkata (+05:30)"},
		{Id: "Europe/Paris", DisplayName: "Europe/Paris (+01:00)"},
		{Id: "UTC", DisplayName: "UTC (+00:00)"},
	}, zones)
}

func TestCatalog_SortedByDisplayName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeZoneFile(t, root, "Etc/GMT+1", "TZif2 fake")
	writeZoneFile(t, root, "Etc/GMT", "TZif2 fake")
	writeZoneFile(t, root, "Etc/GMT-1", "TZif2 fake")

	zones := NewCatalog(WithZoneDirs(root), WithClock(fixedClock)).Zones()

	for i := 1; i < len(zones); i++ {
		assert.LessOrEqual(t, zones[i-1].DisplayName, zones[i].DisplayName)
	}

	assert.Equal(t, "Etc/GMT (+00:00)", zones[0].DisplayName)
	assert.Equal(t, "Etc/GMT+1 (-01:00)", zones[1].DisplayName)
	assert.Equal(t, "Etc/GMT-1 (+01:00)", zones[2].DisplayName)
	assert.Equal(t, "UTC (+00:00)", zones[3].DisplayName)
}

func TestCatalog_Fallback(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog(WithZoneDirs(filepath.Join(t.TempDir(), "missing")), WithClock(fixedClock))
	zones := catalog.Zones()

	ids := make([]string, 0, len(zones))
	for _, zone := range zones {
		ids = append(ids, zone.Id)
	}

	assert.ElementsMatch(t, fallbackZones, ids)
	assert.Contains(t, zones, Zone{Id: "Asia/Tokyo", DisplayName: "Asia/Tokyo (+09:00)"})
}

func TestCatalog_AlwaysContainsUTC(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeZoneFile(t, root, "Europe/Oslo", "TZif2 fake")

	zones := NewCatalog(WithZoneDirs(root)).Zones()
	assert.Contains(t, zones, Zone{Id: "UTC", DisplayName: "UTC (+00:00)"})
}

func TestCatalog_ZonesReturnsCopy(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog(WithZoneDirs(t.TempDir()))

	zones := catalog.Zones()
	zones[0].Id = "changed"

	assert.NotEqual(t, "changed", catalog.Zones()[0].Id)
}

func TestCatalog_Known(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog(WithZoneDirs(t.TempDir()))

	assert.True(t, catalog.Known("UTC"))
	assert.True(t, catalog.Known("Pacific/Chatham"))
	assert.False(t, catalog.Known(""))
	assert.False(t, catalog.Known("Local"))
	assert.False(t, catalog.Known("Mars/Olympus"))
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "America/New_York (-05:00)", DisplayName("America/New_York", 2025))
	assert.Equal(t, "Australia/Sydney (+10:00)", DisplayName("Australia/Sydney", 2025))
	assert.Equal(t, "Asia/Kathmandu (+05:45)", DisplayName("Asia/Kathmandu", 2025))
	assert.Equal(t, "Nowhere/Town", DisplayName("Nowhere/Town", 2025))
}

func TestLocalZoneFromLink(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeZoneFile(t, root, "zoneinfo/Europe/Madrid", "TZif2 fake")

	link := filepath.Join(root, "localtime")
	require.NoError(t, os.Symlink(filepath.Join(root, "zoneinfo", "Europe", "Madrid"), link))

	assert.Equal(t, "Europe/Madrid", localZoneFromLink(link))
	assert.Equal(t, UTC, localZoneFromLink(filepath.Join(root, "absent")))
}
