// Package timezone enumerates the host's IANA zones and converts wall clock
// readings between them.
package timezone

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const UTC = "UTC"

var defaultZoneDirs = []string{
	"/usr/share/zoneinfo",
	"/usr/share/lib/zoneinfo",
	"/usr/lib/locale/TZ",
}

var fallbackZones = []string{
	UTC,
	"America/New_York",
	"America/Los_Angeles",
	"America/Chicago",
	"Europe/London",
	"Europe/Paris",
	"Asia/Tokyo",
	"Australia/Sydney",
}

// Files and directories in a zoneinfo tree that are not zones of their own.
var skippedEntries = []string{"posix", "right", "posixrules", "localtime", "Factory"}

type Zone struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type CatalogOption func(*Catalog)

func WithZoneDirs(dirs ...string) CatalogOption {
	return func(c *Catalog) {
		c.dirs = dirs
	}
}

func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

type Catalog struct {
	dirs  []string
	now   func() time.Time
	once  sync.Once
	zones []Zone
}

func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		dirs: zoneDirs(),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Zones lists every zone found on the host, sorted by display name. The list
// is built on first use and reused afterwards.
func (c *Catalog) Zones() []Zone {
	c.once.Do(func() {
		c.zones = c.enumerate()
	})

	return slices.Clone(c.zones)
}

// Known reports whether id names a loadable IANA zone.
func (c *Catalog) Known(id string) bool {
	_, err := Load(id)
	return err == nil
}

func (c *Catalog) enumerate() []Zone {
	ids := make(map[string]struct{})

	for _, dir := range c.dirs {
		walkZoneDir(dir, ids)
	}

	if len(ids) == 0 {
		log.Warn().Strs("dirs", c.dirs).Msg("no zoneinfo found, using fallback zones")

		for _, id := range fallbackZones {
			ids[id] = struct{}{}
		}
	}

	ids[UTC] = struct{}{}

	year := c.now().Year()
	zones := make([]Zone, 0, len(ids))

	for id := range ids {
		zones = append(zones, Zone{Id: id, DisplayName: DisplayName(id, year)})
	}

	sort.Slice(zones, func(i, j int) bool {
		return zones[i].DisplayName < zones[j].DisplayName
	})

	log.Debug().Int("zones", len(zones)).Msg("timezone catalog built")

	return zones
}

// DisplayName labels a zone with its standard offset for the given year, or
// returns the bare id when the zone cannot be loaded.
func DisplayName(id string, year int) string {
	loc, err := Load(id)
	if err != nil {
		return id
	}

	return id + " (" + FormatOffset(StandardOffset(loc, year)) + ")"
}

// StandardOffset is the zone's offset outside daylight saving time, taken as
// the smaller of its January and July offsets.
func StandardOffset(loc *time.Location, year int) int {
	_, winter := time.Date(year, time.January, 1, 0, 0, 0, 0, loc).Zone()
	_, summer := time.Date(year, time.July, 1, 0, 0, 0, 0, loc).Zone()

	return min(winter, summer)
}

func walkZoneDir(root string, ids map[string]struct{}) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Trace().Str("path", path).Err(err).Msg("zoneinfo entry not readable")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if path == root {
			return nil
		}

		name := d.Name()
		if slices.Contains(skippedEntries, name) || !capitalized(name) {
			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() || strings.Contains(name, ".") {
			return nil
		}

		id, err := filepath.Rel(root, path)
		if err != nil || !isTZif(path) {
			return nil
		}

		id = filepath.ToSlash(id)
		if _, err := Load(id); err != nil {
			log.Trace().Str("zone", id).Msg("zone file not loadable")
			return nil
		}

		ids[id] = struct{}{}

		return nil
	})
}

func capitalized(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func isTZif(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.Read(magic); err != nil {
		return false
	}

	return bytes.Equal(magic, []byte("TZif"))
}

func zoneDirs() []string {
	if dir := os.Getenv("ZONEINFO"); dir != "" {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return append([]string{dir}, defaultZoneDirs...)
		}
	}

	return slices.Clone(defaultZoneDirs)
}

// LocalZone reports the IANA zone of the running host: $TZ when set,
// otherwise the target of the /etc/localtime link, otherwise UTC.
func LocalZone() string {
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" {
		if _, err := Load(tz); err == nil {
			return tz
		}
	}

	return localZoneFromLink("/etc/localtime")
}

func localZoneFromLink(link string) string {
	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		return UTC
	}

	resolved = filepath.ToSlash(resolved)

	_, zone, found := strings.Cut(resolved, "zoneinfo/")
	if !found {
		return UTC
	}

	if _, err := Load(zone); err != nil {
		return UTC
	}

	return zone
}
