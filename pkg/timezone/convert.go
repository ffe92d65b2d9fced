package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone rules even on hosts without /usr/share/zoneinfo
)

var (
	ErrUnknownTimezone = errors.New("unknown timezone")
	ErrConversion      = errors.New("conversion failed")
	ErrInvalidDateTime = errors.New("invalid date time")
)

// transitionWindow bounds the search for the offsets in effect around a wall
// clock time. Zone rules never change twice within it.
const transitionWindow = 36 * time.Hour

var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type Conversion struct {
	Input      time.Time
	InputZone  string
	Output     time.Time
	OutputZone string
	UTC        time.Time
}

// Load resolves an IANA identifier. The empty name and "Local" are rejected:
// both are accepted by time.LoadLocation but name no IANA zone.
func Load(zone string) (*time.Location, error) {
	if zone == "" || zone == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, zone)
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, zone)
	}

	return loc, nil
}

// Convert interprets the clock reading of wall in fromZone and renders the
// resulting instant in toZone. The location attached to wall is ignored.
func Convert(wall time.Time, fromZone string, toZone string) (Conversion, error) {
	from, err := Load(fromZone)
	if err != nil {
		return Conversion{}, err
	}

	to, err := Load(toZone)
	if err != nil {
		return Conversion{}, err
	}

	input := Resolve(wall, from)
	if year := input.UTC().Year(); year < 1 || year > 9999 {
		return Conversion{}, fmt.Errorf("%w: %s in %s is out of range", ErrConversion, wall.Format(time.DateTime), fromZone)
	}

	return Conversion{
		Input:      input,
		InputZone:  from.String(),
		Output:     input.In(to),
		OutputZone: to.String(),
		UTC:        input.UTC(),
	}, nil
}

// ConvertInstant renders an already absolute instant in both zones.
func ConvertInstant(instant time.Time, fromZone string, toZone string) (Conversion, error) {
	from, err := Load(fromZone)
	if err != nil {
		return Conversion{}, err
	}

	to, err := Load(toZone)
	if err != nil {
		return Conversion{}, err
	}

	return Conversion{
		Input:      instant.In(from),
		InputZone:  from.String(),
		Output:     instant.In(to),
		OutputZone: to.String(),
		UTC:        instant.UTC(),
	}, nil
}

// In renders instant in zone.
func In(instant time.Time, zone string) (time.Time, error) {
	loc, err := Load(zone)
	if err != nil {
		return time.Time{}, err
	}

	return instant.In(loc), nil
}

// Resolve maps the clock reading of wall onto an instant in loc.
//
// Readings skipped by a spring-forward transition are moved forward by the
// length of the gap. Readings repeated by a fall-back transition resolve to
// the second occurrence, the one under the offset in effect after the
// transition.
func Resolve(wall time.Time, loc *time.Location) time.Time {
	naive := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC)

	before := offsetAt(naive.Add(-transitionWindow), loc)
	after := offsetAt(naive.Add(transitionWindow), loc)

	early := naive.Add(-before)
	late := naive.Add(-after)

	if offsetAt(late, loc) == after {
		return late.In(loc)
	}

	// Either the reading precedes the transition or it falls in a gap, where
	// the pre-transition offset lands just past the skipped readings.
	return early.In(loc)
}

// ParseWallClock accepts RFC 3339 timestamps and naive layouts
// (YYYY-MM-DD[THH:MM[:SS[.fff]]]). The boolean reports whether the text
// carried its own UTC offset, in which case the result is an absolute
// instant.
func ParseWallClock(value string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true, nil
	}

	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, false, nil
		}
	}

	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
}

// ResolveText parses value and, when it carries no offset, resolves it in
// zone.
func ResolveText(value string, zone string) (time.Time, error) {
	loc, err := Load(zone)
	if err != nil {
		return time.Time{}, err
	}

	t, absolute, err := ParseWallClock(value)
	if err != nil {
		return time.Time{}, err
	}

	if absolute {
		return t.In(loc), nil
	}

	return Resolve(t, loc), nil
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, offset := t.In(loc).Zone()
	return time.Duration(offset) * time.Second
}

// FormatOffset renders an offset in seconds as ±hh:mm.
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}

	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
