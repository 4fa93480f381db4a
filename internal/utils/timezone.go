package utils

import "time"

// LoadLocation resolves an IANA timezone name, falling back to the given
// default and finally to UTC.
func LoadLocation(tz string, fallback string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if fallback != "" {
		if loc, err := time.LoadLocation(fallback); err == nil {
			return loc
		}
	}
	return time.UTC
}

// DateInTimezone returns the calendar date (YYYY-MM-DD) of the given instant
// in a tenant's local timezone.
func DateInTimezone(tz string, fallback string, at time.Time) string {
	return at.In(LoadLocation(tz, fallback)).Format("2006-01-02")
}

// StartOfDayUTC returns the tenant-local midnight of the given instant,
// converted to UTC. Orders created before this instant belong to a previous
// business day.
func StartOfDayUTC(tz string, fallback string, at time.Time) time.Time {
	loc := LoadLocation(tz, fallback)
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.UTC()
}
