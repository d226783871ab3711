package timespec

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunProvider reports sunrise and sunset for the calendar day containing
// day. ok is false where the sun does not rise or set that day.
type SunProvider interface {
	SunTimes(day time.Time) (rise, set time.Time, ok bool)
}

// Location computes sun times for a fixed point on the earth.
type Location struct {
	Latitude  float64
	Longitude float64
}

// SunTimes implements SunProvider.
func (l Location) SunTimes(day time.Time) (rise, set time.Time, ok bool) {
	rise, set = sunrise.SunriseSunset(l.Latitude, l.Longitude, day.Year(), day.Month(), day.Day())
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return rise.In(day.Location()), set.In(day.Location()), true
}
