package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Season is the meteorological season an incident occurred in.
type Season string

// Season values.
const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

// TimeOfDay is the coarse part of the day an incident occurred in.
type TimeOfDay string

// TimeOfDay values.
const (
	Morning TimeOfDay = "morning"
	Night   TimeOfDay = "night"
)

// Seasons lists every season in calendar order starting with summer.
var Seasons = []Season{Summer, Fall, Winter, Spring}

// TimesOfDay lists every time-of-day bucket.
var TimesOfDay = []TimeOfDay{Morning, Night}

// SeasonOf returns the season bucket for a month:
// Dec-Feb winter, Mar-May spring, Jun-Aug summer, Sep-Nov fall.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// TimeOfDayOf returns the time-of-day bucket for an hour of the day.
// Hours 1 through 8 are morning; every other hour, including midnight, is night.
func TimeOfDayOf(hour int) TimeOfDay {
	if hour >= 1 && hour <= 8 {
		return Morning
	}
	return Night
}

// Context is the (season, time-of-day) pair historical incidents are judged against.
type Context struct {
	Season    Season    `json:"season"`
	TimeOfDay TimeOfDay `json:"time_of_day"`
}

// ContextAt returns the context a wall-clock instant falls into.
func ContextAt(t time.Time) Context {
	return Context{Season: SeasonOf(t.Month()), TimeOfDay: TimeOfDayOf(t.Hour())}
}

// String renders the context as "season/time_of_day".
func (c Context) String() string {
	return string(c.Season) + "/" + string(c.TimeOfDay)
}

// Valid reports whether both dimensions hold known values.
func (c Context) Valid() bool {
	return validSeason(c.Season) && validTimeOfDay(c.TimeOfDay)
}

// ParseContext parses the "season/time_of_day" form produced by String.
func ParseContext(s string) (Context, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "/", 2)
	if len(parts) != 2 {
		return Context{}, eris.Errorf("model: invalid context %q (want season/time_of_day)", s)
	}
	c := Context{Season: Season(parts[0]), TimeOfDay: TimeOfDay(parts[1])}
	if !c.Valid() {
		return Context{}, eris.Errorf("model: invalid context %q", s)
	}
	return c, nil
}

// RepresentativeContexts returns the fixed set of contexts used to build the
// global risk distribution: every season crossed with every time of day.
func RepresentativeContexts() []Context {
	out := make([]Context, 0, len(Seasons)*len(TimesOfDay))
	for _, s := range Seasons {
		for _, tod := range TimesOfDay {
			out = append(out, Context{Season: s, TimeOfDay: tod})
		}
	}
	return out
}

func validSeason(s Season) bool {
	switch s {
	case Winter, Spring, Summer, Fall:
		return true
	}
	return false
}

func validTimeOfDay(t TimeOfDay) bool {
	return t == Morning || t == Night
}
