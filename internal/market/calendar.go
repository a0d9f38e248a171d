package market

import (
	"fmt"
	"strings"
	"time"
	// Exchange timezones must resolve on hosts without a system zoneinfo database.
	_ "time/tzdata"
)

// DefaultExchange is used when a quote reports an exchange code the calendar does not know.
const DefaultExchange = "NMS"

// Window is a half-open [Start, End) interval of local wall-clock time.
type Window struct {
	Start Clock
	End   Clock
}

// Contains reports whether the local time of day falls inside the window.
func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c < w.End
}

// Clock is minutes since local midnight.
type Clock int

// At builds a Clock from an hour and minute.
func At(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ClockOf extracts the wall-clock time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return At(t.Hour(), t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Session describes the trading windows of one exchange. A nil window means
// that session never occurs.
type Session struct {
	Timezone    string
	DisplayName string
	PreMarket   *Window
	Regular     *Window
	AfterHours  *Window
}

// StatusAt classifies a local wall-clock time against the session windows.
// Regular hours are tested first, then pre-market, then after-hours.
func (s Session) StatusAt(c Clock) Status {
	switch {
	case s.Regular != nil && s.Regular.Contains(c):
		return StatusOpen
	case s.PreMarket != nil && s.PreMarket.Contains(c):
		return StatusPreMarket
	case s.AfterHours != nil && s.AfterHours.Contains(c):
		return StatusAfterHours
	default:
		return StatusClosed
	}
}

func window(startH, startM, endH, endM int) *Window {
	return &Window{Start: At(startH, startM), End: At(endH, endM)}
}

var usEquities = func(name string) Session {
	return Session{
		Timezone:    "America/New_York",
		DisplayName: name,
		PreMarket:   window(4, 0, 9, 30),
		Regular:     window(9, 30, 16, 0),
		AfterHours:  window(16, 0, 20, 0),
	}
}

// exchanges holds the static calendar keyed by provider exchange code.
// Holidays and lunch breaks are not modelled.
var exchanges = map[string]Session{
	"NMS": usEquities("NASDAQ"),
	"NYQ": usEquities("NYSE"),
	"MIL": {
		Timezone:    "Europe/Rome",
		DisplayName: "Borsa Italiana",
		PreMarket:   window(8, 0, 9, 0),
		Regular:     window(9, 0, 17, 30),
		AfterHours:  window(17, 30, 17, 35),
	},
	"LSE": {
		Timezone:    "Europe/London",
		DisplayName: "London Stock Exchange",
		PreMarket:   window(5, 5, 8, 0),
		Regular:     window(8, 0, 16, 30),
		AfterHours:  window(16, 30, 16, 35),
	},
	"PAR": {
		Timezone:    "Europe/Paris",
		DisplayName: "Euronext Paris",
		PreMarket:   window(7, 15, 9, 0),
		Regular:     window(9, 0, 17, 30),
		AfterHours:  window(17, 30, 17, 35),
	},
	"FRA": {
		Timezone:    "Europe/Berlin",
		DisplayName: "Frankfurt Stock Exchange",
		PreMarket:   window(8, 0, 9, 0),
		Regular:     window(9, 0, 17, 30),
		AfterHours:  window(17, 30, 20, 0),
	},
	"HKG": {
		Timezone:    "Asia/Hong_Kong",
		DisplayName: "Hong Kong Stock Exchange",
		PreMarket:   window(9, 0, 9, 30),
		Regular:     window(9, 30, 16, 0),
	},
	"JPX": {
		Timezone:    "Asia/Tokyo",
		DisplayName: "Tokyo Stock Exchange",
		Regular:     window(9, 0, 15, 0),
	},
}

// regional templates apply when a quote's timezone disagrees with its exchange calendar.
var regions = []struct {
	zones   []string
	session Session
}{
	{
		zones: []string{"America/New_York"},
		session: Session{
			PreMarket:  window(4, 0, 9, 30),
			Regular:    window(9, 30, 16, 0),
			AfterHours: window(16, 0, 20, 0),
		},
	},
	{
		zones: []string{"Europe/London", "Europe/Paris", "Europe/Rome", "Europe/Berlin"},
		session: Session{
			PreMarket: window(8, 0, 9, 0),
			Regular:   window(9, 0, 17, 30),
		},
	},
	{
		zones: []string{"Asia/Tokyo", "Asia/Hong_Kong", "Asia/Shanghai"},
		session: Session{
			Regular: window(9, 0, 15, 30),
		},
	},
}

// Lookup returns the calendar entry for an exchange code.
func Lookup(code string) (Session, bool) {
	s, ok := exchanges[strings.ToUpper(strings.TrimSpace(code))]
	return s, ok
}

// LookupOrDefault returns the exchange calendar, or the default exchange's when unknown.
func LookupOrDefault(code string) (Session, bool) {
	if s, ok := Lookup(code); ok {
		return s, true
	}
	return exchanges[DefaultExchange], false
}

// regionFor picks a generic regional template by substring match on the timezone name.
func regionFor(timezone string) (Session, bool) {
	for _, r := range regions {
		for _, zone := range r.zones {
			if strings.Contains(timezone, zone) {
				s := r.session
				s.Timezone = zone
				return s, true
			}
		}
	}
	return Session{}, false
}

// DisplayName returns the human readable exchange name, or the code itself.
func DisplayName(code string) string {
	if s, ok := Lookup(code); ok {
		return s.DisplayName
	}
	return code
}
