package market

import (
	"strings"
	"time"
)

// Status is the normalised trading phase of an exchange.
type Status string

const (
	StatusOpen       Status = "open"
	StatusPreMarket  Status = "pre-market"
	StatusAfterHours Status = "after-hours"
	StatusClosed     Status = "closed"
	StatusUnknown    Status = "unknown"
)

// rank orders statuses by how actionable they are.
func (s Status) rank() int {
	switch s {
	case StatusOpen:
		return 4
	case StatusPreMarket:
		return 3
	case StatusAfterHours:
		return 2
	case StatusClosed:
		return 1
	default:
		return 0
	}
}

// MoreActive reports whether s outranks other (open > pre-market > after-hours > closed > unknown).
func (s Status) MoreActive(other Status) bool {
	return s.rank() > other.rank()
}

// NormalizeSignal maps a provider-native market state onto a Status.
func NormalizeSignal(state string) Status {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "REGULAR":
		return StatusOpen
	case "PRE", "PREPRE":
		return StatusPreMarket
	case "POST", "POSTPOST":
		return StatusAfterHours
	case "CLOSED":
		return StatusClosed
	default:
		return StatusUnknown
	}
}

// Observation is what a cached quote knows about where and when it trades.
type Observation struct {
	Exchange    string
	Timezone    string
	MarketState string
}

type sourceKind int

const (
	sourceCalendar sourceKind = iota
	sourceSignaled
)

// source is the single decision point between trusting the provider signal and
// computing the status from the calendar.
type source struct {
	kind     sourceKind
	signal   string
	exchange string
}

func sourceOf(obs Observation) source {
	if strings.TrimSpace(obs.MarketState) != "" {
		return source{kind: sourceSignaled, signal: obs.MarketState, exchange: obs.Exchange}
	}
	return source{kind: sourceCalendar, exchange: obs.Exchange}
}

// Resolve returns the status of the observed instrument's market at now, along
// with the exchange display name used for grouping.
func Resolve(obs Observation, now time.Time) (Status, string) {
	src := sourceOf(obs)
	if src.kind == sourceSignaled {
		return NormalizeSignal(src.signal), exchangeLabel(src.exchange)
	}

	session, _ := LookupOrDefault(src.exchange)
	name := exchangeLabel(src.exchange)

	local := now.In(location(obs.Timezone, session.Timezone))
	if isWeekend(local) {
		return StatusClosed, name
	}
	clock := ClockOf(local)

	if obs.Timezone == "" || obs.Timezone == session.Timezone {
		return session.StatusAt(clock), name
	}
	if region, ok := regionFor(obs.Timezone); ok {
		return region.StatusAt(clock), name
	}
	return StatusClosed, name
}

// Summary is the aggregate status across watched instruments.
type Summary struct {
	Overall Status            `json:"overall"`
	Markets map[string]Status `json:"markets"`
}

// Aggregate resolves every observation and keeps the most active status per
// exchange; the overall status is the most active exchange status.
func Aggregate(observations []Observation, now time.Time) Summary {
	summary := Summary{Overall: StatusClosed, Markets: make(map[string]Status)}
	for _, obs := range observations {
		status, name := Resolve(obs, now)
		current, seen := summary.Markets[name]
		if !seen || status.MoreActive(current) {
			summary.Markets[name] = status
		}
	}

	for _, status := range summary.Markets {
		if status.MoreActive(summary.Overall) {
			summary.Overall = status
		}
	}
	return summary
}

func exchangeLabel(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	return DisplayName(code)
}

func location(names ...string) *time.Location {
	for _, name := range names {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
