package market

import (
	"testing"
	"time"
)

func newYork(t *testing.T, day, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// March 2024: the 12th is a Tuesday, the 16th a Saturday.
	return time.Date(2024, time.March, day, hour, minute, 0, 0, loc)
}

func TestResolveCalendarNasdaq(t *testing.T) {
	obs := Observation{Exchange: "NMS", Timezone: "America/New_York"}

	cases := []struct {
		name   string
		at     time.Time
		status Status
	}{
		{"regular", newYork(t, 12, 10, 0), StatusOpen},
		{"overnight", newYork(t, 12, 3, 0), StatusClosed},
		{"pre-market", newYork(t, 12, 4, 0), StatusPreMarket},
		{"open boundary", newYork(t, 12, 9, 30), StatusOpen},
		{"close boundary", newYork(t, 12, 16, 0), StatusAfterHours},
		{"after-hours end", newYork(t, 12, 20, 0), StatusClosed},
		{"weekend", newYork(t, 16, 10, 0), StatusClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, name := Resolve(obs, tc.at.UTC())
			if status != tc.status {
				t.Fatalf("status at %s = %s, want %s", tc.at, status, tc.status)
			}
			if name != "NASDAQ" {
				t.Fatalf("display name = %q", name)
			}
		})
	}
}

func TestResolveSignalBypassesCalendar(t *testing.T) {
	obs := Observation{Exchange: "NMS", Timezone: "America/New_York", MarketState: "PRE"}
	// Saturday would be closed by the calendar; the signal is authoritative.
	status, name := Resolve(obs, newYork(t, 16, 12, 0))
	if status != StatusPreMarket || name != "NASDAQ" {
		t.Fatalf("got %s/%s", status, name)
	}

	status, _ = Resolve(Observation{Exchange: "MIL", MarketState: "weird"}, newYork(t, 12, 10, 0))
	if status != StatusUnknown {
		t.Fatalf("unmapped signal should be unknown, got %s", status)
	}
}

func TestNormalizeSignal(t *testing.T) {
	cases := map[string]Status{
		"REGULAR":  StatusOpen,
		"regular":  StatusOpen,
		"PRE":      StatusPreMarket,
		"PREPRE":   StatusPreMarket,
		"POST":     StatusAfterHours,
		"POSTPOST": StatusAfterHours,
		"CLOSED":   StatusClosed,
		"":         StatusUnknown,
		"HALTED":   StatusUnknown,
	}
	for in, want := range cases {
		if got := NormalizeSignal(in); got != want {
			t.Fatalf("NormalizeSignal(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestResolveUnknownExchangeFallsBackToDefaultCalendar(t *testing.T) {
	obs := Observation{Exchange: "XYZ", Timezone: "America/New_York"}
	status, name := Resolve(obs, newYork(t, 12, 17, 0))
	if status != StatusAfterHours {
		t.Fatalf("status = %s", status)
	}
	if name != "XYZ" {
		t.Fatalf("unknown exchange should keep its code as name, got %q", name)
	}
}

func TestResolveTimezoneMismatchUsesRegionalTemplate(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	obs := Observation{Exchange: "NMS", Timezone: "Europe/Rome"}
	at := time.Date(2024, time.March, 12, 8, 30, 0, 0, rome)
	if status, _ := Resolve(obs, at); status != StatusPreMarket {
		t.Fatalf("european template pre-market expected, got %s", status)
	}

	at = time.Date(2024, time.March, 12, 17, 32, 0, 0, rome)
	if status, _ := Resolve(obs, at); status != StatusClosed {
		t.Fatalf("european template has no after-hours, got %s", status)
	}

	sydney := Observation{Exchange: "ASX", Timezone: "Australia/Sydney"}
	if status, _ := Resolve(sydney, newYork(t, 12, 20, 0)); status != StatusClosed {
		t.Fatalf("no template for sydney should be closed, got %s", status)
	}
}

func TestResolveMilanCalendar(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	obs := Observation{Exchange: "MIL", Timezone: "Europe/Rome"}

	at := time.Date(2024, time.March, 12, 17, 32, 0, 0, rome)
	status, name := Resolve(obs, at)
	if status != StatusAfterHours || name != "Borsa Italiana" {
		t.Fatalf("got %s/%s", status, name)
	}
}

func TestAggregate(t *testing.T) {
	at := newYork(t, 12, 10, 0)
	summary := Aggregate([]Observation{
		{Exchange: "NMS", Timezone: "America/New_York", MarketState: "CLOSED"},
		{Exchange: "NMS", Timezone: "America/New_York"},
		{Exchange: "MIL", Timezone: "Europe/Rome", MarketState: "CLOSED"},
	}, at)

	if summary.Overall != StatusOpen {
		t.Fatalf("overall = %s", summary.Overall)
	}
	if summary.Markets["NASDAQ"] != StatusOpen {
		t.Fatalf("most active status per exchange should win: %#v", summary.Markets)
	}
	if summary.Markets["Borsa Italiana"] != StatusClosed {
		t.Fatalf("milan = %s", summary.Markets["Borsa Italiana"])
	}
}

func TestAggregateEmptyAndUnknown(t *testing.T) {
	summary := Aggregate(nil, time.Now())
	if summary.Overall != StatusClosed || len(summary.Markets) != 0 {
		t.Fatalf("empty aggregate = %+v", summary)
	}

	summary = Aggregate([]Observation{{Exchange: "NMS", MarketState: "HALTED"}}, time.Now())
	if summary.Overall != StatusClosed {
		t.Fatalf("unknown-only aggregate should be closed, got %s", summary.Overall)
	}
	if summary.Markets["NASDAQ"] != StatusUnknown {
		t.Fatalf("per-exchange unknown should be kept: %#v", summary.Markets)
	}
}

func TestSessionWindowsOrdered(t *testing.T) {
	for code, s := range exchanges {
		var last Clock
		for _, w := range []*Window{s.PreMarket, s.Regular, s.AfterHours} {
			if w == nil {
				continue
			}
			if w.Start >= w.End || w.Start < last {
				t.Fatalf("%s windows overlap or are unordered", code)
			}
			last = w.End
		}
	}
}

func TestLookupOrDefault(t *testing.T) {
	if s, ok := LookupOrDefault("lse"); !ok || s.Timezone != "Europe/London" {
		t.Fatalf("lookup should be case-insensitive: %+v %v", s, ok)
	}
	if s, ok := LookupOrDefault("???"); ok || s.DisplayName != "NASDAQ" {
		t.Fatalf("unknown code should fall back to default: %+v %v", s, ok)
	}
	if At(9, 30).String() != "09:30" {
		t.Fatalf("clock string = %s", At(9, 30))
	}
}
