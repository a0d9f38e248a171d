package proximity

import (
	"errors"
	"math"
	"testing"
)

func TestNearestLevel(t *testing.T) {
	cases := []struct {
		name   string
		price  float64
		levels []float64
		want   float64
		ok     bool
	}{
		{"empty", 100, nil, 0, false},
		{"single", 100, []float64{90}, 90, true},
		{"closest above", 109.6, []float64{100, 110}, 110, true},
		{"closest below", 101, []float64{110, 100}, 100, true},
		{"tie keeps first", 105, []float64{110, 100}, 110, true},
		{"tie keeps first reversed", 105, []float64{100, 110}, 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NearestLevel(tc.price, tc.levels)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("NearestLevel(%v, %v) = %v,%v want %v,%v", tc.price, tc.levels, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	d, err := Distance(109.6, 110)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-0.0036363636) > 1e-9 {
		t.Fatalf("distance = %v", d)
	}

	for _, level := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		d, err := Distance(100, level)
		if !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("level %v should be invalid, got %v", level, err)
		}
		if !math.IsInf(d, 1) {
			t.Fatalf("invalid level should return +Inf sentinel, got %v", d)
		}
	}
}

func TestNearInclusive(t *testing.T) {
	if !Near(0.005, 0.005) {
		t.Fatal("boundary distance must be near")
	}
	if Near(0.0051, 0.005) {
		t.Fatal("distance above threshold must not be near")
	}
	if !Near(0, 0.005) {
		t.Fatal("zero distance must be near")
	}
}

func TestChangeFromOpen(t *testing.T) {
	open := 100.0
	got := ChangeFromOpen(95, &open)
	if got == nil || math.Abs(*got-(-5.0)) > 1e-9 {
		t.Fatalf("change = %v", got)
	}
	if ChangeFromOpen(95, nil) != nil {
		t.Fatal("missing open should be nil")
	}
	zero := 0.0
	if ChangeFromOpen(95, &zero) != nil {
		t.Fatal("zero open should be nil")
	}
}

func TestEvaluateScenario(t *testing.T) {
	engine := NewEngine(0)
	view, err := engine.Evaluate("XYZ", Quote{Price: 109.6, Currency: "USD"}, []float64{100, 110})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if view.NearestLevel == nil || *view.NearestLevel != 110 {
		t.Fatalf("nearest level = %v", view.NearestLevel)
	}
	if math.Abs(view.DistancePct-0.00364) > 1e-5 {
		t.Fatalf("distance = %v", view.DistancePct)
	}
	if !view.Near {
		t.Fatal("expected near at default threshold")
	}
	if view.PriceChangePct != nil {
		t.Fatal("no open price means no change")
	}
}

func TestEvaluateNoLevels(t *testing.T) {
	open := 100.0
	for _, price := range []float64{0.01, 100, 1e6} {
		view, err := NewEngine(DefaultThreshold).Evaluate("XYZ", Quote{Price: price, OpenPrice: &open}, nil)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if view.NearestLevel != nil || view.DistancePct != 0 || view.Near {
			t.Fatalf("empty levels should produce default view, got %+v", view)
		}
		if view.PriceChangePct == nil {
			t.Fatal("change from open still computed without levels")
		}
	}
}

func TestEvaluateInvalidLevel(t *testing.T) {
	_, err := NewEngine(DefaultThreshold).Evaluate("XYZ", Quote{Price: 0.001}, []float64{0, 50})
	if !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("zero nearest level must fail validation, got %v", err)
	}
}
