// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package features

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/macroguard/internal/input"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// typing returns n key presses every periodMs with a dwellMs hold each.
func typing(n, periodMs, dwellMs int) []input.RawEvent {
	events := make([]input.RawEvent, 0, 2*n)
	for i := 0; i < n; i++ {
		code := string(rune('A' + i%26))
		events = append(events,
			input.RawEvent{Kind: input.KindKeyDown, Code: "Key" + code, Timestamp: at(i * periodMs)},
			input.RawEvent{Kind: input.KindKeyUp, Code: "Key" + code, Timestamp: at(i*periodMs + dwellMs)},
		)
	}
	return events
}

func TestExtractKeyboard_Insufficient(t *testing.T) {
	t.Parallel()

	opts := DefaultKeyboardOptions()
	tests := []struct {
		name   string
		events []input.RawEvent
	}{
		{"empty", nil},
		{"below minimum events", typing(4, 100, 30)},
		{"too few valid intervals", append(typing(3, 100, 30),
			input.RawEvent{Kind: input.KindKeyUp, Code: "Shift", Timestamp: at(400)},
			input.RawEvent{Kind: input.KindKeyUp, Code: "Shift", Timestamp: at(500)},
			input.RawEvent{Kind: input.KindKeyUp, Code: "Shift", Timestamp: at(600)},
			input.RawEvent{Kind: input.KindKeyUp, Code: "Shift", Timestamp: at(700)},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ExtractKeyboard(tt.events, opts)
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("err = %v, want ErrInsufficientData", err)
			}
			if v.Values != nil {
				t.Errorf("expected no vector, got %v", v.Values)
			}
		})
	}
}

func TestExtractKeyboard_RegularTyping(t *testing.T) {
	t.Parallel()

	v, err := ExtractKeyboard(typing(8, 100, 30), DefaultKeyboardOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Values) != KeyboardDim || v.Rows != 1 || v.Cols != KeyboardDim {
		t.Fatalf("shape = %dx%d len %d", v.Rows, v.Cols, len(v.Values))
	}

	checks := map[int]float64{
		P2PMean:   0.1,
		P2PStd:    0,
		P2PMin:    0.1,
		P2PMax:    0.1,
		DwellMean: 0.03,
		DwellStd:  0,
	}
	for idx, want := range checks {
		if !approx(v.Values[idx], want) {
			t.Errorf("Values[%d] = %v, want %v", idx, v.Values[idx], want)
		}
	}
}

func TestExtractKeyboard_IntervalBounds(t *testing.T) {
	t.Parallel()

	events := typing(6, 200, 40)
	// A 12 s pause is outside (0, 10] and must be dropped.
	events = append(events, input.RawEvent{Kind: input.KindKeyDown, Code: "KeyZ", Timestamp: at(5*200 + 12000)})

	opts := DefaultKeyboardOptions()
	opts.AnalysisWindow = 0
	v, err := ExtractKeyboard(events, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(v.Values[P2PMax], 0.2) {
		t.Errorf("P2PMax = %v, want 0.2", v.Values[P2PMax])
	}
}

func TestExtractKeyboard_DwellMatching(t *testing.T) {
	t.Parallel()

	var events []input.RawEvent
	// Five presses 100 ms apart. KeyA released after 80 ms, KeyB held 1.5 s
	// (discarded), the others never released (default 50 ms).
	for i, code := range []string{"KeyA", "KeyB", "KeyC", "KeyD", "KeyE"} {
		events = append(events, input.RawEvent{Kind: input.KindKeyDown, Code: code, Timestamp: at(i * 100)})
	}
	events = append(events,
		input.RawEvent{Kind: input.KindKeyUp, Code: "KeyA", Timestamp: at(80)},
		input.RawEvent{Kind: input.KindKeyUp, Code: "KeyB", Timestamp: at(1600)},
		input.RawEvent{Kind: input.KindMove, Timestamp: at(1700)},
		input.RawEvent{Kind: input.KindMove, Timestamp: at(1800)},
		input.RawEvent{Kind: input.KindMove, Timestamp: at(1900)},
	)

	v, err := ExtractKeyboard(events, DefaultKeyboardOptions())
	if err != nil {
		t.Fatal(err)
	}
	// Dwells: 0.08, 0.05, 0.05, 0.05.
	wantMean := (0.08 + 0.05*3) / 4
	if !approx(v.Values[DwellMean], wantMean) {
		t.Errorf("DwellMean = %v, want %v", v.Values[DwellMean], wantMean)
	}
	if v.Values[DwellStd] <= 0 {
		t.Errorf("DwellStd = %v, want > 0", v.Values[DwellStd])
	}
}

func TestExtractKeyboard_Deterministic(t *testing.T) {
	t.Parallel()

	events := typing(9, 137, 41)
	a, errA := ExtractKeyboard(events, DefaultKeyboardOptions())
	b, errB := ExtractKeyboard(events, DefaultKeyboardOptions())
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("non-deterministic extraction: %v vs %v", a.Values, b.Values)
	}
}

func moves(n int, step func(i int) (float64, float64)) []input.RawEvent {
	events := make([]input.RawEvent, n)
	for i := range events {
		x, y := step(i)
		events[i] = input.RawEvent{
			Kind: input.KindMove, X: x, Y: y, HasPosition: true,
			ViewportWidth: 1000, ViewportHeight: 500,
			Timestamp: at(i * 10),
		}
	}
	return events
}

func TestExtractPointer_Insufficient(t *testing.T) {
	t.Parallel()

	_, err := ExtractPointer(moves(49, func(i int) (float64, float64) { return 1, 1 }), DefaultPointerOptions())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestExtractPointer_PadsLeft(t *testing.T) {
	t.Parallel()

	events := moves(60, func(i int) (float64, float64) { return 500, 250 })
	events[59] = input.RawEvent{Kind: input.KindWheel, Timestamp: at(600)}
	events[58] = input.RawEvent{
		Kind: input.KindClick, X: 100, Y: 50, HasPosition: true,
		ViewportWidth: 1000, ViewportHeight: 500, Timestamp: at(590),
	}

	v, err := ExtractPointer(events, DefaultPointerOptions())
	if err != nil {
		t.Fatal(err)
	}
	if v.Rows != 200 || v.Cols != 3 || len(v.Values) != 600 {
		t.Fatalf("shape = %dx%d len %d", v.Rows, v.Cols, len(v.Values))
	}
	for c := 0; c < 3; c++ {
		if v.At(0, c) != 0 || v.At(139, c) != 0 {
			t.Fatalf("expected zero padding rows, got %v / %v", v.Row(0), v.Row(139))
		}
	}
	if v.At(140, ColX) != 0.5 || v.At(140, ColY) != 0.5 {
		t.Errorf("first real row = %v, want [0 0.5 0.5]", v.Row(140))
	}
	if got := v.Row(198); got[ColEventCode] != CodeButton || got[ColX] != 0.1 || got[ColY] != 0.1 {
		t.Errorf("click row = %v", got)
	}
	if got := v.Row(199); got[ColEventCode] != CodeWheel || got[ColX] != 0.1 || got[ColY] != 0.1 {
		t.Errorf("wheel row = %v, want position carried from the click", got)
	}
	if v.Real != 60 || v.RealRows() != 60 {
		t.Errorf("Real = %d, RealRows() = %d, want 60", v.Real, v.RealRows())
	}
	if !reflect.DeepEqual(v.Shape(), []int64{1, 200, 3}) {
		t.Errorf("Shape() = %v", v.Shape())
	}
}

func TestExtractPointer_TrimsToMostRecent(t *testing.T) {
	t.Parallel()

	events := moves(250, func(i int) (float64, float64) { return float64(i), 0 })
	v, err := ExtractPointer(events, DefaultPointerOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := v.At(0, ColX); !approx(got, 50.0/1000) {
		t.Errorf("first row x = %v, want 0.05", got)
	}
	if got := v.At(199, ColX); !approx(got, 249.0/1000) {
		t.Errorf("last row x = %v, want 0.249", got)
	}
	if v.Real != 200 {
		t.Errorf("Real = %d, want 200", v.Real)
	}
}

func TestExtractPointer_PositionlessEvents(t *testing.T) {
	t.Parallel()

	opts := DefaultPointerOptions()
	opts.Kinematics = true

	tests := []struct {
		name      string
		at        int
		wantX     float64
		wantSpeed float64
	}{
		// 10 px per 10 ms along x: speed 1 before and after the wheel.
		{"wheel mid-stream keeps last position", 30, 0.29, 0},
		{"move after wheel has no spike", 31, 0.31, 2},
		{"leading wheel before any position", 0, 0, 0},
		{"first positioned move after leading wheel", 1, 0.01, 0},
	}

	events := moves(50, func(i int) (float64, float64) { return float64(i * 10), 0 })
	events[30] = input.RawEvent{Kind: input.KindWheel, Timestamp: at(300)}
	events[0] = input.RawEvent{Kind: input.KindWheel, Timestamp: at(0)}
	v, err := ExtractPointer(events, opts)
	if err != nil {
		t.Fatal(err)
	}
	offset := v.Rows - v.Real
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := v.Row(offset + tt.at)
			if !approx(row[ColX], tt.wantX) {
				t.Errorf("x = %v, want %v", row[ColX], tt.wantX)
			}
			if !approx(row[ColSpeed], tt.wantSpeed) {
				t.Errorf("speed = %v, want %v", row[ColSpeed], tt.wantSpeed)
			}
		})
	}
}

func TestExtractPointer_Kinematics(t *testing.T) {
	t.Parallel()

	opts := DefaultPointerOptions()
	opts.Kinematics = true
	// 10 px per 10 ms along x in a 1000 px viewport: speed = 0.01/0.01 = 1.
	v, err := ExtractPointer(moves(50, func(i int) (float64, float64) { return float64(i * 10), 0 }), opts)
	if err != nil {
		t.Fatal(err)
	}
	if v.Cols != 5 {
		t.Fatalf("Cols = %d, want 5", v.Cols)
	}
	first := v.Row(150)
	if first[ColSpeed] != 0 || first[ColAccel] != 0 {
		t.Errorf("first sample kinematics = %v, want zeros", first)
	}
	if got := v.At(199, ColSpeed); !approx(got, 1) {
		t.Errorf("speed = %v, want 1", got)
	}
	if got := v.At(199, ColAccel); !approx(got, 0) {
		t.Errorf("accel = %v, want 0", got)
	}
	if got := v.At(151, ColAccel); !approx(got, 100) {
		t.Errorf("initial accel = %v, want 100", got)
	}
}

func TestExtractPointer_Deterministic(t *testing.T) {
	t.Parallel()

	events := moves(120, func(i int) (float64, float64) { return float64(i*i%97) * 3, float64(i%13) * 7 })
	opts := DefaultPointerOptions()
	opts.Kinematics = true
	a, _ := ExtractPointer(events, opts)
	b, _ := ExtractPointer(events, opts)
	if !reflect.DeepEqual(a.Values, b.Values) {
		t.Error("non-deterministic pointer extraction")
	}
}

func TestPatternDiversity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		events []input.RawEvent
		want   float64
	}{
		{"identical positions", moves(200, func(int) (float64, float64) { return 300, 300 }), 0},
		{"constant step", moves(200, func(i int) (float64, float64) { return float64(i * 4), 0 }), 0},
		{"alternating 0 and 100 px steps", moves(201, func(i int) (float64, float64) { return float64((i / 2) * 100), 0 }), 50},
		{"too few events", moves(4, func(i int) (float64, float64) { return float64(i * 37), 0 }), UnknownDiversity},
		{"no positions", []input.RawEvent{{Kind: input.KindWheel}, {Kind: input.KindWheel}, {Kind: input.KindWheel}, {Kind: input.KindWheel}, {Kind: input.KindWheel}}, UnknownDiversity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PatternDiversity(tt.events); !approx(got, tt.want) {
				t.Errorf("PatternDiversity() = %v, want %v", got, tt.want)
			}
		})
	}
}
