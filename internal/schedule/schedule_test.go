package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestBiweeklyCoversSpanExactly(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		months int
	}{
		{"two months", 2025, 2},
		{"full year", 2025, 12},
		{"leap february", 2024, 2},
		{"single month", 2023, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := Biweekly(tt.year, tt.months, 21)
			if err != nil {
				t.Fatalf("Biweekly: %v", err)
			}
			if len(windows) != tt.months*2 {
				t.Fatalf("len(windows) = %d, want %d", len(windows), tt.months*2)
			}

			// Concatenating unpadded ranges must reconstruct the span with
			// no gaps or overlaps, ending at the last day of the last month.
			cursor := time.Date(tt.year, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, w := range windows {
				if w.Index != i+1 {
					t.Errorf("window %d: Index = %d, want %d", i, w.Index, i+1)
				}
				if !w.Start.Equal(cursor) {
					t.Errorf("window %d: Start = %s, want %s", i, w.Start, cursor)
				}
				if !w.End.After(w.Start) && !w.End.Equal(w.Start) {
					t.Errorf("window %d: End %s before Start %s", i, w.End, w.Start)
				}
				cursor = w.EndExclusive()
			}
			wantEnd := time.Date(tt.year, time.Month(tt.months), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
			if !cursor.Equal(wantEnd) {
				t.Errorf("span ends %s, want %s", cursor, wantEnd)
			}
		})
	}
}

func TestBiweeklyMonthHalves(t *testing.T) {
	windows, err := Biweekly(2025, 2, 21)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}

	want := []struct{ start, end string }{
		{"2025-01-01", "2025-01-15"},
		{"2025-01-16", "2025-01-31"},
		{"2025-02-01", "2025-02-15"},
		{"2025-02-16", "2025-02-28"},
	}
	for i, w := range want {
		if got := windows[i].Start.Format("2006-01-02"); got != w.start {
			t.Errorf("window %d: Start = %s, want %s", i+1, got, w.start)
		}
		if got := windows[i].End.Format("2006-01-02"); got != w.end {
			t.Errorf("window %d: End = %s, want %s", i+1, got, w.end)
		}
	}
}

func TestBiweeklyLeapFebruary(t *testing.T) {
	windows, err := Biweekly(2024, 2, 21)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	if got := windows[3].End.Format("2006-01-02"); got != "2024-02-29" {
		t.Errorf("window 4 End = %s, want 2024-02-29", got)
	}
}

func TestBiweeklyPadding(t *testing.T) {
	windows, err := Biweekly(2025, 1, 21)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	w := windows[0]
	if got := w.PaddedStart.Format("2006-01-02"); got != "2024-12-11" {
		t.Errorf("PaddedStart = %s, want 2024-12-11", got)
	}
	if got := w.PaddedEnd.Format("2006-01-02"); got != "2025-02-05" {
		t.Errorf("PaddedEnd = %s, want 2025-02-05", got)
	}
	// Unpadded bounds stay the semantic period.
	if got := w.Start.Format("2006-01-02"); got != "2025-01-01" {
		t.Errorf("Start = %s, want 2025-01-01", got)
	}
}

func TestMonthlyRange(t *testing.T) {
	windows, err := Monthly(2024, 4, 9)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(windows) != 6 {
		t.Fatalf("len(windows) = %d, want 6", len(windows))
	}
	for i, w := range windows {
		wantMonth := time.Month(4 + i)
		if w.Index != 4+i {
			t.Errorf("window %d: Index = %d, want %d", i, w.Index, 4+i)
		}
		if w.Start.Month() != wantMonth {
			t.Errorf("window %d: Start month = %s, want %s", i, w.Start.Month(), wantMonth)
		}
		if w.Start.Day() != 1 {
			t.Errorf("window %d: Start day = %d, want 1", i, w.Start.Day())
		}
		if !w.EndExclusive().Equal(w.Start.AddDate(0, 1, 0)) {
			t.Errorf("window %d: End %s does not close the month", i, w.End)
		}
		if !w.PaddedStart.Equal(w.Start) || !w.PaddedEnd.Equal(w.End) {
			t.Errorf("window %d: monthly windows must not be padded", i)
		}
	}
}

func TestInvalidRanges(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"biweekly zero year", func() error { _, err := Biweekly(0, 6, 21); return err }},
		{"biweekly months too high", func() error { _, err := Biweekly(2025, 13, 21); return err }},
		{"biweekly months zero", func() error { _, err := Biweekly(2025, 0, 21); return err }},
		{"biweekly negative padding", func() error { _, err := Biweekly(2025, 6, -1); return err }},
		{"monthly inverted range", func() error { _, err := Monthly(2025, 9, 4); return err }},
		{"monthly month out of range", func() error { _, err := Monthly(2025, 0, 4); return err }},
		{"monthly negative year", func() error { _, err := Monthly(-1, 1, 12); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, ErrInvalidRange) {
				t.Errorf("err = %v, want ErrInvalidRange", err)
			}
		})
	}
}

func TestPairs(t *testing.T) {
	windows, err := Biweekly(2025, 3, 21)
	if err != nil {
		t.Fatalf("Biweekly: %v", err)
	}
	pairs := Pairs(windows)
	if len(pairs) != 3 {
		t.Fatalf("len(pairs) = %d, want 3", len(pairs))
	}
	wantLabels := []string{"01_02", "03_04", "05_06"}
	for i, p := range pairs {
		if p.Label != wantLabels[i] {
			t.Errorf("pair %d: Label = %q, want %q", i, p.Label, wantLabels[i])
		}
		if p.Windows[0].Index != i*2+1 || p.Windows[1].Index != i*2+2 {
			t.Errorf("pair %d: window indices = %d,%d", i, p.Windows[0].Index, p.Windows[1].Index)
		}
	}
}

func TestLabels(t *testing.T) {
	bw, _ := Biweekly(2025, 1, 21)
	if got := bw[1].Label(); got != "2025-01-16" {
		t.Errorf("biweekly label = %q, want 2025-01-16", got)
	}
	mo, _ := Monthly(2025, 3, 3)
	if got := mo[0].Label(); got != "2025-03" {
		t.Errorf("monthly label = %q, want 2025-03", got)
	}
}
