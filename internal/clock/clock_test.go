package clock

import (
	"testing"
	"time"
)

func TestSystemNowIsUTC(t *testing.T) {
	now := NewSystem().Now()

	if now.Location() != time.UTC {
		t.Fatalf("got location %v, want UTC", now.Location())
	}
}

func TestFakeAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if !f.Now().Equal(start) {
		t.Fatalf("got %v, want %v", f.Now(), start)
	}

	f.Advance(90 * time.Minute)

	want := start.Add(90 * time.Minute)
	if !f.Now().Equal(want) {
		t.Fatalf("after advance got %v, want %v", f.Now(), want)
	}

	later := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	f.Set(later)

	if !f.Now().Equal(later) {
		t.Fatalf("after set got %v, want %v", f.Now(), later)
	}
}
