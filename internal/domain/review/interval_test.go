package review

import (
	"testing"
	"time"
)

func TestNextInterval_SuccessTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reviewCount int
		want        time.Duration
	}{
		{reviewCount: 1, want: 24 * time.Hour},
		{reviewCount: 2, want: 3 * 24 * time.Hour},
		{reviewCount: 3, want: 7 * 24 * time.Hour},
		{reviewCount: 4, want: 14 * 24 * time.Hour},
		{reviewCount: 5, want: 14 * 24 * time.Hour},
		{reviewCount: 42, want: 14 * 24 * time.Hour},
	}

	for _, tt := range tests {
		got := NextInterval(tt.reviewCount, true)
		if got != tt.want {
			t.Errorf("NextInterval(%d, true) = %v, want %v", tt.reviewCount, got, tt.want)
		}
	}
}

func TestNextInterval_FailureAlwaysResets(t *testing.T) {
	t.Parallel()

	for _, reviewCount := range []int{1, 2, 3, 4, 10} {
		got := NextInterval(reviewCount, false)
		if got != 24*time.Hour {
			t.Errorf("NextInterval(%d, false) = %v, want 24h", reviewCount, got)
		}
	}
}

func TestRecordReviewOutcome(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	item := &Item{ID: 1, RecipientID: 7, ReviewCount: 2}

	item.RecordReviewOutcome(true, now)

	if item.ReviewCount != 3 {
		t.Errorf("ReviewCount = %d, want 3", item.ReviewCount)
	}
	if !item.Learned {
		t.Error("Learned = false, want true")
	}
	if item.LastReviewedAt == nil || !item.LastReviewedAt.Equal(now) {
		t.Errorf("LastReviewedAt = %v, want %v", item.LastReviewedAt, now)
	}
	wantNext := now.Add(7 * 24 * time.Hour)
	if item.NextReviewAt == nil || !item.NextReviewAt.Equal(wantNext) {
		t.Errorf("NextReviewAt = %v, want %v", item.NextReviewAt, wantNext)
	}

	// A failure resets the schedule to one day regardless of count.
	item.RecordReviewOutcome(false, now)
	if item.Learned {
		t.Error("Learned = true after failed review, want false")
	}
	wantNext = now.Add(24 * time.Hour)
	if item.NextReviewAt == nil || !item.NextReviewAt.Equal(wantNext) {
		t.Errorf("NextReviewAt after failure = %v, want %v", item.NextReviewAt, wantNext)
	}
}

func TestItemIsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		item Item
		want bool
	}{
		{name: "never reviewed is always due", item: Item{}, want: true},
		{name: "past next review is due", item: Item{NextReviewAt: &past}, want: true},
		{name: "exactly now is due", item: Item{NextReviewAt: &now}, want: true},
		{name: "future next review is not due", item: Item{NextReviewAt: &future}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}
