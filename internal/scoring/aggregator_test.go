package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name    string
		details []models.ScoringDetail
		want    int
	}{
		{name: "empty", details: nil, want: 0},
		{name: "mixed signs", details: []models.ScoringDetail{{Label: "A", Value: 40}, {Label: "B", Value: -10}, {Label: "C", Value: 50}}, want: 80},
		{name: "clamped high", details: []models.ScoringDetail{{Label: "A", Value: 90}, {Label: "B", Value: 90}}, want: 100},
		{name: "clamped low", details: []models.ScoringDetail{{Label: "A", Value: -5}, {Label: "B", Value: -20}}, want: 0},
		{name: "exact max", details: []models.ScoringDetail{{Label: "A", Value: 100}}, want: 100},
		{name: "huge values", details: []models.ScoringDetail{{Label: "A", Value: math.MaxInt}, {Label: "B", Value: math.MaxInt}}, want: 100},
		{name: "huge negatives", details: []models.ScoringDetail{{Label: "A", Value: math.MinInt}, {Label: "B", Value: math.MinInt}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskScore(tt.details))
		})
	}
}

func TestRiskScore_ClampLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := rng.Intn(12)
		details := make([]models.ScoringDetail, n)
		sum := 0
		for j := range details {
			details[j] = models.ScoringDetail{Label: "f", Value: rng.Intn(101) - 40}
			sum += details[j].Value
		}

		want := sum
		if want < 0 {
			want = 0
		}
		if want > 100 {
			want = 100
		}

		got := RiskScore(details)
		require.GreaterOrEqual(t, got, 0)
		require.LessOrEqual(t, got, 100)
		require.Equal(t, want, got, "details=%v", details)
	}
}

func TestBehavioralScore(t *testing.T) {
	tests := []struct {
		name    string
		details []models.BehaviorDetail
		want    int
	}{
		{name: "empty", details: []models.BehaviorDetail{}, want: 0},
		{name: "nil", details: nil, want: 0},
		{name: "single", details: []models.BehaviorDetail{{Label: "x", Value: 42}}, want: 42},
		{name: "rounds half up", details: []models.BehaviorDetail{{Label: "x", Value: 2}, {Label: "y", Value: 3}}, want: 3},
		{name: "rounds down", details: []models.BehaviorDetail{{Label: "x", Value: 1}, {Label: "y", Value: 1}, {Label: "z", Value: 2}}, want: 1},
		{name: "negative mean clamps to zero", details: []models.BehaviorDetail{{Label: "x", Value: -10}, {Label: "y", Value: -4}}, want: 0},
		{name: "large mean clamps", details: []models.BehaviorDetail{{Label: "x", Value: 300}, {Label: "y", Value: 250}}, want: 100},
		{name: "huge values", details: []models.BehaviorDetail{{Label: "x", Value: math.MaxInt}, {Label: "y", Value: math.MaxInt}}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BehavioralScore(tt.details))
		})
	}
}

func TestMeanRounded(t *testing.T) {
	assert.Equal(t, 0, MeanRounded(10, 0))
	assert.Equal(t, 3, MeanRounded(5, 2))
	assert.Equal(t, -2, MeanRounded(-5, 2))
	assert.Equal(t, 33, MeanRounded(100, 3))
	assert.Equal(t, 67, MeanRounded(200, 3))
}

func TestOperationalScore(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0, OperationalScore(nil))

	history := []models.ScoreHistoryEntry{
		{Date: now.Add(-48 * time.Hour), Score: 40},
		{Date: now.Add(-24 * time.Hour), Score: 61},
		{Date: now, Score: 70},
	}
	assert.Equal(t, 57, OperationalScore(history))

	huge := []models.ScoreHistoryEntry{{Score: math.MaxInt}, {Score: math.MaxInt}}
	assert.Equal(t, math.MaxInt, OperationalScore(huge))
}

func TestRescore(t *testing.T) {
	c := &models.Client{
		ID:             "C1",
		RiskScore:      7, // stale, must be recomputed
		ScoringDetails: []models.ScoringDetail{{Label: "A", Value: 40}, {Label: "B", Value: -10}, {Label: "C", Value: 50}},
	}

	partial := Rescore(c)

	assert.Equal(t, 80, c.RiskScore)
	assert.Equal(t, models.RiskBandHigh, Classify(c.RiskScore))
	assert.Equal(t, 0, c.BehavioralScore)
	assert.Equal(t, models.CaseStatusDefault, c.Status)
	assert.NotNil(t, c.Comments)
	assert.NotNil(t, c.Alerts)

	require.Len(t, partial, 1)
	assert.ErrorIs(t, partial[0], apperr.ErrPartialData)
}

func TestHistoryOrdering(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	history := []models.ScoreHistoryEntry{
		{Date: base.AddDate(0, 0, 2), Score: 3},
		{Date: base, Score: 1},
		{Date: base.AddDate(0, 0, 1), Score: 2},
	}

	chrono := HistoryChronological(history)
	newest := HistoryNewestFirst(history)

	assert.Equal(t, []int{1, 2, 3}, scores(chrono))
	assert.Equal(t, []int{3, 2, 1}, scores(newest))
	assert.Equal(t, 3, history[0].Score, "input must not be reordered")
}

func scores(h []models.ScoreHistoryEntry) []int {
	out := make([]int, len(h))
	for i, e := range h {
		out[i] = e.Score
	}
	return out
}
