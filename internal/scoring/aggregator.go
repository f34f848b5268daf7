// Package scoring derives client scores from weighted evidence and maps
// scores to risk bands.
package scoring

import (
	"sort"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// MeanRounded returns round(sum/n) with ties going up, computed exactly.
// n <= 0 yields 0.
func MeanRounded(sum int64, n int) int {
	return meanRounded(decimal.NewFromInt(sum), n)
}

func meanRounded(sum decimal.Decimal, n int) int {
	if n <= 0 {
		return 0
	}
	mean := sum.Div(decimal.NewFromInt(int64(n)))
	return int(mean.Add(half).Floor().IntPart())
}

// sumOf adds values exactly; the total never wraps
func sumOf[T any](items []T, value func(T) int) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromInt(int64(value(it))))
	}
	return sum
}

// RiskScore is the clamped sum of the AML scoring factors
func (t Thresholds) RiskScore(details []models.ScoringDetail) int {
	sum := sumOf(details, func(d models.ScoringDetail) int { return d.Value })
	switch {
	case sum.LessThan(decimal.NewFromInt(int64(t.Min))):
		return t.Min
	case sum.GreaterThan(decimal.NewFromInt(int64(t.Max))):
		return t.Max
	}
	return int(sum.IntPart())
}

// BehavioralScore is the clamped, rounded mean of the behavioral factors
func (t Thresholds) BehavioralScore(details []models.BehaviorDetail) int {
	if len(details) == 0 {
		return 0
	}
	sum := sumOf(details, func(d models.BehaviorDetail) int { return d.Value })
	return t.Clamp(meanRounded(sum, len(details)))
}

// RiskScore uses DefaultThresholds
func RiskScore(details []models.ScoringDetail) int {
	return DefaultThresholds.RiskScore(details)
}

// BehavioralScore uses DefaultThresholds
func BehavioralScore(details []models.BehaviorDetail) int {
	return DefaultThresholds.BehavioralScore(details)
}

// OperationalScore is the rounded mean of the score history
func OperationalScore(history []models.ScoreHistoryEntry) int {
	sum := sumOf(history, func(h models.ScoreHistoryEntry) int { return h.Score })
	return meanRounded(sum, len(history))
}

// Rescore normalizes missing arrays to empty and recomputes the derived
// scores in place. The returned errors describe defaulted fields and are
// informational only.
func (t Thresholds) Rescore(c *models.Client) []error {
	if c == nil {
		return nil
	}
	var partial []error
	if c.ScoringDetails == nil {
		c.ScoringDetails = []models.ScoringDetail{}
		partial = append(partial, apperr.PartialData("scoringDetails"))
	}
	if c.BehavioralDetails == nil {
		c.BehavioralDetails = []models.BehaviorDetail{}
		partial = append(partial, apperr.PartialData("behavioralDetails"))
	}
	if c.ScoreHistory == nil {
		c.ScoreHistory = []models.ScoreHistoryEntry{}
	}
	if c.Alerts == nil {
		c.Alerts = []models.Alert{}
	}
	if c.Comments == nil {
		c.Comments = []models.Comment{}
	}
	if c.Status == "" {
		c.Status = models.CaseStatusDefault
	}

	c.RiskScore = t.RiskScore(c.ScoringDetails)
	c.BehavioralScore = t.BehavioralScore(c.BehavioralDetails)
	return partial
}

// Rescore uses DefaultThresholds
func Rescore(c *models.Client) []error {
	return DefaultThresholds.Rescore(c)
}

// HistoryChronological returns a copy of history sorted oldest first, for charting
func HistoryChronological(history []models.ScoreHistoryEntry) []models.ScoreHistoryEntry {
	out := append([]models.ScoreHistoryEntry(nil), history...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// HistoryNewestFirst returns a copy of history sorted newest first, for display
func HistoryNewestFirst(history []models.ScoreHistoryEntry) []models.ScoreHistoryEntry {
	out := append([]models.ScoreHistoryEntry(nil), history...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}
