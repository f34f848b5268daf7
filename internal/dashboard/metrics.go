// Package dashboard folds the client population into headline counters,
// trends and top lists
package dashboard

import (
	"sort"

	"github.com/savegress/amldesk/internal/scoring"
	"github.com/savegress/amldesk/pkg/models"
)

// DefaultTopN is the length of the top lists
const DefaultTopN = 5

// Entry is one row of a top list
type Entry struct {
	ClientID string          `json:"clientId"`
	Name     string          `json:"name"`
	Score    int             `json:"score"`
	Band     models.RiskBand `json:"band"`
}

// Metrics is the population summary. Low+Medium+High == Total.
type Metrics struct {
	Total          int     `json:"total"`
	Low            int     `json:"low"`
	Medium         int     `json:"medium"`
	High           int     `json:"high"`
	AvgOperational int     `json:"avgOperational"`
	TopRisk        []Entry `json:"topRisk"`
	TopOperational []Entry `json:"topOperational"`
}

// Compute summarizes clients. Bands come from the AML risk score,
// the operational average from the behavioral score.
func Compute(clients []*models.Client, t scoring.Thresholds, topN int) Metrics {
	if topN <= 0 {
		topN = DefaultTopN
	}

	m := Metrics{TopRisk: []Entry{}, TopOperational: []Entry{}}
	var behavioralSum int64
	for _, c := range clients {
		if c == nil {
			continue
		}
		m.Total++
		switch t.Classify(c.RiskScore) {
		case models.RiskBandLow:
			m.Low++
		case models.RiskBandMedium:
			m.Medium++
		default:
			m.High++
		}
		behavioralSum += int64(c.BehavioralScore)
	}
	m.AvgOperational = scoring.MeanRounded(behavioralSum, m.Total)

	m.TopRisk = top(clients, topN, func(c *models.Client) int { return c.RiskScore }, t)
	m.TopOperational = top(clients, topN, func(c *models.Client) int { return c.BehavioralScore }, t)
	return m
}

// top returns the n highest scores, ties kept in input order
func top(clients []*models.Client, n int, score func(*models.Client) int, t scoring.Thresholds) []Entry {
	ranked := make([]*models.Client, 0, len(clients))
	for _, c := range clients {
		if c != nil {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]Entry, 0, len(ranked))
	for _, c := range ranked {
		s := score(c)
		out = append(out, Entry{ClientID: c.ID, Name: c.FullName(), Score: s, Band: t.Classify(s)})
	}
	return out
}

// Trend is the change of a counter since the previous snapshot
type Trend struct {
	Diff int `json:"diff"`
	Pct  int `json:"pct"`
}

// Delta returns the change from previous to current, or nil when previous
// is zero (no meaningful percentage).
func Delta(current, previous int) *Trend {
	if previous <= 0 {
		return nil
	}
	diff := current - previous
	return &Trend{Diff: diff, Pct: scoring.MeanRounded(int64(diff)*100, previous)}
}

// Trends holds the per-counter deltas; nil fields have no trend
type Trends struct {
	Total          *Trend `json:"total"`
	Low            *Trend `json:"low"`
	Medium         *Trend `json:"medium"`
	High           *Trend `json:"high"`
	AvgOperational *Trend `json:"avgOperational"`
}

// Compare returns the trends from previous to current. A nil previous
// yields no trends.
func Compare(current Metrics, previous *Metrics) Trends {
	if previous == nil {
		return Trends{}
	}
	return Trends{
		Total:          Delta(current.Total, previous.Total),
		Low:            Delta(current.Low, previous.Low),
		Medium:         Delta(current.Medium, previous.Medium),
		High:           Delta(current.High, previous.High),
		AvgOperational: Delta(current.AvgOperational, previous.AvgOperational),
	}
}
