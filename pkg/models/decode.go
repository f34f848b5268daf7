package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record store documents are edited by hand in the admin UI, so numeric
// fields may arrive as strings, floats, null or garbage. Anything that is
// not a number decodes to 0.

func lenientInt(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	d = d.Round(0)
	switch {
	case d.GreaterThan(maxInt):
		return math.MaxInt
	case d.LessThan(minInt):
		return math.MinInt
	}
	return int(d.IntPart())
}

var (
	maxInt = decimal.NewFromInt(math.MaxInt)
	minInt = decimal.NewFromInt(math.MinInt)
)

// lenientTime accepts RFC 3339 timestamps and plain dates
func lenientTime(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d *ScoringDetail) UnmarshalJSON(data []byte) error {
	var aux struct {
		Label string          `json:"label"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Label = aux.Label
	d.Value = lenientInt(aux.Value)
	return nil
}

func (d *BehaviorDetail) UnmarshalJSON(data []byte) error {
	var aux struct {
		Label string          `json:"label"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Label = aux.Label
	d.Value = lenientInt(aux.Value)
	return nil
}

func (e *ScoreHistoryEntry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date  json.RawMessage `json:"scoreDate"`
		Score json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Date = lenientTime(aux.Date)
	e.Score = lenientInt(aux.Score)
	return nil
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date    json.RawMessage `json:"alertDate"`
		Message string          `json:"message"`
		Status  AlertStatus     `json:"status"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Date = lenientTime(aux.Date)
	a.Message = aux.Message
	a.Status = aux.Status
	return nil
}

func (b *BehaviorIndicators) UnmarshalJSON(data []byte) error {
	var aux map[string]json.RawMessage
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.RiskyGames = lenientInt(aux["riskyGames"])
	b.GameSpeed = lenientInt(aux["gameSpeed"])
	b.LastIPChange = lenientInt(aux["lastIPChange"])
	b.UnusualDevice = lenientInt(aux["unusualDevice"])
	b.ThirdPartyPayer = lenientInt(aux["thirdPartyPayer"])
	return nil
}
