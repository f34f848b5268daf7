package models

import (
	"time"
)

// CaseStatus represents the investigative disposition of a client.
// Values are the ones persisted by the record store.
type CaseStatus string

const (
	CaseStatusDefault         CaseStatus = "default"
	CaseStatusAbandon         CaseStatus = "Abandon"
	CaseStatusSuspicionReport CaseStatus = "Déclaration de soupçon"
	CaseStatusBlock           CaseStatus = "Blocage"
)

// Valid reports whether s is one of the known statuses
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusDefault, CaseStatusAbandon, CaseStatusSuspicionReport, CaseStatusBlock:
		return true
	}
	return false
}

// RiskBand represents the band a score falls into
type RiskBand string

const (
	RiskBandLow    RiskBand = "low"
	RiskBandMedium RiskBand = "medium"
	RiskBandHigh   RiskBand = "high"
)

// AlertStatus represents the status of a detection alert
type AlertStatus string

const (
	AlertStatusOpen   AlertStatus = "open"
	AlertStatusClosed AlertStatus = "closed"
)

// Role represents an application role carried in the analyst token
type Role string

const (
	RoleUser    Role = "user"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

// ScoringDetail is one weighted factor of the AML risk score.
// Negative values mitigate, positive values aggravate.
type ScoringDetail struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// BehaviorDetail is one factor of the behavioral score
type BehaviorDetail struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// BehaviorIndicators holds the display-only behavior counters
type BehaviorIndicators struct {
	RiskyGames      int `json:"riskyGames"`
	GameSpeed       int `json:"gameSpeed"`
	LastIPChange    int `json:"lastIPChange"`
	UnusualDevice   int `json:"unusualDevice"`
	ThirdPartyPayer int `json:"thirdPartyPayer"`
}

// IndicatorRow is a labelled indicator value
type IndicatorRow struct {
	Label string
	Value int
}

// Rows returns the indicators in their display order
func (b BehaviorIndicators) Rows() []IndicatorRow {
	return []IndicatorRow{
		{Label: "riskyGames", Value: b.RiskyGames},
		{Label: "gameSpeed", Value: b.GameSpeed},
		{Label: "lastIPChange", Value: b.LastIPChange},
		{Label: "unusualDevice", Value: b.UnusualDevice},
		{Label: "thirdPartyPayer", Value: b.ThirdPartyPayer},
	}
}

// ScoreHistoryEntry is one observation of the operational score
type ScoreHistoryEntry struct {
	Date  time.Time `json:"scoreDate"`
	Score int       `json:"score"`
}

// Alert is produced by the external detection process
type Alert struct {
	Date    time.Time   `json:"alertDate"`
	Message string      `json:"message"`
	Status  AlertStatus `json:"status"`
}

// UserRef identifies the analyst behind a comment or audit entry
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

// Display returns the best human label for the user
func (u UserRef) Display() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Comment is an immutable analyst annotation
type Comment struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"commentDate"`
	Author    UserRef   `json:"user"`
	Text      string    `json:"value"`
}

// AuditEntry is one event of the per-install audit trail
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// Client is the aggregate reviewed by analysts
type Client struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`

	Country       string `json:"country,omitempty"`
	Profession    string `json:"profession,omitempty"`
	FundsSource   string `json:"fundsSource,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	LastIP        string `json:"lastIP,omitempty"`
	KYCValidated  bool   `json:"kycValidated"`
	PEP           bool   `json:"pep"`

	// Derived, owned by the scoring aggregator
	RiskScore       int `json:"riskScore"`
	BehavioralScore int `json:"behavioralScore"`

	ScoringDetails     []ScoringDetail     `json:"scoringDetails"`
	BehavioralDetails  []BehaviorDetail    `json:"behavioralDetails"`
	ScoreHistory       []ScoreHistoryEntry `json:"scoreHistory"`
	BehaviorIndicators BehaviorIndicators  `json:"behaviorIndicators"`
	Alerts             []Alert             `json:"alerts"`
	Comments           []Comment           `json:"comments"`
	Status             CaseStatus          `json:"status"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns "first last"
func (c *Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// OpenAlerts counts alerts still open
func (c *Client) OpenAlerts() int {
	n := 0
	for _, a := range c.Alerts {
		if a.Status == AlertStatusOpen {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can mutate without aliasing store state
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	out := *c
	out.ScoringDetails = append([]ScoringDetail(nil), c.ScoringDetails...)
	out.BehavioralDetails = append([]BehaviorDetail(nil), c.BehavioralDetails...)
	out.ScoreHistory = append([]ScoreHistoryEntry(nil), c.ScoreHistory...)
	out.Alerts = append([]Alert(nil), c.Alerts...)
	out.Comments = append([]Comment(nil), c.Comments...)
	return &out
}
