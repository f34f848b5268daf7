// Package reporting assembles the per-client compliance report and the
// client list export
package reporting

import (
	"fmt"
	"strconv"
	"time"

	"github.com/savegress/amldesk/pkg/models"
)

// Placeholder fills empty cells and empty tables
const Placeholder = "—"

// StatusPending is shown when no disposition was recorded
const StatusPending = "En cours d'analyse"

// Date layouts used in reports
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	DateTimeLayout = "2006-01-02 15:04"
)

// Field is a labelled value line
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Table is a headed grid; every row has len(Head) cells
type Table struct {
	Head []string   `json:"head"`
	Rows [][]string `json:"rows"`
}

// Section is one numbered part of a report
type Section struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields,omitempty"`
	Table  *Table  `json:"table,omitempty"`
}

// Document is a rendered-agnostic client report
type Document struct {
	ClientID    string    `json:"clientId"`
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generatedAt"`
	Sections    []Section `json:"sections"`
}

// Assemble builds the six-section report for client. comments are the
// analyst comments to show (newest first), status the disposition to
// print and audit the trail entries. Missing data renders placeholders.
func Assemble(client *models.Client, comments []models.Comment, status models.CaseStatus, audit []models.AuditEntry, now time.Time) *Document {
	if client == nil {
		client = &models.Client{}
	}

	doc := &Document{
		ClientID:    client.ID,
		Title:       fmt.Sprintf("Fiche Client %s", client.ID),
		GeneratedAt: now,
	}

	doc.Sections = append(doc.Sections,
		Section{
			Number: 1,
			Title:  "Identité & statut",
			Fields: []Field{
				{Label: "Nom", Value: orPlaceholder(client.FullName())},
				{Label: "Naissance", Value: orPlaceholder(client.BirthDate)},
				{Label: "Statut", Value: statusLabel(status)},
			},
		},
		Section{
			Number: 2,
			Title:  "Scoring AML",
			Table:  scoringTable(client.ScoringDetails),
		},
		Section{
			Number: 3,
			Title:  "Comportement Opérationnel",
			Table:  behaviorTable(client.BehaviorIndicators, client.BehavioralDetails),
		},
		Section{
			Number: 4,
			Title:  "Alertes",
			Table:  alertTable(client.Alerts),
		},
		Section{
			Number: 5,
			Title:  "Commentaires Analystes (derniers)",
			Table:  commentTable(comments),
		},
		Section{
			Number: 6,
			Title:  "Audit Trail",
			Table:  auditTable(audit),
		},
	)
	return doc
}

func statusLabel(s models.CaseStatus) string {
	if s == "" || s == models.CaseStatusDefault {
		return StatusPending
	}
	return string(s)
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func newTable(head ...string) *Table {
	return &Table{Head: head, Rows: [][]string{}}
}

// seal adds the placeholder row to an empty table
func (t *Table) seal() *Table {
	if len(t.Rows) == 0 {
		row := make([]string, len(t.Head))
		for i := range row {
			row[i] = Placeholder
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t *Table) add(cells ...string) {
	for i, c := range cells {
		cells[i] = orPlaceholder(c)
	}
	t.Rows = append(t.Rows, cells)
}

func scoringTable(details []models.ScoringDetail) *Table {
	t := newTable("Critère", "Valeur")
	for _, d := range details {
		t.add(d.Label, strconv.Itoa(d.Value))
	}
	return t.seal()
}

// behaviorTable lists the indicators first, then the behavioral factors
func behaviorTable(ind models.BehaviorIndicators, details []models.BehaviorDetail) *Table {
	t := newTable("Indicateur", "Valeur")
	for _, row := range ind.Rows() {
		t.add(row.Label, strconv.Itoa(row.Value))
	}
	for _, d := range details {
		t.add(d.Label, strconv.Itoa(d.Value))
	}
	return t.seal()
}

func alertTable(alerts []models.Alert) *Table {
	t := newTable("Date", "Message", "Statut")
	for _, a := range alerts {
		t.add(formatTime(a.Date, DateLayout), a.Message, string(a.Status))
	}
	return t.seal()
}

func commentTable(comments []models.Comment) *Table {
	t := newTable("Date", "Utilisateur", "Commentaire")
	for _, c := range comments {
		t.add(formatTime(c.Timestamp, DateTimeLayout), c.Author.Display(), c.Text)
	}
	return t.seal()
}

func auditTable(entries []models.AuditEntry) *Table {
	t := newTable("Date", "Heure", "User", "Action", "Détails")
	for _, e := range entries {
		t.add(formatTime(e.Timestamp, DateLayout), formatTime(e.Timestamp, TimeLayout), e.User, e.Action, e.Details)
	}
	return t.seal()
}

func formatTime(ts time.Time, layout string) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(layout)
}
