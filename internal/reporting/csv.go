package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/savegress/amldesk/pkg/models"
)

// CSVHeader is the client export header row
var CSVHeader = []string{"ID", "Prénom", "Nom", "Risk Score", "Behavioral Score", "Birth Date"}

// WriteCSV writes the client export with one row per client
func WriteCSV(w io.Writer, clients []*models.Client) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, c := range clients {
		if c == nil {
			continue
		}
		record := []string{
			c.ID,
			c.FirstName,
			c.LastName,
			strconv.Itoa(c.RiskScore),
			strconv.Itoa(c.BehavioralScore),
			c.BirthDate,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
