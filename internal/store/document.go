package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/savegress/amldesk/pkg/models"
)

// SQL adapters keep the ingested record as a JSON document next to scalar
// columns for the fields that are searched or patched. The comments and
// status columns win over whatever the document carries.

type row struct {
	document []byte
	comments []byte
	status   string
	updated  time.Time
}

func encodeClient(c *models.Client) (doc, comments []byte, err error) {
	stripped := *c
	stripped.Comments = nil
	stripped.Status = ""
	doc, err = json.Marshal(&stripped)
	if err != nil {
		return nil, nil, fmt.Errorf("encode client %s: %w", c.ID, err)
	}
	comments, err = encodeComments(c.Comments)
	if err != nil {
		return nil, nil, err
	}
	return doc, comments, nil
}

func encodeComments(list []models.Comment) ([]byte, error) {
	if list == nil {
		list = []models.Comment{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode comments: %w", err)
	}
	return data, nil
}

func statusOrDefault(s models.CaseStatus) string {
	if s == "" {
		return string(models.CaseStatusDefault)
	}
	return string(s)
}

func (r row) decode() (*models.Client, error) {
	c := &models.Client{}
	if err := json.Unmarshal(r.document, c); err != nil {
		return nil, fmt.Errorf("decode client document: %w", err)
	}
	if len(r.comments) > 0 {
		if err := json.Unmarshal(r.comments, &c.Comments); err != nil {
			return nil, fmt.Errorf("decode comments of %s: %w", c.ID, err)
		}
	}
	c.Status = models.CaseStatus(r.status)
	c.UpdatedAt = r.updated.UTC()
	return c, nil
}
