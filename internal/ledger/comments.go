package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/savegress/amldesk/pkg/models"
)

// DefaultCommentPageSize is the read-time page size for comment lists
const DefaultCommentPageSize = 10

// CommentPolicy decides how a client's comment list grows
type CommentPolicy struct {
	// Retention caps the stored list; 0 keeps every comment.
	Retention int
}

// NewComment builds a comment stamped at now
func NewComment(author models.UserRef, text string, now time.Time) models.Comment {
	return models.Comment{
		ID:        uuid.NewString(),
		Timestamp: now,
		Author:    author,
		Text:      text,
	}
}

// Prepend returns a new list with c at the head. The input is not modified.
// With a retention cap the oldest comments fall off the tail.
func (p CommentPolicy) Prepend(list []models.Comment, c models.Comment) []models.Comment {
	if p.Retention <= 0 {
		out := make([]models.Comment, 0, len(list)+1)
		out = append(out, c)
		return append(out, list...)
	}

	d := NewDeque[models.Comment](p.Retention)
	keep := len(list)
	if keep > p.Retention-1 {
		keep = p.Retention - 1
	}
	for i := keep - 1; i >= 0; i-- {
		d.PushFront(list[i])
	}
	d.PushFront(c)
	return d.Items()
}

// PageComments returns one page of a newest-first list and the total count.
// page is 1-based; out-of-range pages are empty.
func PageComments(list []models.Comment, page, size int) ([]models.Comment, int) {
	if size <= 0 {
		size = DefaultCommentPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(list)
	if page-1 > total/size {
		return []models.Comment{}, total
	}
	start := (page - 1) * size
	if start >= total {
		return []models.Comment{}, total
	}
	end := total
	if size < total-start {
		end = start + size
	}
	return append([]models.Comment(nil), list[start:end]...), total
}
