package catalog

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxTitleLength   = 1024
	maxContentLength = 1048576
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Validate checks a document submitted through the API. The engine itself
// accepts anything; this guard only runs at the edge.
func Validate(doc *Document) error {
	errs := make(map[string]string)

	if doc.ID <= 0 {
		errs["id"] = "id must be a positive integer"
	}
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(doc.Content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d characters", maxContentLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
