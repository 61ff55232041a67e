package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"

	"github.com/echovault/echovault/internal/model"
)

// UserID must be lowercase letters, digits, underscore, hyphen, 1-64 chars
var userIDRx = regexp.MustCompile(`^[a-z0-9_\-]{1,64}$`)

const (
	MaxEntryRunes    = 20000
	MaxTitleRunes    = 120
	MaxQuestionRunes = 2000
	MaxListLimit     = 500
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}

func UserID(v string) error {
	if v == "" {
		return invalid("userId is required")
	}
	if !userIDRx.MatchString(v) {
		return invalid("userId must match %s", userIDRx.String())
	}
	return nil
}

// EntryID accepts the UUIDs the stores assign.
func EntryID(v string) error {
	if !strfmt.IsUUID(v) {
		return invalid("entryId must be a UUID")
	}
	return nil
}

// PendingID accepts the UUIDs the pipeline assigns to suspended submissions.
func PendingID(v string) error {
	if !strfmt.IsUUID(v) {
		return invalid("pendingId must be a UUID")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

func MaxRunes(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return invalid("%s exceeds %d characters", field, limit)
	}
	return nil
}

// -------- Request specific helpers ----------

// Submission validates raw entry input before it reaches the pipeline.
func Submission(text, replyContext, category string) error {
	if err := NonEmpty("text", text); err != nil {
		return err
	}
	if err := MaxRunes("text", text+replyContext, MaxEntryRunes); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "", model.CategoryPersonal, model.CategoryWork:
		return nil
	default:
		return invalid("category must be %q or %q", model.CategoryPersonal, model.CategoryWork)
	}
}

// EntryEdit validates a user edit. At least one field must be present.
func EntryEdit(title, category *string) error {
	if title == nil && category == nil {
		return invalid("nothing to update")
	}
	if title != nil {
		if err := MaxRunes("title", *title, MaxTitleRunes); err != nil {
			return err
		}
	}
	if category != nil {
		c := strings.ToLower(strings.TrimSpace(*category))
		if c != model.CategoryPersonal && c != model.CategoryWork {
			return invalid("category must be %q or %q", model.CategoryPersonal, model.CategoryWork)
		}
	}
	return nil
}

func Question(q string) error {
	if err := NonEmpty("question", q); err != nil {
		return err
	}
	return MaxRunes("question", q, MaxQuestionRunes)
}

// ListQuery parses the limit/before/after query parameters.
func ListQuery(userID, limit, before, after string) (model.ListEntriesRequest, error) {
	req := model.ListEntriesRequest{UserID: userID}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > MaxListLimit {
			return req, invalid("limit must be between 1 and %d", MaxListLimit)
		}
		req.Limit = n
	}
	var err error
	if req.Before, err = parseTime("before", before); err != nil {
		return req, err
	}
	if req.After, err = parseTime("after", after); err != nil {
		return req, err
	}
	if req.Before != nil && req.After != nil && !req.After.Before(*req.Before) {
		return req, invalid("after must be earlier than before")
	}
	return req, nil
}

func parseTime(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	dt, err := strfmt.ParseDateTime(v)
	if err != nil {
		return nil, invalid("%s must be an RFC 3339 timestamp", field)
	}
	t := time.Time(dt).UTC()
	return &t, nil
}
