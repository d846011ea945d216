package queries

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"pixelgrid/internal/pkg/errs"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	cursorVersion    = "o1"
)

var ErrInvalidCursor = errs.New("invalid cursor")

// Cursor is an opaque keyset position: the created_at and id of the last row returned.
type Cursor struct {
	After string `json:"after,omitempty"`
}

// EncodeAfterCursor uses microsecond precision to line up with PostgreSQL timestamps.
func EncodeAfterCursor(t time.Time, id uuid.UUID) string {
	raw := cursorVersion + ":" + strconv.FormatInt(t.UnixMicro(), 10) + "-" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeAfterCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		return time.Time{}, uuid.Nil, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, errs.Wrap(ErrInvalidCursor, err.Error())
	}
	payload, ok := strings.CutPrefix(string(decoded), cursorVersion+":")
	if !ok {
		return time.Time{}, uuid.Nil, errs.Wrap(ErrInvalidCursor, "unknown cursor version")
	}

	micros, rawID, ok := strings.Cut(payload, "-")
	if !ok {
		return time.Time{}, uuid.Nil, errs.Wrap(ErrInvalidCursor, "expected '<micros>-<uuid>'")
	}
	ts, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, errs.Wrap(ErrInvalidCursor, "timestamp")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return time.Time{}, uuid.Nil, errs.Wrap(ErrInvalidCursor, "id")
	}
	return time.UnixMicro(ts).UTC(), id, nil
}

func ValidateLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
