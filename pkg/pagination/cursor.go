package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCursor marks a token that does not decode or no longer matches
// the dataset it was issued for.
var ErrInvalidCursor = errors.New("cursor: invalid for this dataset")

// Unit is what a cursor offset counts.
type Unit string

const (
	UnitUsers    Unit = "users"
	UnitSessions Unit = "sessions"
)

// Cursor is the opaque continuation token before encoding. Short field names
// keep the token small; it travels as URL-safe base64 of minified JSON.
//
// Fields:
//   - v:   cursor schema version
//   - did: dataset handle id
//   - u:   unit counted by off and ps
//   - off: offset from the first item
//   - ps:  page size
//   - n:   row count of the dataset when issued
//   - k:   cluster count the page was computed with
//   - sd:  clustering seed
//   - iat: issued-at, unix seconds
type Cursor struct {
	V    int    `json:"v"`
	Did  string `json:"did"`
	U    Unit   `json:"u"`
	Off  int    `json:"off"`
	Ps   int    `json:"ps"`
	Rows int    `json:"n"`
	K    int    `json:"k,omitempty"`
	Seed uint64 `json:"sd,omitempty"`
	Iat  int64  `json:"iat"`
}

// EncodeCursor validates c and encodes it without padding.
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Matches reports whether c was issued for the given dataset snapshot.
func (c *Cursor) Matches(datasetID string, rows int) bool {
	return c.Did == datasetID && c.Rows == rows
}

func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.Did) == "" {
		return errors.New("cursor: did (dataset id) required")
	}
	switch c.U {
	case UnitUsers, UnitSessions:
	default:
		return fmt.Errorf("cursor: invalid unit %q", c.U)
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	if c.Rows < 0 || c.K < 0 {
		return errors.New("cursor: n and k must be >= 0")
	}
	return nil
}

// NextOffset computes the offset after returning n items.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}

// Window clamps [off, off+ps) to total and reports the next offset, or -1
// when the window reaches the end.
func Window(off, ps, total int) (start, end, next int) {
	if off < 0 {
		off = 0
	}
	if off > total {
		off = total
	}
	end = off + ps
	if ps <= 0 || end > total {
		end = total
	}
	next = -1
	if end < total {
		next = NextOffset(off, end-off)
	}
	return off, end, next
}
