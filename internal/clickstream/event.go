package clickstream

import (
	"sync"
	"time"
)

// Required column names, in canonical order.
const (
	ColUserID     = "user_id"
	ColSessionID  = "session_id"
	ColTimestamp  = "timestamp"
	ColPageType   = "page_type"
	ColProductID  = "product_id"
	ColCategory   = "category"
	ColAction     = "action"
	ColDeviceType = "device_type"
	ColPlatform   = "platform"
)

// RequiredColumns lists every field a clickstream table must carry.
var RequiredColumns = []string{
	ColUserID, ColSessionID, ColTimestamp, ColPageType, ColProductID,
	ColCategory, ColAction, ColDeviceType, ColPlatform,
}

// Event is one row of the clickstream log.
type Event struct {
	Row        int       `json:"row"` // 1-based data row in the source
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	PageType   string    `json:"page_type"`
	ProductID  string    `json:"product_id"`
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	DeviceType string    `json:"device_type"`
	Platform   string    `json:"platform"`
}

// Session is the ordered run of events sharing a session id. Events keep
// source row order; they are never re-sorted by timestamp.
type Session struct {
	ID     string
	UserID string
	Events []Event
}

// Table is a validated, immutable batch of events. Safe for concurrent readers.
type Table struct {
	Events []Event
	Source string
	Format string

	once     sync.Once
	sessions []Session
}

// NewTable wraps events that are already validated.
func NewTable(source, format string, events []Event) *Table {
	return &Table{Events: events, Source: source, Format: format}
}

// Len returns the event count.
func (t *Table) Len() int { return len(t.Events) }

// Sessions groups events by session id in first-seen order. The grouping is
// computed once and shared; callers must not modify the returned slices.
func (t *Table) Sessions() []Session {
	t.once.Do(func() {
		index := make(map[string]int)
		for _, ev := range t.Events {
			i, ok := index[ev.SessionID]
			if !ok {
				i = len(t.sessions)
				index[ev.SessionID] = i
				t.sessions = append(t.sessions, Session{ID: ev.SessionID, UserID: ev.UserID})
			}
			t.sessions[i].Events = append(t.sessions[i].Events, ev)
		}
	})
	return t.sessions
}

// Users returns distinct user ids in first-seen order.
func (t *Table) Users() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ev := range t.Events {
		if _, ok := seen[ev.UserID]; ok {
			continue
		}
		seen[ev.UserID] = struct{}{}
		out = append(out, ev.UserID)
	}
	return out
}
