package models

import "strconv"

// ClickEvent is one pointer event reported by the extension's content script.
type ClickEvent struct {
	TSUTC      int64    `json:"ts_utc"` // milliseconds since epoch
	X          int      `json:"x"`      // viewport coordinates
	Y          int      `json:"y"`
	ViewportW  int      `json:"viewport_w"`
	ViewportH  int      `json:"viewport_h"`
	InBody     bool     `json:"in_body"`               // target is a descendant of the visible document body
	TargetPath []string `json:"target_path,omitempty"` // element ids, outermost first
	URL        string   `json:"url,omitempty"`
}

type Batch struct {
	Events []ClickEvent `json:"events"`
}

// SessionState is the single persisted record. LastClickTime is nil when no
// click has been accepted in the current continuity window.
type SessionState struct {
	LastClickTime *int64 `json:"lastClickTime"` // milliseconds since epoch, nullable
	ClickCount    int    `json:"clickCount"`
	IsEnabled     bool   `json:"isEnabled"`
	SavedAt       int64  `json:"savedAt"`
}

// DisplayEvent is the transient on-screen notification.
type DisplayEvent struct {
	Message        string `json:"message"`
	SequenceNumber int    `json:"sequenceNumber"`
}

func (e DisplayEvent) Render() string {
	return "#" + strconv.Itoa(e.SequenceNumber) + ": " + e.Message
}

// Stats is the read-only view served to the control surface.
type Stats struct {
	ClickCount    int    `json:"clickCount"`
	LastClickTime *int64 `json:"lastClickTime"`
	IsEnabled     bool   `json:"isEnabled"`
	LastClickAgo  string `json:"lastClickAgo,omitempty"`
}
