// Package tracker implements the click-interval core: it classifies incoming
// click events, measures the interval since the last accepted click, keeps
// the session state reconciled with the persisted record across page
// navigations, and emits transient display events.
package tracker

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clickspan/agent/internal/models"
)

// IndicatorElementID marks the on-page indicator; clicks landing on it (or a
// descendant) must not re-trigger a measurement.
const IndicatorElementID = "clickspan-indicator"

const (
	// edgeMargin is the scrollbar-click exclusion zone along the right and
	// bottom viewport edges, in CSS pixels.
	edgeMargin = 20

	// continuitySaveWindow: a persisted record older than this is a stale
	// session, not a fast navigation.
	continuitySaveWindow = 5000 * time.Millisecond

	// continuityClickWindow: a last click older than this is never bridged
	// across a navigation, however fresh the save.
	continuityClickWindow = 300000 * time.Millisecond
)

// Store persists the single session-state record.
type Store interface {
	LoadState() (*models.SessionState, error)
	SaveState(models.SessionState) error
}

// Display receives transient display events.
type Display interface {
	Show(models.DisplayEvent)
	Clear()
}

// Options configures a Tracker. A nil Store means storage is unavailable and
// the tracker runs purely in-memory. Clock defaults to time.Now.
type Options struct {
	Store   Store
	Display Display
	Clock   func() time.Time
}

// Tracker is scoped to one agent process and guarded by a mutex; click events
// are applied strictly in arrival order.
type Tracker struct {
	store   Store
	display Display
	clock   func() time.Time

	mu            sync.Mutex
	lastClickTime *int64 // milliseconds since epoch, nil when absent
	clickCount    int
	isEnabled     bool
}

func New(opts Options) *Tracker {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if opts.Store == nil {
		log.Printf("Warning: no state store configured, running in-memory only")
	}
	return &Tracker{
		store:     opts.Store,
		display:   opts.Display,
		clock:     clock,
		isEnabled: true,
	}
}

// StartContext begins a new page context and returns its identifier.
// Reconciliation against the persisted record runs in the background: clicks
// arriving before it resolves are measured against in-memory defaults and
// their effect is overwritten wholesale once the persisted record is adopted.
func (t *Tracker) StartContext() string {
	contextID := uuid.New().String()
	if t.store != nil {
		go t.reconcile(contextID)
	}
	return contextID
}

func (t *Tracker) reconcile(contextID string) {
	state, err := t.store.LoadState()
	if err != nil {
		log.Printf("Warning: state load failed for context %s: %v", contextID, err)
		return
	}

	now := t.clock().UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	if state == nil {
		t.lastClickTime = nil
		t.clickCount = 0
		t.isEnabled = true
		return
	}

	// Count and enabled flag carry over verbatim; the last click time only
	// survives a fast navigation with a sane, non-stale click behind it.
	t.clickCount = state.ClickCount
	t.isEnabled = state.IsEnabled
	t.lastClickTime = nil
	if now-state.SavedAt < continuitySaveWindow.Milliseconds() && state.LastClickTime != nil {
		age := now - *state.LastClickTime
		if age > 0 && age < continuityClickWindow.Milliseconds() {
			adopted := *state.LastClickTime
			t.lastClickTime = &adopted
		}
	}
}

// HandleClick applies one click event and reports whether it was accepted.
// Rejected events produce no state change and no display.
func (t *Tracker) HandleClick(event models.ClickEvent) bool {
	if rejectEvent(event) {
		return false
	}

	t.mu.Lock()
	if !t.isEnabled {
		t.mu.Unlock()
		return false
	}

	now := event.TSUTC
	if now <= 0 {
		now = t.clock().UnixMilli()
	}

	t.clickCount++
	var shown models.DisplayEvent
	if t.lastClickTime != nil {
		interval := float64(now-*t.lastClickTime) / 1000.0
		shown = models.DisplayEvent{
			Message:        fmt.Sprintf("%.3fs", interval),
			SequenceNumber: t.clickCount,
		}
	} else {
		shown = models.DisplayEvent{
			Message:        "first click",
			SequenceNumber: t.clickCount,
		}
	}
	t.lastClickTime = &now
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	if t.display != nil {
		t.display.Show(shown)
	}
	t.persist(snapshot)
	return true
}

// rejectEvent applies the stateless filters: detached targets, the scrollbar
// margin along the right and bottom viewport edges, and the indicator itself.
func rejectEvent(event models.ClickEvent) bool {
	if !event.InBody {
		return true
	}
	if event.ViewportW > 0 && event.X >= event.ViewportW-edgeMargin {
		return true
	}
	if event.ViewportH > 0 && event.Y >= event.ViewportH-edgeMargin {
		return true
	}
	for _, id := range event.TargetPath {
		if id == IndicatorElementID {
			return true
		}
	}
	return false
}

// Reset clears the click count and the last click time, removes any active
// display, and persists the cleared state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.lastClickTime = nil
	t.clickCount = 0
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	if t.display != nil {
		t.display.Clear()
	}
	t.persist(snapshot)
}

// Enable turns click measurement on and persists.
func (t *Tracker) Enable() {
	t.setEnabled(true)
}

// Disable turns click measurement off, removes any active display, and
// persists.
func (t *Tracker) Disable() {
	t.setEnabled(false)
}

func (t *Tracker) setEnabled(enabled bool) {
	t.mu.Lock()
	t.isEnabled = enabled
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	if !enabled && t.display != nil {
		t.display.Clear()
	}
	t.persist(snapshot)
}

// Stats returns the current counters for the control surface.
func (t *Tracker) Stats() models.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := models.Stats{
		ClickCount: t.clickCount,
		IsEnabled:  t.isEnabled,
	}
	if t.lastClickTime != nil {
		last := *t.lastClickTime
		stats.LastClickTime = &last
	}
	return stats
}

// snapshotLocked builds the record to persist; the caller holds t.mu.
func (t *Tracker) snapshotLocked() models.SessionState {
	state := models.SessionState{
		ClickCount: t.clickCount,
		IsEnabled:  t.isEnabled,
		SavedAt:    t.clock().UnixMilli(),
	}
	if t.lastClickTime != nil {
		last := *t.lastClickTime
		state.LastClickTime = &last
	}
	return state
}

// persist writes the record in the background. Failures are logged and
// swallowed: the in-memory state stays authoritative, there are no retries.
func (t *Tracker) persist(state models.SessionState) {
	if t.store == nil {
		return
	}
	go func() {
		if err := t.store.SaveState(state); err != nil {
			log.Printf("Warning: state persist failed: %v", err)
		}
	}()
}
