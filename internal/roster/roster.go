// Package roster keeps the participant list of one joined call consistent
// with the SDK's membership and media notifications.
package roster

import (
	"errors"
	"sync"

	"github.com/vovakirdan/boardcall/internal/callsdk"
)

var (
	// ErrAttached is returned when Attach is called on a tracker that already holds subscriptions.
	ErrAttached = errors.New("roster already attached")
	// ErrNoLocalParticipant is returned when neither the session nor the caller names the local participant.
	ErrNoLocalParticipant = errors.New("roster: local participant has no id")
)

// Participant is one roster entry.
type Participant struct {
	ID           string
	DisplayName  string
	IsLocal      bool
	AudioEnabled bool
	VideoEnabled bool
}

// Tracker maps participant id to Participant and republishes an ordered view on change.
// The local participant is listed first, remote participants in receipt order.
type Tracker struct {
	mu       sync.Mutex
	localID  string
	byID     map[string]*Participant
	order    []string
	subs     []callsdk.Subscription
	attached bool
	// gen identifies the current attachment; handlers bound to an older one are ignored.
	gen uint64

	listenersMu sync.Mutex
	listeners   map[int]func([]Participant)
	nextID      int
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		byID:      make(map[string]*Participant),
		listeners: make(map[int]func([]Participant)),
	}
}

// Attach seeds the roster from session and subscribes to its membership and media notifications.
// It must be paired with exactly one Detach.
func (t *Tracker) Attach(session callsdk.Session) error {
	return t.AttachAs(session, "")
}

// AttachAs is Attach with localID standing in for the local participant id
// when the session reports none.
func (t *Tracker) AttachAs(session callsdk.Session, localID string) error {
	self := session.Self()
	if self.ID == "" {
		self.ID = localID
	}
	if self.ID == "" {
		return ErrNoLocalParticipant
	}

	t.mu.Lock()
	if t.attached {
		t.mu.Unlock()
		return ErrAttached
	}
	t.attached = true
	t.gen++
	gen := t.gen

	t.localID = self.ID
	t.insertLocked(self, true)
	for _, m := range session.Members() {
		t.insertLocked(m, false)
	}
	t.mu.Unlock()

	kinds := []callsdk.NotificationKind{
		callsdk.NotificationParticipantJoined,
		callsdk.NotificationParticipantLeft,
		callsdk.NotificationMediaChanged,
	}
	subs := make([]callsdk.Subscription, 0, len(kinds))
	for _, kind := range kinds {
		sub, err := session.Subscribe(kind, func(n callsdk.Notification) { t.apply(gen, n) })
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			t.Reset()
			return err
		}
		subs = append(subs, sub)
	}

	t.mu.Lock()
	if !t.attached || gen != t.gen {
		t.mu.Unlock()
		for _, s := range subs {
			s.Unsubscribe()
		}
		return nil
	}
	t.subs = subs
	t.mu.Unlock()

	t.publish()
	return nil
}

// Detach releases the subscriptions taken by Attach and discards the roster.
// Calling it on a detached tracker is a no-op.
func (t *Tracker) Detach() {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	t.Reset()
}

// Reset discards every participant without touching subscriptions.
func (t *Tracker) Reset() {
	t.mu.Lock()
	changed := len(t.order) > 0
	t.localID = ""
	t.byID = make(map[string]*Participant)
	t.order = nil
	t.attached = false
	t.mu.Unlock()

	if changed {
		t.publish()
	}
}

// Apply folds one notification into the current attachment.
// Duplicate joins, leaves for unknown ids and media updates for unknown ids are ignored,
// as is everything while detached.
func (t *Tracker) Apply(n callsdk.Notification) {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	t.apply(gen, n)
}

func (t *Tracker) apply(gen uint64, n callsdk.Notification) {
	t.mu.Lock()
	if !t.attached || gen != t.gen {
		t.mu.Unlock()
		return
	}
	var changed bool
	switch n.Kind {
	case callsdk.NotificationParticipantJoined:
		changed = t.insertLocked(n.Member, false)
	case callsdk.NotificationParticipantLeft:
		changed = t.removeLocked(n.Member.ID)
	case callsdk.NotificationMediaChanged:
		changed = t.updateMediaLocked(n.Member)
	}
	t.mu.Unlock()

	if changed {
		t.publish()
	}
}

// Participants returns the ordered roster. The slice is a fresh copy.
func (t *Tracker) Participants() []Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Len returns the number of participants, local included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Local returns the local participant, if joined.
func (t *Tracker) Local() (Participant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[t.localID]
	if !ok || t.localID == "" {
		return Participant{}, false
	}
	return *p, true
}

// OnChange registers fn to receive the ordered roster after every change.
// The returned function unregisters it.
func (t *Tracker) OnChange(fn func([]Participant)) func() {
	t.listenersMu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			delete(t.listeners, id)
			t.listenersMu.Unlock()
		})
	}
}

func (t *Tracker) publish() {
	view := t.Participants()

	t.listenersMu.Lock()
	fns := make([]func([]Participant), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.listenersMu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (t *Tracker) insertLocked(m callsdk.Member, local bool) bool {
	if m.ID == "" {
		return false
	}
	if _, exists := t.byID[m.ID]; exists {
		return false
	}
	t.byID[m.ID] = &Participant{
		ID:           m.ID,
		DisplayName:  m.Name,
		IsLocal:      local,
		AudioEnabled: m.AudioEnabled,
		VideoEnabled: m.VideoEnabled,
	}
	t.order = append(t.order, m.ID)
	return true
}

func (t *Tracker) removeLocked(id string) bool {
	if _, exists := t.byID[id]; !exists || id == t.localID {
		return false
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *Tracker) updateMediaLocked(m callsdk.Member) bool {
	p, exists := t.byID[m.ID]
	if !exists {
		return false
	}
	if p.AudioEnabled == m.AudioEnabled && p.VideoEnabled == m.VideoEnabled {
		return false
	}
	p.AudioEnabled = m.AudioEnabled
	p.VideoEnabled = m.VideoEnabled
	return true
}

func (t *Tracker) snapshotLocked() []Participant {
	out := make([]Participant, 0, len(t.order))
	if local, ok := t.byID[t.localID]; ok {
		out = append(out, *local)
	}
	for _, id := range t.order {
		if id == t.localID {
			continue
		}
		out = append(out, *t.byID[id])
	}
	return out
}
