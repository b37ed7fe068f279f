// Package captions turns raw transcript events into a single current caption
// that expires after a quiet window.
package captions

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/callsdk"
)

const (
	// DefaultWindow is how long a caption stays current without a newer one.
	DefaultWindow = 6 * time.Second
	// DefaultSpeaker names a caption whose event carries no speaker.
	DefaultSpeaker = "Speaker"
)

// ErrAttached is returned when Attach is called twice without Detach.
var ErrAttached = errors.New("captions already attached")

var (
	textKeys    = []string{"transcript", "text", "message", "content"}
	speakerKeys = []string{"name", "participantName", "speaker"}
)

// Caption is one displayed transcript line.
type Caption struct {
	SpeakerName string
	Text        string
	ReceivedAt  time.Time
}

// Normalize extracts a caption from ev. It reports false when no non-empty text is present.
func Normalize(ev callsdk.TranscriptEvent) (Caption, bool) {
	text := firstString(ev, textKeys)
	if text == "" {
		return Caption{}, false
	}
	speaker := firstString(ev, speakerKeys)
	if speaker == "" {
		speaker = DefaultSpeaker
	}
	return Caption{SpeakerName: speaker, Text: text}, true
}

func firstString(ev callsdk.TranscriptEvent, keys []string) string {
	for _, k := range keys {
		if s, ok := ev[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

type stopper interface {
	Stop() bool
}

// Dispatcher holds the current caption. Each accepted event replaces the
// current caption and schedules its expiry; an expiry clears the caption only
// if it is still the record that scheduled it.
type Dispatcher struct {
	logger *zerolog.Logger
	window time.Duration

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	current *Caption
	timer   stopper
	visible bool
	sub     callsdk.Subscription
	// attached is set from Attach until Detach; gen tells one attachment's handlers from the next.
	attached bool
	gen      uint64

	listenersMu sync.Mutex
	listeners   map[int]func(*Caption)
	nextID      int
}

// New creates a visible dispatcher. A non-positive window falls back to DefaultWindow.
func New(window time.Duration, logger *zerolog.Logger) *Dispatcher {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		logger:  logger,
		window:  window,
		now:     time.Now,
		visible: true,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		listeners: make(map[int]func(*Caption)),
	}
}

// Attach subscribes to session transcripts. It reports false without error
// when the session has no transcript capability.
func (d *Dispatcher) Attach(session callsdk.Session) (bool, error) {
	source, ok := session.(callsdk.TranscriptSource)
	if !ok {
		d.logger.Debug().Msg("session has no transcript capability")
		return false, nil
	}

	d.mu.Lock()
	if d.attached {
		d.mu.Unlock()
		return false, ErrAttached
	}
	d.attached = true
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	sub, err := source.SubscribeTranscripts(func(ev callsdk.TranscriptEvent) { d.handle(gen, ev) })
	if err != nil {
		d.mu.Lock()
		if d.gen == gen {
			d.attached = false
		}
		d.mu.Unlock()
		return false, err
	}

	d.mu.Lock()
	if d.gen != gen || !d.attached {
		d.mu.Unlock()
		sub.Unsubscribe()
		return false, nil
	}
	d.sub = sub
	d.mu.Unlock()
	return true, nil
}

// Detach releases the transcript subscription, stops the pending expiry and clears the caption.
func (d *Dispatcher) Detach() {
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.attached = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	had := d.current != nil
	d.current = nil
	d.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if had {
		d.publish(nil)
	}
}

// Handle folds one transcript event into the current attachment.
// Events arriving while detached are dropped.
func (d *Dispatcher) Handle(ev callsdk.TranscriptEvent) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()
	d.handle(gen, ev)
}

func (d *Dispatcher) handle(gen uint64, ev callsdk.TranscriptEvent) {
	c, ok := Normalize(ev)
	if !ok {
		return
	}
	c.ReceivedAt = d.now()
	rec := &c

	d.mu.Lock()
	if !d.attached || gen != d.gen {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.current = rec
	d.timer = d.afterFunc(d.window, func() { d.expire(rec) })
	visible := d.visible
	d.mu.Unlock()

	if visible {
		d.publish(rec)
	}
}

func (d *Dispatcher) expire(rec *Caption) {
	d.mu.Lock()
	if !d.attached || d.current != rec {
		d.mu.Unlock()
		return
	}
	d.current = nil
	d.timer = nil
	visible := d.visible
	d.mu.Unlock()

	if visible {
		d.publish(nil)
	}
}

// Current returns the caption to display, if any. Hidden captions are not returned.
func (d *Dispatcher) Current() (Caption, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil || !d.visible {
		return Caption{}, false
	}
	return *d.current, true
}

// SetVisible toggles caption display without touching the subscription.
func (d *Dispatcher) SetVisible(visible bool) {
	d.mu.Lock()
	if d.visible == visible {
		d.mu.Unlock()
		return
	}
	d.visible = visible
	cur := d.current
	d.mu.Unlock()

	if !visible {
		cur = nil
	}
	d.publish(cur)
}

// Visible reports whether captions are shown.
func (d *Dispatcher) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// OnChange registers fn to receive the displayed caption, nil when cleared.
func (d *Dispatcher) OnChange(fn func(*Caption)) func() {
	d.listenersMu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.listenersMu.Lock()
			delete(d.listeners, id)
			d.listenersMu.Unlock()
		})
	}
}

func (d *Dispatcher) publish(c *Caption) {
	var view *Caption
	if c != nil {
		cp := *c
		view = &cp
	}

	d.listenersMu.Lock()
	fns := make([]func(*Caption), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.listenersMu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}
