package captions

import (
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/boardcall/internal/callsdk"
	"github.com/vovakirdan/boardcall/internal/callsdk/callsdktest"
)

type fakeTimer struct {
	fire    func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := !f.stopped
	f.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) install(d *Dispatcher) {
	d.now = func() time.Time {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.now
	}
	d.afterFunc = func(delay time.Duration, f func()) stopper {
		c.mu.Lock()
		defer c.mu.Unlock()
		t := &fakeTimer{fire: f}
		c.timers = append(c.timers, t)
		c.delays = append(c.delays, delay)
		return t
	}
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

func newTestDispatcher() (*Dispatcher, *fakeClock) {
	d := New(0, nil)
	clock := &fakeClock{now: time.Unix(100, 0)}
	clock.install(d)
	return d, clock
}

func newAttachedDispatcher(t *testing.T) (*Dispatcher, *fakeClock) {
	t.Helper()
	d, clock := newTestDispatcher()
	if _, err := d.Attach(callsdktest.NewSession(callsdk.Member{ID: "me"})); err != nil {
		t.Fatalf("attach: %v", err)
	}
	return d, clock
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		ev          callsdk.TranscriptEvent
		wantOK      bool
		wantText    string
		wantSpeaker string
	}{
		{
			name:        "transcript and name",
			ev:          callsdk.TranscriptEvent{"transcript": "hello", "name": "Ada"},
			wantOK:      true,
			wantText:    "hello",
			wantSpeaker: "Ada",
		},
		{
			name:        "fallback keys",
			ev:          callsdk.TranscriptEvent{"content": "hi there", "participantName": "Bob"},
			wantOK:      true,
			wantText:    "hi there",
			wantSpeaker: "Bob",
		},
		{
			name:        "empty transcript falls through to text",
			ev:          callsdk.TranscriptEvent{"transcript": "", "text": "second", "speaker": "Cy"},
			wantOK:      true,
			wantText:    "second",
			wantSpeaker: "Cy",
		},
		{
			name:        "default speaker",
			ev:          callsdk.TranscriptEvent{"message": "anyone?"},
			wantOK:      true,
			wantText:    "anyone?",
			wantSpeaker: DefaultSpeaker,
		},
		{
			name:        "non-string values ignored",
			ev:          callsdk.TranscriptEvent{"transcript": 42, "text": "ok", "name": []string{"x"}},
			wantOK:      true,
			wantText:    "ok",
			wantSpeaker: DefaultSpeaker,
		},
		{
			name:   "no text",
			ev:     callsdk.TranscriptEvent{"name": "Ada"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Normalize(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if c.Text != tt.wantText || c.SpeakerName != tt.wantSpeaker {
				t.Fatalf("unexpected caption %+v", c)
			}
		})
	}
}

func TestCaptionExpiresAfterWindow(t *testing.T) {
	d, clock := newAttachedDispatcher(t)

	d.Handle(callsdk.TranscriptEvent{"transcript": "hello", "name": "Ada"})
	c, ok := d.Current()
	if !ok || c.Text != "hello" || c.SpeakerName != "Ada" {
		t.Fatalf("unexpected current caption %+v %v", c, ok)
	}
	if !c.ReceivedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("unexpected receive time %v", c.ReceivedAt)
	}
	if clock.delays[0] != DefaultWindow {
		t.Fatalf("expected %v window, got %v", DefaultWindow, clock.delays[0])
	}

	clock.timer(0).fire()
	if _, ok := d.Current(); ok {
		t.Fatal("caption should be cleared after expiry")
	}
}

func TestSupersededCaptionKeepsNewer(t *testing.T) {
	d, clock := newAttachedDispatcher(t)

	d.Handle(callsdk.TranscriptEvent{"transcript": "first"})
	d.Handle(callsdk.TranscriptEvent{"transcript": "second"})

	if !clock.timer(0).stopped {
		t.Fatal("earlier timer should be stopped")
	}

	// A late firing of the earlier timer must not clear the newer caption.
	clock.timer(0).fire()
	c, ok := d.Current()
	if !ok || c.Text != "second" {
		t.Fatalf("expected second caption to remain, got %+v %v", c, ok)
	}

	clock.timer(1).fire()
	if _, ok := d.Current(); ok {
		t.Fatal("second caption should expire")
	}
}

func TestIdenticalTextIsStillANewRecord(t *testing.T) {
	d, clock := newAttachedDispatcher(t)

	d.Handle(callsdk.TranscriptEvent{"transcript": "same", "name": "Ada"})
	d.Handle(callsdk.TranscriptEvent{"transcript": "same", "name": "Ada"})

	clock.timer(0).fire()
	if _, ok := d.Current(); !ok {
		t.Fatal("the earlier record's expiry must not clear an equal newer record")
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	d, clock := newAttachedDispatcher(t)

	d.Handle(callsdk.TranscriptEvent{"transcript": "kept"})
	d.Handle(callsdk.TranscriptEvent{"transcript": "", "name": "Ada"})

	c, ok := d.Current()
	if !ok || c.Text != "kept" {
		t.Fatalf("empty event should not replace caption, got %+v", c)
	}
	if len(clock.timers) != 1 {
		t.Fatalf("expected a single scheduled expiry, got %d", len(clock.timers))
	}
}

func TestVisibilityHidesWithoutDetaching(t *testing.T) {
	d, _ := newAttachedDispatcher(t)

	var last *Caption
	var calls int
	d.OnChange(func(c *Caption) {
		calls++
		last = c
	})

	d.Handle(callsdk.TranscriptEvent{"transcript": "visible"})
	if last == nil || last.Text != "visible" {
		t.Fatalf("expected published caption, got %+v", last)
	}

	d.SetVisible(false)
	if last != nil {
		t.Fatal("hiding captions should publish a cleared caption")
	}
	if _, ok := d.Current(); ok {
		t.Fatal("hidden caption must not be current")
	}

	d.Handle(callsdk.TranscriptEvent{"transcript": "while hidden"})
	if calls != 2 {
		t.Fatalf("hidden captions must not be published, got %d calls", calls)
	}

	d.SetVisible(true)
	if last == nil || last.Text != "while hidden" {
		t.Fatalf("showing captions should republish the current caption, got %+v", last)
	}
}

func TestAttachRequiresTranscriptCapability(t *testing.T) {
	d, clock := newTestDispatcher()

	session := callsdktest.NewSession(callsdk.Member{ID: "me"})
	attached, err := d.Attach(callsdktest.WithoutTranscripts(session))
	if err != nil || attached {
		t.Fatalf("expected no attach for plain session, got %v %v", attached, err)
	}

	attached, err = d.Attach(session)
	if err != nil || !attached {
		t.Fatalf("expected attach, got %v %v", attached, err)
	}
	if _, err := d.Attach(session); err != ErrAttached {
		t.Fatalf("expected ErrAttached, got %v", err)
	}

	session.EmitTranscript(callsdk.TranscriptEvent{"text": "from sdk", "name": "Ada"})
	if c, ok := d.Current(); !ok || c.Text != "from sdk" {
		t.Fatalf("expected caption from session, got %+v", c)
	}

	d.Detach()
	if session.ActiveSubscriptions() != 0 {
		t.Fatalf("expected subscription released, got %d", session.ActiveSubscriptions())
	}
	if !clock.timer(0).stopped {
		t.Fatal("detach must stop the pending expiry")
	}
	if _, ok := d.Current(); ok {
		t.Fatal("detach must clear the caption")
	}

	session.EmitTranscript(callsdk.TranscriptEvent{"text": "late"})
	if _, ok := d.Current(); ok {
		t.Fatal("events after detach must be ignored")
	}
}

func TestRealTimerExpiry(t *testing.T) {
	d := New(20*time.Millisecond, nil)
	if _, err := d.Attach(callsdktest.NewSession(callsdk.Member{ID: "me"})); err != nil {
		t.Fatalf("attach: %v", err)
	}
	d.Handle(callsdk.TranscriptEvent{"transcript": "short lived"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := d.Current(); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("caption did not expire")
}

// lingeringTranscripts keeps its handlers after they are released so a test
// can deliver an event that was already in flight at detach time.
type lingeringTranscripts struct {
	*callsdktest.Session
	handlers []func(callsdk.TranscriptEvent)
}

func (s *lingeringTranscripts) SubscribeTranscripts(handler func(callsdk.TranscriptEvent)) (callsdk.Subscription, error) {
	s.handlers = append(s.handlers, handler)
	return s.Session.SubscribeTranscripts(handler)
}

func TestDetachedDispatcherDropsLateEvents(t *testing.T) {
	d, clock := newTestDispatcher()

	first := &lingeringTranscripts{Session: callsdktest.NewSession(callsdk.Member{ID: "me"})}
	if _, err := d.Attach(first); err != nil {
		t.Fatalf("attach: %v", err)
	}
	d.Detach()

	var published int
	d.OnChange(func(*Caption) { published++ })

	d.Handle(callsdk.TranscriptEvent{"text": "late"})
	first.handlers[0](callsdk.TranscriptEvent{"text": "in flight"})
	if c, ok := d.Current(); ok {
		t.Fatalf("detached dispatcher must not show %+v", c)
	}
	if len(clock.timers) != 0 || published != 0 {
		t.Fatalf("detached dispatcher must not schedule or publish, got %d timers %d publishes", len(clock.timers), published)
	}

	second := callsdktest.NewSession(callsdk.Member{ID: "me2"})
	if _, err := d.Attach(second); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	first.handlers[0](callsdk.TranscriptEvent{"text": "previous session"})
	if _, ok := d.Current(); ok {
		t.Fatal("handler of the previous session must not reach the next one")
	}

	second.EmitTranscript(callsdk.TranscriptEvent{"text": "current"})
	if c, ok := d.Current(); !ok || c.Text != "current" {
		t.Fatalf("expected caption from current session, got %+v %v", c, ok)
	}
}

func TestExpiryAfterDetachIsNoop(t *testing.T) {
	d, clock := newAttachedDispatcher(t)
	d.Handle(callsdk.TranscriptEvent{"transcript": "hello"})
	d.Detach()

	var published int
	d.OnChange(func(*Caption) { published++ })
	clock.timer(0).fire()
	if published != 0 {
		t.Fatalf("expiry after detach must not publish, got %d", published)
	}
}
