// Package callsdktest provides an in-memory call SDK for tests.
package callsdktest

import (
	"context"
	"errors"
	"sync"

	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/callsdk"
)

// ErrRejected is a convenient failure for scripted operations.
var ErrRejected = errors.New("rejected by fake sdk")

// Client is a scripted callsdk.Client. Every Init returns a new Session
// built by NewSession (or a default one) unless InitErr is set.
type Client struct {
	mu sync.Mutex

	InitErr    error
	NewSession func() *Session
	// Gate, if set, blocks Init until it is closed or ctx is done.
	Gate chan struct{}
	// NoTranscripts hides the transcript capability of returned sessions.
	NoTranscripts bool

	inits    []callengine.Credential
	defaults []callsdk.MediaDefaults
	sessions []*Session
}

// Init records the credential and returns a fresh Session.
func (c *Client) Init(ctx context.Context, cred callengine.Credential, defaults callsdk.MediaDefaults) (callsdk.Session, error) {
	c.mu.Lock()
	gate := c.Gate
	c.inits = append(c.inits, cred)
	c.defaults = append(c.defaults, defaults)
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InitErr != nil {
		return nil, c.InitErr
	}
	var s *Session
	if c.NewSession != nil {
		s = c.NewSession()
	} else {
		s = NewSession(callsdk.Member{ID: cred.ParticipantID, Name: "self"})
	}
	c.sessions = append(c.sessions, s)
	if c.NoTranscripts {
		return WithoutTranscripts(s), nil
	}
	return s, nil
}

// Inits returns the credentials passed to Init so far.
func (c *Client) Inits() []callengine.Credential {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]callengine.Credential(nil), c.inits...)
}

// Defaults returns the media defaults passed to Init so far.
func (c *Client) Defaults() []callsdk.MediaDefaults {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]callsdk.MediaDefaults(nil), c.defaults...)
}

// Sessions returns every session handed out.
func (c *Client) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Session(nil), c.sessions...)
}

// Session is a scripted callsdk.Session.
type Session struct {
	mu sync.Mutex

	self    callsdk.Member
	members []callsdk.Member

	JoinErr  error
	LeaveErr error
	AudioErr error
	VideoErr error
	// MediaGate, if set, blocks media calls until closed.
	MediaGate chan struct{}
	// LeaveBlock makes Leave wait for ctx to expire.
	LeaveBlock bool

	handlers    map[callsdk.NotificationKind]map[int]func(callsdk.Notification)
	transcripts map[int]func(callsdk.TranscriptEvent)
	nextID      int

	joins  int
	leaves int
	media  []string
}

// NewSession creates a session whose local participant is self and whose
// pre-existing remote participants are members.
func NewSession(self callsdk.Member, members ...callsdk.Member) *Session {
	return &Session{
		self:        self,
		members:     members,
		handlers:    make(map[callsdk.NotificationKind]map[int]func(callsdk.Notification)),
		transcripts: make(map[int]func(callsdk.TranscriptEvent)),
	}
}

func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins++
	return s.JoinErr
}

func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	s.leaves++
	block, err := s.LeaveBlock, s.LeaveErr
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *Session) Self() callsdk.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *Session) Members() []callsdk.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]callsdk.Member(nil), s.members...)
}

func (s *Session) EnableAudio(ctx context.Context) error  { return s.setMedia(ctx, "audio", true) }
func (s *Session) DisableAudio(ctx context.Context) error { return s.setMedia(ctx, "audio", false) }
func (s *Session) EnableVideo(ctx context.Context) error  { return s.setMedia(ctx, "video", true) }
func (s *Session) DisableVideo(ctx context.Context) error { return s.setMedia(ctx, "video", false) }

func (s *Session) setMedia(ctx context.Context, kind string, on bool) error {
	s.mu.Lock()
	gate := s.MediaGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	op := "disable_" + kind
	if on {
		op = "enable_" + kind
	}
	s.media = append(s.media, op)

	var err error
	if kind == "audio" {
		err = s.AudioErr
	} else {
		err = s.VideoErr
	}
	if err != nil {
		return err
	}
	if kind == "audio" {
		s.self.AudioEnabled = on
	} else {
		s.self.VideoEnabled = on
	}
	return nil
}

// Subscribe registers handler for kind.
func (s *Session) Subscribe(kind callsdk.NotificationKind, handler func(callsdk.Notification)) (callsdk.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.handlers[kind] == nil {
		s.handlers[kind] = make(map[int]func(callsdk.Notification))
	}
	s.handlers[kind][id] = handler
	return s.release(func() { delete(s.handlers[kind], id) }), nil
}

// SubscribeTranscripts registers a transcript handler.
func (s *Session) SubscribeTranscripts(handler func(callsdk.TranscriptEvent)) (callsdk.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.transcripts[id] = handler
	return s.release(func() { delete(s.transcripts, id) }), nil
}

func (s *Session) release(fn func()) callsdk.Subscription {
	var once sync.Once
	return callsdk.SubscriptionFunc(func() {
		once.Do(func() {
			s.mu.Lock()
			fn()
			s.mu.Unlock()
		})
	})
}

// Emit delivers n to every handler subscribed to its kind.
func (s *Session) Emit(n callsdk.Notification) {
	s.mu.Lock()
	fns := make([]func(callsdk.Notification), 0, len(s.handlers[n.Kind]))
	for _, fn := range s.handlers[n.Kind] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}

// EmitTranscript delivers ev to every transcript handler.
func (s *Session) EmitTranscript(ev callsdk.TranscriptEvent) {
	s.mu.Lock()
	fns := make([]func(callsdk.TranscriptEvent), 0, len(s.transcripts))
	for _, fn := range s.transcripts {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ActiveSubscriptions counts handlers not yet released.
func (s *Session) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.transcripts)
	for _, hs := range s.handlers {
		n += len(hs)
	}
	return n
}

// Joins returns the number of Join calls.
func (s *Session) Joins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joins
}

// Leaves returns the number of Leave calls.
func (s *Session) Leaves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaves
}

// MediaCalls lists media operations in call order, e.g. "enable_audio".
func (s *Session) MediaCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.media...)
}

// PlainSession wraps a Session and hides its transcript capability.
type PlainSession struct {
	inner *Session
}

// WithoutTranscripts returns a view of s that does not implement callsdk.TranscriptSource.
func WithoutTranscripts(s *Session) *PlainSession {
	return &PlainSession{inner: s}
}

func (p *PlainSession) Join(ctx context.Context) error         { return p.inner.Join(ctx) }
func (p *PlainSession) Leave(ctx context.Context) error        { return p.inner.Leave(ctx) }
func (p *PlainSession) Self() callsdk.Member                   { return p.inner.Self() }
func (p *PlainSession) Members() []callsdk.Member              { return p.inner.Members() }
func (p *PlainSession) EnableAudio(ctx context.Context) error  { return p.inner.EnableAudio(ctx) }
func (p *PlainSession) DisableAudio(ctx context.Context) error { return p.inner.DisableAudio(ctx) }
func (p *PlainSession) EnableVideo(ctx context.Context) error  { return p.inner.EnableVideo(ctx) }
func (p *PlainSession) DisableVideo(ctx context.Context) error { return p.inner.DisableVideo(ctx) }

func (p *PlainSession) Subscribe(kind callsdk.NotificationKind, handler func(callsdk.Notification)) (callsdk.Subscription, error) {
	return p.inner.Subscribe(kind, handler)
}
