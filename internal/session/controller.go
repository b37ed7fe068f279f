// Package session drives one call attempt from credential to teardown.
//
// A Controller owns at most one credential acquisition and at most one SDK
// session at a time. All state transitions happen on the goroutine running
// Run; public methods post commands to it and SDK work runs in helper
// goroutines whose results are posted back tagged with the attempt that
// started them. Results for any other attempt are discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/callengine"
	"github.com/vovakirdan/boardcall/internal/callsdk"
	"github.com/vovakirdan/boardcall/internal/captions"
	"github.com/vovakirdan/boardcall/internal/roster"
)

// DefaultLeaveTimeout bounds the SDK leave call.
const DefaultLeaveTimeout = 10 * time.Second

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("session controller already running")
	// ErrDiagnosticsDisabled is returned by Snapshot unless diagnostics are enabled.
	ErrDiagnosticsDisabled = errors.New("session diagnostics disabled")
)

// CredentialSource mints a fresh credential per call.
type CredentialSource interface {
	Acquire(ctx context.Context, identity callengine.Identity) (*callengine.Credential, error)
}

// Options configure a Controller.
type Options struct {
	Variant       Variant
	LeaveTimeout  time.Duration
	CaptionWindow time.Duration
	Diagnostics   bool
}

type commandKind int

const (
	cmdJoin commandKind = iota
	cmdCancel
	cmdLeave
	cmdAcknowledge
	cmdToggle
)

type command struct {
	kind     commandKind
	identity callengine.Identity
	media    mediaKind
	reply    chan bool
}

type resultKind int

const (
	resCredential resultKind = iota
	resConnected
	resMedia
	resDisconnected
	resLeft
)

type result struct {
	kind    resultKind
	attempt uint64
	cred    *callengine.Credential
	session callsdk.Session
	media   mediaKind
	on      bool
	reason  string
	err     error
}

// Controller is the call-session state machine.
type Controller struct {
	log   *zerolog.Logger
	creds CredentialSource
	sdk   callsdk.Client
	opts  Options

	roster   *roster.Tracker
	captions *captions.Dispatcher

	commands chan command
	results  chan result
	done     chan struct{}
	running  atomic.Bool

	// Owned by the Run goroutine.
	ctx     context.Context
	state   State
	err     error
	attempt uint64
	cred    *callengine.Credential
	session callsdk.Session
	subs    []callsdk.Subscription
	audio   bool
	video   bool
	pending [2]bool

	mu   sync.Mutex
	view view

	listenersMu sync.Mutex
	listeners   map[int]func(State, error)
	nextID      int
}

type view struct {
	state    State
	err      error
	attempt  uint64
	cred     callengine.Credential
	controls Controls
}

// New creates an idle controller. Call Run before issuing commands.
func New(creds CredentialSource, sdk callsdk.Client, opts Options, logger *zerolog.Logger) *Controller {
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = DefaultLeaveTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("variant", opts.Variant.Name).Logger()

	c := &Controller{
		log:       &l,
		creds:     creds,
		sdk:       sdk,
		opts:      opts,
		roster:    roster.New(),
		captions:  captions.New(opts.CaptionWindow, &l),
		commands:  make(chan command),
		results:   make(chan result, 16),
		done:      make(chan struct{}),
		state:     StateIdle,
		listeners: make(map[int]func(State, error)),
	}
	c.view.state = StateIdle
	return c
}

// Run processes commands and SDK results until ctx is cancelled.
// A joined session is left before Run returns. A controller runs once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)
	c.ctx = ctx

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case cmd := <-c.commands:
			cmd.reply <- c.handleCommand(cmd)
		case res := <-c.results:
			c.handleResult(res)
		}
	}
}

// Join starts a call attempt. It reports false unless the controller is idle.
func (c *Controller) Join(identity callengine.Identity) bool {
	return c.send(command{kind: cmdJoin, identity: identity})
}

// Cancel abandons an attempt that is still acquiring a credential or connecting.
// Whatever the abandoned attempt produces later is discarded.
func (c *Controller) Cancel() bool {
	return c.send(command{kind: cmdCancel})
}

// Leave tears down the joined session. It reports false unless joined.
func (c *Controller) Leave() bool {
	return c.send(command{kind: cmdLeave})
}

// Acknowledge clears a failure and returns the controller to idle.
func (c *Controller) Acknowledge() bool {
	return c.send(command{kind: cmdAcknowledge})
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.state
}

// Err returns the error that moved the controller to failed, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.err
}

// Roster exposes the participant roster of the joined session.
func (c *Controller) Roster() *roster.Tracker {
	return c.roster
}

// Captions exposes the caption dispatcher. It stays empty for variants without captions.
func (c *Controller) Captions() *captions.Dispatcher {
	return c.captions
}

// OnStateChange registers fn for every transition. fn runs on the controller
// goroutine and must not wait on controller commands.
func (c *Controller) OnStateChange(fn func(State, error)) func() {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

func (c *Controller) send(cmd command) bool {
	cmd.reply = make(chan bool, 1)
	select {
	case c.commands <- cmd:
	case <-c.done:
		return false
	}
	select {
	case ok := <-cmd.reply:
		return ok
	case <-c.done:
		return false
	}
}

func (c *Controller) post(res result) bool {
	select {
	case c.results <- res:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handleCommand(cmd command) bool {
	switch cmd.kind {
	case cmdJoin:
		return c.startJoin(cmd.identity)
	case cmdCancel:
		return c.cancelAttempt()
	case cmdLeave:
		return c.beginLeave("user")
	case cmdAcknowledge:
		if c.state != StateFailed {
			return false
		}
		c.setState(StateIdle, nil)
		return true
	case cmdToggle:
		if c.state != StateJoined {
			return false
		}
		return c.requestMedia(cmd.media, !c.flag(cmd.media))
	default:
		return false
	}
}

func (c *Controller) handleResult(res result) {
	if res.attempt != c.attempt {
		c.discard(res)
		return
	}

	switch res.kind {
	case resCredential:
		if c.state != StateAcquiring {
			c.discard(res)
			return
		}
		c.onCredential(res)
	case resConnected:
		if c.state != StateConnecting {
			c.discard(res)
			return
		}
		c.onConnected(res)
	case resMedia:
		c.onMedia(res)
	case resDisconnected:
		if c.state != StateJoined {
			return
		}
		c.log.Warn().Str("reason", res.reason).Msg("session disconnected")
		c.beginLeave("disconnected")
	case resLeft:
		if c.state != StateLeaving {
			return
		}
		if res.err != nil {
			c.log.Warn().Err(res.err).Msg("leave failed")
		} else {
			c.log.Info().Msg("left call")
		}
		c.finish()
	}
}

func (c *Controller) discard(res result) {
	c.log.Debug().Uint64("attempt", res.attempt).Uint64("current", c.attempt).Msg("discarding stale result")
	if res.session != nil {
		go c.release(res.session)
	}
}

func (c *Controller) startJoin(identity callengine.Identity) bool {
	if c.state != StateIdle {
		c.log.Debug().Str("state", string(c.state)).Msg("join ignored")
		return false
	}
	c.attempt++
	attempt := c.attempt
	c.setState(StateAcquiring, nil)

	ctx := c.ctx
	go func() {
		cred, err := c.creds.Acquire(ctx, identity)
		c.post(result{kind: resCredential, attempt: attempt, cred: cred, err: err})
	}()
	return true
}

func (c *Controller) onCredential(res result) {
	if res.err != nil {
		c.fail(fmt.Errorf("acquire credential: %w", res.err))
		return
	}
	c.cred = res.cred
	c.setState(StateConnecting, nil)

	ctx, attempt, cred, media := c.ctx, c.attempt, *res.cred, c.opts.Variant.Media
	go func() {
		session, err := c.sdk.Init(ctx, cred, media)
		if err != nil {
			err = fmt.Errorf("init session: %w", err)
		} else if err = session.Join(ctx); err != nil {
			err = fmt.Errorf("join session: %w", err)
		}
		if !c.post(result{kind: resConnected, attempt: attempt, session: session, err: err}) && session != nil {
			c.release(session)
		}
	}()
}

func (c *Controller) onConnected(res result) {
	if res.err != nil {
		if res.session != nil {
			go c.release(res.session)
		}
		c.fail(res.err)
		return
	}

	c.session = res.session
	self := c.session.Self()
	c.audio, c.video = self.AudioEnabled, self.VideoEnabled

	if err := c.roster.AttachAs(c.session, c.cred.ParticipantID); err != nil {
		c.log.Warn().Err(err).Msg("roster attach failed")
	}
	if c.opts.Variant.Captions {
		if ok, err := c.captions.Attach(c.session); err != nil {
			c.log.Warn().Err(err).Msg("captions attach failed")
		} else if !ok {
			c.log.Debug().Msg("captions unavailable")
		}
	}

	attempt := c.attempt
	sub, err := c.session.Subscribe(callsdk.NotificationDisconnected, func(n callsdk.Notification) {
		c.post(result{kind: resDisconnected, attempt: attempt, reason: n.Reason})
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("disconnect subscription failed")
	} else {
		c.subs = append(c.subs, sub)
	}

	// Default media is best-effort; results land after the joined transition.
	if c.opts.Variant.Media.Audio && !c.audio {
		c.requestMedia(mediaAudio, true)
	}
	if c.opts.Variant.Media.Video && !c.video {
		c.requestMedia(mediaVideo, true)
	}

	c.log.Info().
		Str("participant_id", c.cred.ParticipantID).
		Str("call_id", c.cred.CallID).
		Msg("joined call")
	c.setState(StateJoined, nil)
}

func (c *Controller) cancelAttempt() bool {
	if c.state != StateAcquiring && c.state != StateConnecting {
		return false
	}
	c.attempt++
	c.cred = nil
	c.log.Info().Msg("join attempt cancelled")
	c.setState(StateIdle, nil)
	return true
}

func (c *Controller) beginLeave(reason string) bool {
	if c.state != StateJoined {
		return false
	}
	c.log.Info().Str("reason", reason).Msg("leaving call")
	c.setState(StateLeaving, nil)
	c.teardown()

	session, attempt := c.session, c.attempt
	c.session = nil
	go func() {
		err := c.leaveBounded(session)
		c.post(result{kind: resLeft, attempt: attempt, err: err})
	}()
	return true
}

// teardown releases every subscription taken on join. It runs once per session.
func (c *Controller) teardown() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
	c.roster.Detach()
	c.captions.Detach()
	c.pending = [2]bool{}
}

func (c *Controller) finish() {
	c.attempt++
	c.cred = nil
	c.audio, c.video = false, false
	c.setState(StateClosed, nil)
	c.setState(StateIdle, nil)
}

func (c *Controller) fail(err error) {
	c.log.Error().Err(err).Msg("call attempt failed")
	c.attempt++
	c.cred = nil
	c.setState(StateFailed, err)
}

func (c *Controller) shutdown() {
	switch c.state {
	case StateJoined:
		c.setState(StateLeaving, nil)
		c.teardown()
		if err := c.leaveBounded(c.session); err != nil {
			c.log.Warn().Err(err).Msg("leave on shutdown failed")
		}
		c.session = nil
		c.finish()
	case StateLeaving:
		c.finish()
	default:
		c.attempt++
	}
}

// leaveBounded calls Session.Leave and gives up after the leave timeout even
// if the SDK ignores its context.
func (c *Controller) leaveBounded(session callsdk.Session) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.opts.LeaveTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Leave(ctx)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release(session callsdk.Session) {
	if err := c.leaveBounded(session); err != nil {
		c.log.Warn().Err(err).Msg("release of abandoned session failed")
	}
}

func (c *Controller) setState(s State, err error) {
	prev := c.state
	c.state = s
	c.err = err
	c.syncView()
	c.log.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("state change")

	c.listenersMu.Lock()
	fns := make([]func(State, error), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(s, err)
	}
}

func (c *Controller) syncView() {
	v := view{
		state:   c.state,
		err:     c.err,
		attempt: c.attempt,
		controls: Controls{
			AudioEnabled: c.audio,
			VideoEnabled: c.video,
			AudioPending: c.pending[mediaAudio],
			VideoPending: c.pending[mediaVideo],
		},
	}
	if c.cred != nil {
		v.cred = *c.cred
	}

	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}
