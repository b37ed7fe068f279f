package session

import (
	"context"

	"github.com/vovakirdan/boardcall/internal/callsdk"
)

// Controls is the local media state shown by the control surface.
type Controls struct {
	AudioEnabled bool
	VideoEnabled bool
	AudioPending bool
	VideoPending bool
}

// ToggleAudio asks the session to flip the microphone. It reports false when
// not joined or when an audio command is already pending. The local flag
// changes only after the SDK accepts the command.
func (c *Controller) ToggleAudio() bool {
	return c.send(command{kind: cmdToggle, media: mediaAudio})
}

// ToggleVideo is ToggleAudio for the camera.
func (c *Controller) ToggleVideo() bool {
	return c.send(command{kind: cmdToggle, media: mediaVideo})
}

// SetCaptionsVisible shows or hides captions without detaching them.
func (c *Controller) SetCaptionsVisible(visible bool) {
	c.captions.SetVisible(visible)
}

// Controls returns the confirmed media flags and pending commands.
func (c *Controller) Controls() Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.controls
}

func (c *Controller) flag(kind mediaKind) bool {
	if kind == mediaAudio {
		return c.audio
	}
	return c.video
}

func (c *Controller) requestMedia(kind mediaKind, on bool) bool {
	if c.pending[kind] {
		c.log.Debug().Stringer("media", kind).Msg("toggle ignored, command pending")
		return false
	}
	c.pending[kind] = true
	c.syncView()

	ctx, session, attempt := c.ctx, c.session, c.attempt
	go func() {
		err := setMedia(ctx, session, kind, on)
		c.post(result{kind: resMedia, attempt: attempt, media: kind, on: on, err: err})
	}()
	return true
}

func (c *Controller) onMedia(res result) {
	c.pending[res.media] = false
	switch {
	case res.err != nil:
		c.log.Warn().Err(res.err).Stringer("media", res.media).Bool("on", res.on).Msg("media command failed")
	case c.state != StateJoined:
	case res.media == mediaAudio:
		c.audio = res.on
	default:
		c.video = res.on
	}
	c.syncView()
}

func setMedia(ctx context.Context, session callsdk.Session, kind mediaKind, on bool) error {
	switch {
	case kind == mediaAudio && on:
		return session.EnableAudio(ctx)
	case kind == mediaAudio:
		return session.DisableAudio(ctx)
	case on:
		return session.EnableVideo(ctx)
	default:
		return session.DisableVideo(ctx)
	}
}
