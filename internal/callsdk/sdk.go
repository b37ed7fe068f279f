// Package callsdk describes the external call SDK the session layer drives.
// The SDK owns media and signaling; this package only names the primitives
// and notifications the session controller depends on.
package callsdk

import (
	"context"

	"github.com/vovakirdan/boardcall/internal/callengine"
)

// MediaDefaults are the media flags requested when a session is initialized.
type MediaDefaults struct {
	Audio bool
	Video bool
}

// Client initializes sessions from credentials.
type Client interface {
	// Init redeems cred and returns an unjoined session handle.
	Init(ctx context.Context, cred callengine.Credential, defaults MediaDefaults) (Session, error)
}

// Session is the live handle for one call.
type Session interface {
	Join(ctx context.Context) error
	Leave(ctx context.Context) error

	// Self describes the local participant as the SDK currently sees it.
	Self() Member
	// Members lists remote participants already present at join time.
	Members() []Member

	EnableAudio(ctx context.Context) error
	DisableAudio(ctx context.Context) error
	EnableVideo(ctx context.Context) error
	DisableVideo(ctx context.Context) error

	// Subscribe attaches handler to notifications of kind.
	// The returned Subscription detaches it; the session never detaches on its own.
	Subscribe(kind NotificationKind, handler func(Notification)) (Subscription, error)
}

// TranscriptSource is implemented by sessions that can stream transcripts.
type TranscriptSource interface {
	SubscribeTranscripts(handler func(TranscriptEvent)) (Subscription, error)
}

// Subscription is an attached handler. Unsubscribe must be safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// Member is a participant as reported by the SDK.
type Member struct {
	ID           string
	Name         string
	AudioEnabled bool
	VideoEnabled bool
}

// NotificationKind is a class of session notification.
type NotificationKind int

const (
	// NotificationParticipantJoined reports a remote participant joining.
	NotificationParticipantJoined NotificationKind = iota
	// NotificationParticipantLeft reports a remote participant leaving.
	NotificationParticipantLeft
	// NotificationMediaChanged reports an audio/video flag change.
	NotificationMediaChanged
	// NotificationDisconnected reports a forced disconnect of the local participant.
	NotificationDisconnected
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationParticipantJoined:
		return "participant_joined"
	case NotificationParticipantLeft:
		return "participant_left"
	case NotificationMediaChanged:
		return "media_changed"
	case NotificationDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Notification is delivered to subscription handlers.
type Notification struct {
	Kind   NotificationKind
	Member Member
	// Reason is set for NotificationDisconnected.
	Reason string
}

// TranscriptEvent is a raw transcript payload; field names vary by source.
type TranscriptEvent map[string]any
