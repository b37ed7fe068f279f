package session

import (
	"github.com/vovakirdan/boardcall/internal/authclient"
	"github.com/vovakirdan/boardcall/internal/callsdk"
)

// State is a controller lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring_credential"
	StateConnecting State = "connecting"
	StateJoined     State = "joined"
	StateLeaving    State = "leaving"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// Variant parametrizes the controller for one call panel.
type Variant struct {
	Name        string
	Endpoint    string
	DefaultName string
	Media       callsdk.MediaDefaults
	Captions    bool
}

var (
	// HostVariant is the whiteboard call panel: full media and captions.
	HostVariant = Variant{
		Name:        "host",
		Endpoint:    authclient.HostEndpoint,
		DefaultName: "Anonymous",
		Media:       callsdk.MediaDefaults{Audio: true, Video: true},
		Captions:    true,
	}
	// AudienceVariant is the audience page: camera on, microphone off, no captions.
	AudienceVariant = Variant{
		Name:        "audience",
		Endpoint:    authclient.AudienceEndpoint,
		DefaultName: "Audience Member",
		Media:       callsdk.MediaDefaults{Audio: false, Video: true},
		Captions:    false,
	}
)

// VariantByName resolves "host" or "audience".
func VariantByName(name string) (Variant, bool) {
	switch name {
	case HostVariant.Name:
		return HostVariant, true
	case AudienceVariant.Name:
		return AudienceVariant, true
	default:
		return Variant{}, false
	}
}

type mediaKind int

const (
	mediaAudio mediaKind = iota
	mediaVideo
)

func (k mediaKind) String() string {
	if k == mediaAudio {
		return "audio"
	}
	return "video"
}
