package relay

import "fmt"

// Role identifies one of the two conversation participants.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// ParseRole validates a role string from the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Counterpart returns the audience for utterances spoken by this role. The
// relay is strictly two-party; the audience is always the complement.
func (r Role) Counterpart() Role {
	if r == RoleCustomer {
		return RoleAgent
	}
	return RoleCustomer
}

// Utterance is one recognized phrase after the pipeline has run: original
// text, its translation for the listener, and optional synthesized audio.
// Audio is nil when synthesis failed or there was no translated text to
// synthesize; its absence never blocks delivery of the text. Immutable once
// constructed.
type Utterance struct {
	Role       Role
	Original   string
	TargetLang string
	Translated string
	Audio      []byte
}

// OriginalPayload is shown to the speaker's own side (live transcription).
type OriginalPayload struct {
	Original string `json:"original"`
}

// TranslatedPayload is delivered to the counterpart side. Audio carries
// base64 WAV bytes on the live path; AudioURL carries a download path on the
// file path. Both are optional and absent on synthesis failure.
type TranslatedPayload struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
	Audio      string `json:"audio,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Target     string `json:"target"`
}

// ListeningPayload names the side a recognition session was started for.
type ListeningPayload struct {
	Side string `json:"side"`
}
