package relay

import (
	"encoding/base64"

	"github.com/voicebridge/speech-relay/internal/observability"
)

// Server→client event names. These are the wire contract with the web
// clients and must not change.
const (
	EventListening        = "listening"
	EventStoppedListening = "stopped-listening"

	EventShowCustomerOriginal = "show-customer-original"
	EventShowAgentOriginal    = "show-agent-original"

	EventSendToAgentTranslated    = "send-to-agent-translated"
	EventSendToCustomerTranslated = "send-to-customer-translated"
)

// Emitter broadcasts a named event to every subscriber of the realtime
// channel. Delivery is broadcast, not point-to-point: there is no
// per-connection identity, so every subscriber receives every event. The
// relay therefore provides no tenant or session isolation beyond the
// customer/agent event naming.
type Emitter interface {
	Emit(event string, payload any)
}

// Router delivers routed payloads to the correct logical audience via named
// events: the speaker's side sees its own original text, the counterpart
// side receives the full translated payload.
type Router struct {
	emitter Emitter
}

// NewRouter creates a router over the given emitter
func NewRouter(emitter Emitter) *Router {
	return &Router{emitter: emitter}
}

func showOriginalEvent(role Role) string {
	if role == RoleCustomer {
		return EventShowCustomerOriginal
	}
	return EventShowAgentOriginal
}

func deliverTranslatedEvent(audience Role) string {
	if audience == RoleAgent {
		return EventSendToAgentTranslated
	}
	return EventSendToCustomerTranslated
}

// RouteLive delivers a live-path utterance: the speaker's side gets the
// original text, the counterpart gets the translated payload with inline
// base64 audio.
func (r *Router) RouteLive(u *Utterance) {
	audience := u.Role.Counterpart()

	payload := TranslatedPayload{
		Original:   u.Original,
		Translated: u.Translated,
		Target:     string(audience),
	}
	if len(u.Audio) > 0 {
		payload.Audio = base64.StdEncoding.EncodeToString(u.Audio)
	}

	r.emit(showOriginalEvent(u.Role), OriginalPayload{Original: u.Original})
	r.emit(deliverTranslatedEvent(audience), payload)
	observability.RecordUtterance(string(u.Role))
}

// RouteFile delivers a file-path utterance: same audience split as the live
// path, but the audio travels as a download reference instead of inline
// bytes.
func (r *Router) RouteFile(u *Utterance, audioURL string) {
	audience := u.Role.Counterpart()

	payload := TranslatedPayload{
		Original:   u.Original,
		Translated: u.Translated,
		AudioURL:   audioURL,
		Target:     string(audience),
	}

	r.emit(showOriginalEvent(u.Role), OriginalPayload{Original: u.Original})
	r.emit(deliverTranslatedEvent(audience), payload)
	observability.RecordUtterance(string(u.Role))
}

// Listening announces that a recognition session is active for a side
func (r *Router) Listening(role Role) {
	r.emit(EventListening, ListeningPayload{Side: string(role)})
}

// StoppedListening announces that recognition has stopped
func (r *Router) StoppedListening() {
	r.emit(EventStoppedListening, struct{}{})
}

func (r *Router) emit(event string, payload any) {
	r.emitter.Emit(event, payload)
	observability.RecordEventEmitted(event)
}
