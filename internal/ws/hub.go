package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/relay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The relay is deployed behind a trusted frontend; origin checks are
		// left to the reverse proxy
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Client→server event names (wire contract with the web clients)
const (
	eventStartCustomerSpeech = "start-customer-speech"
	eventStartAgentSpeech    = "start-agent-speech"
	eventStopSpeech          = "stop-speech"

	// Text chat pass-through events
	eventSendToAgent         = "send-to-agent"
	eventSendToCustomer      = "send-to-customer"
	eventUpdateAgentLanguage = "update-agent-language"

	eventReceiveCustomerMessage = "receive-customer-message"
	eventReceiveAgentResponse   = "receive-agent-response"
)

// envelope is the wire format on the realtime channel, both directions
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// startSpeechRequest is the payload of a start-*-speech event
type startSpeechRequest struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// SpeechController starts and stops recognition sessions on behalf of
// connected clients. Implemented by relay.Manager.
type SpeechController interface {
	Start(ctx context.Context, role relay.Role, sourceLang, targetLang string) error
	StopAll()
}

// client is one connected subscriber
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts named events to every connected subscriber and dispatches
// inbound client events. It implements relay.Emitter. Delivery is broadcast:
// subscribers are not segmented per conversation.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	controller SpeechController
	logger     zerolog.Logger
}

// NewHub creates an empty hub. SetController must be called before clients
// connect; the hub and the session manager reference each other so they are
// wired in two steps.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  observability.GetLogger().With().Str("component", "ws_hub").Logger(),
	}
}

// SetController wires the speech controller for inbound events
func (h *Hub) SetController(c SpeechController) {
	h.controller = c
}

// Emit broadcasts a named event to all connected subscribers. Slow
// subscribers are dropped rather than allowed to stall the relay.
func (h *Hub) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event payload")
		return
	}
	message, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event envelope")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			h.logger.Warn().Str("event", event).Msg("Subscriber send buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns the HTTP handler that upgrades connections onto the hub
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}

		c := &client{
			conn: conn,
			send: make(chan []byte, 64),
		}

		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()
		observability.RecordClientConnect()
		h.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("Subscriber connected")

		go h.writePump(c)
		h.readPump(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		observability.RecordClientDisconnect()
	}
	h.mu.Unlock()
}

func (h *Hub) writePump(c *client) {
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug().Err(err).Msg("Subscriber write failed")
			c.conn.Close()
			return
		}
	}
	c.conn.Close()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Info().Msg("Subscriber disconnected")
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.logger.Error().Err(err).Msg("Failed to parse client event")
			continue
		}

		h.dispatch(&env)
	}
}

// dispatch routes one inbound client event
func (h *Hub) dispatch(env *envelope) {
	switch env.Event {
	case eventStartCustomerSpeech:
		h.startSpeech(relay.RoleCustomer, env.Data)

	case eventStartAgentSpeech:
		h.startSpeech(relay.RoleAgent, env.Data)

	case eventStopSpeech:
		if h.controller != nil {
			h.controller.StopAll()
		}

	case eventSendToAgent:
		h.Emit(eventReceiveCustomerMessage, env.Data)

	case eventSendToCustomer:
		h.Emit(eventReceiveAgentResponse, env.Data)

	case eventUpdateAgentLanguage:
		h.Emit(eventUpdateAgentLanguage, env.Data)

	default:
		h.logger.Warn().Str("event", env.Event).Msg("Unknown client event")
	}
}

func (h *Hub) startSpeech(role relay.Role, data json.RawMessage) {
	if h.controller == nil {
		h.logger.Error().Msg("No speech controller wired")
		return
	}

	var req startSpeechRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Error().Err(err).Msg("Failed to parse start-speech request")
			return
		}
	}
	if req.SourceLanguage == "" || req.TargetLanguage == "" {
		h.logger.Warn().Str("role", string(role)).Msg("start-speech request missing language pair")
		return
	}

	// There is no synchronous reply on the channel; a start failure is
	// visible to clients as the absence of a listening event
	if err := h.controller.Start(context.Background(), role, req.SourceLanguage, req.TargetLanguage); err != nil {
		h.logger.Error().Err(err).
			Str("role", string(role)).
			Str("source_lang", req.SourceLanguage).
			Str("target_lang", req.TargetLanguage).
			Msg("Failed to start recognition session")
		observability.RecordError("start_speech_failed", "ws_hub")
	}
}
