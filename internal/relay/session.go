package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/translate"
)

// session is one active continuous-recognition stream bound to a role and
// language pair.
type session struct {
	role       Role
	sourceLang string
	targetLang string
	stream     translate.Stream
}

// Manager owns the lifecycle of continuous-recognition sessions. It keeps
// one slot per role, so starting a customer session never evicts an active
// agent session; restarting the same role stops the previous stream before
// the new one begins. The slots are the only shared mutable state in the
// relay and are guarded by a single mutex.
type Manager struct {
	recognizer translate.Recognizer
	pipeline   *Pipeline
	router     *Router
	logger     zerolog.Logger

	mu    sync.Mutex
	slots map[Role]*session
}

// NewManager creates a session manager
func NewManager(recognizer translate.Recognizer, pipeline *Pipeline, router *Router) *Manager {
	return &Manager{
		recognizer: recognizer,
		pipeline:   pipeline,
		router:     router,
		logger:     observability.GetLogger().With().Str("component", "session_manager").Logger(),
		slots:      make(map[Role]*session),
	}
}

// Start begins a continuous recognition session for a role. An active
// session for the same role is stopped first; its stream teardown is
// requested before the new stream is opened. Emits a listening notification
// on success and returns translate.ErrProviderUnavailable (wrapped) when the
// recognition stream cannot be opened.
//
// Start returns as soon as the stream is registered; it does not wait for
// the first utterance.
func (m *Manager) Start(ctx context.Context, role Role, sourceLang, targetLang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.slots[role]; existing != nil {
		existing.stream.Stop()
		delete(m.slots, role)
		observability.RecordSessionStop(string(role))
		m.logger.Info().
			Str("role", string(role)).
			Msg("Replaced existing session, previous stream stopped")
	}

	stream, err := m.recognizer.StartContinuous(ctx, sourceLang, []string{targetLang})
	if err != nil {
		observability.RecordError("session_start_failed", "session_manager")
		return fmt.Errorf("starting recognition for %s: %w", role, err)
	}

	sess := &session{
		role:       role,
		sourceLang: sourceLang,
		targetLang: targetLang,
		stream:     stream,
	}
	m.slots[role] = sess

	go m.consume(sess)

	observability.RecordSessionStart(string(role))
	m.logger.Info().
		Str("role", string(role)).
		Str("source_lang", sourceLang).
		Str("target_lang", targetLang).
		Msg("Recognition session started")

	m.router.Listening(role)
	return nil
}

// Stop ends the session for a role if one is active. Idempotent: stopping an
// idle role is a no-op and emits nothing. Teardown of the underlying stream
// is asynchronous; Stop does not wait for it to drain.
func (m *Manager) Stop(role Role) bool {
	m.mu.Lock()
	sess := m.slots[role]
	if sess != nil {
		delete(m.slots, role)
	}
	m.mu.Unlock()

	if sess == nil {
		return false
	}

	sess.stream.Stop()
	observability.RecordSessionStop(string(role))
	m.logger.Info().Str("role", string(role)).Msg("Recognition session stopped")
	return true
}

// StopAll ends every active session. Exactly one stopped-listening
// notification is emitted when at least one session was active; none when
// the call is a no-op.
func (m *Manager) StopAll() {
	stopped := false
	for _, role := range []Role{RoleCustomer, RoleAgent} {
		if m.Stop(role) {
			stopped = true
		}
	}
	if stopped {
		m.router.StoppedListening()
	}
}

// Active reports whether a session is active for the role
func (m *Manager) Active(role Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[role] != nil
}

// consume drains one session's recognition stream into the pipeline. Results
// arriving after the session left its slot are dropped: fire-and-forget
// teardown means the provider may deliver a late utterance, and a stale
// session must not speak for whoever owns the slot now.
func (m *Manager) consume(sess *session) {
	for result := range sess.stream.Results() {
		m.mu.Lock()
		current := m.slots[sess.role] == sess
		m.mu.Unlock()

		if !current {
			m.logger.Debug().
				Str("role", string(sess.role)).
				Msg("Dropping recognition result for replaced session")
			continue
		}

		switch result.Kind {
		case translate.TranslatedSpeech:
			u := m.pipeline.Process(context.Background(), result, sess.role, sess.targetLang)
			m.router.RouteLive(u)

		case translate.NoMatch:
			m.logger.Debug().Str("role", string(sess.role)).Msg("No speech detected")

		case translate.Canceled:
			// Unrecoverable stream cancellation ends the session; the slot is
			// cleared so a later Stop is a clean no-op.
			m.logger.Warn().
				Str("role", string(sess.role)).
				Str("reason", result.Reason).
				Msg("Recognition stream canceled")
			observability.RecordError("stream_canceled", "session_manager")

			m.mu.Lock()
			if m.slots[sess.role] == sess {
				delete(m.slots, sess.role)
				observability.RecordSessionStop(string(sess.role))
			}
			m.mu.Unlock()
			return
		}
	}
}
