package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicebridge/speech-relay/internal/translate"
)

func newTestManager(rec *fakeRecognizer, synth *fakeSynth) (*Manager, *fakeEmitter) {
	emitter := &fakeEmitter{}
	router := NewRouter(emitter)
	return NewManager(rec, NewPipeline(synth), router), emitter
}

// waitFor polls until cond holds or the deadline passes
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManager_StartEmitsListening(t *testing.T) {
	rec := &fakeRecognizer{}
	m, emitter := newTestManager(rec, &fakeSynth{})

	if err := m.Start(context.Background(), RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !m.Active(RoleCustomer) {
		t.Error("Expected customer session active")
	}
	payload := emitter.find(t, EventListening).Payload.(ListeningPayload)
	if payload.Side != "customer" {
		t.Errorf("Expected listening side customer, got %q", payload.Side)
	}
}

func TestManager_RestartStopsPreviousStreamFirst(t *testing.T) {
	rec := &fakeRecognizer{}
	m, _ := newTestManager(rec, &fakeSynth{})

	ctx := context.Background()
	if err := m.Start(ctx, RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if err := m.Start(ctx, RoleCustomer, "en-US", "de-DE"); err != nil {
		t.Fatalf("Second start failed: %v", err)
	}

	ops := rec.opLog()
	want := []string{"start", "stop", "start"}
	if len(ops) != len(want) {
		t.Fatalf("Expected ops %v, got %v", want, ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("Expected ops %v, got %v: previous stream must be released before the next start", want, ops)
		}
	}
}

func TestManager_RolesHaveIndependentSlots(t *testing.T) {
	rec := &fakeRecognizer{}
	m, _ := newTestManager(rec, &fakeSynth{})

	ctx := context.Background()
	if err := m.Start(ctx, RoleAgent, "fr-FR", "en-US"); err != nil {
		t.Fatalf("Agent start failed: %v", err)
	}
	if err := m.Start(ctx, RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("Customer start failed: %v", err)
	}

	if !m.Active(RoleAgent) || !m.Active(RoleCustomer) {
		t.Error("Expected both sessions active")
	}
	for _, op := range rec.opLog() {
		if op == "stop" {
			t.Error("Starting the customer must not evict the agent session")
		}
	}
}

func TestManager_StartProviderUnavailable(t *testing.T) {
	rec := &fakeRecognizer{startErr: translate.ErrProviderUnavailable}
	m, emitter := newTestManager(rec, &fakeSynth{})

	err := m.Start(context.Background(), RoleCustomer, "en-US", "fr-FR")
	if !errors.Is(err, translate.ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
	if m.Active(RoleCustomer) {
		t.Error("Failed start must not leave an active session")
	}
	if emitter.count(EventListening) != 0 {
		t.Error("Failed start must not emit listening")
	}
}

func TestManager_StopAllIdempotent(t *testing.T) {
	rec := &fakeRecognizer{}
	m, emitter := newTestManager(rec, &fakeSynth{})

	if err := m.Start(context.Background(), RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	m.StopAll()
	m.StopAll() // second call is a no-op

	if got := emitter.count(EventStoppedListening); got != 1 {
		t.Errorf("Expected exactly one stopped-listening, got %d", got)
	}
	if m.Active(RoleCustomer) {
		t.Error("Expected no active session after StopAll")
	}
}

func TestManager_StopAllWithoutSessionEmitsNothing(t *testing.T) {
	rec := &fakeRecognizer{}
	m, emitter := newTestManager(rec, &fakeSynth{})

	m.StopAll()

	if got := emitter.count(EventStoppedListening); got != 0 {
		t.Errorf("Expected no stopped-listening without an active session, got %d", got)
	}
}

func TestManager_LiveUtteranceRouted(t *testing.T) {
	rec := &fakeRecognizer{}
	m, emitter := newTestManager(rec, &fakeSynth{audio: []byte("audio")})

	if err := m.Start(context.Background(), RoleCustomer, "ja-JP", "en-US"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec.stream(0).push(&translate.Result{
		Kind:         translate.TranslatedSpeech,
		Text:         "こんにちは",
		Translations: map[string]string{"en-US": "hello"},
	})

	waitFor(t, func() bool {
		return emitter.count(EventSendToAgentTranslated) == 1
	}, "Translated payload was not delivered to the agent side")

	own := emitter.find(t, EventShowCustomerOriginal).Payload.(OriginalPayload)
	if own.Original != "こんにちは" {
		t.Errorf("Unexpected own-side original: %q", own.Original)
	}

	payload := emitter.find(t, EventSendToAgentTranslated).Payload.(TranslatedPayload)
	if payload.Original != "こんにちは" || payload.Translated != "hello" {
		t.Errorf("Unexpected payload: %+v", payload)
	}
	if payload.Audio == "" {
		t.Error("Expected inline audio on the live path")
	}
}

func TestManager_NoMatchNotRouted(t *testing.T) {
	rec := &fakeRecognizer{}
	m, emitter := newTestManager(rec, &fakeSynth{})

	if err := m.Start(context.Background(), RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec.stream(0).push(&translate.Result{Kind: translate.NoMatch})
	rec.stream(0).push(&translate.Result{
		Kind:         translate.TranslatedSpeech,
		Text:         "hello",
		Translations: map[string]string{"fr-FR": "bonjour"},
	})

	waitFor(t, func() bool {
		return emitter.count(EventSendToAgentTranslated) == 1
	}, "Utterance after NoMatch was not routed")

	if got := emitter.count(EventShowCustomerOriginal); got != 1 {
		t.Errorf("NoMatch must not be routed; expected 1 original event, got %d", got)
	}
}

func TestManager_LateResultAfterStopDropped(t *testing.T) {
	rec := &fakeRecognizer{}
	m, emitter := newTestManager(rec, &fakeSynth{audio: []byte("audio")})

	if err := m.Start(context.Background(), RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Simulate fire-and-forget teardown: the slot is cleared while the
	// provider stream is still draining and delivers one more utterance.
	stream := rec.stream(0)
	stream.keepOpen = true
	m.Stop(RoleCustomer)

	stream.push(&translate.Result{
		Kind:         translate.TranslatedSpeech,
		Text:         "too late",
		Translations: map[string]string{"fr-FR": "trop tard"},
	})
	close(stream.results)

	// Absence check: give the consume goroutine time to misbehave
	time.Sleep(100 * time.Millisecond)
	if got := emitter.count(EventSendToAgentTranslated); got != 0 {
		t.Errorf("Late utterance must be dropped after stop, got %d deliveries", got)
	}
}

func TestManager_CanceledStreamClearsSlot(t *testing.T) {
	rec := &fakeRecognizer{}
	m, _ := newTestManager(rec, &fakeSynth{})

	if err := m.Start(context.Background(), RoleCustomer, "en-US", "fr-FR"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	rec.stream(0).push(&translate.Result{Kind: translate.Canceled, Reason: "connection failure"})

	waitFor(t, func() bool {
		return !m.Active(RoleCustomer)
	}, "Canceled stream did not clear the session slot")

	// A later stop is a clean no-op
	if m.Stop(RoleCustomer) {
		t.Error("Stop after cancellation should be a no-op")
	}
}
