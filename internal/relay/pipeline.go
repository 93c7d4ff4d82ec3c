package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/synth"
	"github.com/voicebridge/speech-relay/internal/translate"
)

// Pipeline turns a recognized utterance into a routable payload: translation
// lookup, synthesis in the listener's language, payload assembly. Shared by
// the streaming and file-based flows so both behave identically.
type Pipeline struct {
	synthesizer synth.Synthesizer
	logger      zerolog.Logger
}

// NewPipeline creates an utterance pipeline over the given synthesizer
func NewPipeline(synthesizer synth.Synthesizer) *Pipeline {
	return &Pipeline{
		synthesizer: synthesizer,
		logger:      observability.GetLogger().With().Str("component", "pipeline").Logger(),
	}
}

// Process builds an Utterance from a recognition result. The caller must
// only pass TranslatedSpeech results; NoMatch and Canceled outcomes are
// filtered upstream.
//
// A missing translation entry for the exact target tag is a soft failure:
// the utterance carries empty translated text. Synthesis failure degrades to
// a text-only utterance; it is never a pipeline failure.
func (p *Pipeline) Process(ctx context.Context, result *translate.Result, role Role, targetLang string) *Utterance {
	u := &Utterance{
		Role:       role,
		Original:   result.Text,
		TargetLang: targetLang,
		Translated: result.Translation(targetLang),
	}

	if u.Translated == "" {
		p.logger.Warn().
			Str("role", string(role)).
			Str("target_lang", targetLang).
			Msg("No translation for target language, delivering original only")
		observability.RecordError("translation_missing", "pipeline")
		return u
	}

	start := time.Now()
	audio, err := p.synthesizer.Synthesize(ctx, u.Translated, targetLang, synth.VoiceFor(targetLang))
	observability.RecordSynthesis(err == nil, time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn().Err(err).
			Str("role", string(role)).
			Str("target_lang", targetLang).
			Msg("Synthesis failed, delivering text-only payload")
		observability.RecordError("synthesis_failed", "pipeline")
		return u
	}

	u.Audio = audio
	return u
}
