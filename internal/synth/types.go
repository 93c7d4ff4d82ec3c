package synth

import "context"

// Synthesizer is the interface for text-to-speech providers. A non-nil error
// means synthesis failed; callers are expected to degrade to text-only
// delivery rather than fail the utterance.
type Synthesizer interface {
	// Synthesize renders text into audio bytes in the given language and voice
	Synthesize(ctx context.Context, text, lang, voice string) ([]byte, error)
}
