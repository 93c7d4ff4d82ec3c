package translate

import (
	"context"
	"errors"
)

// ErrProviderUnavailable indicates the recognition provider could not be
// reached or refused the session (bad credentials, network failure). Surfaced
// synchronously to the request that tried to start recognition.
var ErrProviderUnavailable = errors.New("speech provider unavailable")

// Kind discriminates recognition outcomes.
type Kind int

const (
	// TranslatedSpeech is a successfully recognized and translated utterance
	TranslatedSpeech Kind = iota
	// NoMatch means the provider detected no usable speech
	NoMatch
	// Canceled means the provider aborted recognition
	Canceled
)

func (k Kind) String() string {
	switch k {
	case TranslatedSpeech:
		return "translated_speech"
	case NoMatch:
		return "no_match"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is one recognition outcome. For TranslatedSpeech, Text holds the
// recognized source-language text and Translations maps target language tags
// to translated text. For Canceled, Reason carries the provider detail.
type Result struct {
	Kind         Kind
	Text         string
	Translations map[string]string
	Reason       string
}

// Translation returns the translated text for the exact target tag, or ""
// when the provider produced no entry for it.
func (r *Result) Translation(targetLang string) string {
	if r.Translations == nil {
		return ""
	}
	return r.Translations[targetLang]
}

// Stream is a handle on one continuous recognition session. Results delivers
// outcomes in recognition order; the channel is closed when the underlying
// stream ends. Stop requests asynchronous teardown and never blocks.
type Stream interface {
	Results() <-chan *Result
	Stop()
}

// Recognizer is the interface for recognize-and-translate providers.
type Recognizer interface {
	// RecognizeOnce runs a single blocking recognition pass over a complete
	// audio buffer.
	RecognizeOnce(ctx context.Context, audio []byte, sourceLang string, targetLangs []string) (*Result, error)

	// StartContinuous opens a streaming recognition session. The returned
	// Stream delivers each recognized utterance until stopped or canceled.
	StartContinuous(ctx context.Context, sourceLang string, targetLangs []string) (Stream, error)
}
