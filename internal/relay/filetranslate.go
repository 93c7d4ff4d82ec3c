package relay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicebridge/speech-relay/internal/audio"
	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/translate"
)

// ErrInvalidAudio marks a format validation failure on an uploaded file. The
// upload handler maps it to a 400 response; everything else is a provider
// problem.
var ErrInvalidAudio = errors.New("invalid audio upload")

// FileResult is the synchronous response of the file translation workflow,
// the only place translation data is returned directly to a caller rather
// than purely via the event channel.
type FileResult struct {
	Status     string `json:"status"`
	Original   string `json:"original,omitempty"`
	Translated string `json:"translated,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

// FileWorkflow is the one-shot variant of the relay: validate an uploaded
// WAV, recognize and translate it in a single pass, synthesize and persist
// the result, and route it through the same audience split as the live path.
type FileWorkflow struct {
	recognizer translate.Recognizer
	pipeline   *Pipeline
	router     *Router
	uploadDir  string
	logger     zerolog.Logger
}

// NewFileWorkflow creates a file translation workflow persisting synthesized
// audio under uploadDir.
func NewFileWorkflow(recognizer translate.Recognizer, pipeline *Pipeline, router *Router, uploadDir string) *FileWorkflow {
	return &FileWorkflow{
		recognizer: recognizer,
		pipeline:   pipeline,
		router:     router,
		uploadDir:  uploadDir,
		logger:     observability.GetLogger().With().Str("component", "file_workflow").Logger(),
	}
}

// Translate runs the one-shot workflow over the uploaded file at path. The
// upload is a transient artifact: it is deleted when the workflow returns,
// success or failure. The synthesized sibling is persisted as
// translated_<basename> and retained until downloaded.
//
// A validation failure returns an error wrapping ErrInvalidAudio before any
// provider call. A recognition outcome other than translated speech returns
// an error-status result with no stray output file.
func (w *FileWorkflow) Translate(ctx context.Context, path, sourceLang, targetLang string, role Role) (*FileResult, error) {
	start := time.Now()
	defer os.Remove(path)

	if err := audio.ValidateWAVFile(path); err != nil {
		observability.RecordFileTranslation("invalid", time.Since(start).Seconds())
		return &FileResult{Status: "error", Message: err.Error()},
			fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	wav, err := os.ReadFile(path)
	if err != nil {
		observability.RecordFileTranslation("error", time.Since(start).Seconds())
		return &FileResult{Status: "error", Message: "Failed to read upload"},
			fmt.Errorf("reading upload: %w", err)
	}

	result, err := w.recognizer.RecognizeOnce(ctx, wav, sourceLang, []string{targetLang})
	if err != nil {
		observability.RecordFileTranslation("error", time.Since(start).Seconds())
		return &FileResult{Status: "error", Message: "Translation failed"},
			fmt.Errorf("recognizing upload: %w", err)
	}

	if result.Kind != translate.TranslatedSpeech {
		w.logger.Info().
			Str("outcome", result.Kind.String()).
			Msg("Upload produced no translated speech")
		observability.RecordFileTranslation("no_match", time.Since(start).Seconds())
		return &FileResult{Status: "error", Message: "Translation failed"}, nil
	}

	u := w.pipeline.Process(ctx, result, role, targetLang)

	audioURL := ""
	if len(u.Audio) > 0 {
		outName := "translated_" + filepath.Base(path)
		outPath := filepath.Join(w.uploadDir, outName)
		if err := os.WriteFile(outPath, u.Audio, 0o644); err != nil {
			// Persisting is best-effort like synthesis itself: the text still flows
			w.logger.Error().Err(err).Str("path", outPath).Msg("Failed to persist synthesized audio")
			observability.RecordError("persist_failed", "file_workflow")
		} else {
			audioURL = "/download/" + outName
		}
	}

	w.router.RouteFile(u, audioURL)

	observability.RecordFileTranslation("success", time.Since(start).Seconds())
	return &FileResult{
		Status:     "success",
		Original:   u.Original,
		Translated: u.Translated,
		AudioURL:   audioURL,
	}, nil
}
