package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/relay"
)

// FileTranslator runs the one-shot uploaded-file workflow. Implemented by
// relay.FileWorkflow.
type FileTranslator interface {
	Translate(ctx context.Context, path, sourceLang, targetLang string, role relay.Role) (*relay.FileResult, error)
}

// Handler serves the file upload and download endpoints
type Handler struct {
	workflow      FileTranslator
	uploadDir     string
	maxUploadSize int64
	logger        zerolog.Logger
}

func NewHandler(workflow FileTranslator, uploadDir string, maxUploadSize int64) *Handler {
	return &Handler{
		workflow:      workflow,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		logger:        observability.GetLogger().With().Str("component", "httpapi").Logger(),
	}
}

// Upload accepts a multipart WAV upload and runs it through the translation
// workflow. Form fields: file, source_lang, target_lang, role.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResult("Method not allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult("Upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult("No file provided"))
		return
	}
	defer file.Close()

	role, err := relay.ParseRole(r.FormValue("role"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult("Invalid role"))
		return
	}
	sourceLang := r.FormValue("source_lang")
	targetLang := r.FormValue("target_lang")
	if sourceLang == "" || targetLang == "" {
		writeJSON(w, http.StatusBadRequest, errorResult("Missing language selection"))
		return
	}

	path, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to store upload")
		writeJSON(w, http.StatusInternalServerError, errorResult("Failed to store upload"))
		return
	}

	result, err := h.workflow.Translate(r.Context(), path, sourceLang, targetLang, role)
	switch {
	case errors.Is(err, relay.ErrInvalidAudio):
		writeJSON(w, http.StatusBadRequest, result)
	case err != nil:
		h.logger.Error().Err(err).Str("file", header.Filename).Msg("File translation failed")
		writeJSON(w, http.StatusInternalServerError, result)
	case result.Status != "success":
		writeJSON(w, http.StatusInternalServerError, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// saveUpload writes the upload into the upload directory under a unique
// name. A short random prefix keeps concurrent uploads of the same filename
// from clobbering each other.
func (h *Handler) saveUpload(file io.Reader, filename string) (string, error) {
	name := sanitizeFilename(filename)
	name = uuid.NewString()[:8] + "_" + name
	path := filepath.Join(h.uploadDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

// sanitizeFilename strips any path components and characters that are not
// safe in a stored filename
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 || strings.Trim(b.String(), "._") == "" {
		return "upload.wav"
	}
	return b.String()
}

// Download serves a synthesized file from the upload directory as an
// attachment. The path below /download/ is reduced to its base name so
// traversal outside the directory is not possible.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(strings.TrimPrefix(r.URL.Path, "/download/"))
	if name == "." || name == "/" || name == "" {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.uploadDir, name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func errorResult(message string) *relay.FileResult {
	return &relay.FileResult{Status: "error", Message: message}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
