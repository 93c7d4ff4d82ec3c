package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicebridge/speech-relay/internal/config"
	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/resilience"
)

// AzureRecognizer implements Recognizer against the Azure speech translation
// API: REST for one-shot file recognition, WebSocket for continuous sessions.
type AzureRecognizer struct {
	apiKey       string
	recognizeURL string
	streamURL    string
	httpClient   *http.Client
	dialer       *websocket.Dialer
	retryCfg     *resilience.RetryConfig
	logger       zerolog.Logger
}

// NewAzureRecognizer creates a new Azure recognition client
func NewAzureRecognizer(cfg *config.Config) *AzureRecognizer {
	return &AzureRecognizer{
		apiKey:       cfg.SpeechKey,
		recognizeURL: cfg.RecognizeURL(),
		streamURL:    cfg.StreamURL(),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		retryCfg: &resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		},
		logger: observability.GetLogger().With().Str("component", "recognizer").Logger(),
	}
}

// recognizeResponse is the provider's one-shot recognition result shape
type recognizeResponse struct {
	RecognitionStatus string            `json:"RecognitionStatus"`
	DisplayText       string            `json:"DisplayText"`
	Translations      map[string]string `json:"Translations"`
}

// RecognizeOnce runs a single recognize-and-translate pass over a complete
// WAV buffer. Provider unreachability maps to ErrProviderUnavailable; a
// reachable provider that finds no speech yields a NoMatch result, not an
// error.
func (a *AzureRecognizer) RecognizeOnce(ctx context.Context, audio []byte, sourceLang string, targetLangs []string) (*Result, error) {
	reqURL := fmt.Sprintf("%s?%s", a.recognizeURL, url.Values{
		"from": {sourceLang},
		"to":   {strings.Join(targetLangs, ",")},
	}.Encode())

	var decoded recognizeResponse
	err := resilience.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(audio))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm")
		req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call recognition API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("recognition API returned status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("%w: service unavailable", err)
			}
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read recognition response: %w", err)
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("failed to decode recognition response: %w", err)
		}
		return nil
	}, a.retryCfg, resilience.IsRetryableNetworkError)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch decoded.RecognitionStatus {
	case "Success":
		return &Result{
			Kind:         TranslatedSpeech,
			Text:         decoded.DisplayText,
			Translations: decoded.Translations,
		}, nil
	case "NoMatch", "InitialSilenceTimeout":
		return &Result{Kind: NoMatch}, nil
	default:
		return &Result{Kind: Canceled, Reason: decoded.RecognitionStatus}, nil
	}
}

// streamMessage is one event on the continuous recognition socket
type streamMessage struct {
	Type         string            `json:"type"`
	Text         string            `json:"text"`
	Translations map[string]string `json:"translations"`
	Reason       string            `json:"reason"`
}

// azureStream is one continuous recognition session over a WebSocket
type azureStream struct {
	conn     *websocket.Conn
	results  chan *Result
	stopOnce sync.Once
	logger   zerolog.Logger
}

// StartContinuous opens a streaming recognition session. The returned stream
// delivers recognized utterances in provider order until Stop is called or
// the provider cancels.
func (a *AzureRecognizer) StartContinuous(ctx context.Context, sourceLang string, targetLangs []string) (Stream, error) {
	reqURL := fmt.Sprintf("%s?%s", a.streamURL, url.Values{
		"from": {sourceLang},
		"to":   {strings.Join(targetLangs, ",")},
	}.Encode())

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	conn, resp, err := a.dialer.DialContext(ctx, reqURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake status %d: %v", ErrProviderUnavailable, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	s := &azureStream{
		conn:    conn,
		results: make(chan *Result, 16),
		logger:  a.logger.With().Str("source", sourceLang).Logger(),
	}

	go s.readLoop()

	return s, nil
}

// readLoop pumps provider messages into the results channel until the socket
// closes. It owns the channel and closes it on exit.
func (s *azureStream) readLoop() {
	defer close(s.results)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Recognition stream read error")
			}
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse recognition stream message")
			continue
		}

		var result *Result
		switch msg.Type {
		case "translation.phrase":
			result = &Result{
				Kind:         TranslatedSpeech,
				Text:         msg.Text,
				Translations: msg.Translations,
			}
		case "translation.noMatch":
			result = &Result{Kind: NoMatch}
		case "canceled":
			result = &Result{Kind: Canceled, Reason: msg.Reason}
		default:
			// Partial hypotheses and service metadata are not routed
			continue
		}

		select {
		case s.results <- result:
		default:
			s.logger.Warn().Str("kind", result.Kind.String()).Msg("Results channel full, dropping recognition result")
		}

		if result.Kind == Canceled {
			return
		}
	}
}

// Results returns the channel of recognition outcomes for this session
func (s *azureStream) Results() <-chan *Result {
	return s.results
}

// Stop requests asynchronous teardown of the stream. It never blocks; the
// read loop drains and closes the results channel once the socket is down.
func (s *azureStream) Stop() {
	s.stopOnce.Do(func() {
		go func() {
			deadline := time.Now().Add(time.Second)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = s.conn.Close()
		}()
	})
}
