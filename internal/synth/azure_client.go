package synth

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicebridge/speech-relay/internal/config"
	"github.com/voicebridge/speech-relay/internal/resilience"
)

// outputFormat is the audio container requested from the provider. Keeping
// WAV here means synthesized files can be served to browsers as-is.
const outputFormat = "riff-16khz-16bit-mono-pcm"

// AzureClient implements Synthesizer against the Azure neural TTS REST API
type AzureClient struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	retryCfg   *resilience.RetryConfig
}

// NewAzureClient creates a new Azure TTS client
func NewAzureClient(cfg *config.Config) *AzureClient {
	return &AzureClient{
		apiKey: cfg.SpeechKey,
		apiURL: cfg.SynthesisURL(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryCfg: &resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		},
	}
}

// Synthesize renders text into audio bytes using the provider's REST API.
// Transient provider failures are retried; a final failure is returned to the
// caller so the payload can degrade to text-only.
func (c *AzureClient) Synthesize(ctx context.Context, text, lang, voice string) ([]byte, error) {
	if voice == "" {
		voice = VoiceFor(lang)
	}

	body := ssml(text, lang, voice)

	var audio []byte
	err := resilience.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/ssml+xml")
		req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
		req.Header.Set("User-Agent", "speech-relay")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call synthesis API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("synthesis API returned status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("%w: service unavailable", err)
			}
			return err
		}

		audio, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read synthesis response: %w", err)
		}
		if len(audio) == 0 {
			return fmt.Errorf("synthesis API returned empty audio")
		}
		return nil
	}, c.retryCfg, resilience.IsRetryableNetworkError)

	if err != nil {
		return nil, err
	}
	return audio, nil
}

// ssml builds the SSML request body for a single voice utterance
func ssml(text, lang, voice string) []byte {
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(text))

	return []byte(fmt.Sprintf(
		"<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>",
		lang, lang, voice, escaped.String(),
	))
}
