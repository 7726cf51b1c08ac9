package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Config configures the hosted model client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	SpeechModel    string
	Voice          string
	Timeout        time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://generativelanguage.googleapis.com",
		Model:          "gemini-2.5-flash",
		SpeechModel:    "gemini-2.5-flash-preview-tts",
		Voice:          "Algenib",
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// Client calls the generateContent endpoint of a Gemini-compatible API.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = def.SpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetHeader("x-goog-api-key", cfg.APIKey)
	}

	return &Client{http: c, cfg: cfg, logger: logger}
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type generationConfig struct {
	ResponseMimeType   string         `json:"responseMimeType,omitempty"`
	ResponseSchema     map[string]any `json:"responseSchema,omitempty"`
	ResponseModalities []string       `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig  `json:"speechConfig,omitempty"`
}

type generateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateJSON sends prompt with a response schema and decodes the JSON
// answer into out. capability labels logs and metrics.
func (c *Client) GenerateJSON(ctx context.Context, capability, prompt string, schema map[string]any, out any) error {
	req := generateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	resp, err := c.generate(ctx, capability, c.cfg.Model, req)
	if err != nil {
		return err
	}

	text := firstText(resp)
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode %s response: %w", capability, err)
	}
	return nil
}

// GenerateSpeech converts text to raw 16-bit PCM using the speech model.
func (c *Client) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	req := generateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.cfg.Voice}},
			},
		},
	}
	resp, err := c.generate(ctx, "audio_guidance", c.cfg.SpeechModel, req)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode audio payload: %w", err)
			}
			return pcm, nil
		}
	}
	return nil, ErrEmptyResponse
}

func (c *Client) generate(ctx context.Context, capability, model string, req generateRequest) (*generateResponse, error) {
	start := time.Now()
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", model)

	var out generateResponse
	op := func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&req).
			Post(path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return newNetworkError(capability, err)
		}
		if resp.StatusCode() != http.StatusOK {
			herr := newHTTPError(resp.StatusCode(), resp.String(), capability)
			if IsIrrecoverable(herr) {
				return backoff.Permanent(herr)
			}
			return herr
		}
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s envelope: %w", capability, err))
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialBackoff
	exp.Multiplier = 2
	exp.MaxInterval = c.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.cfg.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(capability).Inc()
		c.logger.Warn().Err(err).Str("capability", capability).Dur("wait", wait).Msg("retrying model call")
	}

	err := backoff.RetryNotify(op, policy, notify)
	requestDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(capability, "error").Inc()
		if !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Str("capability", capability).Str("model", model).Msg("model call failed")
		}
		return nil, err
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		requestsTotal.WithLabelValues(capability, "blocked").Inc()
		return nil, fmt.Errorf("%w: blocked: %s", ErrEmptyResponse, out.PromptFeedback.BlockReason)
	}
	requestsTotal.WithLabelValues(capability, "ok").Inc()
	return &out, nil
}

func firstText(resp *generateResponse) string {
	for _, cand := range resp.Candidates {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}
