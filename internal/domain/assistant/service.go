package assistant

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/cache"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/llm"
)

// uncached lists capabilities whose answers belong to a single invocation.
// Safety alerts are produced per check and never stored.
var uncached = map[string]bool{
	"reconcile_medications": true,
}

// Generator is the model transport. *llm.Client satisfies it.
type Generator interface {
	GenerateJSON(ctx context.Context, capability, prompt string, schema map[string]any, out any) error
	GenerateSpeech(ctx context.Context, text string) ([]byte, error)
}

// Service runs the reasoning capabilities. Every answer is checked against
// its response contract before it is returned.
type Service struct {
	gen    Generator
	kv     cache.KVStore
	ttl    time.Duration
	logger zerolog.Logger
}

func NewService(gen Generator, logger zerolog.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// SetCache enables response caching for text capabilities. A non-positive
// ttl disables it.
func (s *Service) SetCache(kv cache.KVStore, ttl time.Duration) {
	if ttl <= 0 {
		kv = nil
	}
	s.kv = kv
	s.ttl = ttl
}

func (s *Service) SummarizeHistory(ctx context.Context, req HistorySummaryRequest) (*HistorySummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out struct {
		Summary string `json:"summary"`
	}
	check := func() error {
		if strings.TrimSpace(out.Summary) == "" {
			return invalidResponse("history_summary: summary is empty")
		}
		return nil
	}
	if err := s.generate(ctx, "history_summary", historySummaryPrompt, req, historySummarySchema, &out, check); err != nil {
		return nil, err
	}
	return &HistorySummary{Summary: out.Summary}, nil
}

func (s *Service) GenerateDischargeSummary(ctx context.Context, req DischargeSummaryRequest) (*DischargeSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data := struct {
		DischargeSummaryRequest
		LanguageName string
	}{req, req.Language.Name()}

	var out struct {
		DischargeSummary string `json:"dischargeSummary"`
	}
	check := func() error {
		if strings.TrimSpace(out.DischargeSummary) == "" {
			return invalidResponse("discharge_summary: dischargeSummary is empty")
		}
		return nil
	}
	if err := s.generate(ctx, "discharge_summary", dischargeSummaryPrompt, data, dischargeSummarySchema, &out, check); err != nil {
		return nil, err
	}
	return &DischargeSummary{DischargeSummary: out.DischargeSummary, Language: req.Language}, nil
}

func (s *Service) ExplainMedication(ctx context.Context, req ExplainRequest) (*Explanation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out struct {
		Explanation string `json:"explanation"`
	}
	check := func() error {
		if strings.TrimSpace(out.Explanation) == "" {
			return invalidResponse("explain_medication: explanation is empty")
		}
		return nil
	}
	if err := s.generate(ctx, "explain_medication", explainMedicationPrompt, req, explanationSchema, &out, check); err != nil {
		return nil, err
	}
	return &Explanation{MedicationName: req.MedicationName, Explanation: out.Explanation}, nil
}

func (s *Service) TriageSymptoms(ctx context.Context, req TriageRequest) (*TriageResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out struct {
		TriageLevel    TriageLevel `json:"triageLevel"`
		Recommendation string      `json:"recommendation"`
		Reasoning      string      `json:"reasoning"`
	}
	check := func() error {
		if !out.TriageLevel.Valid() {
			return invalidResponse("triage: unknown triage level %q", out.TriageLevel)
		}
		if strings.TrimSpace(out.Recommendation) == "" || strings.TrimSpace(out.Reasoning) == "" {
			return invalidResponse("triage: recommendation and reasoning are required")
		}
		return nil
	}
	if err := s.generate(ctx, "triage", triagePrompt, req, triageSchema, &out, check); err != nil {
		return nil, err
	}
	return &TriageResult{Level: out.TriageLevel, Recommendation: out.Recommendation, Reasoning: out.Reasoning}, nil
}

// AssessMedications implements safety.Assessor. With both medication lists
// empty there is nothing to assess and no model call is made.
func (s *Service) AssessMedications(ctx context.Context, req safety.AssessRequest) ([]safety.Alert, error) {
	if len(req.PreAdmission) == 0 && len(req.PostDischarge) == 0 {
		return []safety.Alert{}, nil
	}
	if req.Patient.Age < 0 {
		return nil, invalidRequest("patient age must not be negative")
	}

	var out struct {
		Alerts *[]safety.Alert `json:"alerts"`
	}
	check := func() error {
		if out.Alerts == nil {
			return invalidResponse("reconcile_medications: alerts is missing")
		}
		for _, a := range *out.Alerts {
			if err := a.ValidateDynamic(); err != nil {
				return fmt.Errorf("%w: reconcile_medications: %v", ErrInvalidResponse, err)
			}
		}
		return nil
	}
	if err := s.generate(ctx, "reconcile_medications", reconcilePrompt, req, reconcileSchema, &out, check); err != nil {
		return nil, err
	}
	alerts := *out.Alerts
	if alerts == nil {
		alerts = []safety.Alert{}
	}
	return alerts, nil
}

func (s *Service) GenerateAudioGuidance(ctx context.Context, req AudioRequest) (*AudioGuidance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pcm, err := s.gen.GenerateSpeech(ctx, req.Text)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return nil, fmt.Errorf("%w: audio_guidance: no audio was generated", ErrInvalidResponse)
		}
		return nil, fmt.Errorf("audio_guidance: %w", err)
	}
	if len(pcm) == 0 {
		return nil, invalidResponse("audio_guidance: no audio was generated")
	}
	uri, err := llm.WAVDataURI(pcm)
	if err != nil {
		return nil, fmt.Errorf("%w: audio_guidance: %v", ErrInvalidResponse, err)
	}
	return &AudioGuidance{AudioDataURI: uri}, nil
}

// generate renders the prompt and decodes the answer into out, from the
// cache when possible. out must be a pointer to a struct. check validates
// out; only answers that pass are cached.
func (s *Service) generate(ctx context.Context, capability string, tmpl *template.Template, data any, schema map[string]any, out any, check func() error) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s prompt: %w", capability, err)
	}
	prompt := buf.String()

	kv := s.kv
	if uncached[capability] {
		kv = nil
	}

	key := cacheKey(capability, prompt)
	if kv != nil {
		cached, err := kv.Get(ctx, key)
		switch {
		case err == nil:
			if jerr := json.Unmarshal([]byte(cached), out); jerr == nil && check() == nil {
				return nil
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			s.logger.Warn().Err(err).Str("capability", capability).Msg("response cache read failed")
		}
	}

	// a rejected cache entry may have filled part of out
	reflect.ValueOf(out).Elem().SetZero()
	if err := s.gen.GenerateJSON(ctx, capability, prompt, schema, out); err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, capability, err)
		}
		var serr *json.SyntaxError
		var terr *json.UnmarshalTypeError
		if errors.As(err, &serr) || errors.As(err, &terr) {
			return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, capability, err)
		}
		return fmt.Errorf("%s: %w", capability, err)
	}
	if err := check(); err != nil {
		return err
	}

	if kv != nil {
		b, err := json.Marshal(out)
		if err == nil {
			err = kv.Set(ctx, key, string(b), s.ttl)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("capability", capability).Msg("response cache write failed")
		}
	}
	return nil
}

func cacheKey(capability, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "assistant:" + capability + ":" + hex.EncodeToString(sum[:])
}
