package assistant

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest marks a request rejected before any model call.
	ErrInvalidRequest = errors.New("invalid assistant request")
	// ErrInvalidResponse marks a model answer that does not satisfy the
	// response contract. Such answers are never coerced.
	ErrInvalidResponse = errors.New("invalid assistant response")
)

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func invalidResponse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}

// Language is a supported discharge summary language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	LanguageBengali Language = "bn"
	LanguageTamil   Language = "ta"
	LanguageMarathi Language = "mr"
)

var languageNames = map[Language]string{
	LanguageEnglish: "English",
	LanguageHindi:   "Hindi",
	LanguageBengali: "Bengali",
	LanguageTamil:   "Tamil",
	LanguageMarathi: "Marathi",
}

// Languages lists the supported codes in display order.
var Languages = []Language{LanguageEnglish, LanguageHindi, LanguageBengali, LanguageTamil, LanguageMarathi}

// LanguageCodes joins the supported codes for error messages.
func LanguageCodes() string {
	codes := make([]string, len(Languages))
	for i, l := range Languages {
		codes[i] = string(l)
	}
	return strings.Join(codes, ", ")
}

func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

// Name returns the English name of the language, or the code if unknown.
func (l Language) Name() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return string(l)
}

type HistorySummaryRequest struct {
	ABHARecord string `json:"abha_record"`
}

func (r HistorySummaryRequest) Validate() error {
	if strings.TrimSpace(r.ABHARecord) == "" {
		return invalidRequest("abha_record is required")
	}
	return nil
}

type HistorySummary struct {
	Summary string `json:"summary"`
}

type DischargeSummaryRequest struct {
	PatientDetails string   `json:"patient_details"`
	Diagnosis      string   `json:"diagnosis"`
	Medications    string   `json:"medications"`
	FollowUp       string   `json:"follow_up"`
	Language       Language `json:"language_preference"`
}

func (r DischargeSummaryRequest) Validate() error {
	if strings.TrimSpace(r.PatientDetails) == "" {
		return invalidRequest("patient_details is required")
	}
	if !r.Language.Valid() {
		return invalidRequest("language_preference must be one of %s, got %q", LanguageCodes(), r.Language)
	}
	return nil
}

type DischargeSummary struct {
	DischargeSummary string   `json:"discharge_summary"`
	Language         Language `json:"language"`
}

type ExplainRequest struct {
	MedicationName string `json:"medication_name"`
	Language       string `json:"language"`
}

func (r ExplainRequest) Validate() error {
	if strings.TrimSpace(r.MedicationName) == "" {
		return invalidRequest("medication_name is required")
	}
	if strings.TrimSpace(r.Language) == "" {
		return invalidRequest("language is required")
	}
	return nil
}

type Explanation struct {
	MedicationName string `json:"medication_name"`
	Explanation    string `json:"explanation"`
}

type TriagePatient struct {
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	Conditions string `json:"conditions"`
}

type Symptom struct {
	Date     string `json:"date"`
	Symptom  string `json:"symptom"`
	Severity string `json:"severity"`
	Notes    string `json:"notes"`
}

type TriageRequest struct {
	Patient  TriagePatient `json:"patient_context"`
	Symptoms []Symptom     `json:"symptoms"`
}

func (r TriageRequest) Validate() error {
	if len(r.Symptoms) == 0 {
		return invalidRequest("at least one symptom is required")
	}
	for i, s := range r.Symptoms {
		if strings.TrimSpace(s.Symptom) == "" {
			return invalidRequest("symptoms[%d]: symptom is required", i)
		}
	}
	return nil
}

type TriageLevel string

const (
	TriageRoutine   TriageLevel = "Routine"
	TriageUrgent    TriageLevel = "Urgent"
	TriageEmergency TriageLevel = "Emergency"
)

var TriageLevels = []TriageLevel{TriageRoutine, TriageUrgent, TriageEmergency}

func (l TriageLevel) Valid() bool {
	switch l {
	case TriageRoutine, TriageUrgent, TriageEmergency:
		return true
	}
	return false
}

type TriageResult struct {
	Level          TriageLevel `json:"triage_level"`
	Recommendation string      `json:"recommendation"`
	Reasoning      string      `json:"reasoning"`
}

type AudioRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (r AudioRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return invalidRequest("text is required")
	}
	return nil
}

type AudioGuidance struct {
	AudioDataURI string `json:"audio_data_uri"`
}
