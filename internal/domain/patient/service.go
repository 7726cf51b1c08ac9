package patient

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/assistant"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/medication"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"
)

// Assistant is the part of the reasoning service that works on a stored
// patient. *assistant.Service satisfies it.
type Assistant interface {
	SummarizeHistory(ctx context.Context, req assistant.HistorySummaryRequest) (*assistant.HistorySummary, error)
	GenerateDischargeSummary(ctx context.Context, req assistant.DischargeSummaryRequest) (*assistant.DischargeSummary, error)
	TriageSymptoms(ctx context.Context, req assistant.TriageRequest) (*assistant.TriageResult, error)
}

type Service struct {
	patients  PatientRepository
	alerts    *safety.Aggregator
	assistant Assistant
	loc       *time.Location
	now       func() time.Time
}

// NewService wires the patient workflows. loc is the clinic time zone used
// for calendar-day grouping; nil means UTC.
func NewService(patients PatientRepository, alerts *safety.Aggregator, asst Assistant, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		patients:  patients,
		alerts:    alerts,
		assistant: asst,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, filter ListFilter, limit, offset int) ([]Summary, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("invalid status filter: %s", filter.Status)
	}
	patients, total, err := s.patients.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Summary, 0, len(patients))
	for _, p := range patients {
		out = append(out, p.Summary())
	}
	return out, total, nil
}

func (s *Service) Reconciliation(ctx context.Context, id string) (*medication.Reconciliation, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := medication.Reconcile(p.Medications.PreAdmission, p.Medications.PostDischarge)
	return &rec, nil
}

// StaticAlerts returns the stored alerts that are displayed, in stored order
// unless bySeverity is set.
func (s *Service) StaticAlerts(ctx context.Context, id string, bySeverity bool) ([]safety.Alert, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	alerts := safety.Static(p.Alerts)
	if bySeverity {
		alerts = safety.SortBySeverity(alerts)
	}
	return alerts, nil
}

// AssessAlerts runs a reasoning check over the patient's medication change.
// When the check fails the static-only assessment is returned together with
// the error.
func (s *Service) AssessAlerts(ctx context.Context, id string) (*safety.Assessment, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.alerts.Assess(ctx, safety.Input{
		PatientID: p.ID,
		Request:   p.AssessRequest(),
		Stored:    p.Alerts,
	})
}

func (s *Service) Adherence(ctx context.Context, id string) (*adherence.Summary, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := adherence.Summarize(p.Adherence, s.loc)
	return &sum, nil
}

// RecordAdherence moves a pending dose to Taken or Missed. A Taken dose
// without an explicit time is stamped now.
func (s *Service) RecordAdherence(ctx context.Context, id, eventID string, status adherence.Status, actual *time.Time) (*adherence.Event, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s", adherence.ErrInvalidTransition, status)
	}
	if actual != nil && status != adherence.StatusTaken {
		return nil, fmt.Errorf("%w: actual_time is only allowed when taken", adherence.ErrInvalidTransition)
	}
	at := s.now()
	if actual != nil {
		at = *actual
	}
	return s.patients.RecordAdherence(ctx, id, eventID, RecordNow(status, at))
}

func (s *Service) HistorySummary(ctx context.Context, id string) (*assistant.HistorySummary, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assistant.SummarizeHistory(ctx, assistant.HistorySummaryRequest{ABHARecord: p.ABHARecord})
}

// DischargeDefaults returns the pre-filled discharge summary form.
func (s *Service) DischargeDefaults(ctx context.Context, id string, lang assistant.Language) (*assistant.DischargeSummaryRequest, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = assistant.LanguageEnglish
	}
	req := p.DischargeDefaults(lang)
	return &req, nil
}

// DischargeSummary generates a summary from the pre-filled form, with any
// non-empty field of edits taking precedence.
func (s *Service) DischargeSummary(ctx context.Context, id string, edits assistant.DischargeSummaryRequest) (*assistant.DischargeSummary, error) {
	req, err := s.DischargeDefaults(ctx, id, edits.Language)
	if err != nil {
		return nil, err
	}
	if edits.PatientDetails != "" {
		req.PatientDetails = edits.PatientDetails
	}
	if edits.Diagnosis != "" {
		req.Diagnosis = edits.Diagnosis
	}
	if edits.Medications != "" {
		req.Medications = edits.Medications
	}
	if edits.FollowUp != "" {
		req.FollowUp = edits.FollowUp
	}
	return s.assistant.GenerateDischargeSummary(ctx, *req)
}

func (s *Service) Triage(ctx context.Context, id string) (*assistant.TriageResult, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assistant.TriageSymptoms(ctx, p.TriageRequest())
}

// RiskHeatmap scores the post-discharge medications by time slot. The same
// seed always yields the same map.
func (s *Service) RiskHeatmap(ctx context.Context, id string, seed int64) ([]medication.RiskRow, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return medication.RiskHeatmap(p.Medications.PostDischarge, rand.New(rand.NewSource(seed))), nil
}

// QueueItem is one patient awaiting reconciliation.
type QueueItem struct {
	Patient     Summary            `json:"patient"`
	Summary     medication.Summary `json:"summary"`
	AlertCount  int                `json:"alert_count"`
	Medications int                `json:"post_discharge_count"`
}

// ReconciliationQueue lists every patient whose status is Reconciliation
// Pending with the counts a pharmacist triages by.
func (s *Service) ReconciliationQueue(ctx context.Context) ([]QueueItem, error) {
	patients, _, err := s.patients.List(ctx, ListFilter{Status: StatusReconciliationPending}, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]QueueItem, 0, len(patients))
	for _, p := range patients {
		rec := medication.Reconcile(p.Medications.PreAdmission, p.Medications.PostDischarge)
		out = append(out, QueueItem{
			Patient:     p.Summary(),
			Summary:     rec.Summary,
			AlertCount:  len(safety.Static(p.Alerts)),
			Medications: len(p.Medications.PostDischarge),
		})
	}
	return out, nil
}
