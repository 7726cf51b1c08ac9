package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/assistant"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/medication"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"
)

var (
	ErrNotFound      = errors.New("patient not found")
	ErrEventNotFound = errors.New("adherence event not found")
)

const dateLayout = "2006-01-02"

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

type Status string

const (
	StatusAdmitted              Status = "Admitted"
	StatusDischarged            Status = "Discharged"
	StatusReconciliationPending Status = "Reconciliation Pending"
)

func (s Status) Valid() bool {
	return s == StatusAdmitted || s == StatusDischarged || s == StatusReconciliationPending
}

type ComprehensionStatus string

const (
	ComprehensionPending      ComprehensionStatus = "Pending"
	ComprehensionAcknowledged ComprehensionStatus = "Acknowledged"
	ComprehensionDeclined     ComprehensionStatus = "Declined"
)

func (s ComprehensionStatus) Valid() bool {
	return s == ComprehensionPending || s == ComprehensionAcknowledged || s == ComprehensionDeclined
}

type SymptomSeverity string

const (
	SeverityMild     SymptomSeverity = "Mild"
	SeverityModerate SymptomSeverity = "Moderate"
	SeveritySevere   SymptomSeverity = "Severe"
)

func (s SymptomSeverity) Valid() bool {
	return s == SeverityMild || s == SeverityModerate || s == SeveritySevere
}

type Vital struct {
	Date      string `json:"date"`
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	HeartRate int    `json:"heart_rate"`
}

type Caregiver struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Relation            string              `json:"relation"`
	Phone               string              `json:"phone"`
	AvatarURL           string              `json:"avatar_url"`
	ComprehensionStatus ComprehensionStatus `json:"comprehension_status"`
}

type SymptomLog struct {
	ID       string          `json:"id"`
	Date     string          `json:"date"`
	Symptom  string          `json:"symptom"`
	Severity SymptomSeverity `json:"severity"`
	Notes    string          `json:"notes"`
}

type Medications struct {
	PreAdmission  []medication.Medication `json:"pre_admission"`
	PostDischarge []medication.Medication `json:"post_discharge"`
}

// Patient is the aggregate root. Everything it holds is owned by
// composition and loaded and stored with it.
type Patient struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ABHAID        string            `json:"abha_id"`
	Age           int               `json:"age"`
	Gender        Gender            `json:"gender"`
	AdmissionDate string            `json:"admission_date"`
	DischargeDate *string           `json:"discharge_date,omitempty"`
	Status        Status            `json:"status"`
	AvatarURL     string            `json:"avatar_url"`
	Vitals        []Vital           `json:"vitals"`
	Medications   Medications       `json:"medications"`
	Alerts        []safety.Alert    `json:"alerts"`
	Caregivers    []Caregiver       `json:"caregivers"`
	ABHARecord    string            `json:"abha_record"`
	Diagnosis     string            `json:"diagnosis"`
	FollowUp      string            `json:"follow_up"`
	Adherence     []adherence.Event `json:"adherence"`
	Symptoms      []SymptomLog      `json:"symptoms"`
	EGFR          *float64          `json:"egfr,omitempty"`
	LFT           *string           `json:"lft,omitempty"`
}

// Validate checks every enum and invariant of the aggregate.
func (p *Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("patient %s: name is required", p.ID)
	}
	if p.Age < 0 {
		return fmt.Errorf("patient %s: age must not be negative", p.ID)
	}
	if !p.Gender.Valid() {
		return fmt.Errorf("patient %s: invalid gender: %s", p.ID, p.Gender)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("patient %s: invalid status: %s", p.ID, p.Status)
	}
	if _, err := time.Parse(dateLayout, p.AdmissionDate); err != nil {
		return fmt.Errorf("patient %s: invalid admission_date: %w", p.ID, err)
	}
	if p.DischargeDate != nil {
		if _, err := time.Parse(dateLayout, *p.DischargeDate); err != nil {
			return fmt.Errorf("patient %s: invalid discharge_date: %w", p.ID, err)
		}
	}
	for _, m := range p.Medications.PreAdmission {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("patient %s: pre_admission: %w", p.ID, err)
		}
	}
	for _, m := range p.Medications.PostDischarge {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("patient %s: post_discharge: %w", p.ID, err)
		}
	}
	for _, a := range p.Alerts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("patient %s: %w", p.ID, err)
		}
	}
	for _, c := range p.Caregivers {
		if !c.ComprehensionStatus.Valid() {
			return fmt.Errorf("patient %s: caregiver %s: invalid comprehension_status: %s", p.ID, c.ID, c.ComprehensionStatus)
		}
	}
	seen := make(map[string]bool, len(p.Adherence))
	for _, e := range p.Adherence {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("patient %s: %w", p.ID, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("patient %s: duplicate adherence event %s", p.ID, e.ID)
		}
		seen[e.ID] = true
	}
	for _, s := range p.Symptoms {
		if !s.Severity.Valid() {
			return fmt.Errorf("patient %s: symptom %s: invalid severity: %s", p.ID, s.ID, s.Severity)
		}
	}
	return nil
}

// Normalize replaces nil lists with empty ones, strips any authored
// reconciliation status, and defaults caregiver comprehension to Pending.
func (p *Patient) Normalize() {
	if p.Vitals == nil {
		p.Vitals = []Vital{}
	}
	p.Medications.PreAdmission = stripStatus(p.Medications.PreAdmission)
	p.Medications.PostDischarge = stripStatus(p.Medications.PostDischarge)
	if p.Alerts == nil {
		p.Alerts = []safety.Alert{}
	}
	if p.Caregivers == nil {
		p.Caregivers = []Caregiver{}
	}
	for i := range p.Caregivers {
		if p.Caregivers[i].ComprehensionStatus == "" {
			p.Caregivers[i].ComprehensionStatus = ComprehensionPending
		}
	}
	if p.Adherence == nil {
		p.Adherence = []adherence.Event{}
	}
	if p.Symptoms == nil {
		p.Symptoms = []SymptomLog{}
	}
}

func stripStatus(meds []medication.Medication) []medication.Medication {
	out := make([]medication.Medication, len(meds))
	for i, m := range meds {
		m.Status = ""
		out[i] = m
	}
	return out
}

// Clone returns a copy whose slices can be modified without affecting p.
func (p *Patient) Clone() *Patient {
	cp := *p
	cp.Vitals = append([]Vital(nil), p.Vitals...)
	cp.Medications.PreAdmission = append([]medication.Medication(nil), p.Medications.PreAdmission...)
	cp.Medications.PostDischarge = append([]medication.Medication(nil), p.Medications.PostDischarge...)
	cp.Alerts = append([]safety.Alert(nil), p.Alerts...)
	cp.Caregivers = append([]Caregiver(nil), p.Caregivers...)
	cp.Adherence = append([]adherence.Event(nil), p.Adherence...)
	cp.Symptoms = append([]SymptomLog(nil), p.Symptoms...)
	cp.Normalize()
	return &cp
}

// SafetyContext is the clinical profile sent with a medication assessment.
func (p *Patient) SafetyContext() safety.PatientContext {
	pc := safety.PatientContext{
		Age:        p.Age,
		Gender:     string(p.Gender),
		Conditions: p.Diagnosis,
		EGFR:       p.EGFR,
	}
	if p.LFT != nil {
		pc.LFT = *p.LFT
	}
	return pc
}

// AssessRequest sends pre-admission drugs by name and post-discharge drugs
// as "name dosage".
func (p *Patient) AssessRequest() safety.AssessRequest {
	return safety.AssessRequest{
		Patient:       p.SafetyContext(),
		PreAdmission:  medication.Names(p.Medications.PreAdmission),
		PostDischarge: medication.Labels(p.Medications.PostDischarge),
	}
}

// DischargeDefaults pre-fills the editable discharge summary form.
func (p *Patient) DischargeDefaults(lang assistant.Language) assistant.DischargeSummaryRequest {
	post := make([]string, 0, len(p.Medications.PostDischarge))
	for _, m := range p.Medications.PostDischarge {
		post = append(post, fmt.Sprintf("%s (%s)", m.Name, m.Dosage))
	}
	meds := fmt.Sprintf("Pre-admission: %s. Post-discharge: %s.",
		strings.Join(medication.Names(p.Medications.PreAdmission), ", "),
		strings.Join(post, ", "))

	return assistant.DischargeSummaryRequest{
		PatientDetails: fmt.Sprintf("Name: %s, ABHA ID: %s, Admission Date: %s", p.Name, p.ABHAID, p.AdmissionDate),
		Diagnosis:      p.Diagnosis,
		Medications:    meds,
		FollowUp:       p.FollowUp,
		Language:       lang,
	}
}

func (p *Patient) TriageRequest() assistant.TriageRequest {
	symptoms := make([]assistant.Symptom, 0, len(p.Symptoms))
	for _, s := range p.Symptoms {
		symptoms = append(symptoms, assistant.Symptom{
			Date:     s.Date,
			Symptom:  s.Symptom,
			Severity: string(s.Severity),
			Notes:    s.Notes,
		})
	}
	return assistant.TriageRequest{
		Patient: assistant.TriagePatient{
			Age:        p.Age,
			Gender:     string(p.Gender),
			Conditions: p.Diagnosis,
		},
		Symptoms: symptoms,
	}
}

// Summary is the list-view projection of a patient.
type Summary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ABHAID        string  `json:"abha_id"`
	Age           int     `json:"age"`
	Gender        Gender  `json:"gender"`
	AdmissionDate string  `json:"admission_date"`
	DischargeDate *string `json:"discharge_date,omitempty"`
	Status        Status  `json:"status"`
	AvatarURL     string  `json:"avatar_url"`
}

func (p *Patient) Summary() Summary {
	return Summary{
		ID:            p.ID,
		Name:          p.Name,
		ABHAID:        p.ABHAID,
		Age:           p.Age,
		Gender:        p.Gender,
		AdmissionDate: p.AdmissionDate,
		DischargeDate: p.DischargeDate,
		Status:        p.Status,
		AvatarURL:     p.AvatarURL,
	}
}
