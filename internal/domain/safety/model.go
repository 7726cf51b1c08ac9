package safety

import (
	"fmt"
	"sort"
)

type AlertType string

// Legacy kinds found on stored records.
const (
	TypeDrugDrug    AlertType = "Drug-Drug"
	TypeDrugDisease AlertType = "Drug-Disease"
	TypeAllergy     AlertType = "Allergy"
	TypeDose        AlertType = "Dose"
)

// Kinds produced by the reasoning service.
const (
	TypeDrugInteraction        AlertType = "Drug-Interaction"
	TypeDosageWarning          AlertType = "Dosage-Warning"
	TypeFormularyAlert         AlertType = "Formulary-Alert"
	TypeAnomalyDetection       AlertType = "Anomaly-Detection"
	TypeAntibioticStewardship  AlertType = "Antibiotic-Stewardship"
	TypeDosageAdjustmentNeeded AlertType = "Dosage-Adjustment-Needed"
	TypePolypharmacyRisk       AlertType = "Polypharmacy-Risk"
	TypeDrugFoodInteraction    AlertType = "Drug-Food-Interaction"
	TypeCognitiveScreening     AlertType = "Cognitive-Screening-Recommended"
)

// DynamicTypes lists, in schema order, the kinds the reasoning service may
// return.
var DynamicTypes = []AlertType{
	TypeDrugInteraction, TypeDosageWarning, TypeFormularyAlert, TypeAnomalyDetection,
	TypeAntibioticStewardship, TypeDosageAdjustmentNeeded, TypePolypharmacyRisk,
	TypeDrugFoodInteraction, TypeCognitiveScreening,
}

var legacyTypes = map[AlertType]bool{
	TypeDrugDrug: true, TypeDrugDisease: true, TypeAllergy: true, TypeDose: true,
}

var dynamicTypes = func() map[AlertType]bool {
	m := make(map[AlertType]bool, len(DynamicTypes))
	for _, t := range DynamicTypes {
		m[t] = true
	}
	return m
}()

func (t AlertType) Valid() bool {
	return legacyTypes[t] || dynamicTypes[t]
}

// Dynamic reports whether t may be produced by the reasoning service.
func (t AlertType) Dynamic() bool {
	return dynamicTypes[t]
}

// Interaction reports whether alerts of this kind may carry a mechanism.
func (t AlertType) Interaction() bool {
	return t == TypeDrugInteraction || t == TypeDrugDrug
}

type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// Severities lists the severities highest first.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}

// Rank orders severities; higher is more severe. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Alert is a safety notice about a patient's medications.
type Alert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Mechanism   string    `json:"mechanism,omitempty"`
}

// Validate checks a stored alert.
func (a Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	if !a.Type.Valid() {
		return fmt.Errorf("alert %s: invalid type: %s", a.ID, a.Type)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("alert %s: invalid severity: %s", a.ID, a.Severity)
	}
	if a.Description == "" {
		return fmt.Errorf("alert %s: description is required", a.ID)
	}
	if a.Mechanism != "" && !a.Type.Interaction() {
		return fmt.Errorf("alert %s: mechanism is only allowed on interaction alerts", a.ID)
	}
	return nil
}

// ValidateDynamic checks an alert returned by the reasoning service, which
// is held to a stricter contract than stored alerts.
func (a Alert) ValidateDynamic() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.Type.Dynamic() {
		return fmt.Errorf("alert %s: type %s is not a reasoning alert type", a.ID, a.Type)
	}
	if a.Reasoning == "" {
		return fmt.Errorf("alert %s: reasoning is required", a.ID)
	}
	if a.Type == TypeDrugInteraction && a.Mechanism == "" {
		return fmt.Errorf("alert %s: mechanism is required for %s", a.ID, a.Type)
	}
	return nil
}

// Static returns the stored alerts that are shown, dropping the legacy Dose
// kind. The input is not modified.
func Static(alerts []Alert) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Type == TypeDose {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Merge concatenates the filtered static alerts with the dynamic ones,
// static first, each in its own order. Nothing is deduplicated.
func Merge(stored, dynamic []Alert) []Alert {
	out := Static(stored)
	return append(out, dynamic...)
}

// SortBySeverity returns a copy sorted highest severity first. Alerts of
// equal severity keep their relative order.
func SortBySeverity(alerts []Alert) []Alert {
	out := make([]Alert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}
