package patient

import (
	"time"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/medication"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"
)

// SeedPatients returns the demo data set. Dose times carry no zone in the
// source data and are read in loc; nil means UTC.
func SeedPatients(loc *time.Location) []*Patient {
	if loc == nil {
		loc = time.UTC
	}
	at := func(s string) time.Time {
		t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc)
		if err != nil {
			panic(err)
		}
		return t
	}
	taken := func(id, medID, name, scheduled, actual string) adherence.Event {
		a := at(actual)
		return adherence.Event{ID: id, MedicationID: medID, MedicationName: name, ScheduledTime: at(scheduled), Status: adherence.StatusTaken, ActualTime: &a}
	}
	open := func(id, medID, name, scheduled string, status adherence.Status) adherence.Event {
		return adherence.Event{ID: id, MedicationID: medID, MedicationName: name, ScheduledTime: at(scheduled), Status: status}
	}

	priya := &Patient{
		ID:            "1",
		Name:          "Priya Sharma",
		ABHAID:        "12-3456-7890-1234",
		Age:           68,
		Gender:        GenderFemale,
		AdmissionDate: "2024-05-10",
		Status:        StatusReconciliationPending,
		AvatarURL:     "https://picsum.photos/seed/patient1/100/100",
		Vitals: []Vital{
			{Date: "2024-05-10", Systolic: 140, Diastolic: 90, HeartRate: 85},
			{Date: "2024-05-11", Systolic: 135, Diastolic: 88, HeartRate: 82},
			{Date: "2024-05-12", Systolic: 130, Diastolic: 85, HeartRate: 78},
			{Date: "2024-05-13", Systolic: 128, Diastolic: 82, HeartRate: 75},
		},
		Medications: Medications{
			PreAdmission: []medication.Medication{
				{ID: "med1", Name: "Metformin", Dosage: "500 mg", Frequency: "Twice a day", Route: "Oral"},
				{ID: "med2", Name: "Amlodipine", Dosage: "5 mg", Frequency: "Once a day", Route: "Oral"},
			},
			PostDischarge: []medication.Medication{
				{ID: "med1", Name: "Metformin", Dosage: "500 mg", Frequency: "Twice a day", Route: "Oral"},
				{ID: "med3", Name: "Atorvastatin", Dosage: "20 mg", Frequency: "Once a day", Route: "Oral"},
				{ID: "med4", Name: "Aspirin", Dosage: "75 mg", Frequency: "Once a day", Route: "Oral"},
				{ID: "med2", Name: "Amlodipine", Dosage: "10 mg", Frequency: "Once a day", Route: "Oral"},
			},
		},
		Alerts: []safety.Alert{
			{ID: "alert1", Type: safety.TypeDrugDrug, Severity: safety.SeverityWarning, Description: "Aspirin and Warfarin have a potential interaction. Monitor INR levels."},
			{ID: "alert2", Type: safety.TypeDose, Severity: safety.SeverityInfo, Description: "Amlodipine dose increased from 5mg to 10mg."},
		},
		Caregivers: []Caregiver{
			{ID: "care1", Name: "Rohan Sharma", Relation: "Son", Phone: "+91-9876543210", AvatarURL: "https://picsum.photos/seed/caregiver1/100/100"},
		},
		ABHARecord: `Patient Name: Priya Sharma
ABHA ID: 12-3456-7890-1234
DOB: 1956-03-15
Allergies: Penicillin
Past Medical History: Type 2 Diabetes (diagnosed 2010), Hypertension (diagnosed 2015).
Previous Surgeries: None.
Family History: Father had coronary artery disease.`,
		Diagnosis: "Unstable Angina (ICD-10: I20.0)",
		FollowUp:  "Follow up with Dr. Mehta in Cardiology OPD after 1 week. Contact hospital at 011-23456789 for appointments.",
		Adherence: []adherence.Event{
			taken("adh1", "med1", "Metformin", "2024-05-18T08:00:00", "2024-05-18T08:05:00"),
			taken("adh2", "med3", "Atorvastatin", "2024-05-18T08:00:00", "2024-05-18T08:05:00"),
			taken("adh3", "med4", "Aspirin", "2024-05-18T08:00:00", "2024-05-18T08:05:00"),
			taken("adh4", "med2", "Amlodipine", "2024-05-18T08:00:00", "2024-05-18T08:05:00"),
			open("adh5", "med1", "Metformin", "2024-05-18T20:00:00", adherence.StatusMissed),
			taken("adh6", "med1", "Metformin", "2024-05-19T08:00:00", "2024-05-19T08:15:00"),
			taken("adh7", "med3", "Atorvastatin", "2024-05-19T08:00:00", "2024-05-19T08:15:00"),
			taken("adh8", "med4", "Aspirin", "2024-05-19T08:00:00", "2024-05-19T08:15:00"),
			taken("adh9", "med2", "Amlodipine", "2024-05-19T08:00:00", "2024-05-19T08:15:00"),
			open("adh10", "med1", "Metformin", "2024-05-19T20:00:00", adherence.StatusPending),
			open("adh11", "med1", "Metformin", "2024-05-20T08:00:00", adherence.StatusPending),
			open("adh12", "med3", "Atorvastatin", "2024-05-20T08:00:00", adherence.StatusPending),
		},
		Symptoms: []SymptomLog{
			{ID: "sym1", Date: "2024-05-19", Symptom: "Mild dizziness on standing", Severity: SeverityMild, Notes: "Resolved after sitting for a few minutes."},
			{ID: "sym2", Date: "2024-05-20", Symptom: "Ankle swelling", Severity: SeverityModerate, Notes: "Both ankles, worse in the evening."},
		},
	}

	return []*Patient{
		priya,
		bare("2", "Rajesh Kumar", "23-4567-8901-2345", 72, GenderMale, "2024-05-12", StatusDischarged, "patient2"),
		bare("3", "Anjali Devi", "34-5678-9012-3456", 55, GenderFemale, "2024-05-14", StatusAdmitted, "patient3"),
		withAlerts(
			bare("4", "Vikram Singh", "45-6789-0123-4567", 80, GenderMale, "2024-05-15", StatusReconciliationPending, "patient4"),
			safety.Alert{ID: "alert-ped", Type: safety.TypeDose, Severity: safety.SeverityCritical, Description: "High-risk medication for elderly. Verify dosage."},
		),
	}
}

func bare(id, name, abhaID string, age int, gender Gender, admitted string, status Status, avatarSeed string) *Patient {
	p := &Patient{
		ID:            id,
		Name:          name,
		ABHAID:        abhaID,
		Age:           age,
		Gender:        gender,
		AdmissionDate: admitted,
		Status:        status,
		AvatarURL:     "https://picsum.photos/seed/" + avatarSeed + "/100/100",
	}
	p.Normalize()
	return p
}

func withAlerts(p *Patient, alerts ...safety.Alert) *Patient {
	p.Alerts = append(p.Alerts, alerts...)
	return p
}
