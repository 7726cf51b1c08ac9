package assistant

import (
	"strings"
	"text/template"
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

func mustPrompt(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(promptFuncs).Parse(text))
}

var historySummaryPrompt = mustPrompt("history_summary", `You summarize medical records for clinicians.
Write a short, accurate summary of the patient's history from the ABHA record below.
Cover the key conditions, current and past medications, allergies and any significant past events.

ABHA record:
{{.ABHARecord}}`)

var dischargeSummaryPrompt = mustPrompt("discharge_summary", `You are a clinician writing a discharge summary for the patient to take home.
Write the whole summary in {{.LanguageName}} (language code {{.Language}}).

Patient details: {{.PatientDetails}}
Diagnosis: {{.Diagnosis}}
Medications: {{.Medications}}
Follow-up: {{.FollowUp}}

Use plain words a patient can follow and make every instruction explicit.`)

var explainMedicationPrompt = mustPrompt("explain_medication", `You are a patient educator. In {{.Language}}, explain the medicine "{{.MedicationName}}" to someone with limited health literacy.
Say what the medicine is for and the single most important thing to remember when taking it.
Use two or three short sentences.`)

var triagePrompt = mustPrompt("triage", `You assist a supervising clinician with triage of symptoms reported after discharge.

Patient:
- Age: {{.Patient.Age}}
- Gender: {{.Patient.Gender}}
- Known conditions: {{.Patient.Conditions}}

Reported symptoms:
{{range .Symptoms}}- {{.Date}}: {{.Symptom}} (severity {{.Severity}}). Notes: {{.Notes}}
{{end}}
Assign exactly one triage level:
- Emergency when the picture suggests a life-threatening problem such as severe chest pain or trouble breathing. Advise immediate care.
- Urgent when the symptoms are serious but not immediately life-threatening, for example a chronic condition getting worse. Advise contacting the patient soon.
- Routine when the symptoms are mild. Advise continued monitoring.

Give one concrete next step for the clinician and a brief reasoning. Weigh symptoms against the underlying conditions; breathlessness matters more with a cardiac history.`)

var reconcilePrompt = mustPrompt("reconcile_medications", `You are a medication safety engine following Indian clinical guidelines.
Review the medication change below and raise explainable alerts.

Patient:
- Age: {{.Patient.Age}}
- Gender: {{.Patient.Gender}}
- Known conditions: {{.Patient.Conditions}}
- Renal function (eGFR): {{if .Patient.EGFR}}{{.Patient.EGFR}} ml/min/1.73m²{{else}}not provided{{end}}
- Liver function: {{if .Patient.LFT}}{{.Patient.LFT}}{{else}}not provided{{end}}

Before admission: {{join .PreAdmission ", "}}
After discharge: {{join .PostDischarge ", "}}

Check for:
1. Anomaly-Detection: unusual or dangerous changes, such as stopping an anticoagulant with no replacement or adding several drugs of one class.
2. Dosage-Warning: drugs needing age-related dose changes or carrying warnings for an elderly patient of age {{.Patient.Age}}.
3. Drug-Interaction: significant interactions among the discharge drugs. Every Drug-Interaction alert must include a short technical "mechanism" such as CYP3A4 inhibition, additive QT prolongation or increased bleeding risk.
4. Drug-Food-Interaction: common foods or Indian spices and Ayurvedic products, for example grapefruit with statins or turmeric.
5. Formulary-Alert: drugs that are not first-line for the patient's conditions under Indian guidelines.
6. Antibiotic-Stewardship: for any antibiotic, whether it is first-line for {{.Patient.Conditions}} under ICMR guidance, flagging broad-spectrum choices where a narrower one would do.
7. Dosage-Adjustment-Needed: renal (eGFR below 60) or hepatic impairment that calls for a dose change, with a suggestion.
8. Polypharmacy-Risk: more than five discharge medications, stating the count.
9. Cognitive-Screening-Recommended: patients over 65 with a complex regimen.

Give every alert a unique id, a type from the list above, a severity of Critical, Warning or Info, a one-line description and a "reasoning" written as TRIGGER, REASON and ACTION.
Return an empty alerts array when nothing significant is found.`)
