package assistant

import "github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "STRING", "description": desc}
}

func enumProp(values ...string) map[string]any {
	return map[string]any{"type": "STRING", "enum": values}
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "OBJECT", "properties": props, "required": required}
}

var historySummarySchema = object(map[string]any{
	"summary": stringProp("Concise summary of the patient's medical history."),
}, "summary")

var dischargeSummarySchema = object(map[string]any{
	"dischargeSummary": stringProp("The discharge summary in the requested language."),
}, "dischargeSummary")

var explanationSchema = object(map[string]any{
	"explanation": stringProp("Plain-language explanation of the medicine."),
}, "explanation")

var triageSchema = func() map[string]any {
	levels := make([]string, 0, len(TriageLevels))
	for _, l := range TriageLevels {
		levels = append(levels, string(l))
	}
	return object(map[string]any{
		"triageLevel":    enumProp(levels...),
		"recommendation": stringProp("Next step for the clinician."),
		"reasoning":      stringProp("Why this level was chosen."),
	}, "triageLevel", "recommendation", "reasoning")
}()

var reconcileSchema = func() map[string]any {
	types := make([]string, 0, len(safety.DynamicTypes))
	for _, t := range safety.DynamicTypes {
		types = append(types, string(t))
	}
	severities := make([]string, 0, len(safety.Severities))
	for _, s := range safety.Severities {
		severities = append(severities, string(s))
	}
	alert := object(map[string]any{
		"id":          stringProp("Unique alert id."),
		"type":        enumProp(types...),
		"severity":    enumProp(severities...),
		"description": stringProp("One-line description."),
		"reasoning":   stringProp("TRIGGER / REASON / ACTION explanation."),
		"mechanism":   stringProp("Interaction pathway, for Drug-Interaction alerts."),
	}, "id", "type", "severity", "description", "reasoning")
	return object(map[string]any{
		"alerts": map[string]any{"type": "ARRAY", "items": alert},
	}, "alerts")
}()
