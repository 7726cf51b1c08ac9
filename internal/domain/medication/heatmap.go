package medication

import (
	"math"
	"math/rand"
	"strings"
)

// Slot is a time-of-day dosing window.
type Slot string

const (
	SlotMorning   Slot = "Morning"
	SlotAfternoon Slot = "Afternoon"
	SlotEvening   Slot = "Evening"
	SlotNight     Slot = "Night"
)

// Slots lists the heatmap columns in display order.
var Slots = []Slot{SlotMorning, SlotAfternoon, SlotEvening, SlotNight}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RiskCell struct {
	Slot  Slot      `json:"slot"`
	Score float64   `json:"score"`
	Level RiskLevel `json:"level"`
}

type RiskRow struct {
	Medication string     `json:"medication"`
	Cells      []RiskCell `json:"cells"`
}

// slotBump is an additive risk for a drug (matched by lowercase substring)
// taken in one of the listed slots.
type slotBump struct {
	drug  string
	slots []Slot
	add   float64
}

var slotBumps = []slotBump{
	{drug: "aspirin", slots: []Slot{SlotMorning, SlotAfternoon}, add: 30},
	{drug: "atorvastatin", slots: []Slot{SlotNight}, add: 25},
	{drug: "metformin", slots: []Slot{SlotMorning, SlotEvening}, add: 15},
}

// RiskHeatmap scores every distinct medication name against every slot.
// The base score is uniform in [0,20) drawn from rng, so a fixed seed yields
// a reproducible map.
func RiskHeatmap(meds []Medication, rng *rand.Rand) []RiskRow {
	seen := make(map[string]bool, len(meds))
	rows := make([]RiskRow, 0, len(meds))
	for _, m := range meds {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true

		row := RiskRow{Medication: m.Name, Cells: make([]RiskCell, 0, len(Slots))}
		for _, slot := range Slots {
			score := riskScore(m.Name, slot, rng.Float64()*20)
			row.Cells = append(row.Cells, RiskCell{Slot: slot, Score: score, Level: riskLevel(score)})
		}
		rows = append(rows, row)
	}
	return rows
}

func riskScore(name string, slot Slot, base float64) float64 {
	lower := strings.ToLower(name)
	score := base
	for _, b := range slotBumps {
		if !strings.Contains(lower, b.drug) {
			continue
		}
		for _, s := range b.slots {
			if s == slot {
				score += b.add
				break
			}
		}
	}
	score = math.Min(100, score)
	return math.Round(score*10) / 10
}

func riskLevel(score float64) RiskLevel {
	switch {
	case score > 60:
		return RiskHigh
	case score > 30:
		return RiskMedium
	default:
		return RiskLow
	}
}
