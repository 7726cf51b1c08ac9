package medication

import (
	"fmt"
	"strings"
)

// Status is the reconciliation outcome of a single medication. It is derived
// by Reconcile and never authored on stored records.
type Status string

const (
	StatusNew          Status = "New"
	StatusChanged      Status = "Changed"
	StatusUnchanged    Status = "Unchanged"
	StatusDiscontinued Status = "Discontinued"
)

var validStatuses = map[Status]bool{
	StatusNew: true, StatusChanged: true, StatusUnchanged: true, StatusDiscontinued: true,
}

// Valid reports whether s is one of the known reconciliation statuses.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// Medication is one entry of a pre-admission or post-discharge list.
type Medication struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Route     string `json:"route"`
	Status    Status `json:"status,omitempty"`
}

func (m Medication) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("medication id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("medication %s: name is required", m.ID)
	}
	if m.Status != "" && !m.Status.Valid() {
		return fmt.Errorf("medication %s: invalid status: %s", m.ID, m.Status)
	}
	return nil
}

// Label renders the medication as "name dosage", the form sent to the
// reasoning service for post-discharge entries.
func (m Medication) Label() string {
	return strings.TrimSpace(m.Name + " " + m.Dosage)
}

// Names returns the medication names in list order.
func Names(meds []Medication) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.Name)
	}
	return out
}

// Labels returns Label() for each medication in list order.
func Labels(meds []Medication) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.Label())
	}
	return out
}
