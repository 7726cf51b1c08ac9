package patient

import (
	"context"
	"time"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
)

// ListFilter narrows List. A zero filter matches every patient.
type ListFilter struct {
	Status Status
}

func (f ListFilter) matches(p *Patient) bool {
	return f.Status == "" || p.Status == f.Status
}

// RecordFunc applies an adherence transition to the stored event.
type RecordFunc func(e *adherence.Event) error

type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*Patient, error)
	// List returns one page ordered by id and the total match count. A
	// limit of 0 returns every match.
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)
	Save(ctx context.Context, p *Patient) error
	// RecordAdherence applies fn to one event as an atomic read-modify-write
	// and returns the updated event.
	RecordAdherence(ctx context.Context, patientID, eventID string, fn RecordFunc) (*adherence.Event, error)
}

func recordEvent(p *Patient, eventID string, fn RecordFunc) (*adherence.Event, error) {
	for i := range p.Adherence {
		if p.Adherence[i].ID != eventID {
			continue
		}
		ev := p.Adherence[i]
		if err := fn(&ev); err != nil {
			return nil, err
		}
		p.Adherence[i] = ev
		return &ev, nil
	}
	return nil, ErrEventNotFound
}

// RecordNow returns a RecordFunc that moves an event to status, stamped at
// the given time when it is Taken.
func RecordNow(status adherence.Status, at time.Time) RecordFunc {
	return func(e *adherence.Event) error {
		return e.Record(status, at)
	}
}
