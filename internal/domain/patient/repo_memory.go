package patient

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
	"github.com/sourishdey2005/Med-Saarthi/pkg/pagination"
)

type memoryRepo struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewMemoryRepo returns a repository held in process memory, loaded with
// the given patients.
func NewMemoryRepo(patients ...*Patient) (PatientRepository, error) {
	r := &memoryRepo{patients: make(map[string]*Patient, len(patients))}
	for _, p := range patients {
		if err := r.Save(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Patient
	for _, p := range r.patients {
		if filter.matches(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if limit <= 0 {
		limit = total
	}
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(total)

	out := make([]*Patient, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, p.Clone())
	}
	return out, total, nil
}

func (r *memoryRepo) Save(_ context.Context, p *Patient) error {
	cp := p.Clone()
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[cp.ID] = cp
	return nil
}

func (r *memoryRepo) RecordAdherence(_ context.Context, patientID, eventID string, fn RecordFunc) (*adherence.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return recordEvent(p, eventID, fn)
}
