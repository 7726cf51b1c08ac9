package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sourishdey2005/Med-Saarthi/internal/domain/adherence"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/db"
)

// patientRepoPG stores each aggregate as one JSONB document. Name and status
// are duplicated into columns for ordering and filtering.
type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func scanRecord(row pgx.Row) (*Patient, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var p Patient
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode patient record: %w", err)
	}
	p.Normalize()
	return &p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT record FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("patient get by id: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE ($1::text = '' OR status = $1)`, string(filter.Status),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT record FROM patients WHERE ($1::text = '' OR status = $1) ORDER BY id LIMIT NULLIF($2::int, 0) OFFSET $3`,
		string(filter.Status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient list: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepoPG) Save(ctx context.Context, p *Patient) error {
	cp := p.Clone()
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return r.write(ctx, r.conn(ctx), cp)
}

func (r *patientRepoPG) write(ctx context.Context, q db.Querier, p *Patient) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode patient record: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO patients (id, name, status, record)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			updated_at = NOW()`,
		p.ID, p.Name, string(p.Status), raw,
	)
	if err != nil {
		return fmt.Errorf("save patient %s: %w", p.ID, err)
	}
	return nil
}

func (r *patientRepoPG) RecordAdherence(ctx context.Context, patientID, eventID string, fn RecordFunc) (*adherence.Event, error) {
	var updated *adherence.Event
	err := db.InTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		p, err := scanRecord(tx.QueryRow(ctx, `SELECT record FROM patients WHERE id = $1 FOR UPDATE`, patientID))
		if err != nil {
			return err
		}
		ev, err := recordEvent(p, eventID, fn)
		if err != nil {
			return err
		}
		if err := r.write(ctx, tx, p); err != nil {
			return err
		}
		updated = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
