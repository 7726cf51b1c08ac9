package safety

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrAssessmentFailed wraps any failure of the reasoning call. The
// accompanying Assessment is still usable.
var ErrAssessmentFailed = errors.New("medication assessment failed")

// PatientContext is the clinical profile sent with an assessment.
type PatientContext struct {
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	Conditions string   `json:"conditions"`
	EGFR       *float64 `json:"egfr,omitempty"`
	LFT        string   `json:"lft,omitempty"`
}

// AssessRequest is what the reasoning service receives. PostDischarge holds
// "name dosage" labels, PreAdmission holds bare names.
type AssessRequest struct {
	Patient       PatientContext `json:"patient_info"`
	PreAdmission  []string       `json:"pre_admission_medications"`
	PostDischarge []string       `json:"post_discharge_medications"`
}

// Assessor produces dynamic alerts for a medication change. Implementations
// must return only alerts that pass ValidateDynamic.
type Assessor interface {
	AssessMedications(ctx context.Context, req AssessRequest) ([]Alert, error)
}

type Outcome string

const (
	OutcomeIssuesFound Outcome = "issues_found"
	OutcomeNoIssues    Outcome = "no_issues"
	OutcomeFailed      Outcome = "failed"
)

type Input struct {
	PatientID string
	Request   AssessRequest
	Stored    []Alert
}

// Assessment is the merged alert view for one trigger.
type Assessment struct {
	PatientID string  `json:"patient_id"`
	Outcome   Outcome `json:"outcome"`
	Alerts    []Alert `json:"alerts"`
	Static    []Alert `json:"static"`
	Dynamic   []Alert `json:"dynamic"`
	Message   string  `json:"message"`
}

// DefaultFlightTimeout bounds a shared assessment once it no longer
// follows any single caller's context.
const DefaultFlightTimeout = 2 * time.Minute

const (
	messageIssuesFound = "Found %d potential issues."
	messageNoIssues    = "No issues found. The medication changes look safe."
	messageFailed      = "Failed to analyze medications."
)

// Aggregator merges stored alerts with those produced by an Assessor.
// Concurrent triggers with identical inputs share one upstream call. A
// caller that cancels stops waiting; the others still get the result.
type Aggregator struct {
	assessor Assessor
	logger   zerolog.Logger
	group    singleflight.Group
	timeout  time.Duration
}

func NewAggregator(assessor Assessor, logger zerolog.Logger) *Aggregator {
	return &Aggregator{assessor: assessor, logger: logger, timeout: DefaultFlightTimeout}
}

// Assess runs one assessment. On failure it returns the static-only view
// together with an error wrapping ErrAssessmentFailed.
func (a *Aggregator) Assess(ctx context.Context, in Input) (*Assessment, error) {
	static := Static(in.Stored)

	dynamic, err := a.assessShared(ctx, in)
	if err != nil {
		a.logger.Warn().Err(err).Str("patient_id", in.PatientID).Msg("medication assessment failed")
		return &Assessment{
			PatientID: in.PatientID,
			Outcome:   OutcomeFailed,
			Alerts:    static,
			Static:    static,
			Dynamic:   []Alert{},
			Message:   messageFailed,
		}, fmt.Errorf("%w: %w", ErrAssessmentFailed, err)
	}

	out := &Assessment{
		PatientID: in.PatientID,
		Outcome:   OutcomeNoIssues,
		Alerts:    Merge(in.Stored, dynamic),
		Static:    static,
		Dynamic:   dynamic,
		Message:   messageNoIssues,
	}
	if len(dynamic) > 0 {
		out.Outcome = OutcomeIssuesFound
		out.Message = fmt.Sprintf(messageIssuesFound, len(dynamic))
	}
	return out, nil
}

func (a *Aggregator) assessShared(ctx context.Context, in Input) ([]Alert, error) {
	key, err := flightKey(in)
	if err != nil {
		return nil, err
	}
	// the flight outlives whichever caller started it
	flightCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(flightCtx, a.timeout)
		defer cancel()
		return a.assessor.AssessMedications(fctx, in.Request)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]Alert)
		// callers sharing a flight must not alias one slice
		dynamic := make([]Alert, len(shared))
		copy(dynamic, shared)
		return dynamic, nil
	}
}

func flightKey(in Input) (string, error) {
	b, err := json.Marshal(in.Request)
	if err != nil {
		return "", fmt.Errorf("encode assessment key: %w", err)
	}
	sum := sha256.Sum256(b)
	return in.PatientID + ":" + hex.EncodeToString(sum[:]), nil
}
