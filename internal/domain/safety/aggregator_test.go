package safety

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockAssessor struct {
	alerts []Alert
	err    error
	calls  int32
	delay  time.Duration
}

func (m *mockAssessor) AssessMedications(ctx context.Context, _ AssessRequest) ([]Alert, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.alerts, nil
}

func storedAlerts() []Alert {
	return []Alert{
		{ID: "alert1", Type: TypeDrugDrug, Severity: SeverityWarning, Description: "Aspirin and Warfarin interaction."},
		{ID: "alert2", Type: TypeDose, Severity: SeverityInfo, Description: "Amlodipine dose increased."},
		{ID: "alert3", Type: TypeAllergy, Severity: SeverityCritical, Description: "Penicillin allergy."},
	}
}

func dynamicAlerts() []Alert {
	return []Alert{
		{ID: "d1", Type: TypePolypharmacyRisk, Severity: SeverityInfo, Description: "Six medications.", Reasoning: "TRIGGER: count"},
		{ID: "d2", Type: TypeDrugInteraction, Severity: SeverityCritical, Description: "Bleeding risk.", Reasoning: "TRIGGER: aspirin", Mechanism: "Additive antiplatelet effect"},
	}
}

func ids(alerts []Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}

func TestStatic_DropsDose(t *testing.T) {
	got := ids(Static(storedAlerts()))
	want := []string{"alert1", "alert3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Static() = %v, want %v", got, want)
	}
}

func TestMerge_StaticThenDynamic(t *testing.T) {
	got := ids(Merge(storedAlerts(), dynamicAlerts()))
	want := []string{"alert1", "alert3", "d1", "d2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %v, want %v", got, want)
	}
}

func TestMerge_NoDedup(t *testing.T) {
	dup := []Alert{storedAlerts()[0]}
	got := Merge(storedAlerts(), dup)
	if len(got) != 3 {
		t.Errorf("expected duplicate alert to be kept, got %v", ids(got))
	}
}

func TestSortBySeverity_Stable(t *testing.T) {
	merged := Merge(storedAlerts(), dynamicAlerts())
	got := ids(SortBySeverity(merged))
	want := []string{"alert3", "d2", "alert1", "d1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortBySeverity() = %v, want %v", got, want)
	}
	if ids(merged)[0] != "alert1" {
		t.Error("SortBySeverity must not reorder its input")
	}
}

func TestAggregator_IssuesFound(t *testing.T) {
	assessor := &mockAssessor{alerts: dynamicAlerts()}
	agg := NewAggregator(assessor, zerolog.Nop())

	res, err := agg.Assess(context.Background(), Input{PatientID: "1", Stored: storedAlerts()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeIssuesFound {
		t.Errorf("expected issues_found, got %s", res.Outcome)
	}
	if !reflect.DeepEqual(ids(res.Alerts), []string{"alert1", "alert3", "d1", "d2"}) {
		t.Errorf("unexpected merged alerts: %v", ids(res.Alerts))
	}
	if res.Message != "Found 2 potential issues." {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestAggregator_NoIssues(t *testing.T) {
	agg := NewAggregator(&mockAssessor{}, zerolog.Nop())

	res, err := agg.Assess(context.Background(), Input{PatientID: "1", Stored: storedAlerts()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeNoIssues {
		t.Errorf("expected no_issues, got %s", res.Outcome)
	}
	if !reflect.DeepEqual(ids(res.Alerts), []string{"alert1", "alert3"}) {
		t.Errorf("expected static-only alerts, got %v", ids(res.Alerts))
	}
	if res.Dynamic == nil {
		t.Error("dynamic should be an empty list, not nil")
	}
	if res.Message != messageNoIssues || strings.Contains(res.Message, "Found") {
		t.Errorf("expected the no-issues message, got %q", res.Message)
	}
}

func TestAggregator_FailureKeepsStatic(t *testing.T) {
	agg := NewAggregator(&mockAssessor{err: fmt.Errorf("upstream unavailable")}, zerolog.Nop())

	res, err := agg.Assess(context.Background(), Input{PatientID: "1", Stored: storedAlerts()})
	if !errors.Is(err, ErrAssessmentFailed) {
		t.Fatalf("expected ErrAssessmentFailed, got %v", err)
	}
	if res == nil {
		t.Fatal("expected an assessment even on failure")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("expected failed, got %s", res.Outcome)
	}
	if !reflect.DeepEqual(ids(res.Alerts), []string{"alert1", "alert3"}) {
		t.Errorf("expected exactly the static alerts, got %v", ids(res.Alerts))
	}
	if res.Message == "" {
		t.Error("expected a user-facing message")
	}
}

func TestAggregator_CoalescesConcurrentTriggers(t *testing.T) {
	assessor := &mockAssessor{alerts: dynamicAlerts(), delay: 50 * time.Millisecond}
	agg := NewAggregator(assessor, zerolog.Nop())
	in := Input{PatientID: "1", Request: AssessRequest{PreAdmission: []string{"Metformin"}}, Stored: storedAlerts()}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := agg.Assess(context.Background(), in)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if len(res.Alerts) != 4 {
				t.Errorf("expected 4 alerts, got %d", len(res.Alerts))
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&assessor.calls); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
}

func TestAggregator_LeaderCancelDoesNotFailJoiners(t *testing.T) {
	assessor := &mockAssessor{alerts: dynamicAlerts(), delay: 150 * time.Millisecond}
	agg := NewAggregator(assessor, zerolog.Nop())
	in := Input{PatientID: "1", Request: AssessRequest{PreAdmission: []string{"Metformin"}}, Stored: storedAlerts()}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := agg.Assess(leaderCtx, in)
		leaderErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	joiner := make(chan *Assessment, 1)
	joinerErr := make(chan error, 1)
	go func() {
		res, err := agg.Assess(context.Background(), in)
		joiner <- res
		joinerErr <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancelLeader()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the leader to see its own cancellation, got %v", err)
	}
	res := <-joiner
	if err := <-joinerErr; err != nil {
		t.Fatalf("expected the joiner to get the shared result, got %v", err)
	}
	if res.Outcome != OutcomeIssuesFound || len(res.Dynamic) != 2 {
		t.Errorf("unexpected joiner assessment: %+v", res)
	}
	if n := atomic.LoadInt32(&assessor.calls); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
}

func TestAggregator_FlightTimeout(t *testing.T) {
	agg := NewAggregator(&mockAssessor{delay: time.Second}, zerolog.Nop())
	agg.timeout = 20 * time.Millisecond

	res, err := agg.Assess(context.Background(), Input{PatientID: "1", Stored: storedAlerts()})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the flight deadline in the chain, got %v", err)
	}
	if res.Outcome != OutcomeFailed || res.Message != messageFailed {
		t.Errorf("unexpected assessment: %+v", res)
	}
}

func TestAggregator_DifferentInputsNotCoalesced(t *testing.T) {
	assessor := &mockAssessor{}
	agg := NewAggregator(assessor, zerolog.Nop())

	agg.Assess(context.Background(), Input{PatientID: "1"})
	agg.Assess(context.Background(), Input{PatientID: "2"})
	if n := atomic.LoadInt32(&assessor.calls); n != 2 {
		t.Errorf("expected two upstream calls, got %d", n)
	}
}

func TestAggregator_ContextCancelled(t *testing.T) {
	agg := NewAggregator(&mockAssessor{delay: time.Second}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := agg.Assess(ctx, Input{PatientID: "1", Stored: storedAlerts()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in the chain, got %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", res.Outcome)
	}
}

func TestAlertValidateDynamic(t *testing.T) {
	tests := []struct {
		name    string
		alert   Alert
		wantErr bool
	}{
		{"valid polypharmacy", dynamicAlerts()[0], false},
		{"valid interaction", dynamicAlerts()[1], false},
		{"interaction without mechanism", Alert{ID: "x", Type: TypeDrugInteraction, Severity: SeverityWarning, Description: "d", Reasoning: "r"}, true},
		{"missing reasoning", Alert{ID: "x", Type: TypeFormularyAlert, Severity: SeverityInfo, Description: "d"}, true},
		{"legacy type", Alert{ID: "x", Type: TypeDose, Severity: SeverityInfo, Description: "d", Reasoning: "r"}, true},
		{"unknown type", Alert{ID: "x", Type: "Guess", Severity: SeverityInfo, Description: "d", Reasoning: "r"}, true},
		{"unknown severity", Alert{ID: "x", Type: TypeFormularyAlert, Severity: "Low", Description: "d", Reasoning: "r"}, true},
		{"mechanism on non-interaction", Alert{ID: "x", Type: TypeFormularyAlert, Severity: SeverityInfo, Description: "d", Reasoning: "r", Mechanism: "m"}, true},
		{"missing description", Alert{ID: "x", Type: TypeFormularyAlert, Severity: SeverityInfo, Reasoning: "r"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.alert.ValidateDynamic()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDynamic() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlertValidate_StoredKinds(t *testing.T) {
	for _, a := range storedAlerts() {
		if err := a.Validate(); err != nil {
			t.Errorf("%s: unexpected error: %v", a.ID, err)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	if !(SeverityCritical.Rank() > SeverityWarning.Rank() && SeverityWarning.Rank() > SeverityInfo.Rank()) {
		t.Error("expected Critical > Warning > Info")
	}
	if Severity("Unknown").Valid() {
		t.Error("unknown severity should be invalid")
	}
}
