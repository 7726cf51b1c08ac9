package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sourishdey2005/Med-Saarthi/internal/platform/llm"
)

func postJSON(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_ExplainMedication(t *testing.T) {
	gen := &mockGenerator{responses: map[string]string{
		"explain_medication": `{"explanation":"Metformin lowers blood sugar. Take it with food."}`,
	}}
	h := NewHandler(newTestService(gen))
	c, rec := postJSON(echo.New(), `{"medication_name":"Metformin","language":"en"}`)

	if err := h.ExplainMedication(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Take it with food") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_ExplainMedication_Invalid(t *testing.T) {
	h := NewHandler(newTestService(&mockGenerator{}))
	c, _ := postJSON(echo.New(), `{"language":"en"}`)

	err := h.ExplainMedication(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_AudioGuidance(t *testing.T) {
	gen := &mockGenerator{pcm: []byte{1, 0, 2, 0}}
	h := NewHandler(newTestService(gen))
	c, rec := postJSON(echo.New(), `{"text":"Take one tablet after breakfast.","language":"en"}`)

	if err := h.AudioGuidance(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"audio_data_uri":"data:audio/wav;base64,`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", invalidRequest("x"), http.StatusUnprocessableEntity},
		{"invalid response", invalidResponse("x"), http.StatusBadGateway},
		{"upstream", fmt.Errorf("triage: %w", &llm.Error{Category: llm.Recoverable, StatusCode: 503, Underlying: errors.New("down")}), http.StatusBadGateway},
		{"deadline", fmt.Errorf("triage: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorStatus(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHTTPError_HidesUpstreamDetail(t *testing.T) {
	err := fmt.Errorf("triage: %w", &llm.Error{Category: llm.Irrecoverable, StatusCode: 400, Body: "secret detail", Underlying: errors.New("bad")})
	he := HTTPError(err)
	if he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", he.Code)
	}
	if msg, _ := he.Message.(string); strings.Contains(msg, "secret detail") {
		t.Errorf("upstream body leaked into message: %q", msg)
	}
	if !errors.Is(he.Internal, err) {
		t.Error("expected original error kept as internal")
	}
}
