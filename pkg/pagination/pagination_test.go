package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("/?limit=50&offset=10"))
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := FromContext(newContext("/?limit=500&offset=-3"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset clamped to 0, got %d", p.Offset)
	}

	p = FromContext(newContext("/?limit=abc"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit for junk input, got %d", p.Limit)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		p          Params
		n          int
		start, end int
	}{
		{Params{Limit: 2, Offset: 0}, 4, 0, 2},
		{Params{Limit: 2, Offset: 3}, 4, 3, 4},
		{Params{Limit: 2, Offset: 10}, 4, 4, 4},
		{Params{Limit: 20, Offset: 0}, 0, 0, 0},
		{Params{Limit: 2, Offset: -1}, 4, 0, 2},
	}
	for _, tt := range tests {
		start, end := tt.p.Window(tt.n)
		if start != tt.start || end != tt.end {
			t.Errorf("%+v.Window(%d) = [%d,%d), want [%d,%d)", tt.p, tt.n, start, end, tt.start, tt.end)
		}
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse([]int{1, 2}, 4, 2, 0); !r.HasMore {
		t.Error("expected has_more with items remaining")
	}
	if r := NewResponse([]int{3, 4}, 4, 2, 2); r.HasMore {
		t.Error("expected no more items on the last page")
	}
}
