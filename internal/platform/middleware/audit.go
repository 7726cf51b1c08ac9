package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ActorHeader names the clinician or system acting on a request. There is
// no authentication, so the value is recorded as supplied.
const ActorHeader = "X-Actor"

const patientsPrefix = "/api/v1/patients/"

// AuditEntry records one access to patient data.
type AuditEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	PatientID  string    `json:"patient_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	IPAddress  string    `json:"ip_address"`
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// AuditLog keeps the most recent entries in a fixed-size ring.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
}

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &AuditLog{entries: make([]AuditEntry, capacity)}
}

func (l *AuditLog) RecordAccess(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first, optionally only those
// for one patient.
func (l *AuditLog) Recent(limit int, patientID string) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}
	out := make([]AuditEntry, 0, min(limit, n))
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		e := l.entries[idx]
		if patientID != "" && e.PatientID != patientID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Handler serves GET /audit-log?limit=&patient_id=.
func (l *AuditLog) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		if raw := c.QueryParam("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
			}
			limit = v
		}
		entries := l.Recent(limit, c.QueryParam("patient_id"))
		return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries, "total": len(entries)})
	}
}

// Audit records every /api/v1 request that touches a patient resource after
// the handler has run, and writes a structured phi_access log line.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			entry := AuditEntry{
				ID:         uuid.NewString(),
				Timestamp:  time.Now().UTC(),
				RequestID:  requestID(c),
				Actor:      actor(req),
				Action:     actionFor(req.Method, path),
				Resource:   resourceFor(path),
				PatientID:  patientIDFrom(path),
				Method:     req.Method,
				Path:       path,
				StatusCode: status,
				IPAddress:  c.RealIP(),
			}
			if entry.Resource == "audit-log" {
				return err
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("actor", entry.Actor).
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func actor(req *http.Request) string {
	if a := strings.TrimSpace(req.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return "anonymous"
}

// actionFor maps a request to an audit action. POSTs to reasoning
// endpoints read patient data to produce an answer; only adherence
// recording changes it.
func actionFor(method, path string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		if strings.Contains(path, "/adherence/") {
			return "update"
		}
		return "generate"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return "read"
}

// resourceFor returns the resource a path addresses:
//
//	/api/v1/patients                     -> patients
//	/api/v1/patients/1                   -> patient
//	/api/v1/patients/1/adherence/adh1    -> adherence
//	/api/v1/medications/explain          -> medications
func resourceFor(path string) string {
	if strings.HasPrefix(path, patientsPrefix) {
		segments := strings.Split(strings.Trim(strings.TrimPrefix(path, patientsPrefix), "/"), "/")
		if len(segments) > 1 && segments[1] != "" {
			return segments[1]
		}
		return "patient"
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

func patientIDFrom(path string) string {
	if !strings.HasPrefix(path, patientsPrefix) {
		return ""
	}
	id, _, _ := strings.Cut(strings.TrimPrefix(path, patientsPrefix), "/")
	return id
}
