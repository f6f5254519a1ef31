package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/trustledger/internal/audit"
	"github.com/lazypower/trustledger/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLedger(t *testing.T) *trust.Ledger {
	t.Helper()
	l, err := trust.New()
	require.NoError(t, err)
	t.Cleanup(l.Shutdown)
	return l
}

func testServer(t *testing.T, opts ...Option) (*Server, *trust.Ledger) {
	t.Helper()
	l := testLedger(t)
	return New(l, "test-version", opts...), l
}

func testAudit(t *testing.T) *audit.DB {
	t.Helper()
	db, err := audit.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	srv, l := testServer(t, WithAudit(testAudit(t)))
	_, err := l.RegisterUser("alice", "", nil)
	require.NoError(t, err)

	w := do(t, srv, "GET", "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
	assert.Equal(t, float64(1), body["users"])
	assert.Equal(t, true, body["audit"])
}

func TestHealthWithoutAudit(t *testing.T) {
	srv, _ := testServer(t)

	body := decode(t, do(t, srv, "GET", "/api/health", ""))
	assert.Equal(t, false, body["audit"])
}

func TestMetricsHandlerMounted(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "trustledger_users 0\n")
	})
	srv, _ := testServer(t, WithMetricsHandler(h))

	w := do(t, srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trustledger_users")
}

func TestMetricsNotMountedByDefault(t *testing.T) {
	srv, _ := testServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/metrics", "").Code)
}

func TestWriteErrorMapsCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{trust.ErrAlreadyRegistered, http.StatusConflict, "ALREADY_REGISTERED"},
		{trust.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{trust.ErrGovernanceViolation, http.StatusForbidden, "GOVERNANCE_VIOLATION"},
		{trust.ErrInsufficientHeadroom, http.StatusUnprocessableEntity, "INSUFFICIENT_HEADROOM"},
		{trust.ErrClosed, http.StatusServiceUnavailable, "LEDGER_CLOSED"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}

	w := httptest.NewRecorder()
	writeError(w, io.ErrUnexpectedEOF)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "plain errors")
}
