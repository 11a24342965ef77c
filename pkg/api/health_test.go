package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var res HealthResponse
	decode(t, rec, &res)
	if res.Database != "connected" || res.Cache == nil || res.Generator == nil {
		t.Errorf("health = %+v", res)
	}
}

func TestHealthDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	h := NewHandler(Deps{DB: db, Cache: kvstore.NewMemory(kvstore.MemoryConfig{})})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if message(t, rec) != "Database unavailable" {
		t.Errorf("message = %q", message(t, rec))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
