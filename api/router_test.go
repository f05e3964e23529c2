package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/use-agent/landrec/status"
)

func TestRunEndpoint(t *testing.T) {
	tracker := status.NewTracker()
	tracker.SetPhase("extracting")
	tracker.SetRows(3)
	tracker.SetRow(2)
	tracker.Record(true)

	router := NewRouter(tracker, "test", time.Now())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/run", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap status.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Phase != "extracting" || snap.Row != 2 || snap.TotalRows != 3 || snap.Succeeded != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(status.NewTracker(), "test", time.Now())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("health body = %v", body)
	}
}
