package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeliver_SignsBody(t *testing.T) {
	const secret = "test-secret"

	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Landrec-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	event := &Event{Type: "run.progress", RunID: "r1", Timestamp: 42, Message: "processing row 1 of 3"}
	if err := Deliver(context.Background(), srv.URL, secret, event); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	want := "sha256=" + Sign(secret, gotBody)
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var back Event
	if err := json.Unmarshal(gotBody, &back); err != nil {
		t.Fatalf("unmarshal delivered body: %v", err)
	}
	if back != *event {
		t.Errorf("delivered event = %+v, want %+v", back, *event)
	}
}

func TestDeliver_NoSignatureWithoutSecret(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Landrec-Signature")
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: "run.terminal"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if gotSig != "" {
		t.Errorf("unexpected signature header %q", gotSig)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: "run.progress"}); err == nil {
		t.Error("expected an error for a 5xx endpoint")
	}
}

func TestTracker_Accounting(t *testing.T) {
	tr := NewTracker()
	tr.SetPhase("extracting")
	tr.SetRows(3)
	tr.SetRow(1)
	tr.Record(true)
	tr.Record(false)

	snap := tr.Snapshot()
	if snap.Phase != "extracting" || snap.TotalRows != 3 || snap.Row != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Attempted != 2 || snap.Succeeded != 1 || snap.Failed != 1 {
		t.Errorf("tally = %+v", snap)
	}
}
