package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/search"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

type fakeIndexer struct {
	refs []search.Reference
	fail bool
}

func (f *fakeIndexer) IndexReference(ref search.Reference) error {
	if f.fail {
		return fmt.Errorf("index unavailable")
	}
	f.refs = append(f.refs, ref)
	return nil
}

func TestHealthz(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), testLogger())
	if _, err := st.RegisterMission("thread-1", "Mission", "", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RegisterMission failed: %v", err)
	}

	rec := httptest.NewRecorder()
	Handler(st, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		OK             bool `json:"ok"`
		ActiveMissions int  `json:"activeMissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.OK || body.ActiveMissions != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestHealthzCorruptStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "missions.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	st := store.NewFileStore(dir, testLogger())

	rec := httptest.NewRecorder()
	Handler(st, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), testLogger())
	rec := httptest.NewRecorder()
	Handler(st, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
}

func TestReferenceIngestion(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), testLogger())
	idx := &fakeIndexer{}
	h := Handler(st, idx)

	body := `{"title":"Go concurrency patterns","url":"https://example.com/conc","body":"channels and pipelines"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/references", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	if len(idx.refs) != 1 {
		t.Fatalf("indexed %d references, want 1", len(idx.refs))
	}
	ref := idx.refs[0]
	if ref.Title != "Go concurrency patterns" || ref.URL != "https://example.com/conc" {
		t.Errorf("indexed reference = %+v", ref)
	}
	if ref.ID == "" || ref.AddedAt == "" {
		t.Errorf("id and timestamp should be filled in, got %+v", ref)
	}
}

func TestReferenceIngestionRejectsBadInput(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), testLogger())
	idx := &fakeIndexer{}
	h := Handler(st, idx)

	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: "{nope", want: http.StatusBadRequest},
		{name: "empty document", body: `{"url":"https://example.com"}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/references", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
	if len(idx.refs) != 0 {
		t.Errorf("rejected requests were indexed: %+v", idx.refs)
	}
}

func TestReferenceIngestionWithoutSearch(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), testLogger())
	rec := httptest.NewRecorder()
	Handler(st, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/references", strings.NewReader(`{"title":"t"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestReferenceIngestionIndexFailure(t *testing.T) {
	st := store.NewFileStore(t.TempDir(), testLogger())
	rec := httptest.NewRecorder()
	Handler(st, &fakeIndexer{fail: true}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/references", strings.NewReader(`{"title":"t"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
