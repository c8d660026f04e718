// Package httpapi exposes the operational HTTP surface: health, metrics and
// reference ingestion for the brief index.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/search"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/util"
)

// ReferenceIndexer ingests documents into the brief reference index. Nil when
// search is not configured.
type ReferenceIndexer interface {
	IndexReference(ref search.Reference) error
}

// Handler serves /healthz, /metrics and POST /references. The health check
// exercises a store load so a corrupt data file surfaces as not-ready instead
// of a later crash.
func Handler(st *store.FileStore, refs ReferenceIndexer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		missions, err := st.GetActiveMissions()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":             true,
			"activeMissions": len(missions),
		})
	})

	mux.HandleFunc("/references", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if refs == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "search is not configured"})
			return
		}
		var ref search.Reference
		if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		if ref.Title == "" && ref.Body == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "title or body is required"})
			return
		}
		if ref.ID == "" {
			ref.ID = util.NewID("ref")
		}
		if ref.AddedAt == "" {
			ref.AddedAt = time.Now().UTC().Format(time.RFC3339)
		}
		if err := refs.IndexReference(ref); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, ref)
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
