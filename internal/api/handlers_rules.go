package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/jvidalg/albasort/internal/rules"
)

// handleListRules returns the providers in declaration order, which is
// also their matching priority.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	snap := s.rules.Load()
	if snap == nil {
		snap = rules.Snapshot{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"providers": snap})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rule, ok := s.rules.Load().Lookup(key)
	if !ok {
		jsonError(w, "provider not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules.Provider{Key: key, Rule: rule})
}

// handlePutRule creates or updates one provider. New providers are
// appended, so they match with the lowest priority.
func (s *Server) handlePutRule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]any{"key": key}
	// A bad pattern is stored anyway: classification degrades that
	// provider instead of blocking the edit. The caller is told.
	if rule.ExtractionPattern != "" {
		if _, err := regexp.Compile("(?im)" + rule.ExtractionPattern); err != nil {
			resp["warning"] = "extraction_pattern does not compile: " + err.Error()
		}
	}

	if err := s.rules.Upsert(key, rule); err != nil {
		s.log.Error("rule upsert failed", "key", key, "error", err)
		jsonError(w, "failed to save rules", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, ok := s.rules.Load().Lookup(key); !ok {
		jsonError(w, "provider not found", http.StatusNotFound)
		return
	}
	if err := s.rules.Delete(key); err != nil {
		s.log.Error("rule delete failed", "key", key, "error", err)
		jsonError(w, "failed to save rules", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
