package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jvidalg/albasort/internal/extract"
	"github.com/jvidalg/albasort/internal/pipeline"
)

// batchRequest is the JSON form of a batch submission, pointing at a
// file already on the server (typically in the input folder).
type batchRequest struct {
	Path string `json:"path"`
	// Split defaults to true: a batch PDF gets segmented. Send false
	// for a pre-cut single document.
	Split *bool `json:"split"`
	OCR   bool  `json:"ocr"`
}

// handleCreateBatch accepts a batch either as a JSON path reference or
// as a multipart upload that lands in the input folder first.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		s.createBatchFromUpload(w, r)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	if !extract.IsSupported(req.Path) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(req.Path)), http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		jsonError(w, "file not found: "+req.Path, http.StatusBadRequest)
		return
	}

	split := true
	if req.Split != nil {
		split = *req.Split
	}
	s.submit(w, req.Path, split, req.OCR)
}

func (s *Server) createBatchFromUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !extract.IsSupported(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.cfg.InputDir, 0o755); err != nil {
		jsonError(w, "input folder unavailable", http.StatusInternalServerError)
		return
	}
	dst := filepath.Join(s.cfg.InputDir, filename)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			jsonError(w, "a file with that name is already queued", http.StatusConflict)
			return
		}
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	n, err := io.Copy(out, io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	if n > s.cfg.MaxUploadBytes {
		os.Remove(dst)
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	split := r.FormValue("split") != "false"
	ocr := r.FormValue("ocr") == "true"
	s.submit(w, dst, split, ocr)
}

func (s *Server) submit(w http.ResponseWriter, path string, split, ocr bool) {
	job, err := s.orchestrator.Submit(path, split, ocr)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/batches/%s", job.ID),
	})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleOCRStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ocr":         s.extractor.Stats().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
