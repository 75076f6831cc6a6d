package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/brunobiangulo/hybridrag"
)

type handler struct {
	engine hybridrag.Engine
}

func newHandler(e hybridrag.Engine) *handler {
	return &handler{engine: e}
}

const maxUploadMemory = 100 << 20 // 100MB held in memory before spilling to disk

// POST /uploadpdf
// Accepts a multipart file upload under field "file", plus "doc_id" and
// optional "display_name" form fields.
func (h *handler) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with 'file', 'doc_id' fields")
		return
	}

	docID := r.FormValue("doc_id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}
	displayName := r.FormValue("display_name")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if displayName == "" {
		displayName = header.Filename
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		slog.Error("reading uploaded file", "error", err)
		return
	}

	result, err := h.engine.Ingest(r.Context(), docID, fileBytes, displayName)
	if err != nil {
		writeEngineError(w, err, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /answer
func (h *handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question    string  `json:"question"`
		DocID       string  `json:"doc_id"`
		MaxResults  int     `json:"max_results,omitempty"`
		WeightVec   float64 `json:"weight_vector,omitempty"`
		WeightFTS   float64 `json:"weight_fts,omitempty"`
		WeightGraph float64 `json:"weight_graph,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.DocID == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}

	var opts []hybridrag.QueryOption
	if req.MaxResults > 0 {
		opts = append(opts, hybridrag.WithMaxResults(req.MaxResults))
	}
	if req.WeightVec > 0 || req.WeightFTS > 0 || req.WeightGraph > 0 {
		opts = append(opts, hybridrag.WithWeights(req.WeightVec, req.WeightFTS, req.WeightGraph))
	}

	result, err := h.engine.Answer(r.Context(), req.Question, req.DocID, opts...)
	if err != nil {
		writeEngineError(w, err, "answer failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /compare
func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		DocID    string `json:"doc_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" || req.DocID == "" {
		writeError(w, http.StatusBadRequest, "question and doc_id are required")
		return
	}

	result, err := h.engine.Compare(r.Context(), req.Question, req.DocID)
	if err != nil {
		writeEngineError(w, err, "compare failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /clearalldata
func (h *handler) handleClearAllData(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearAllData(r.Context()); err != nil {
		writeEngineError(w, err, "clear all data failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// DELETE /documents/{doc_id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("doc_id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}

	if err := h.engine.DeleteDocument(r.Context(), docID); err != nil {
		writeEngineError(w, err, "delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeEngineError(w, err, "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%s", msg)})
}

// writeEngineError maps the error taxonomy to HTTP status: invalid input and
// quota exceeded are client-visible 4xx, everything else is a 5xx.
func writeEngineError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, hybridrag.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hybridrag.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallbackMsg)
		slog.Error(fallbackMsg, "error", err)
	}
}
