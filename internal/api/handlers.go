package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/core"
	"github.com/Bhupendraa307/MiniRAG/internal/extract"
	"github.com/Bhupendraa307/MiniRAG/internal/logging"
	"github.com/Bhupendraa307/MiniRAG/internal/store"
)

const (
	MaxUploadBytes = 10 << 20
	MaxQueryLength = core.MaxQueryLength

	textInputFilename = "text_input.txt"
)

// Pipeline is the ingestion and question answering surface the handlers drive.
type Pipeline interface {
	ProcessDocument(ctx context.Context, text, filename string) (string, error)
	Query(ctx context.Context, query string) (*core.QueryResult, error)
}

// QueryLog lists past queries, newest first.
type QueryLog interface {
	RecentQueries(ctx context.Context, limit int) ([]core.QueryLogEntry, error)
}

type APIHandler struct {
	pipeline Pipeline
	queries  QueryLog
	logger   *zap.Logger
	now      func() time.Time
}

func NewAPIHandler(p Pipeline, q QueryLog, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{pipeline: p, queries: q, logger: logger, now: time.Now}
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type UploadResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	Answer     string          `json:"answer"`
	Citations  []core.Citation `json:"citations"`
	TokenUsage core.TokenUsage `json:"token_usage"`
	Latency    float64         `json:"latency"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeError maps pipeline errors to responses: validation problems are the
// caller's fault, everything else is a 500.
func (h *APIHandler) writeError(w http.ResponseWriter, op string, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		writeDetail(w, http.StatusBadRequest, verr.Msg)
		return
	}
	h.logger.Error(op+" error", logging.Err(err))
	writeDetail(w, http.StatusInternalServerError, logging.Clean(err.Error()))
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Mini RAG API is running"})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: h.now().UTC()})
}

// UploadHandler accepts a multipart "file" or a "text" form field.
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10 MB.")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	var documentText, filename string
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		filename = header.Filename
		if !extract.IsAllowed(filename) {
			writeDetail(w, http.StatusBadRequest, "File type not allowed. Only TXT, MD, PDF, DOCX files are supported.")
			return
		}
		content, err := io.ReadAll(file)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Could not read uploaded file")
			return
		}
		documentText, err = extract.Text(filename, content)
		if err != nil {
			h.writeError(w, "Upload", err)
			return
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		documentText = r.FormValue("text")
		if documentText == "" {
			writeDetail(w, http.StatusBadRequest, "Either file or text must be provided")
			return
		}
		filename = textInputFilename
	default:
		writeDetail(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	if strings.TrimSpace(documentText) == "" {
		writeDetail(w, http.StatusBadRequest, "Document text is empty")
		return
	}

	docID, err := h.pipeline.ProcessDocument(r.Context(), documentText, filename)
	if err != nil {
		h.writeError(w, "Upload", err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Message:    "Document uploaded and processed successfully",
		DocumentID: docID,
		Filename:   filename,
	})
}

func (h *APIHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	query, err := core.NormalizeQuery(req.Query)
	if err != nil {
		h.writeError(w, "Query", err)
		return
	}

	res, err := h.pipeline.Query(r.Context(), query)
	if err != nil {
		h.writeError(w, "Query", err)
		return
	}
	citations := res.Citations
	if citations == nil {
		citations = []core.Citation{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:     res.Answer,
		Citations:  citations,
		TokenUsage: res.TokenUsage,
		Latency:    res.Latency,
	})
}

// ListQueriesHandler serves the query audit log.
func (h *APIHandler) ListQueriesHandler(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultRecentQueries
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > store.MaxRecentQueries {
			writeDetail(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(store.MaxRecentQueries))
			return
		}
		limit = n
	}

	entries, err := h.queries.RecentQueries(r.Context(), limit)
	if err != nil {
		h.writeError(w, "List queries", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
