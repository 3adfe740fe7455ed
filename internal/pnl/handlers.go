package pnl

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/optpnl/pnl-engine/internal/contract"
	"github.com/optpnl/pnl-engine/internal/export"
	"github.com/optpnl/pnl-engine/internal/ingest"
	"github.com/optpnl/pnl-engine/internal/metrics"
	"github.com/optpnl/pnl-engine/internal/model"
)

// --- Request/Response types ---

// UploadRequest is the JSON body for POST /uploads. Each execution is
// decoded on its own as an ingest.Record, so a malformed entry is rejected
// by row instead of failing the request.
type UploadRequest struct {
	Source     string            `json:"source"`
	Executions []json.RawMessage `json:"executions"`
}

// Routes mounts the API on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/uploads", s.Upload)
	r.Get("/uploads", s.ListUploads)
	r.Get("/executions", s.ListExecutions)
	r.Get("/report", s.GetReport)
	r.Get("/report.xlsx", s.ExportReport)
	r.Get("/positions", s.ListPositions)
	r.Get("/positions/{leg}", s.GetPosition)
}

// --- HTTP Handlers ---

// Upload handles POST /api/v1/uploads
// Accepts a multipart broker file (field "file") or a JSON UploadRequest.
func (s *Service) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var (
		res *ingest.Result
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		res, err = s.parseMultipart(r)
	} else {
		res, err = parseJSON(r)
	}
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("refused").Inc()
		writeIngestError(w, err)
		return
	}

	out, err := s.Apply(r.Context(), res)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		slog.Error("apply batch failed", "source", res.Source, "err", err)
		writeError(w, "failed to record batch", http.StatusInternalServerError)
		return
	}
	metrics.UploadsTotal.WithLabelValues("applied").Inc()

	writeJSON(w, http.StatusCreated, out)
}

func (s *Service) parseMultipart(r *http.Request) (*ingest.Result, error) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return nil, badRequest("invalid multipart body")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("file field is required")
	}
	defer file.Close()

	return ingest.Parse(file, header.Filename)
}

func parseJSON(r *http.Request) (*ingest.Result, error) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, badRequest("invalid request body")
	}
	if req.Source == "" {
		req.Source = "api"
	}
	return ingest.ParseRecords(req.Source, req.Executions), nil
}

// ListUploads handles GET /api/v1/uploads
func (s *Service) ListUploads(w http.ResponseWriter, r *http.Request) {
	batches, err := s.Batches(r.Context())
	if err != nil {
		writeError(w, "failed to list uploads", http.StatusInternalServerError)
		return
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// ListExecutions handles GET /api/v1/executions
// Optional ?symbol= filter.
func (s *Service) ListExecutions(w http.ResponseWriter, r *http.Request) {
	executions, err := s.Executions(r.Context())
	if err != nil {
		writeError(w, "failed to load executions", http.StatusInternalServerError)
		return
	}

	if sym := strings.ToUpper(r.URL.Query().Get("symbol")); sym != "" {
		filtered := executions[:0:0]
		for _, e := range executions {
			if e.Symbol == sym {
				filtered = append(filtered, e)
			}
		}
		executions = filtered
	}
	if executions == nil {
		executions = []model.TradeExecution{}
	}
	writeJSON(w, http.StatusOK, executions)
}

// GetReport handles GET /api/v1/report
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Report(r.Context())
	if err != nil {
		slog.Error("build report failed", "err", err)
		writeError(w, "failed to build report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ExportReport handles GET /api/v1/report.xlsx
func (s *Service) ExportReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Report(r.Context())
	if err != nil {
		writeError(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	// Render fully before writing headers so a failure can still be a 500.
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rep); err != nil {
		slog.Error("export failed", "err", err)
		writeError(w, "failed to render workbook", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="Script_Wise_Summary.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ListPositions handles GET /api/v1/positions
// Optional ?status=open|closed filter.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Report(r.Context())
	if err != nil {
		writeError(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	positions := rep.Positions
	if status := strings.ToUpper(r.URL.Query().Get("status")); status != "" {
		filtered := []model.LedgerState{}
		for _, p := range positions {
			if p.Status.String() == status {
				filtered = append(filtered, p)
			}
		}
		positions = filtered
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET /api/v1/positions/{leg}
// e.g. /api/v1/positions/NIFTY_25JUL2024_24000_C
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	key, err := contract.ParseLeg(chi.URLParam(r, "leg"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pos, err := s.Position(r.Context(), key)
	if errors.Is(err, errNoPosition) {
		writeError(w, "no position for "+key.String(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to build report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// --- Helpers ---

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// writeIngestError maps normalization failures onto status codes. A missing
// column refuses the whole batch and nothing is persisted.
func writeIngestError(w http.ResponseWriter, err error) {
	var mc *ingest.MissingColumnsError
	var re *requestError
	switch {
	case errors.As(err, &mc):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":           mc.Error(),
			"missing_columns": mc.Columns,
		})
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.As(err, &re):
		writeError(w, re.msg, http.StatusBadRequest)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
