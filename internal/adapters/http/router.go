package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/adapters/http/openapi"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/ports"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/observability/metrics"
)

const (
	anonymousIdentity    = "anonymous"
	maxJSONBodyBytes     = 2 << 20
	multipartMemoryBytes = 8 << 20
	multipartOverhead    = 1 << 20
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Dependencies are the inbound ports and collaborators served by the router.
// Contract, Exposition and HTTPMetrics are optional.
type Dependencies struct {
	Processor   ports.DocumentProcessor
	Classifier  ports.TextClassifier
	History     ports.HistoryService
	Metrics     ports.MetricsReporter
	Contract    *openapi.Contract
	Exposition  http.Handler
	HTTPMetrics *metrics.HTTPServerMetrics
	Logger      *slog.Logger
}

type Router struct {
	deps Dependencies

	service          string
	unknown          string
	maxUploadBytes   int64
	maxInFlight      int
	backpressureWait time.Duration
	limiter          *rate.Limiter
	logger           *slog.Logger
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	unknown := strings.TrimSpace(cfg.UnknownCategory)
	if unknown == "" {
		unknown = domain.DefaultUnknownCategory
	}
	return &Router{
		deps:             deps,
		service:          "api",
		unknown:          unknown,
		maxUploadBytes:   cfg.MaxUploadBytes(),
		maxInFlight:      cfg.MaxConcurrentRequests,
		backpressureWait: cfg.BackpressureWait,
		limiter:          newLimiter(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst),
		logger:           logger,
	}
}

func (rt *Router) Handler() http.Handler {
	bounded := backpressure(rt.maxInFlight, rt.backpressureWait, rt.recordRejected)
	guarded := func(h http.Handler) http.Handler {
		return rateLimitMiddleware(h, rt.limiter, rt.recordRejected)
	}
	pipeline := func(h http.HandlerFunc) http.Handler {
		return guarded(bounded(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("POST /classify-text", pipeline(rt.classifyText))
	mux.Handle("POST /process-document", pipeline(rt.processDocument))
	mux.Handle("GET /metrics/global", guarded(http.HandlerFunc(rt.globalMetrics)))
	mux.Handle("GET /history", guarded(http.HandlerFunc(rt.history)))
	mux.Handle("GET /history/export", guarded(http.HandlerFunc(rt.exportHistory)))
	mux.HandleFunc("GET /openapi.json", rt.openAPIDocument)
	if rt.deps.Exposition != nil {
		mux.Handle("GET /metrics", rt.deps.Exposition)
	}

	var handler http.Handler = mux
	if rt.deps.HTTPMetrics != nil {
		handler = rt.deps.HTTPMetrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejected(reason string) {
	if rt.deps.HTTPMetrics != nil {
		rt.deps.HTTPMetrics.RecordRejected(rt.service, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	if rt.deps.Contract == nil {
		writeMessage(w, http.StatusNotFound, "api contract is not published")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.deps.Contract.JSON())
}

type classifyTextResponse struct {
	Categoria *string `json:"categoria"`
	Confianza float64 `json:"confianza"`
	RecordID  string  `json:"record_id,omitempty"`
	Status    string  `json:"status"`
}

func (rt *Router) classifyText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrValidation, "read request body", err))
		return
	}
	if rt.deps.Contract != nil {
		if err := rt.deps.Contract.ValidateBody(openapi.ClassifyTextRequestSchema, body); err != nil {
			writeError(w, err)
			return
		}
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, domain.WrapError(domain.ErrValidation, "decode request body", err))
		return
	}

	res, err := rt.deps.Classifier.ClassifyText(r.Context(), identityFromRequest(r, ""), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, classifyTextResponse{
		Categoria: rt.knownCategory(res.Gated.Category),
		Confianza: res.Gated.Confidence,
		RecordID:  res.RecordID,
		Status:    string(res.Status),
	})
}

type processDocumentResponse struct {
	Status              string               `json:"status"`
	Summary             string               `json:"summary"`
	RecordID            string               `json:"record_id,omitempty"`
	OriginalFileMinio   *string              `json:"original_file_minio"`
	ClassifiedFileMinio *string              `json:"classified_file_minio"`
	FinalCategory       *string              `json:"final_category"`
	SmavConfidence      float64              `json:"smav_confidence"`
	LowConfidence       bool                 `json:"low_confidence"`
	TextLength          int                  `json:"text_length"`
	ExtractedText       string               `json:"extracted_text"`
	Stages              []domain.StageResult `json:"stages"`
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	sub, err := rt.readSubmission(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := rt.deps.Processor.Process(r.Context(), sub)
	if res == nil {
		if err == nil {
			err = errors.New("pipeline returned no result")
		}
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status == domain.StatusFailed {
		status = mapErrorToHTTPStatus(err)
		if err == nil {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, rt.toProcessResponse(res))
}

func (rt *Router) readSubmission(w http.ResponseWriter, r *http.Request) (domain.DocumentSubmission, error) {
	if rt.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.DocumentSubmission{}, rt.uploadTooLarge()
		}
		return domain.DocumentSubmission{}, domain.WrapError(domain.ErrValidation, "parse multipart form", errors.New("multipart field 'file' is required"))
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.DocumentSubmission{}, domain.WrapError(domain.ErrValidation, "read upload", errors.New("multipart field 'file' is required"))
	}
	defer file.Close()

	if rt.maxUploadBytes > 0 && header.Size > rt.maxUploadBytes {
		return domain.DocumentSubmission{}, rt.uploadTooLarge()
	}
	body, err := io.ReadAll(file)
	if err != nil {
		return domain.DocumentSubmission{}, domain.WrapError(domain.ErrValidation, "read upload", err)
	}

	return domain.DocumentSubmission{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Identity:    identityFromRequest(r, r.FormValue("username")),
		Body:        body,
	}, nil
}

func (rt *Router) uploadTooLarge() error {
	return domain.WrapError(domain.ErrValidation, "read upload", fmt.Errorf("file exceeds the %d MB upload limit", rt.maxUploadBytes>>20))
}

func (rt *Router) toProcessResponse(res *domain.ProcessResult) processDocumentResponse {
	return processDocumentResponse{
		Status:              string(res.Status),
		Summary:             res.Summary,
		RecordID:            res.RecordID,
		OriginalFileMinio:   location(res.IncomingRef),
		ClassifiedFileMinio: location(res.ClassifiedRef),
		FinalCategory:       rt.knownCategory(res.Gated.Category),
		SmavConfidence:      res.Gated.Confidence,
		LowConfidence:       res.Gated.Rejected,
		TextLength:          utf8.RuneCountInString(res.ExtractedText),
		ExtractedText:       res.ExtractedText,
		Stages:              res.Stages,
	}
}

func (rt *Router) globalMetrics(w http.ResponseWriter, r *http.Request) {
	global, err := rt.deps.Metrics.Global(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, global)
}

type historyResponse struct {
	Records []domain.ClassificationRecord `json:"records"`
	Count   int                           `json:"count"`
}

func (rt *Router) history(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLedgerFilter(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := rt.deps.History.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.ClassificationRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Records: records, Count: len(records)})
}

func (rt *Router) exportHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLedgerFilter(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	workbook, err := rt.deps.History.Export(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="history.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(workbook)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(workbook)
}

func parseLedgerFilter(r *http.Request, paged bool) (domain.LedgerFilter, error) {
	q := r.URL.Query()
	filter := domain.LedgerFilter{
		Identity: strings.TrimSpace(q.Get("user")),
		Category: strings.TrimSpace(q.Get("category")),
	}

	var err error
	if filter.Since, err = parseTimeParam(q.Get("since"), "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTimeParam(q.Get("until"), "until"); err != nil {
		return filter, err
	}
	if !paged {
		return filter, nil
	}
	if filter.Limit, err = parseIntParam(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseIntParam(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "parse "+name, err)
	}
	return &ts, nil
}

func parseIntParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrValidation, "parse "+name, err)
	}
	return n, nil
}

// identityFromRequest prefers the X-User header, then the form field.
func identityFromRequest(r *http.Request, formValue string) string {
	if user := strings.TrimSpace(r.Header.Get(userHeader)); user != "" {
		return user
	}
	if user := strings.TrimSpace(formValue); user != "" {
		return user
	}
	return anonymousIdentity
}

func (rt *Router) knownCategory(category string) *string {
	if category == "" || category == rt.unknown {
		return nil
	}
	return &category
}

func location(ref domain.ArtifactRef) *string {
	if !ref.Written() {
		return nil
	}
	loc := ref.Location()
	return &loc
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
