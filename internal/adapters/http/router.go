package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/whitepaper-qa/internal/config"
	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
	"github.com/kirillkom/whitepaper-qa/internal/observability/metrics"
)

//go:embed openapi.yaml
var openAPISpec []byte

const serviceName = "api"

// maxJSONBodyBytes caps query and trigger payloads.
const maxJSONBodyBytes = 1 << 20

type ingestionService interface {
	ports.IngestionTrigger
	ports.DocumentUploader
	ports.RunReader
}

type Router struct {
	cfg       config.Config
	queryUC   ports.QuestionAnswerer
	ingestion ingestionService
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(cfg config.Config, queryUC ports.QuestionAnswerer, ingestion ingestionService, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:       cfg,
		queryUC:   queryUC,
		ingestion: ingestion,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// LoadOpenAPI parses and validates the embedded API description.
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	api.HandleFunc("POST /v1/ingestions", rt.triggerIngestion)
	api.HandleFunc("GET /v1/ingestions/{id}", rt.getIngestion)
	api.HandleFunc("POST /v1/buckets/{bucket}/objects", rt.uploadObject)

	limited := rateLimitMiddleware(
		backpressureMiddleware(api, rt.cfg.APIMaxInFlight, 250*time.Millisecond, rt.metrics),
		rt.cfg.APIRateLimitRPS,
		rt.cfg.APIRateLimitBurst,
		rt.metrics,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = corsMiddleware(handler)
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return recoverMiddleware(rt.logger, handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

type queryRequest struct {
	Question string `json:"question"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("question is required")))
		return
	}

	start := time.Now()
	answer, err := rt.queryUC.Answer(r.Context(), req.Question)
	rt.recordAnswer(r.URL.Path, answer, err, time.Since(start))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recordAnswer(endpoint string, answer *domain.Answer, err error, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	outcome := metrics.OutcomeError
	switch {
	case err != nil:
	case answer.Grounded:
		outcome = metrics.OutcomeGrounded
	case answer.ResponseText == domain.NotFoundContext:
		outcome = metrics.OutcomeNotFound
	default:
		outcome = metrics.OutcomeUngrounded
	}
	rt.metrics.RecordAnswer(serviceName, endpoint, outcome, duration)
}

func (rt *Router) triggerIngestion(w http.ResponseWriter, r *http.Request) {
	var loc domain.ObjectLocation
	if err := decodeJSONBody(w, r, &loc); err != nil {
		rt.writeError(w, r, err)
		return
	}

	run, err := rt.ingestion.Trigger(r.Context(), loc)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIngestionQueued(serviceName, "notification")
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) uploadObject(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIUploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIUploadMaxBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	run, err := rt.ingestion.Upload(r.Context(), r.PathValue("bucket"), header.Filename, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordIngestionQueued(serviceName, "upload")
		rt.metrics.RecordUploadBytes(serviceName, header.Size)
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getIngestion(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "get ingestion", errors.New("run id is required")))
		return
	}

	run, err := rt.ingestion.GetRun(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// decodeJSONBody rejects empty bodies, malformed JSON and trailing data as invalid input.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("request body is required"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	if dec.More() {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("request body must contain a single JSON object"))
	}
	return nil
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
