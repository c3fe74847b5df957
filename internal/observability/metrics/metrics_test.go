package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddlewareNormalizesRunPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ingestions/abc-123", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `wpqa_http_requests_total{method="GET",path="/v1/ingestions/{id}",service="api",status="404"} 1`) {
		t.Fatalf("expected normalized request counter, got:\n%s", out)
	}
}

func TestRecordAnswerByOutcome(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordAnswer("api", "/v1/rag/query", OutcomeNotFound, 10*time.Millisecond)
	m.RecordAnswer("api", "/v1/rag/query", OutcomeGrounded, 20*time.Millisecond)
	m.RecordAnswer("api", "/v1/rag/query", OutcomeGrounded, 30*time.Millisecond)

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `wpqa_rag_answers_total{endpoint="/v1/rag/query",outcome="grounded",service="api"} 2`) {
		t.Fatalf("expected grounded counter, got:\n%s", out)
	}
	if !strings.Contains(out, `wpqa_rag_answers_total{endpoint="/v1/rag/query",outcome="not_found",service="api"} 1`) {
		t.Fatalf("expected not_found counter, got:\n%s", out)
	}
}

func TestWorkerFinishRunCountsDocuments(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartRun()
	m.FinishRun("worker", time.Second, &domain.IngestionRun{
		Status:  domain.RunPartial,
		Records: 5,
		Documents: []domain.DocumentResult{
			{Status: domain.DocumentIndexed, Records: 5},
			{Status: domain.DocumentFailed},
		},
	}, nil)
	m.StartRun()
	m.FinishRun("worker", time.Second, nil, io.ErrUnexpectedEOF)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`wpqa_worker_ingestion_runs_total{service="worker",status="partial"} 1`,
		`wpqa_worker_ingestion_runs_total{service="worker",status="error"} 1`,
		`wpqa_worker_documents_total{service="worker",status="failed"} 1`,
		`wpqa_worker_records_written_total{service="worker"} 5`,
		`wpqa_worker_ingestion_runs_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
