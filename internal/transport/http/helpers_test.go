package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"color-quiz-service/internal/infra/memory"
	"color-quiz-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// firstN allocates the first n bank questions in bank order.
type firstN struct{ bank *memory.StaticBank }

func (a firstN) Allocate(ctx context.Context, _ string, count int) ([]domain.AssignedQuestion, error) {
	refs, err := a.bank.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(refs) < count {
		return nil, domain.ErrInsufficientQuestions
	}
	out := make([]domain.AssignedQuestion, count)
	for i := range out {
		out[i] = domain.AssignedQuestion{Position: i + 1, QuestionID: refs[i].ID, QType: refs[i].QType}
	}
	return out, nil
}

func sampleBank(t *testing.T) *memory.StaticBank {
	t.Helper()
	bank, err := memory.NewStaticBank([]domain.Question{
		{ID: "q1", Prompt: "I act fast", QType: domain.QuestionLikert, Category: "red"},
		{ID: "q2", Prompt: "I plan ahead", QType: domain.QuestionLikert, Category: "blue"},
		{ID: "q3", Prompt: "Pick one", QType: domain.QuestionSingleChoice, Options: []domain.Option{
			{ID: "o1", Label: "Go", Weights: domain.Weights{"red": 4}},
			{ID: "o2", Label: "Wait", Weights: domain.Weights{"blue": 4}},
		}},
		{ID: "q4", Prompt: "Rank these", QType: domain.QuestionRanked, Options: []domain.Option{
			{ID: "r1", Label: "Lead", Weights: domain.Weights{"red": 4}},
			{ID: "r2", Label: "Analyse", Weights: domain.Weights{"blue": 4}},
			{ID: "r3", Label: "Inspire", Weights: domain.Weights{"yellow": 2, "red": 2}},
			{ID: "r4", Label: "Support", Weights: domain.Weights{"green": 4}},
		}},
	})
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	return bank
}

type testServer struct {
	*httptest.Server
	service *app.AttemptService
	metrics *metrics.Metrics
	nextID  int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	bank := sampleBank(t)
	store := memory.NewAttemptStore()
	ts := &testServer{metrics: metrics.New(prometheus.NewRegistry())}
	ts.service = app.NewAttemptService(app.ServiceConfig{
		QuestionCount: 4,
		NewID: func() string {
			ts.nextID++
			return fmt.Sprintf("attempt-%d", ts.nextID)
		},
		Feeds:     memory.NewFeedStore(),
		Telemetry: ts.metrics,
	}, store, store, bank, firstN{bank: bank}, nil)

	ts.Server = httptest.NewServer(NewRouter(RouterConfig{
		Attempts: NewAttemptHandler(ts.service, nil),
		WS:       NewWSHandler(ts.service, nil),
		Metrics:  ts.metrics,
		Health:   HealthHandler(nil, store),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) createAttempt(t *testing.T) string {
	t.Helper()
	var created createdResponse
	if status := ts.do(t, http.MethodPost, "/api/attempts", nil, &created); status != http.StatusCreated {
		t.Fatalf("create attempt: status %d", status)
	}
	return created.AttemptID
}
