package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"BetPulse/internal/domain/models"
	"BetPulse/internal/repository"
	"BetPulse/internal/service/ratelimit"
	"BetPulse/internal/services/consensus"
	"BetPulse/internal/services/schema"
	"BetPulse/internal/usecase"
	xlogger "BetPulse/pkg/logger"
	pkgmetrics "BetPulse/pkg/metrics"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestEcho(t *testing.T, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	engine, err := consensus.NewEngine(consensus.Config{}, consensus.WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 20, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	v, err := schema.NewEvaluateRequestValidator()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	store := repository.NewMemoryDecisionStore()
	ledger := repository.NewMemoryLedger(100)
	eval := usecase.NewEvaluateFixture(usecase.EvaluateDeps{
		Engine:    engine,
		Store:     store,
		Publisher: repository.NopPublisher{},
		Ledger:    ledger,
		Metrics:   pkgmetrics.Nop{},
	})
	queries := usecase.NewDecisionQueries(store, ledger, nil, 0)
	h := NewDecisionsEchoHandler(xlogger.Nop(), eval, queries, store, v, limiter, nil)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

const evaluateBody = `{
	"fixture_id": "ucl-2026-rma-bay",
	"markets": ["1x2"],
	"forecasts": [
		{"agent_id": "poisson", "markets": {"1x2": {"Home": 0.55, "Draw": 0.25, "Away": 0.20}}},
		{"agent_id": "elo", "markets": {"1x2": {"Home": 0.50, "Draw": 0.30, "Away": 0.20}}}
	],
	"snapshots": {"1x2": {"outcomes": {"Home": {"price": 2.1}}}},
	"bankroll": 2000
}`

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, r)
	return rec
}

func decodeRecord(t *testing.T, body []byte) models.DecisionRecord {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var rec models.DecisionRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return rec
}

func TestEvaluateAndRetrieve(t *testing.T) {
	e := newTestEcho(t, nil)

	res := do(e, http.MethodPost, "/api/evaluate", evaluateBody)
	if res.Code != http.StatusCreated {
		t.Fatalf("evaluate status = %d body = %s", res.Code, res.Body.String())
	}
	created := decodeRecord(t, res.Body.Bytes())
	if created.FixtureID != "ucl-2026-rma-bay" || created.Selection != "Home" || created.Seal.Digest == "" {
		t.Fatalf("record = %+v", created)
	}

	res = do(e, http.MethodGet, "/api/decisions/ucl-2026-rma-bay", "")
	if res.Code != http.StatusOK {
		t.Fatalf("get status = %d", res.Code)
	}
	if got := decodeRecord(t, res.Body.Bytes()); got.ID != created.ID {
		t.Fatalf("got id %s, want %s", got.ID, created.ID)
	}

	res = do(e, http.MethodGet, "/api/decisions/ucl-2026-rma-bay/verify", "")
	if res.Code != http.StatusOK {
		t.Fatalf("verify stored status = %d body = %s", res.Code, res.Body.String())
	}

	res = do(e, http.MethodGet, "/api/ledger?limit=5", "")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), created.ID) {
		t.Fatalf("ledger status = %d body = %s", res.Code, res.Body.String())
	}

	res = do(e, http.MethodGet, "/api/decisions/unknown", "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", res.Code)
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := newTestEcho(t, nil)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"schema violation", `{"fixture_id":"f","unexpected":1}`, http.StatusBadRequest},
		{"separator in fixture", `{"fixture_id":"a|b"}`, http.StatusBadRequest},
		{"no agents", `{"fixture_id":"f","markets":["1x2"]}`, http.StatusBadRequest},
		{"no market evaluable", `{
			"fixture_id":"f","markets":["totals"],
			"forecasts":[{"agent_id":"a","markets":{"1x2":{"Home":0.5,"Draw":0.3,"Away":0.2}}}]
		}`, http.StatusUnprocessableEntity},
		{"oversized body", `{"fixture_id":"` + strings.Repeat("x", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(e, http.MethodPost, "/api/evaluate", tt.body)
			if res.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", res.Code, tt.want, res.Body.String())
			}
		})
	}
}

func TestVerifyEndpoints(t *testing.T) {
	e := newTestEcho(t, nil)
	res := do(e, http.MethodPost, "/api/evaluate", evaluateBody)
	rec := decodeRecord(t, res.Body.Bytes())

	body, _ := json.Marshal(models.VerifyRecordRequest{Record: &rec})
	if res := do(e, http.MethodPost, "/api/decisions/verify", string(body)); res.Code != http.StatusOK {
		t.Fatalf("verify record status = %d body = %s", res.Code, res.Body.String())
	}

	tampered := rec
	tampered.Selection = "Away"
	body, _ = json.Marshal(models.VerifyRecordRequest{Record: &tampered})
	if res := do(e, http.MethodPost, "/api/decisions/verify", string(body)); res.Code != http.StatusConflict {
		t.Fatalf("tampered record status = %d", res.Code)
	}

	body, _ = json.Marshal(models.VerifySealRequest{Digest: rec.Seal.Digest, Payload: rec.Seal.Payload, Timestamp: rec.Seal.Timestamp})
	if res := do(e, http.MethodPost, "/api/seals/verify", string(body)); res.Code != http.StatusOK {
		t.Fatalf("verify seal status = %d body = %s", res.Code, res.Body.String())
	}

	badPayload := strings.Replace(rec.Seal.Payload, "Home", "Draw", 1)
	body, _ = json.Marshal(models.VerifySealRequest{Digest: rec.Seal.Digest, Payload: badPayload, Timestamp: rec.Seal.Timestamp})
	if res := do(e, http.MethodPost, "/api/seals/verify", string(body)); res.Code != http.StatusConflict {
		t.Fatalf("forged seal status = %d", res.Code)
	}

	if res := do(e, http.MethodPost, "/api/seals/verify", `{"digest":"xyz"}`); res.Code != http.StatusBadRequest {
		t.Fatalf("invalid seal request status = %d", res.Code)
	}
}

func TestEvaluateRateLimited(t *testing.T) {
	e := newTestEcho(t, ratelimit.New(1, 0.0001))
	if res := do(e, http.MethodPost, "/api/evaluate", evaluateBody); res.Code != http.StatusCreated {
		t.Fatalf("first status = %d", res.Code)
	}
	if res := do(e, http.MethodPost, "/api/evaluate", evaluateBody); res.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", res.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEcho(t, nil)
	res := do(e, http.MethodGet, "/api/health", "")
	if res.Code != http.StatusOK || !bytes.Contains(res.Body.Bytes(), []byte(`"ok"`)) {
		t.Fatalf("health = %d %s", res.Code, res.Body.String())
	}
}
