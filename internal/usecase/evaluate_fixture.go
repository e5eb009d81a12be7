package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	domsvc "BetPulse/internal/domain/service"
	"BetPulse/internal/service/cache"
	"BetPulse/internal/services/consensus"
	applogger "BetPulse/pkg/logger"
)

// ErrPersist marks a decision that was built and sealed but could not be
// stored or published.
var ErrPersist = errors.New("decision not persisted")

// EvaluateFixture runs one evaluation cycle: collect, weigh, decide, then
// fan the sealed record out to the store, Kafka, the live feed and the ledger.
type EvaluateFixture struct {
	engine    *consensus.Engine
	collector *ForecastCollector
	scores    domrepo.ScoreSource
	store     domrepo.DecisionStore
	publisher domrepo.DecisionPublisher
	ledger    domrepo.LedgerStore
	cache     cache.BytesCache
	feed      domsvc.Broadcaster
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

// EvaluateDeps groups the collaborators. Cache and Feed may be nil.
type EvaluateDeps struct {
	Engine    *consensus.Engine
	Collector *ForecastCollector
	Scores    domrepo.ScoreSource
	Store     domrepo.DecisionStore
	Publisher domrepo.DecisionPublisher
	Ledger    domrepo.LedgerStore
	Cache     cache.BytesCache
	Feed      domsvc.Broadcaster
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

func NewEvaluateFixture(d EvaluateDeps) *EvaluateFixture {
	l := d.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &EvaluateFixture{
		engine: d.Engine, collector: d.Collector, scores: d.Scores,
		store: d.Store, publisher: d.Publisher, ledger: d.Ledger,
		cache: d.Cache, feed: d.Feed, metrics: d.Metrics, l: l,
	}
}

// Execute evaluates req. When the record was built but a store or publish
// step failed, both the record and an error wrapping ErrPersist are returned.
func (uc *EvaluateFixture) Execute(ctx context.Context, req *models.EvaluateRequest) (*models.DecisionRecord, error) {
	start := time.Now()
	in := req.ToInput()

	if (req.Collect || len(in.Forecasts) == 0) && uc.collector != nil && uc.collector.Agents() > 0 {
		markets := in.Markets
		if len(markets) == 0 {
			markets = uc.engine.Config().Markets
		}
		collected, unavailable := uc.collector.Collect(ctx, in.FixtureID, markets)
		in.Forecasts = append(append([]models.AgentForecast(nil), in.Forecasts...), collected...)
		in.Unavailable = unavailable
	}

	scores, err := uc.resolveScores(ctx, in)
	if err != nil {
		uc.metrics.RecordError("scores")
		uc.l.Warn("score lookup failed, using request scores only",
			applogger.String("fixture_id", in.FixtureID),
			applogger.Error(err),
		)
	}
	in.Scores = scores

	rec, err := uc.engine.Evaluate(in)
	uc.metrics.RecordLatency("evaluate_seconds", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordEvaluation(evaluationResult(err))
		uc.l.Warn("evaluation rejected",
			applogger.String("fixture_id", in.FixtureID),
			applogger.Int("forecasts", len(in.Forecasts)),
			applogger.Error(err),
		)
		return nil, err
	}
	uc.observe(rec)

	perr := uc.persist(ctx, rec)
	uc.l.Info("fixture evaluated",
		applogger.String("fixture_id", rec.FixtureID),
		applogger.String("record_id", rec.ID),
		applogger.String("market", string(rec.ChosenMarket)),
		applogger.String("signal", string(rec.Signal)),
		applogger.Float64("stake", rec.Stake),
		applogger.Float64("divergence_index", rec.DivergenceIndex),
		applogger.Bool("vetoed", rec.Vetoed),
		applogger.Strings("unavailable", rec.Unavailable),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	if perr != nil {
		return rec, perr
	}
	return rec, nil
}

// resolveScores merges source scores with request scores; the request wins.
func (uc *EvaluateFixture) resolveScores(ctx context.Context, in models.FixtureInput) (map[string]float64, error) {
	out := make(map[string]float64, len(in.Forecasts))
	var err error
	if uc.scores != nil && len(in.Forecasts) > 0 {
		ids := make([]string, 0, len(in.Forecasts))
		for _, f := range in.Forecasts {
			ids = append(ids, f.AgentID)
		}
		var known map[string]float64
		known, err = uc.scores.Scores(ctx, ids)
		for k, v := range known {
			out[k] = v
		}
	}
	for k, v := range in.Scores {
		out[k] = v
	}
	return out, err
}

func (uc *EvaluateFixture) observe(rec *models.DecisionRecord) {
	uc.metrics.RecordEvaluation("ok")
	uc.metrics.RecordChaos(string(rec.Chaos), rec.DivergenceIndex)
	for _, d := range rec.Markets {
		if d.Status != models.MarketOK {
			uc.metrics.RecordMarket(string(d.Market), "failed")
			uc.l.Warn("market not evaluated",
				applogger.String("fixture_id", rec.FixtureID),
				applogger.String("market", string(d.Market)),
				applogger.String("reason", d.Error),
			)
			continue
		}
		uc.metrics.RecordMarket(string(d.Market), string(d.Signal))
		if d.Vetoed {
			uc.metrics.RecordVeto(string(d.Market))
			uc.l.Info("market vetoed",
				applogger.String("fixture_id", rec.FixtureID),
				applogger.String("market", string(d.Market)),
				applogger.String("pick", d.Pick),
			)
		}
		if d.Stake != nil {
			uc.metrics.RecordStake(string(d.Market), *d.Stake)
		}
	}
}

// persist stores first; the remaining sinks run even when it fails so the
// live feed and ledger reflect what was decided.
func (uc *EvaluateFixture) persist(ctx context.Context, rec *models.DecisionRecord) error {
	var errs []error

	start := time.Now()
	if err := uc.store.Upsert(ctx, rec); err != nil {
		uc.metrics.RecordError("store")
		uc.l.Error("store decision failed", applogger.String("fixture_id", rec.FixtureID), applogger.Error(err))
		errs = append(errs, err)
	}
	uc.metrics.RecordLatency("store_seconds", time.Since(start).Seconds())

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, cache.DecisionKey(rec.FixtureID)); err != nil {
			uc.l.Warn("cache invalidate failed", applogger.String("fixture_id", rec.FixtureID), applogger.Error(err))
		}
	}

	if err := uc.publisher.Publish(ctx, rec); err != nil {
		uc.metrics.RecordError("publish")
		uc.l.Error("publish decision failed", applogger.String("fixture_id", rec.FixtureID), applogger.Error(err))
		errs = append(errs, err)
	}

	if uc.feed != nil {
		uc.feed.Broadcast(rec)
	}

	if err := uc.ledger.Append(ctx, LedgerEntries(rec)...); err != nil {
		uc.metrics.RecordError("ledger")
		uc.l.Error("ledger append failed", applogger.String("fixture_id", rec.FixtureID), applogger.Error(err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPersist, errors.Join(errs...))
	}
	return nil
}

// LedgerEntries derives the audit lines for rec. Ids are stable per record
// so a replayed evaluation does not duplicate durable entries.
func LedgerEntries(rec *models.DecisionRecord) []models.LedgerEntry {
	e := models.LedgerEntry{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(rec.ID+"|"+string(models.LedgerPrediction))).String(),
		Kind:      models.LedgerPrediction,
		FixtureID: rec.FixtureID,
		RecordID:  rec.ID,
		Market:    rec.ChosenMarket,
		Selection: rec.Selection,
		Signal:    rec.Signal,
		Stake:     rec.Stake,
		EdgePct:   rec.EdgePct,
		Chaos:     rec.Chaos,
		Vetoed:    rec.Vetoed,
		Digest:    rec.Seal.Digest,
		CreatedAt: rec.Timestamp,
	}
	return []models.LedgerEntry{e}
}

func evaluationResult(err error) string {
	switch {
	case errors.Is(err, consensus.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, consensus.ErrNoData):
		return "no_data"
	default:
		return "error"
	}
}
