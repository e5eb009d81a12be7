package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	"BetPulse/internal/service/ratelimit"
	"BetPulse/internal/services/consensus"
	"BetPulse/internal/services/integrity"
	"BetPulse/internal/services/schema"
	"BetPulse/internal/usecase"
	xhttp "BetPulse/pkg/http"
	xlogger "BetPulse/pkg/logger"
)

const maxBodyBytes = 1 << 20

// FeedServer upgrades a request onto the live decision feed.
type FeedServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

// DecisionsEchoHandler serves evaluation, retrieval and audit endpoints.
type DecisionsEchoHandler struct {
	logger    *xlogger.Logger
	eval      *usecase.EvaluateFixture
	queries   *usecase.DecisionQueries
	store     domrepo.DecisionStore
	validator *schema.Validator
	limiter   *ratelimit.Limiter
	feed      FeedServer
}

func NewDecisionsEchoHandler(
	logger *xlogger.Logger,
	eval *usecase.EvaluateFixture,
	queries *usecase.DecisionQueries,
	store domrepo.DecisionStore,
	validator *schema.Validator,
	limiter *ratelimit.Limiter,
	feed FeedServer,
) *DecisionsEchoHandler {
	return &DecisionsEchoHandler{
		logger: logger, eval: eval, queries: queries, store: store,
		validator: validator, limiter: limiter, feed: feed,
	}
}

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil {
		g.POST("/evaluate", h.Evaluate, h.limiter.Middleware())
	} else {
		g.POST("/evaluate", h.Evaluate)
	}
	g.GET("/decisions/:fixture_id", h.Get)
	g.GET("/decisions/:fixture_id/verify", h.VerifyStored)
	g.POST("/decisions/verify", h.VerifyRecord)
	g.POST("/seals/verify", h.VerifySeal)
	g.GET("/ledger", h.Ledger)
	g.GET("/health", h.Health)
	if h.feed != nil {
		e.GET("/ws/decisions", h.Stream)
	}
}

// Evaluate runs the engine for one fixture and returns the sealed record.
func (h *DecisionsEchoHandler) Evaluate(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("could not read body"))
	}
	if len(raw) > maxBodyBytes {
		return xhttp.AppErrorResponse(c, xhttp.PayloadTooLargeError(fmt.Sprintf("body exceeds %d bytes", maxBodyBytes)))
	}
	if h.validator != nil {
		if err := h.validator.Validate(raw); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
		}
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(raw))

	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.eval.Execute(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrPersist) && rec != nil {
			h.logger.Error("evaluate persist error",
				xlogger.String("fixture_id", rec.FixtureID),
				xlogger.Error(err),
			)
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("decision was sealed but not persisted").
				WithParam("record_id", rec.ID).WithError(err))
		}
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *DecisionsEchoHandler) Get(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.queries.Get(c.Request().Context(), req.FixtureID)
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, rec)
}

type verifyResult struct {
	Valid    bool   `json:"valid"`
	RecordID string `json:"record_id,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

func (h *DecisionsEchoHandler) VerifyStored(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.queries.VerifyStored(c.Request().Context(), req.FixtureID)
	if err != nil {
		if rec != nil {
			h.logger.Warn("stored decision failed verification",
				xlogger.String("fixture_id", req.FixtureID),
				xlogger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, verifyResult{Valid: true, RecordID: rec.ID, Digest: rec.Seal.Digest})
}

func (h *DecisionsEchoHandler) VerifyRecord(c echo.Context) error {
	req := &models.VerifyRecordRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.queries.VerifyRecord(req.Record); err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, verifyResult{Valid: true, RecordID: req.Record.ID, Digest: req.Record.Seal.Digest})
}

func (h *DecisionsEchoHandler) VerifySeal(c echo.Context) error {
	req := &models.VerifySealRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.queries.VerifySeal(req.Seal()); err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, verifyResult{Valid: true, Digest: req.Digest})
}

func (h *DecisionsEchoHandler) Ledger(c echo.Context) error {
	req := &models.LedgerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	entries, err := h.queries.Ledger(c.Request().Context(), req.Limit, req.Since)
	if err != nil {
		h.logger.Error("ledger read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *DecisionsEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("decision store unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *DecisionsEchoHandler) Stream(c echo.Context) error {
	if err := h.feed.ServeWS(c.Response(), c.Request()); err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		// the upgrader has already written the HTTP error
		return nil
	}
	return nil
}

// mapError turns engine and store errors into API errors.
func mapError(err error) error {
	var (
		inv *consensus.InvalidInputError
		mis *integrity.IntegrityMismatchError
	)
	switch {
	case errors.As(err, &inv):
		return xhttp.BadRequestError(inv.Error()).WithField(inv.Field).WithError(err)
	case errors.Is(err, consensus.ErrNoData):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.As(err, &mis):
		return xhttp.ConflictError(mis.Error()).WithError(err)
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError("no decision for fixture").WithError(err)
	default:
		return err
	}
}
