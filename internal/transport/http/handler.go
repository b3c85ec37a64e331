package http

import (
	"context"
	"net/http"
	"time"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AttemptHandler exposes the attempt use cases as JSON endpoints.
type AttemptHandler struct {
	service  *app.AttemptService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAttemptHandler(service *app.AttemptService, logger *zap.Logger) *AttemptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptHandler{service: service, validate: newValidator(), logger: logger}
}

type answerRequest struct {
	QuestionID  string              `json:"questionId" validate:"required"`
	QType       domain.QuestionType `json:"qtype" validate:"required,oneof=likert single ranked"`
	LikertValue *float64            `json:"likertValue"`
	OptionID    string              `json:"optionId"`
	Ranked      []domain.RankedItem `json:"ranked"`
}

type rankingRequest struct {
	QuestionID string              `json:"questionId" validate:"required"`
	Ranked     []domain.RankedItem `json:"ranked" validate:"required,len=4,dive"`
}

// rankingResponse carries the stored answer and a rank-point preview for the question.
type rankingResponse struct {
	Answer domain.Answer  `json:"answer"`
	Debug  rankingPreview `json:"debug"`
}

type rankingPreview struct {
	Totals  domain.Weights `json:"totals,omitempty"`
	Warning string         `json:"warning,omitempty"`
}

type createdResponse struct {
	AttemptID string `json:"attemptId"`
	Total     int    `json:"total"`
}

// Mount registers the attempt routes on r.
func (h *AttemptHandler) Mount(r chi.Router) {
	r.Post("/attempts", h.create)
	r.Route("/attempts/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Get("/next", h.next)
		r.Post("/answers", h.answer)
		r.Post("/rankings", h.rank)
		r.Get("/progress", h.progress)
		r.Post("/finish", h.finish)
		r.Get("/results", h.results)
	})
}

func (h *AttemptHandler) create(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.CreateAttempt(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{AttemptID: attempt.ID, Total: len(attempt.Questions)})
}

func (h *AttemptHandler) view(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AttemptHandler) next(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.Next(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *AttemptHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeValid(r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	answer, err := h.service.RecordAnswer(r.Context(), chi.URLParam(r, "id"), app.Submission{
		QuestionID:  req.QuestionID,
		QType:       req.QType,
		LikertValue: req.LikertValue,
		OptionID:    req.OptionID,
		Ranking:     req.Ranked,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *AttemptHandler) rank(w http.ResponseWriter, r *http.Request) {
	var req rankingRequest
	if err := decodeValid(r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	answer, err := h.service.RecordRanking(r.Context(), chi.URLParam(r, "id"), req.QuestionID, req.Ranked)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := rankingResponse{Answer: answer}
	// the answer is already stored; a failed preview only degrades the response
	totals, err := h.service.RankingPreview(r.Context(), req.QuestionID, req.Ranked)
	if err != nil {
		h.logger.Warn("ranking preview failed", zap.String("questionId", req.QuestionID), zap.Error(err))
		resp.Debug.Warning = "preview unavailable"
	} else {
		resp.Debug.Totals = totals
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AttemptHandler) progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AttemptHandler) finish(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AttemptHandler) results(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HealthHandler pings every store and answers 503 when one is unreachable.
func HealthHandler(logger *zap.Logger, stores ...Pinger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, s := range stores {
			if err := s.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
