package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"color-quiz-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// Set for incomplete attempts.
	Total     *int `json:"total,omitempty"`
	Answered  *int `json:"answered,omitempty"`
	Remaining *int `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse maps an error onto a status code and a body that never exposes storage details.
func errorResponse(err error) (int, errorBody) {
	var (
		verr       *domain.ValidationError
		incomplete *domain.IncompleteError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Error: verr.Message, Field: verr.Field}
	case errors.As(err, &incomplete):
		return http.StatusConflict, errorBody{
			Error:     incomplete.Error(),
			Total:     &incomplete.Assigned,
			Answered:  &incomplete.Answered,
			Remaining: &incomplete.Remaining,
		}
	case errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound, errorBody{Error: domain.ErrAttemptNotFound.Error()}
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound, errorBody{Error: domain.ErrQuestionNotFound.Error()}
	case errors.Is(err, domain.ErrNoQuestions):
		return http.StatusBadRequest, errorBody{Error: domain.ErrNoQuestions.Error()}
	case errors.Is(err, domain.ErrInsufficientQuestions), errors.Is(err, domain.ErrAssignmentMismatch):
		return http.StatusServiceUnavailable, errorBody{Error: "questions could not be assigned"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeValid decodes a JSON body into dst and runs struct validation.
func decodeValid(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("body", "malformed JSON: %v", err)
	}
	return validateStruct(v, dst)
}

func validateStruct(v *validator.Validate, dst any) error {
	err := v.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.Invalid(fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:], "failed %s validation", fe.Tag())
	}
	return domain.Invalid("body", "%v", err)
}
