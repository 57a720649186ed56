package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

const (
	defaultPage = 0
	defaultSize = 10
)

var validate = validator.New()

// Pagination describes where a page sits in the full result
type Pagination struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// PageResponse is the envelope of every paginated endpoint
type PageResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// PageQuery holds the paging parameters shared by the list endpoints
type PageQuery struct {
	Page int `validate:"gte=0"`
	Size int `validate:"gte=1,lte=100"`
}

// parsePageQuery reads page and size from the query string, applying defaults
func parsePageQuery(r *http.Request) (PageQuery, error) {
	q := PageQuery{Page: defaultPage, Size: defaultSize}
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.NewValidationError("page must be an integer")
		}
		q.Page = page
	}
	if raw := values.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return q, apperrors.NewValidationError("size must be an integer")
		}
		q.Size = size
	}

	if err := validate.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return q, apperrors.NewValidationError(pagingMessage(fieldErrs[0]))
		}
		return q, apperrors.NewValidationError("invalid paging parameters")
	}
	return q, nil
}

func pagingMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Page":
		return "page must be zero or greater"
	case "Size":
		return "size must be between 1 and 100"
	default:
		return "invalid " + fe.Field()
	}
}

func newPageResponse[T any](page entities.Page[T]) PageResponse[T] {
	data := page.Content
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data: data,
		Pagination: Pagination{
			Page:          page.Page,
			Size:          page.Size,
			TotalElements: page.TotalElements,
			TotalPages:    page.TotalPages,
		},
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithAppError maps the error taxonomy onto HTTP statuses. Anything that is
// not a client error is logged and reported with a generic message.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
			return
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		case apperrors.ErrorTypeUnauthorized:
			respondWithError(w, http.StatusUnauthorized, appErr.Message)
			return
		case apperrors.ErrorTypeConflict:
			respondWithError(w, http.StatusConflict, appErr.Message)
			return
		}
	}

	observability.LoggerFromContext(r.Context()).Error().Err(err).
		Str("path", r.URL.Path).
		Msg("request failed")
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}
