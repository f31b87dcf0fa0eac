// errors стандартизирует ответы об ошибках HTTP API profiles-service.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей;
//   - поля с ошибками валидации (fields), если они есть.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
// Fields — путь поля -> сообщение, только для invalid_argument.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrBadRequest — запрос не разобран (битый JSON, неверный параметр).
var ErrBadRequest = errors.New("bad request")

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и ответ для фронта.
//
// Таблица:
//   - ErrInvalidArgument, ErrInvalidCursor, ErrBadRequest -> 400
//   - ErrNotFound -> 404
//   - ErrStatusInUse -> 409 (отдельное сообщение: статус используется)
//   - context.Canceled -> 499
//   - context.DeadlineExceeded -> 504
//   - ErrUnavailable -> 503
//   - прочее (и err == nil) -> 500/internal
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, newResp("internal", "internal error")
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, ErrBadRequest):
		resp := newResp("invalid_argument", "invalid argument")
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			resp.Error.Fields = verr.Fields
		}
		return http.StatusBadRequest, resp
	case errors.Is(err, service.ErrInvalidCursor):
		return http.StatusBadRequest, newResp("invalid_cursor", "invalid page token")
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, newResp("not_found", "not found")
	case errors.Is(err, service.ErrStatusInUse):
		return http.StatusConflict, newResp("status_in_use", "status is in use by profiles and cannot be deleted")
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, newResp("canceled", "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, newResp("deadline_exceeded", "deadline exceeded")
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, newResp("unavailable", "service unavailable")
	default:
		return http.StatusInternalServerError, newResp("internal", "internal error")
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func newResp(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
