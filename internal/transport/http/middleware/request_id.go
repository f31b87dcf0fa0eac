package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader — заголовок трассировки запроса.
const RequestIDHeader = "X-Request-Id"

// RequestID обеспечивает наличие X-Request-Id.
// Входящий id принимается по тем же правилам, что и id сессии (safeID): он попадает
// в логи и в тело ошибки. Иначе выдаётся новый uuid. Id кладётся в заголовки
// запроса (его читает errors.WriteError) и ответа, а также в контекст.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if !safeID(id) {
				id = uuid.NewString()
			}
			r.Header.Set(RequestIDHeader, id)
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), ctxRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
