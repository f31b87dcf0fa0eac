package middleware

import (
	"context"
	"net/http"
	"strings"

	logctx "github.com/JeevanMahesha/studio/pkg/log"
	"github.com/google/uuid"
)

// SessionHeader — заголовок с id сессии клиента (аналог вкладки браузера).
const SessionHeader = "X-Session-Id"

// maxIDLen ограничивает длину id сессии и запроса: id сессии входит в ключи Redis.
const maxIDLen = 128

// Session обеспечивает наличие id сессии: берёт X-Session-Id или выдаёт новый uuid
// и возвращает его в заголовке ответа. Фильтры списка хранятся по этому id.
func Session() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(SessionHeader))
			if !safeID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(SessionHeader, id)

			ctx := context.WithValue(r.Context(), ctxSessionID, id)
			ctx = logctx.With(ctx, "session_id", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// safeID: непустой, не длиннее maxIDLen, только [A-Za-z0-9_-].
func safeID(id string) bool {
	if id == "" || len(id) > maxIDLen {
		return false
	}

	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}

	return true
}
