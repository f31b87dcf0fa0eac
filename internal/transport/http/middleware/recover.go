package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/JeevanMahesha/studio/internal/transport/http/errors"
)

// Recover перехватывает panic и отвечает 500/internal без деталей паники.
//
// Recover стоит первым в цепочке, поэтому request-scoped логгера у него нет:
// request_id и session_id берутся из заголовков ответа, которые выставили
// RequestID и Session глубже по цепочке.
func Recover(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
				}
				if rid := w.Header().Get(RequestIDHeader); rid != "" {
					attrs = append(attrs, slog.String("request_id", rid))
					r.Header.Set(RequestIDHeader, rid)
				}
				if sid := w.Header().Get(SessionHeader); sid != "" {
					attrs = append(attrs, slog.String("session_id", sid))
				}
				l.LogAttrs(r.Context(), slog.LevelError, "panic", attrs...)

				apierrors.WriteError(w, r, fmt.Errorf("internal"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
