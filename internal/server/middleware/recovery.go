package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/handlers"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// RecoveryMiddleware создает middleware для восстановления после паники
// Перехватывает panic, логирует стек вызовов и возвращает 500 Internal Server Error
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				// Соединение уже закрыто клиентом: net/http обработает сам
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.Error("Panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"stack", string(debug.Stack()),
				)

				// Возвращаем generic ошибку клиенту (не раскрываем детали)
				handlers.WriteError(logger, w, http.StatusInternalServerError, api.CodeInternal, "")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
