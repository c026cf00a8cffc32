// logging.go — slog-логирование HTTP-запросов к API CDR Monitor.
// Каждый обработанный запрос даёт одну итоговую запись в лог с методом,
// путём, статусом, длительностью и объёмом ответа; уровень записи
// выводится из статус-кода. SSE-соединения (/api/v1/events) тоже
// проходят через middleware — их запись появляется при закрытии потока.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingResponseWriter перехватывает статус-код и объём записанного ответа.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.bytes += int64(n)
	return n, err
}

// Unwrap отдаёт исходный ResponseWriter для http.ResponseController (Flush в SSE).
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// statusLevel переводит статус-код ответа в уровень логирования:
// 5xx — ERROR, 4xx — WARN, остальное — INFO.
func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware, пишущий итоговую запись по каждому
// HTTP-запросу. Используется глобально, до JWT middleware, поэтому
// отклонённые auth-запросы тоже попадают в лог (как WARN).
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(lw, r)

			log.LogAttrs(r.Context(), statusLevel(lw.status), "Запрос обработан",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", lw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", lw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
