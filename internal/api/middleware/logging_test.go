package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// logLine — разобранная JSON-запись лога.
type logLine struct {
	Level  string `json:"level"`
	Msg    string `json:"msg"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status"`
	Bytes  int64  `json:"bytes"`
}

// runLogged пропускает запрос через RequestLogger и возвращает запись лога.
func runLogged(t *testing.T, handler http.HandlerFunc, req *http.Request) logLine {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rec := httptest.NewRecorder()
	RequestLogger(logger)(handler).ServeHTTP(rec, req)

	var line logLine
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("ошибка разбора записи лога: %v (лог: %s)", err, buf.String())
	}
	return line
}

func TestRequestLogger_SuccessfulRequest(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}

	line := runLogged(t, handler, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if line.Level != "INFO" {
		t.Errorf("ожидался уровень INFO, получен %s", line.Level)
	}
	if line.Method != http.MethodGet || line.Path != "/api/v1/stats" {
		t.Errorf("неверные метод/путь в логе: %s %s", line.Method, line.Path)
	}
	if line.Status != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", line.Status)
	}
	if line.Bytes != int64(len(`{"status":"ok"}`)) {
		t.Errorf("неверный объём ответа: %d", line.Bytes)
	}
}

func TestRequestLogger_LevelFromStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"успех", http.StatusOK, "INFO"},
		{"редирект", http.StatusTemporaryRedirect, "INFO"},
		{"ошибка клиента", http.StatusBadRequest, "WARN"},
		{"не авторизован", http.StatusUnauthorized, "WARN"},
		{"ошибка сервера", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}

			line := runLogged(t, handler, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

			if line.Level != tt.wantLevel {
				t.Errorf("статус %d: ожидался уровень %s, получен %s", tt.status, tt.wantLevel, line.Level)
			}
			if line.Status != tt.status {
				t.Errorf("ожидался статус %d в логе, получен %d", tt.status, line.Status)
			}
		})
	}
}
