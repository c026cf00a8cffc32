package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/cdrmon/internal/cdrclient"
	"github.com/bigkaa/cdrmon/internal/domain/model"
	"github.com/bigkaa/cdrmon/internal/service"
)

// testLogger возвращает логгер, пишущий в никуда.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCDR — фейковый клиент сервиса CDR для тестов обработчиков.
type fakeCDR struct {
	records  []cdrclient.CDRRecord
	listCh   chan struct{} // сигнал о вызове ListRecords
	verified bool
}

func (f *fakeCDR) ListRecords(_ context.Context) (*cdrclient.RecordListResponse, error) {
	if f.listCh != nil {
		f.listCh <- struct{}{}
	}
	return &cdrclient.RecordListResponse{Records: f.records, Total: len(f.records)}, nil
}

func (f *fakeCDR) VerifyRecord(_ context.Context, _ int, _ string) (bool, error) {
	return f.verified, nil
}

// fixture — собранный стенд обработчиков состояния.
type fixture struct {
	handler *StateHandler
	state   *service.StateStore
	alert   *service.AlertService
	cdr     *fakeCDR
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := testLogger()
	cdr := &fakeCDR{verified: true}
	alert := service.NewAlertService(time.Minute, logger)
	t.Cleanup(alert.Stop)
	state := service.NewStateStore(alert)
	verifier := service.NewVerifierService(cdr, logger)
	syncSvc := service.NewSyncService(cdr, verifier, state, alert, time.Minute, logger)

	return &fixture{
		handler: NewStateHandler(state, alert, syncSvc, logger),
		state:   state,
		alert:   alert,
		cdr:     cdr,
	}
}

// seedRecords наполняет состояние тестовыми записями.
func (f *fixture) seedRecords() {
	f.state.ReplaceRecords([]model.Record{
		{Caller: "+74950000001", Callee: "+74950000002", Hash: "aaa111", StorageRef: "s3://cdr/1", Status: model.StatusVerified, Verified: true},
		{Caller: "+74950000003", Callee: "+74950000004", Hash: "bbb222", Status: model.StatusError},
	})
}

func TestGetStateSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedRecords()

	rec := httptest.NewRecorder()
	f.handler.GetState(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}

	var snap model.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if len(snap.Records) != 2 {
		t.Errorf("ожидались 2 записи, получено %d", len(snap.Records))
	}
	if snap.Stats.Total != 2 || snap.Stats.Verified != 1 || snap.Stats.Errors != 1 {
		t.Errorf("неверные счётчики: %+v", snap.Stats)
	}
}

func TestGetRecordsAppliesFilter(t *testing.T) {
	f := newFixture(t)
	f.seedRecords()
	f.state.SetSearchTerm("aaa111")

	rec := httptest.NewRecorder()
	f.handler.GetRecords(rec, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

	var resp struct {
		Records    []model.Record `json:"records"`
		Total      int            `json:"total"`
		SearchTerm string         `json:"search_term"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("ожидалась 1 отфильтрованная запись, получено %d", resp.Total)
	}
	if resp.Records[0].Hash != "aaa111" {
		t.Errorf("ожидалась запись с hash aaa111, получена %q", resp.Records[0].Hash)
	}
	if resp.SearchTerm != "aaa111" {
		t.Errorf("ожидался search_term aaa111, получен %q", resp.SearchTerm)
	}
}

func TestSetSearchRecomputesView(t *testing.T) {
	f := newFixture(t)
	f.seedRecords()

	body := bytes.NewBufferString(`{"term": "+74950000003"}`)
	rec := httptest.NewRecorder()
	f.handler.SetSearch(rec, httptest.NewRequest(http.MethodPut, "/api/v1/search", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("ожидалась 1 запись после смены запроса, получено %d", resp.Total)
	}
}

func TestSetSearchInvalidBody(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.SetSearch(rec, httptest.NewRequest(http.MethodPut, "/api/v1/search", bytes.NewBufferString("{не json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}

	var errResp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if errResp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("ожидался код VALIDATION_ERROR, получен %q", errResp.Error.Code)
	}
}

func TestTriggerRefreshRunsCycle(t *testing.T) {
	f := newFixture(t)
	f.cdr.listCh = make(chan struct{}, 1)
	f.cdr.records = []cdrclient.CDRRecord{
		{Caller: "+74950000005", Callee: "+74950000006", Hash: "ccc333", Status: "verified"},
	}

	rec := httptest.NewRecorder()
	f.handler.TriggerRefresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидался статус 202, получен %d", rec.Code)
	}

	// Цикл выполняется асинхронно — ждём вызова ListRecords
	select {
	case <-f.cdr.listCh:
	case <-time.After(2 * time.Second):
		t.Fatal("цикл обновления не запустился")
	}

	// Даём циклу завершиться и проверяем состояние
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.state.Stats().Total == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("состояние не обновлено после ручного запуска цикла: %+v", f.state.Stats())
}

func TestDismissAlert(t *testing.T) {
	f := newFixture(t)
	f.alert.Set("тестовое сообщение")

	rec := httptest.NewRecorder()
	f.handler.DismissAlert(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/alert", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d", rec.Code)
	}
	if msg := f.alert.Message(); msg != "" {
		t.Errorf("сообщение не снято: %q", msg)
	}
}

// fakeChecker — фейковый ReadinessChecker.
type fakeChecker struct {
	status  string
	message string
}

func (c *fakeChecker) CheckReady() (string, string) {
	return c.status, c.message
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(&fakeChecker{status: "ok"})

	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		wantStatus int
	}{
		{"сервис CDR доступен", &fakeChecker{status: "ok"}, http.StatusOK},
		{"сервис CDR недоступен", &fakeChecker{status: "fail", message: "connection refused"}, http.StatusServiceUnavailable},
		{"checker не инициализирован", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checker)

			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("ожидался статус %d, получен %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
