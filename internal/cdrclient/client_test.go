package cdrclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockCDR создаёт mock HTTP-сервер сервиса CDR.
func setupMockCDR(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// mockTokenProviderError возвращает ошибку вместо токена.
func mockTokenProviderError() TokenProvider {
	return func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("ошибка получения токена")
	}
}

// TestClient_ListRecords проверяет ListRecords (GET /api/v1/records).
func TestClient_ListRecords(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/records" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RecordListResponse{
			Records: []CDRRecord{
				{
					Caller:     "+79161234567",
					Callee:     "+79169876543",
					Hash:       "sha256:abc123",
					StorageRef: "bafybeigdyrzt5",
					Status:     "verified",
				},
				{
					Caller: "+79160000001",
					Callee: "+79160000002",
					Hash:   "sha256:def456",
					Status: "error",
				},
			},
			Total: 2,
		})
	})

	client, err := New(server.URL, "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Ошибка ListRecords: %v", err)
	}

	if resp.Total != 2 {
		t.Errorf("ожидался Total=2, получен %d", resp.Total)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(resp.Records))
	}
	if resp.Records[0].Caller != "+79161234567" {
		t.Errorf("ожидался Caller=+79161234567, получен %s", resp.Records[0].Caller)
	}
	if resp.Records[0].StorageRef != "bafybeigdyrzt5" {
		t.Errorf("ожидался StorageRef=bafybeigdyrzt5, получен %s", resp.Records[0].StorageRef)
	}
	if resp.Records[1].Status != "error" {
		t.Errorf("ожидался Status=error, получен %s", resp.Records[1].Status)
	}
}

// TestClient_ListRecords_TrailingSlash проверяет работу с trailing slash в URL.
func TestClient_ListRecords_TrailingSlash(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/records" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(RecordListResponse{Records: nil, Total: 0})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, err := New(server.URL+"/", "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Ошибка ListRecords: %v", err)
	}
	if resp.Total != 0 {
		t.Errorf("ожидался Total=0, получен %d", resp.Total)
	}
}

// TestClient_ListRecords_Error проверяет обработку ошибки сервера.
func TestClient_ListRecords_Error(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("service unavailable"))
	})

	client, err := New(server.URL, "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.ListRecords(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_ListRecords_Unreachable проверяет обработку недоступного сервиса.
func TestClient_ListRecords_Unreachable(t *testing.T) {
	client, err := New("http://localhost:1", "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.ListRecords(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_ListRecords_Token проверяет передачу bearer-токена.
func TestClient_ListRecords_Token(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RecordListResponse{Total: 0})
	})

	client, err := New(server.URL, "", StaticToken("test-token"), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.ListRecords(context.Background()); err != nil {
		t.Fatalf("Ошибка ListRecords: %v", err)
	}
}

// TestClient_ListRecords_TokenError проверяет ошибку получения токена.
func TestClient_ListRecords_TokenError(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос не должен быть отправлен")
	})

	client, err := New(server.URL, "", mockTokenProviderError(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.ListRecords(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_VerifyRecord проверяет VerifyRecord (POST /api/v1/verify).
func TestClient_VerifyRecord(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verify" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Index != 3 {
			t.Errorf("ожидался index=3, получен %d", req.Index)
		}
		if req.StorageRef != "bafybeigdyrzt5" {
			t.Errorf("ожидался storage_ref=bafybeigdyrzt5, получен %s", req.StorageRef)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(VerifyResponse{Verified: true})
	})

	client, err := New(server.URL, "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	verified, err := client.VerifyRecord(context.Background(), 3, "bafybeigdyrzt5")
	if err != nil {
		t.Fatalf("Ошибка VerifyRecord: %v", err)
	}
	if !verified {
		t.Error("ожидался verified=true")
	}
}

// TestClient_VerifyRecord_NotVerified проверяет отрицательный результат проверки.
func TestClient_VerifyRecord_NotVerified(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(VerifyResponse{Verified: false})
	})

	client, err := New(server.URL, "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	verified, err := client.VerifyRecord(context.Background(), 0, "")
	if err != nil {
		t.Fatalf("Ошибка VerifyRecord: %v", err)
	}
	if verified {
		t.Error("ожидался verified=false")
	}
}

// TestClient_VerifyRecord_Error проверяет обработку ошибки сервера при проверке.
func TestClient_VerifyRecord_Error(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, err := New(server.URL, "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.VerifyRecord(context.Background(), 0, "ref")
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_Ping проверяет Ping.
func TestClient_Ping(t *testing.T) {
	server := setupMockCDR(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RecordListResponse{})
	})

	client, err := New(server.URL, "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ошибка Ping: %v", err)
	}
}

// TestClient_Ping_Fail проверяет Ping при недоступном сервисе.
func TestClient_Ping_Fail(t *testing.T) {
	client, err := New("http://localhost:1", "", nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestNormalizeURL проверяет normalizeURL.
func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://cdr.kryukov.lan", "https://cdr.kryukov.lan"},
		{"https://cdr.kryukov.lan/", "https://cdr.kryukov.lan"},
		{"https://cdr.kryukov.lan///", "https://cdr.kryukov.lan"},
		{"http://localhost:8010", "http://localhost:8010"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizeURL(tt.input)
			if result != tt.expected {
				t.Errorf("ожидалось %q, получено %q", tt.expected, result)
			}
		})
	}
}
