// Пакет cdrclient — HTTP-клиент для взаимодействия с сервисом CDR.
// Поддерживает TLS с кастомным CA (CM_CDR_CA_CERT_PATH).
// Операции: ListRecords (GET /api/v1/records), VerifyRecord (POST /api/v1/verify).
package cdrclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// TokenProvider — функция, возвращающая bearer-токен для авторизации
// запросов к сервису CDR. Может быть nil — запросы без авторизации.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken возвращает TokenProvider с фиксированным токеном (CM_CDR_TOKEN).
func StaticToken(token string) TokenProvider {
	return func(ctx context.Context) (string, error) {
		return token, nil
	}
}

// CDRRecord — запись о звонке в ответе сервиса CDR (GET /api/v1/records).
type CDRRecord struct {
	Caller     string `json:"caller"`
	Callee     string `json:"callee"`
	Hash       string `json:"hash"`
	StorageRef string `json:"storage_ref,omitempty"`
	Status     string `json:"status,omitempty"`
}

// RecordListResponse — ответ сервиса CDR на GET /api/v1/records.
type RecordListResponse struct {
	Records []CDRRecord `json:"records"`
	Total   int         `json:"total"`
}

// verifyRequest — тело запроса POST /api/v1/verify.
type verifyRequest struct {
	Index      int    `json:"index"`
	StorageRef string `json:"storage_ref,omitempty"`
}

// VerifyResponse — ответ сервиса CDR на POST /api/v1/verify.
type VerifyResponse struct {
	Verified bool `json:"verified"`
}

// Client — HTTP-клиент сервиса CDR.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// New создаёт клиент сервиса CDR.
// baseURL — базовый URL сервиса (trailing slash убирается).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// tokenProvider — функция для получения bearer-токена (может быть nil).
func New(baseURL, caCertPath string, tokenProvider TokenProvider, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата сервиса CDR: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат сервиса CDR добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		baseURL:       normalizeURL(baseURL),
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "cdr_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// ListRecords запрашивает полный набор записей о звонках.
// GET /api/v1/records.
func (c *Client) ListRecords(ctx context.Context) (*RecordListResponse, error) {
	reqURL := c.baseURL + "/api/v1/records"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса ListRecords: %w", err)
	}

	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос ListRecords к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("сервис CDR ListRecords вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var listResp RecordListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("декодирование ListRecords от %s: %w", c.baseURL, err)
	}

	return &listResp, nil
}

// VerifyRecord запрашивает независимую проверку целостности одной записи.
// POST /api/v1/verify с телом {"index": i, "storage_ref": s}.
// index — позиция записи в последовательности текущего цикла,
// storageRef — ссылка на внешнее хранилище (может быть пустой).
func (c *Client) VerifyRecord(ctx context.Context, index int, storageRef string) (bool, error) {
	reqURL := c.baseURL + "/api/v1/verify"

	body, err := json.Marshal(verifyRequest{Index: index, StorageRef: storageRef})
	if err != nil {
		return false, fmt.Errorf("сериализация запроса VerifyRecord: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("создание запроса VerifyRecord: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.authorize(ctx, req); err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("запрос VerifyRecord (index=%d) к %s: %w", index, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("сервис CDR VerifyRecord (index=%d) вернул статус %d: %s", index, resp.StatusCode, string(respBody))
	}

	var verifyResp VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return false, fmt.Errorf("декодирование VerifyRecord от %s: %w", c.baseURL, err)
	}

	return verifyResp.Verified, nil
}

// Ping проверяет доступность сервиса CDR (для readiness probe).
// GET /api/v1/records без декодирования тела.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/records", nil)
	if err != nil {
		return fmt.Errorf("создание запроса Ping: %w", err)
	}

	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("сервис CDR недоступен: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервис CDR вернул статус %d", resp.StatusCode)
	}
	return nil
}

// authorize добавляет Authorization header, если задан tokenProvider.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokenProvider == nil {
		return nil
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("получение токена для сервиса CDR: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
