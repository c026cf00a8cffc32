// readiness.go — проверка доступности сервиса CDR для readiness probe.
package cdrclient

import (
	"context"
	"time"
)

// ReadinessChecker — проверка доступности сервиса CDR через Ping.
type ReadinessChecker struct {
	client  *Client
	timeout time.Duration
}

// NewReadinessChecker создаёт checker доступности сервиса CDR.
func NewReadinessChecker(client *Client, timeout time.Duration) *ReadinessChecker {
	return &ReadinessChecker{client: client, timeout: timeout}
}

// CheckReady проверяет доступность сервиса CDR.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Ping(ctx); err != nil {
		return "fail", err.Error()
	}
	return "ok", "сервис CDR доступен"
}
