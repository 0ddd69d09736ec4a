// Package service defines the domain services of the token lifecycle.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// This abstraction allows the domain to remain independent of the specific monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集业务指标的接口。
// 这种抽象使领域层能够独立于具体的监控实现（例如 Prometheus）。
type Metrics interface {
	// RecordTokenIssue records a token issuance. grantType is "password" or "refresh".
	// RecordTokenIssue 记录令牌签发。
	RecordTokenIssue(grantType string, success bool, duration time.Duration)

	// RecordTokenVerify records a verification outcome. reason is empty on success.
	// RecordTokenVerify 记录令牌校验结果。
	RecordTokenVerify(success bool, reason string)

	// RecordTokenRevoke records a revocation.
	// RecordTokenRevoke 记录令牌撤销事件。
	RecordTokenRevoke(source string)

	// RecordRevocationLookup records a revocation store lookup.
	// RecordRevocationLookup 记录撤销存储查询。
	RecordRevocationLookup(backend string, duration time.Duration, err error)

	// RecordRevocationSweep records how many records a sweep removed.
	RecordRevocationSweep(backend string, removed int64)

	// RecordRateLimitHit records an event when a rate limit is triggered.
	// RecordRateLimitHit 记录触发速率限制的事件。
	RecordRateLimitHit(scope string)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) RecordTokenIssue(string, bool, time.Duration)        {}
func (NoopMetrics) RecordTokenVerify(bool, string)                      {}
func (NoopMetrics) RecordTokenRevoke(string)                            {}
func (NoopMetrics) RecordRevocationLookup(string, time.Duration, error) {}
func (NoopMetrics) RecordRevocationSweep(string, int64)                 {}
func (NoopMetrics) RecordRateLimitHit(string)                           {}
