package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesActive  prometheus.Gauge

	// 邮件指标
	MessagesReceived prometheus.Counter
	MessagesDeleted  prometheus.Counter
	MessagesExpired  prometheus.Counter

	// SMTP 指标
	SMTPRejections *prometheus.CounterVec

	// 清理任务指标
	SweepRuns prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devamail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devamail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devamail_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "devamail_mailboxes_active",
				Help: "Number of currently registered mailboxes",
			},
		),

		MessagesReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devamail_messages_received_total",
				Help: "Total number of messages accepted over SMTP",
			},
		),

		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devamail_messages_deleted_total",
				Help: "Total number of messages deleted via the API",
			},
		),

		MessagesExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devamail_messages_expired_total",
				Help: "Total number of messages removed by the expiry sweep",
			},
		),

		SMTPRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devamail_smtp_rejections_total",
				Help: "Total number of rejected SMTP transactions",
			},
			[]string{"reason"},
		),

		SweepRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devamail_sweep_runs_total",
				Help: "Total number of expiry sweep executions",
			},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devamail_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// UpdateActiveMailboxes 更新当前注册的邮箱数量
func (m *Metrics) UpdateActiveMailboxes(count int) {
	m.MailboxesActive.Set(float64(count))
}

// RecordMessageReceived 记录邮件接收
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordMessagesDeleted 记录邮件删除
func (m *Metrics) RecordMessagesDeleted(count int) {
	m.MessagesDeleted.Add(float64(count))
}

// RecordSweep 记录一次清理任务及其清理掉的邮件数量
func (m *Metrics) RecordSweep(expired int) {
	m.SweepRuns.Inc()
	m.MessagesExpired.Add(float64(expired))
}

// RecordSMTPRejection 记录 SMTP 拒收
func (m *Metrics) RecordSMTPRejection(reason string) {
	m.SMTPRejections.WithLabelValues(reason).Inc()
}

// RecordPanic 记录恢复的 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标端点处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
