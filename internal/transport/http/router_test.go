package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devamail/backend/internal/config"
	"devamail/backend/internal/monitoring"
	"devamail/backend/internal/service"
	"devamail/backend/internal/storage/memory"
)

func TestPanicRecoveryWithMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mailbox: config.MailboxConfig{
			Domain:        "devamail.tem",
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}

	// promauto 指标注册到全局 registry，整个测试进程只创建一次
	metrics := monitoring.NewMetrics()

	store := memory.NewStore()
	router := NewRouter(RouterDependencies{
		Config:         cfg,
		MailboxService: service.NewMailboxService(store, cfg),
		MessageService: service.NewMessageService(store),
		Metrics:        metrics,
	})
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	t.Run("panic被恢复并返回500", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PanicsTotal))
	})

	t.Run("panic后服务继续处理请求", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/create-email", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})
}
