package smtp

import (
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devamail/backend/internal/config"
	"devamail/backend/internal/service"
	"devamail/backend/internal/storage/memory"
)

// smtpEnv SMTP 测试环境
type smtpEnv struct {
	backend   *Backend
	store     *memory.Store
	mailboxes *service.MailboxService
	messages  *service.MessageService
}

func newSMTPEnv(t *testing.T) *smtpEnv {
	t.Helper()

	cfg := &config.Config{
		Mailbox: config.MailboxConfig{
			Domain: "devamail.tem",
			TTL:    time.Hour,
		},
	}

	store := memory.NewStore()
	mailboxes := service.NewMailboxService(store, cfg)
	messages := service.NewMessageService(store)

	return &smtpEnv{
		backend:   NewBackend(mailboxes, messages, "devamail.tem", nil, nil, nil),
		store:     store,
		mailboxes: mailboxes,
		messages:  messages,
	}
}

func (e *smtpEnv) newSession(t *testing.T) gosmtp.Session {
	t.Helper()
	sess, err := e.backend.NewSession(nil)
	require.NoError(t, err)
	return sess
}

func smtpCode(t *testing.T, err error) int {
	t.Helper()
	smtpErr, ok := err.(*gosmtp.SMTPError)
	require.True(t, ok, "expected *smtp.SMTPError, got %T", err)
	return smtpErr.Code
}

func TestRcpt(t *testing.T) {
	t.Run("已注册邮箱的收件人被接受", func(t *testing.T) {
		env := newSMTPEnv(t)
		address := env.mailboxes.Create()

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))
		assert.NoError(t, sess.Rcpt(address, nil))
	})

	t.Run("收件地址大小写不敏感", func(t *testing.T) {
		env := newSMTPEnv(t)
		address := env.mailboxes.Create()

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))
		assert.NoError(t, sess.Rcpt(strings.ToUpper(address), nil))
	})

	t.Run("格式错误的地址返回501", func(t *testing.T) {
		env := newSMTPEnv(t)

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))

		err := sess.Rcpt("not-an-address", nil)
		require.Error(t, err)
		assert.Equal(t, 501, smtpCode(t, err))
	})

	t.Run("其他域名的收件人被拒绝中继", func(t *testing.T) {
		env := newSMTPEnv(t)

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))

		err := sess.Rcpt("someone@other-domain.com", nil)
		require.Error(t, err)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("未注册的邮箱返回550", func(t *testing.T) {
		env := newSMTPEnv(t)

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))

		err := sess.Rcpt("unknown@devamail.tem", nil)
		require.Error(t, err)
		assert.Equal(t, 550, smtpCode(t, err))
	})
}

func TestData(t *testing.T) {
	t.Run("完整的投递流程", func(t *testing.T) {
		env := newSMTPEnv(t)
		address := env.mailboxes.Create()

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))
		require.NoError(t, sess.Rcpt(address, nil))

		raw := "From: sender@example.com\r\n" +
			"To: " + address + "\r\n" +
			"Subject: Hi\r\n" +
			"Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n" +
			"\r\n" +
			"hello there\r\n"

		require.NoError(t, sess.Data(strings.NewReader(raw)))

		messages, err := env.store.ListMessages(address)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Hi", messages[0].Subject)
		assert.Equal(t, "sender@example.com", messages[0].From)
		assert.Equal(t, "hello there\r\n", messages[0].Text)
		assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), messages[0].Date.UTC())
		assert.False(t, messages[0].ReceivedAt.IsZero())
	})

	t.Run("多个收件人各收到一份", func(t *testing.T) {
		env := newSMTPEnv(t)
		first := env.mailboxes.Create()
		second := env.mailboxes.Create()

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))
		require.NoError(t, sess.Rcpt(first, nil))
		require.NoError(t, sess.Rcpt(second, nil))

		raw := "Subject: broadcast\r\n\r\nbody\r\n"
		require.NoError(t, sess.Data(strings.NewReader(raw)))

		for _, address := range []string{first, second} {
			messages, err := env.store.ListMessages(address)
			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, "broadcast", messages[0].Subject)
		}
	})

	t.Run("无法解析的邮件返回554且不入库", func(t *testing.T) {
		env := newSMTPEnv(t)
		address := env.mailboxes.Create()

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))
		require.NoError(t, sess.Rcpt(address, nil))

		// 没有任何头部结构的数据流
		err := sess.Data(strings.NewReader("no headers at all"))
		require.Error(t, err)
		assert.Equal(t, 554, smtpCode(t, err))

		messages, err := env.store.ListMessages(address)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("RCPT之后邮箱被清理时投递失败", func(t *testing.T) {
		env := newSMTPEnv(t)
		address := env.mailboxes.Create()

		sess := env.newSession(t)
		require.NoError(t, sess.Mail("sender@example.com", nil))
		require.NoError(t, sess.Rcpt(address, nil))

		// 模拟清理任务在 RCPT 与 DATA 之间移除邮箱
		env.store.SweepExpired(time.Now().Add(48*time.Hour), time.Hour)

		err := sess.Data(strings.NewReader("Subject: late\r\n\r\nbody\r\n"))
		require.Error(t, err)
		assert.Equal(t, 550, smtpCode(t, err))
	})
}

func TestReset(t *testing.T) {
	env := newSMTPEnv(t)
	address := env.mailboxes.Create()

	sess := env.newSession(t)
	require.NoError(t, sess.Mail("sender@example.com", nil))
	require.NoError(t, sess.Rcpt(address, nil))

	sess.Reset()

	// Reset 后没有收件人，Data 不产生投递
	require.NoError(t, sess.Data(strings.NewReader("Subject: lost\r\n\r\nbody\r\n")))

	messages, err := env.store.ListMessages(address)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
