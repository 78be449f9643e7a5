package smtp

import (
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"devamail/backend/internal/monitoring"
	"devamail/backend/internal/service"
	"devamail/backend/internal/websocket"
)

// maxMessageBytes 单封邮件的最大字节数。
const maxMessageBytes = 10 << 20 // 10MB

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：
// - 只接受发送到本系统域名下已注册邮箱的邮件
// - 收件人在 RCPT 阶段验证，不存在的邮箱在正文传输前即被拒绝
// - 不支持对外发送邮件，不会成为开放中继
type Backend struct {
	mailboxes *service.MailboxService
	messages  *service.MessageService
	domain    string
	hub       *websocket.Hub
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewBackend 创建 SMTP Backend。hub 和 metrics 允许为 nil。
func NewBackend(
	mailboxes *service.MailboxService,
	messages *service.MessageService,
	domain string,
	hub *websocket.Hub,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		mailboxes: mailboxes,
		messages:  messages,
		domain:    strings.ToLower(domain),
		hub:       hub,
		metrics:   metrics,
		log:       log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = from
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 验证流程：
//  1. 归一化收件地址并检查格式
//  2. 检查域名是否由本服务器管理
//  3. 检查邮箱是否已注册
//
// 任一步失败都在正文传输开始前返回 550，不消耗传输带宽。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := service.NormalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if parts[1] != s.backend.domain {
		s.backend.recordRejection("relay_denied")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	if !s.backend.mailboxes.Exists(addr) {
		s.backend.recordRejection("unknown_mailbox")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient mailbox not found",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容。
// 解析失败时向发送方返回错误，不存储任何部分内容。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		s.backend.log.Warn("rejecting unparseable message",
			zap.String("from", s.fromAddress),
			zap.Error(err),
		)
		s.backend.recordRejection("parse_failure")
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "message content rejected",
		}
	}

	// 为每个收件人投递一份
	for _, rcpt := range s.recipients {
		message, err := s.backend.messages.Deliver(rcpt, service.DeliverInput{
			From:    s.fromAddress,
			To:      rcpt,
			Subject: parsed.Subject,
			Text:    parsed.Text,
			HTML:    parsed.HTML,
			Date:    parsed.Date,
		})
		if err != nil {
			// RCPT 之后邮箱可能已被清理任务移除，按不存在处理
			s.backend.log.Warn("delivery failed",
				zap.String("recipient", rcpt),
				zap.Error(err),
			)
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
				Message:      "recipient mailbox not found",
			}
		}

		s.backend.log.Info("message delivered",
			zap.String("recipient", rcpt),
			zap.String("message_id", message.ID),
			zap.String("subject", message.Subject),
		)

		if s.backend.metrics != nil {
			s.backend.metrics.RecordMessageReceived()
		}
		if s.backend.hub != nil {
			s.backend.hub.NotifyNewMail(rcpt, message)
		}
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	return nil
}

func (b *Backend) recordRejection(reason string) {
	if b.metrics != nil {
		b.metrics.RecordSMTPRejection(reason)
	}
}
