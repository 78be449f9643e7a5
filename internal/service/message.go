package service

import (
	"time"

	"github.com/google/uuid"

	"devamail/backend/internal/domain"
	"devamail/backend/internal/storage"
)

const defaultPageSize = 10

// MessageService 封装邮件处理逻辑。
type MessageService struct {
	repo storage.MessageRepository
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(repo storage.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

// DeliverInput 定义投递一封邮件所需的解析字段。
// 缺失的文本字段保持空字符串，Date 为零值时取当前时间。
type DeliverInput struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// Deliver 为指定地址构造并入库一封新邮件。
// 地址必须已注册，否则透传存储层的 ErrMailboxNotFound，不产生任何副作用。
func (s *MessageService) Deliver(address string, input DeliverInput) (*domain.Message, error) {
	now := time.Now().UTC()
	if input.Date.IsZero() {
		input.Date = now
	}

	message := &domain.Message{
		ID:         uuid.NewString(),
		From:       input.From,
		To:         input.To,
		Subject:    input.Subject,
		Date:       input.Date,
		Text:       input.Text,
		HTML:       input.HTML,
		ReceivedAt: now,
	}

	if err := s.repo.AppendMessage(NormalizeAddress(address), message); err != nil {
		return nil, err
	}
	return message, nil
}

// MessagePage 表示一页按时间倒序排列的邮件。
type MessagePage struct {
	Page     int
	Limit    int
	Total    int
	Messages []domain.Message
}

// ListPage 返回某个邮箱的一页邮件，最新的在前。
//
// page 和 limit 小于 1 时分别回退到 1 和默认页大小；
// 超出范围的页返回空列表而不是错误。
func (s *MessageService) ListPage(address string, page, limit int) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}

	messages, err := s.repo.ListMessages(NormalizeAddress(address))
	if err != nil {
		return nil, err
	}

	total := len(messages)

	// 到达顺序反转为最新在前
	reversed := make([]domain.Message, 0, total)
	for i := total - 1; i >= 0; i-- {
		reversed = append(reversed, messages[i])
	}

	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &MessagePage{
		Page:     page,
		Limit:    limit,
		Total:    total,
		Messages: reversed[start:end],
	}, nil
}

// Get 获取单封邮件详情。
func (s *MessageService) Get(address, messageID string) (*domain.Message, error) {
	return s.repo.GetMessage(NormalizeAddress(address), messageID)
}

// DeleteAll 清空邮箱中的所有邮件，返回删除数量。邮箱保持注册状态。
func (s *MessageService) DeleteAll(address string) (int, error) {
	return s.repo.DeleteAllMessages(NormalizeAddress(address))
}

// DeleteOne 删除指定邮件。邮件不存在时视为成功。
func (s *MessageService) DeleteOne(address, messageID string) error {
	return s.repo.DeleteMessage(NormalizeAddress(address), messageID)
}
