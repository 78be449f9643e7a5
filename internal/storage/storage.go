package storage

import (
	"time"

	"devamail/backend/internal/domain"
)

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	CreateMailbox(address string)
	Exists(address string) bool
	ListAddresses() []string
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	AppendMessage(address string, message *domain.Message) error
	ListMessages(address string) ([]domain.Message, error)
	GetMessage(address, messageID string) (*domain.Message, error)
	DeleteMessage(address, messageID string) error
	DeleteAllMessages(address string) (int, error) // 清空邮箱所有邮件，返回删除数量
}

// SweepRepository 定义过期清理操作。
type SweepRepository interface {
	SweepExpired(now time.Time, ttl time.Duration) int // 返回清理掉的邮件数量
}

// Store 聚合所有存储接口。
type Store interface {
	MailboxRepository
	MessageRepository
	SweepRepository

	Close() error
	Health() error
}
