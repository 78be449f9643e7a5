package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"devamail/backend/internal/config"
	"devamail/backend/internal/storage"
)

// localPartLength 随机地址前缀的长度（十六进制字符）。
// 12 个十六进制字符约 48 位熵，在预期邮箱规模下碰撞概率可以忽略。
const localPartLength = 12

// MailboxService 封装邮箱相关业务操作。
type MailboxService struct {
	repo   storage.MailboxRepository
	domain string
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(repo storage.MailboxRepository, cfg *config.Config) *MailboxService {
	return &MailboxService{
		repo:   repo,
		domain: cfg.Mailbox.Domain,
	}
}

// Create 生成一个新的随机邮箱地址并注册空邮箱。
func (s *MailboxService) Create() string {
	address := fmt.Sprintf("%s@%s", s.generateLocalPart(), s.domain)
	s.repo.CreateMailbox(address)
	return address
}

// Exists 判断地址是否已注册。
func (s *MailboxService) Exists(address string) bool {
	return s.repo.Exists(NormalizeAddress(address))
}

// ListAddresses 返回全部已注册地址。
func (s *MailboxService) ListAddresses() []string {
	return s.repo.ListAddresses()
}

// generateLocalPart 生成随机前缀。
func (s *MailboxService) generateLocalPart() string {
	// uuid 去掉连字符后即为小写十六进制，截断保证长度固定
	base := strings.ReplaceAll(uuid.NewString(), "-", "")
	return base[:localPartLength]
}

// NormalizeAddress 统一邮箱地址格式：去除空白和尖括号并转小写。
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.Trim(address, "<>")
	return strings.ToLower(address)
}
