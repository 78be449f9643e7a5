package memory

import (
	"errors"
	"sync"
	"time"

	"devamail/backend/internal/domain"
)

var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Store 使用内存保存邮箱与邮件数据。
//
// 地址键一律为小写，调用方在查询前完成归一化。
// 所有变更操作持有写锁，保证同一地址上的并发追加、删除和清理
// 彼此串行，不会丢失更新或破坏到达顺序。
type Store struct {
	mu        sync.RWMutex
	mailboxes map[string]*domain.Mailbox // address -> mailbox
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes: make(map[string]*domain.Mailbox),
	}
}

// CreateMailbox 注册一个空邮箱。同地址重复创建会重置为空邮箱。
func (s *Store) CreateMailbox(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mailboxes[address] = domain.NewMailbox(address)
}

// Exists 判断地址是否已注册，与邮件数量无关。
func (s *Store) Exists(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.mailboxes[address]
	return ok
}

// ListAddresses 返回全部已注册地址，顺序不保证。
func (s *Store) ListAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addresses := make([]string, 0, len(s.mailboxes))
	for addr := range s.mailboxes {
		addresses = append(addresses, addr)
	}
	return addresses
}

// AppendMessage 将邮件追加到邮箱末尾。地址未注册时返回 ErrMailboxNotFound，
// 绝不隐式创建邮箱。
func (s *Store) AppendMessage(address string, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[address]
	if !ok {
		return ErrMailboxNotFound
	}
	mb.Messages = append(mb.Messages, message)
	return nil
}

// ListMessages 按到达顺序返回某个邮箱下全部邮件的快照。
func (s *Store) ListMessages(address string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mb, ok := s.mailboxes[address]
	if !ok {
		return nil, ErrMailboxNotFound
	}

	result := make([]domain.Message, 0, len(mb.Messages))
	for _, msg := range mb.Messages {
		result = append(result, *msg)
	}
	return result, nil
}

// GetMessage 获取单封邮件。
func (s *Store) GetMessage(address, messageID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mb, ok := s.mailboxes[address]
	if !ok {
		return nil, ErrMailboxNotFound
	}

	for _, msg := range mb.Messages {
		if msg.ID == messageID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, ErrMessageNotFound
}

// DeleteMessage 删除指定邮件。邮件不存在时视为成功（幂等），
// 地址未注册时返回 ErrMailboxNotFound。
func (s *Store) DeleteMessage(address, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[address]
	if !ok {
		return ErrMailboxNotFound
	}

	for i, msg := range mb.Messages {
		if msg.ID == messageID {
			mb.Messages = append(mb.Messages[:i], mb.Messages[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAllMessages 清空邮箱中的所有邮件，返回删除数量。
// 邮箱本身保持注册状态，与清理任务删除空邮箱的行为不同。
func (s *Store) DeleteAllMessages(address string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[address]
	if !ok {
		return 0, ErrMailboxNotFound
	}

	count := len(mb.Messages)
	mb.Messages = mb.Messages[:0]
	return count, nil
}

// SweepExpired 清理所有超过生存期的邮件，返回清理数量。
// 清理后变空的邮箱连同地址键一起移除。
func (s *Store) SweepExpired(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for addr, mb := range s.mailboxes {
		kept := mb.Messages[:0]
		for _, msg := range mb.Messages {
			if msg.Expired(now, ttl) {
				removed++
				continue
			}
			kept = append(kept, msg)
		}
		mb.Messages = kept

		if len(mb.Messages) == 0 {
			delete(s.mailboxes, addr)
		}
	}
	return removed
}

// Close 关闭存储连接。内存存储无需关闭。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。内存存储总是健康的。
func (s *Store) Health() error {
	return nil
}
