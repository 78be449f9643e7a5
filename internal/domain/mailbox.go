package domain

import (
	"time"
)

// Mailbox 表示临时邮箱的业务实体：一个地址及其按到达顺序排列的邮件。
type Mailbox struct {
	Address   string     `json:"address"`
	CreatedAt time.Time  `json:"createdAt"`
	Messages  []*Message `json:"messages"`
}

// NewMailbox 创建一个空邮箱。
func NewMailbox(address string) *Mailbox {
	return &Mailbox{
		Address:   address,
		CreatedAt: time.Now().UTC(),
		Messages:  make([]*Message, 0),
	}
}
