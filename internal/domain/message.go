package domain

import "time"

// Message 表示一封临时邮箱内的邮件。入库后不可变。
type Message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`       // 信封时间，缺失时取收信时间
	Text       string    `json:"text"`
	HTML       string    `json:"html"`
	ReceivedAt time.Time `json:"receivedAt"` // 入库时间，仅用于过期判断
}

// Expired 在指定时间判断邮件是否超过生存期。
func (m *Message) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return m.ReceivedAt.Before(now.Add(-ttl))
}
