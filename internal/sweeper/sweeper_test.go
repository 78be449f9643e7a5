package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devamail/backend/internal/domain"
	"devamail/backend/internal/storage/memory"
)

func newMessage(subject string, receivedAt time.Time) *domain.Message {
	return &domain.Message{
		ID:         subject,
		Subject:    subject,
		ReceivedAt: receivedAt,
	}
}

func TestSweep(t *testing.T) {
	t.Run("只删除超过TTL的邮件", func(t *testing.T) {
		store := memory.NewStore()
		store.CreateMailbox("a@devamail.tem")

		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.AppendMessage("a@devamail.tem", newMessage("old", base.Add(-2*time.Hour))))
		require.NoError(t, store.AppendMessage("a@devamail.tem", newMessage("fresh", base.Add(-time.Minute))))

		s := New(store, time.Hour, time.Minute, nil, nil)
		s.now = func() time.Time { return base }

		expired := s.Sweep()
		assert.Equal(t, 1, expired)

		messages, err := store.ListMessages("a@devamail.tem")
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "fresh", messages[0].Subject)
	})

	t.Run("清空后的邮箱连同地址一起移除", func(t *testing.T) {
		store := memory.NewStore()
		store.CreateMailbox("b@devamail.tem")

		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.AppendMessage("b@devamail.tem", newMessage("old", base.Add(-2*time.Hour))))

		s := New(store, time.Hour, time.Minute, nil, nil)
		s.now = func() time.Time { return base }

		assert.Equal(t, 1, s.Sweep())
		assert.False(t, store.Exists("b@devamail.tem"))
	})

	t.Run("没有过期邮件时不做任何变更", func(t *testing.T) {
		store := memory.NewStore()
		store.CreateMailbox("c@devamail.tem")

		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.AppendMessage("c@devamail.tem", newMessage("fresh", base)))

		s := New(store, time.Hour, time.Minute, nil, nil)
		s.now = func() time.Time { return base.Add(time.Minute) }

		assert.Equal(t, 0, s.Sweep())

		messages, err := store.ListMessages("c@devamail.tem")
		require.NoError(t, err)
		assert.Len(t, messages, 1)
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	s := New(store, time.Hour, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// 让 ticker 至少触发一次
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
