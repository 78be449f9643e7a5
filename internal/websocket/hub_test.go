package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"devamail/backend/internal/domain"
)

func newTestClient(hub *Hub, id string) *Client {
	return &Client{
		ID:        id,
		send:      make(chan []byte, 256),
		hub:       hub,
		addresses: make(map[string]bool),
		log:       zap.NewNop(),
	}
}

// waitForMessage 从客户端通道读取消息，直到出现指定类型或超时。
func waitForMessage(t *testing.T, client *Client, msgType MessageType) *Message {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.send:
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == msgType {
				return &msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s message", msgType)
			return nil
		}
	}
}

func TestNotifyNewMail(t *testing.T) {
	t.Run("订阅者收到新邮件通知", func(t *testing.T) {
		hub := NewHub([]string{"*"}, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		client := newTestClient(hub, "client-1")
		hub.register <- client

		address := "inbox@devamail.tem"
		client.subscribe(address)
		waitForMessage(t, client, MessageTypeSubscribed)

		hub.NotifyNewMail(address, &domain.Message{
			ID:         "m1",
			From:       "sender@example.com",
			Subject:    "Hi",
			Text:       "hello there",
			ReceivedAt: time.Now().UTC(),
		})

		msg := waitForMessage(t, client, MessageTypeNewMail)
		assert.Equal(t, address, msg.Email)

		var data NewMailData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "m1", data.MessageID)
		assert.Equal(t, "Hi", data.Subject)
		assert.True(t, data.HasText)
		assert.False(t, data.HasHTML)
	})

	t.Run("未订阅的地址不会收到通知", func(t *testing.T) {
		hub := NewHub([]string{"*"}, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		client := newTestClient(hub, "client-2")
		hub.register <- client

		client.subscribe("a@devamail.tem")
		waitForMessage(t, client, MessageTypeSubscribed)
		client.unsubscribe("a@devamail.tem")

		hub.NotifyNewMail("a@devamail.tem", &domain.Message{ID: "m2"})

		// 给广播循环留出处理时间，期间不应有 new_mail 消息到达
		timeout := time.After(100 * time.Millisecond)
		for {
			select {
			case data := <-client.send:
				var msg Message
				require.NoError(t, json.Unmarshal(data, &msg))
				assert.NotEqual(t, MessageTypeNewMail, msg.Type)
			case <-timeout:
				return
			}
		}
	})
}

// 广播与订阅变更并发执行时不得触碰同一个裸 map。
// 在 -race 下运行可以验证广播路径只读取持锁期间拷贝的快照。
func TestBroadcastDuringSubscriptionChanges(t *testing.T) {
	hub := NewHub([]string{"*"}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := newTestClient(hub, "client-3")
	hub.register <- client

	address := "busy@devamail.tem"
	message := &domain.Message{ID: "m3", Subject: "ping", ReceivedAt: time.Now().UTC()}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			client.subscribe(address)
			client.unsubscribe(address)
		}
	}()

	for i := 0; i < 200; i++ {
		hub.NotifyNewMail(address, message)
	}

	close(stop)
	wg.Wait()

	// 订阅 goroutine 全部退出后再停止 Hub，避免向已关闭的通道发送
	cancel()
}
