package service

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devamail/backend/internal/config"
	"devamail/backend/internal/storage/memory"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Mailbox: config.MailboxConfig{
			Domain: "devamail.tem",
		},
	}
}

func TestMailboxService_Create(t *testing.T) {
	store := memory.NewStore()
	service := NewMailboxService(store, newTestConfig())

	t.Run("生成的地址格式正确且已注册", func(t *testing.T) {
		address := service.Create()

		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{12}@devamail\.tem$`), address)
		assert.True(t, service.Exists(address))
	})

	t.Run("连续生成的地址互不相同", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			address := service.Create()
			require.False(t, seen[address], "duplicate address: %s", address)
			seen[address] = true
		}
	})
}

func TestMailboxService_Exists(t *testing.T) {
	store := memory.NewStore()
	service := NewMailboxService(store, newTestConfig())

	t.Run("未创建的地址不存在", func(t *testing.T) {
		assert.False(t, service.Exists("nobody@devamail.tem"))
	})

	t.Run("地址比较不区分大小写", func(t *testing.T) {
		address := service.Create()
		assert.True(t, service.Exists(strings.ToUpper(address)))
	})

	t.Run("带尖括号的地址可以匹配", func(t *testing.T) {
		address := service.Create()
		assert.True(t, service.Exists("<"+address+">"))
	})
}

func TestMailboxService_ListAddresses(t *testing.T) {
	store := memory.NewStore()
	service := NewMailboxService(store, newTestConfig())

	first := service.Create()
	second := service.Create()

	assert.ElementsMatch(t, []string{first, second}, service.ListAddresses())
}

func TestNormalizeAddress(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "小写保持不变", input: "abc@devamail.tem", expected: "abc@devamail.tem"},
		{name: "大写转小写", input: "ABC@Devamail.TEM", expected: "abc@devamail.tem"},
		{name: "去除尖括号", input: "<abc@devamail.tem>", expected: "abc@devamail.tem"},
		{name: "去除首尾空白", input: "  abc@devamail.tem ", expected: "abc@devamail.tem"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeAddress(tc.input))
		})
	}
}
