package httptransport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"devamail/backend/internal/domain"
	"devamail/backend/internal/monitoring"
	"devamail/backend/internal/service"
	"devamail/backend/internal/storage/memory"
)

// errorResponse API错误响应
type errorResponse struct {
	Error string `json:"error"`
}

// EmailHandler 临时邮箱API处理器
type EmailHandler struct {
	mailboxes *service.MailboxService
	messages  *service.MessageService
	metrics   *monitoring.Metrics
}

// NewEmailHandler 创建邮箱API处理器
func NewEmailHandler(
	mailboxService *service.MailboxService,
	messageService *service.MessageService,
	metrics *monitoring.Metrics,
) *EmailHandler {
	return &EmailHandler{
		mailboxes: mailboxService,
		messages:  messageService,
		metrics:   metrics,
	}
}

// ========== 响应结构体 ==========

type createEmailResponse struct {
	Email string `json:"email"`
}

type messageListResponse struct {
	Page        int              `json:"page"`
	Limit       int              `json:"limit"`
	TotalEmails int              `json:"totalEmails"`
	Emails      []domain.Message `json:"emails"`
}

type deleteResponse struct {
	Message string `json:"message"`
}

// ========== API 处理器 ==========

// CreateEmail 生成一个新的临时邮箱地址
func (h *EmailHandler) CreateEmail(c *gin.Context) {
	address := h.mailboxes.Create()

	if h.metrics != nil {
		h.metrics.RecordMailboxCreated()
		h.metrics.UpdateActiveMailboxes(len(h.mailboxes.ListAddresses()))
	}

	c.JSON(http.StatusOK, createEmailResponse{Email: address})
}

// ListEmails 返回全部已注册的邮箱地址
func (h *EmailHandler) ListEmails(c *gin.Context) {
	addresses := h.mailboxes.ListAddresses()
	if addresses == nil {
		addresses = []string{}
	}
	c.JSON(http.StatusOK, addresses)
}

// ListMessages 分页返回指定邮箱的邮件，新邮件在前
func (h *EmailHandler) ListMessages(c *gin.Context) {
	address := c.Param("email")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.messages.ListPage(address, page, limit)
	if err != nil {
		if errors.Is(err, memory.ErrMailboxNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "mailbox not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list messages"})
		return
	}

	messages := result.Messages
	if messages == nil {
		messages = []domain.Message{}
	}

	c.JSON(http.StatusOK, messageListResponse{
		Page:        result.Page,
		Limit:       result.Limit,
		TotalEmails: result.Total,
		Emails:      messages,
	})
}

// GetMessage 返回单封邮件的完整内容
func (h *EmailHandler) GetMessage(c *gin.Context) {
	address := c.Param("email")
	messageID := c.Param("id")

	msg, err := h.messages.Get(address, messageID)
	if err != nil {
		switch {
		case errors.Is(err, memory.ErrMailboxNotFound):
			c.JSON(http.StatusNotFound, errorResponse{Error: "mailbox not found"})
		case errors.Is(err, memory.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, errorResponse{Error: "message not found"})
		default:
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to get message"})
		}
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteAllMessages 清空指定邮箱的全部邮件，地址保持可用
func (h *EmailHandler) DeleteAllMessages(c *gin.Context) {
	address := c.Param("email")

	count, err := h.messages.DeleteAll(address)
	if err != nil {
		if errors.Is(err, memory.ErrMailboxNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "mailbox not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to delete messages"})
		return
	}

	if h.metrics != nil && count > 0 {
		h.metrics.RecordMessagesDeleted(count)
	}

	c.JSON(http.StatusOK, deleteResponse{Message: "all messages deleted"})
}

// DeleteMessage 删除单封邮件，重复删除同样返回成功
func (h *EmailHandler) DeleteMessage(c *gin.Context) {
	address := c.Param("email")
	messageID := c.Param("id")

	err := h.messages.DeleteOne(address, messageID)
	if err != nil {
		if errors.Is(err, memory.ErrMailboxNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "mailbox not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to delete message"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessagesDeleted(1)
	}

	c.JSON(http.StatusOK, deleteResponse{Message: "message deleted"})
}
