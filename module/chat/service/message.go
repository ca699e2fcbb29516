package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"DMChat/logger"
	"DMChat/middleware/security"
	"DMChat/module/chat/model"
	chatsvc "DMChat/service/chat"
	"DMChat/service/natsx"
	"DMChat/service/storage"
	"DMChat/tools/errs"
	"DMChat/tools/ids"
)

// MessageService is the message-send REST collaborator: it persists first,
// then asks the gateway (via the bus) to push to the recipient's live
// connection. Live delivery is best-effort; the durable write is the
// guarantee.
type MessageService struct {
	bus *natsx.Manager
}

func NewMessageService(bus *natsx.Manager) *MessageService {
	return &MessageService{bus: bus}
}

type sendReq struct {
	To   string `json:"to" binding:"required"`
	Body string `json:"body" binding:"required"`
}

func (s *MessageService) Send(c *gin.Context) {
	from := security.UserID(c)
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	if req.To == from {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("cannot message yourself"))
		return
	}

	now := time.Now()
	msg := &model.Message{
		MsgID:          ids.GenerateString(),
		ConversationID: storage.DMKey(from, req.To),
		SendID:         from,
		RecvID:         req.To,
		Body:           req.Body,
		CreateTime:     now,
	}

	ctx := c.Request.Context()
	if err := msg.Insert(ctx); err != nil {
		logger.Errorf("[message] insert: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	conv := &model.Conversation{
		ConversationID: msg.ConversationID,
		Participants:   []string{min(from, req.To), max(from, req.To)},
		LastMsgID:      msg.MsgID,
		LastMsgTime:    now,
	}
	if err := conv.Upsert(ctx); err != nil {
		logger.Errorf("[message] conversation upsert: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	raw, _ := json.Marshal(msg)
	if err := storage.CacheRecent(ctx, msg.ConversationID, raw); err != nil {
		logger.Warnf("[message] cache recent: %v", err)
	}

	s.publishDeliver(req.To, chatsvc.EventNewMessage, raw)

	c.JSON(http.StatusOK, msg)
}

// publishDeliver hands the persisted payload to the gateway for live
// delivery. Bus failures only cost the real-time push, never the write.
func (s *MessageService) publishDeliver(to, event string, data json.RawMessage) {
	if s.bus == nil {
		return
	}
	ev := chatsvc.DeliverEvent{To: to, Event: event, Data: data}
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("[message] marshal deliver event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	subject := natsx.SubjectMessageSaved
	if event == chatsvc.EventNotification {
		subject = natsx.SubjectNotificationSaved
	}
	if err := s.bus.Publish(ctx, subject, b); err != nil {
		logger.Warnf("[message] publish %s: %v", subject, err)
	}
}

func (s *MessageService) ListConversations(c *gin.Context) {
	user := security.UserID(c)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	conv := &model.Conversation{}
	out, err := conv.ListByUser(c.Request.Context(), user, limit)
	if err != nil {
		logger.Errorf("[message] list conversations: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

func (s *MessageService) ListMessages(c *gin.Context) {
	user := security.UserID(c)
	convID := c.Param("id")

	conv := &model.Conversation{}
	found, err := conv.FindByID(c.Request.Context(), convID)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound)
		return
	}
	if err != nil {
		logger.Errorf("[message] find conversation: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	if found.Participants[0] != user && found.Participants[1] != user {
		c.JSON(http.StatusForbidden, errs.ErrArgs.WithDetail("not a participant"))
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	var before time.Time
	if b := c.Query("before"); b != "" {
		if ms, perr := strconv.ParseInt(b, 10, 64); perr == nil {
			before = time.UnixMilli(ms)
		}
	}

	msg := &model.Message{}
	out, err := msg.ListByConversation(c.Request.Context(), convID, limit, before)
	if err != nil {
		logger.Errorf("[message] list messages: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
