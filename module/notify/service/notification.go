package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"DMChat/logger"
	"DMChat/middleware/security"
	"DMChat/module/notify/model"
	chatsvc "DMChat/service/chat"
	"DMChat/service/natsx"
	"DMChat/tools/errs"
	"DMChat/tools/ids"
)

// NotifyService persists notifications and hands them to the gateway for
// live delivery, same shape as the message path.
type NotifyService struct {
	bus *natsx.Manager
}

func NewNotifyService(bus *natsx.Manager) *NotifyService {
	return &NotifyService{bus: bus}
}

type createReq struct {
	Target string `json:"target" binding:"required"`
	Type   string `json:"type" binding:"required"`
	Body   string `json:"body" binding:"required"`
}

func (s *NotifyService) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	n := &model.Notification{
		NotifyID:   ids.GenerateString(),
		TargetID:   req.Target,
		Type:       req.Type,
		Body:       req.Body,
		CreateTime: time.Now(),
	}
	if err := n.Insert(c.Request.Context()); err != nil {
		logger.Errorf("[notify] insert: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	if s.bus != nil {
		raw, _ := json.Marshal(n)
		ev := chatsvc.DeliverEvent{To: n.TargetID, Event: chatsvc.EventNotification, Data: raw}
		b, _ := json.Marshal(ev)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.bus.Publish(ctx, natsx.SubjectNotificationSaved, b); err != nil {
			logger.Warnf("[notify] publish: %v", err)
		}
	}

	c.JSON(http.StatusOK, n)
}

func (s *NotifyService) List(c *gin.Context) {
	user := security.UserID(c)
	unread := c.Query("unread") == "1"
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	n := &model.Notification{}
	out, err := n.ListByTarget(c.Request.Context(), user, unread, limit)
	if err != nil {
		logger.Errorf("[notify] list: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (s *NotifyService) MarkRead(c *gin.Context) {
	user := security.UserID(c)
	id := c.Param("id")

	n := &model.Notification{}
	ok, err := n.MarkRead(c.Request.Context(), user, id)
	if err != nil {
		logger.Errorf("[notify] mark read: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errs.ErrRecordNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
