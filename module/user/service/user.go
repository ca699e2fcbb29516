package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"DMChat/global"
	"DMChat/logger"
	"DMChat/module/user/model"
	"DMChat/tools/errs"
	"DMChat/tools/ids"
	"DMChat/tools/security"
)

type registerReq struct {
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	FaceURL  string `json:"face_url"`
}

type loginReq struct {
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user with a bcrypt password hash.
func Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	u := &model.User{}
	if _, err := u.FindByNickname(c.Request.Context(), req.Nickname); err == nil {
		c.JSON(http.StatusConflict, errs.ErrRecordIsExist)
		return
	} else if err != mongo.ErrNoDocuments {
		logger.Errorf("[user] find by nickname: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	u = &model.User{
		UserID:       ids.GenerateString(),
		Nickname:     req.Nickname,
		FaceURL:      req.FaceURL,
		PasswordHash: string(hash),
		Status:       model.UserNormal,
		CreateTime:   time.Now(),
	}
	if err := u.Insert(c.Request.Context()); err != nil {
		logger.Errorf("[user] insert: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": u.UserID, "nickname": u.Nickname})
}

// Login verifies credentials and issues an HMAC JWT.
func Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	u := &model.User{}
	found, err := u.FindByNickname(c.Request.Context(), req.Nickname)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail("bad credentials"))
		return
	}
	if found.Status != model.UserNormal {
		c.JSON(http.StatusForbidden, errs.ErrTokenInvalid.WithDetail("account disabled"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail("bad credentials"))
		return
	}

	opts := security.DefaultOptions(global.GetJwtSecret())
	opts.TTL = global.Conf().JWT.TTL.Std()
	token, exp, err := security.Generate(opts, found.UserID)
	if err != nil {
		logger.Errorf("[user] sign token: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expire_at": exp.UnixMilli(),
		"user": gin.H{
			"user_id":  found.UserID,
			"nickname": found.Nickname,
			"face_url": found.FaceURL,
		},
	})
}
