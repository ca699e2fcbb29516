package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"DMChat/global"
	"DMChat/logger"
	secmid "DMChat/middleware/security"
	chatsvcapi "DMChat/module/chat/service"
	notifysvc "DMChat/module/notify/service"
	usersvc "DMChat/module/user/service"
	"DMChat/service/chat"
	"DMChat/service/mgo"
	"DMChat/service/natsx"
	"DMChat/service/storage"
	redissvc "DMChat/service/storage/redis"
	"DMChat/tools/ids"
)

func main() {
	confPath := flag.String("conf", "config.yaml", "path to config file")
	flag.Parse()

	if _, err := os.Stat(*confPath); err == nil {
		if err := global.Load(*confPath); err != nil {
			logger.Errorf("[boot] load config: %v", err)
			os.Exit(1)
		}
	} else {
		logger.Warnf("[boot] config %s not found, using defaults", *confPath)
	}
	conf := global.Conf()

	ids.SetNodeID(conf.NodeID)

	// Store is required; mirror/cache and bus are wired but degrade
	// gracefully when the backend is down.
	ctx := context.Background()
	if err := mgo.Init(ctx, mgo.Config{
		URI:      conf.Mongo.URI,
		Database: conf.Mongo.Database,
	}); err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		os.Exit(1)
	}

	if err := redissvc.InitRedis(redissvc.Config{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}); err != nil {
		logger.Warnf("[boot] redis unavailable, presence mirror disabled: %v", err)
	}

	bus, err := natsx.NewManager(natsx.Config{Servers: conf.Nats.Servers, Name: "dmchat-" + conf.GatewayID})
	if err != nil {
		logger.Errorf("[boot] nats: %v", err)
		os.Exit(1)
	}

	server := chat.NewServer(chat.ServerConf{
		GatewayID:     conf.GatewayID,
		JWTSecret:     global.GetJwtSecret(),
		AllowedOrigin: conf.AllowedOrigin,
		SendQueueSize: conf.SendQueueSize,
		ReapInterval:  conf.Reaper.Interval.Std(),
		IdleThreshold: conf.Reaper.IdleThreshold.Std(),
	})
	server.SetMirror(storage.NewMirror(conf.Redis.PresenceTTL.Std()))
	if err := server.BindBus(bus); err != nil {
		logger.Errorf("[boot] bind bus: %v", err)
		os.Exit(1)
	}
	server.Start()

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", server.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, server.Health())
	})

	api := r.Group("/api")
	api.POST("/users", usersvc.Register)
	api.POST("/auth/login", usersvc.Login)

	msgSvc := chatsvcapi.NewMessageService(bus)
	ntfSvc := notifysvc.NewNotifyService(bus)

	authed := api.Group("", secmid.Middleware(global.GetJwtSecret()))
	authed.POST("/messages", msgSvc.Send)
	authed.GET("/conversations", msgSvc.ListConversations)
	authed.GET("/conversations/:id/messages", msgSvc.ListMessages)
	authed.POST("/notifications", ntfSvc.Create)
	authed.GET("/notifications", ntfSvc.List)
	authed.POST("/notifications/:id/read", ntfSvc.MarkRead)

	httpSrv := &http.Server{Addr: conf.Listen, Handler: r}
	go func() {
		logger.Infof("[boot] listening on %s gw=%s", conf.Listen, conf.GatewayID)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[boot] http serve: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[boot] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	server.Shutdown()
	_ = bus.Close()
	_ = redissvc.CloseRedis()
	_ = mgo.Close(shutdownCtx)
}
