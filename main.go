package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"PSocial/global"
	appcfg "PSocial/global/config"
	"PSocial/logger"
	mid "PSocial/middleware"
	midsec "PSocial/middleware/security"
	chatapi "PSocial/module/chat"
	"PSocial/module/chat/service"
	"PSocial/service/chat"
	"PSocial/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()
	defer logger.Sync()
	defer glog.Flush()

	if err := run(*configPath); err != nil {
		logger.Error("psocial exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := appcfg.Load(configPath)
	if err != nil {
		return err
	}
	nacos, err := global.ConfigNacos(cfg)
	if err != nil {
		return err
	}
	if nacos != nil {
		defer func() { _ = nacos.Close() }()
	}
	global.ConfigLogger(cfg)
	if err := global.ConfigIds(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := global.ConfigRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	stores, err := global.ConfigStorage(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer stores.Close()

	events, err := global.ConfigEvents(cfg)
	if err != nil {
		return err
	}
	var publisher chat.Publisher
	if events != nil {
		publisher = events
		defer func() { _ = events.Close() }()
	}

	conns := chat.NewConnManager()
	gw, err := chat.NewGateway(chat.GatewayConf{
		SendTimeout: cfg.Gateway.SendTimeout,
		Workers:     cfg.Gateway.Workers,
	}, chat.Deps{
		Directory:     chat.NewDirectory(),
		Conversations: stores.Conversations,
		Messages:      stores.Messages,
		Users:         stores.Users,
		Pusher:        conns,
		Publisher:     publisher,
	})
	if err != nil {
		return err
	}
	ws := chat.NewWsServer(chat.WsConf{
		SendQueueSize:   cfg.Gateway.SendQueueSize,
		MaxMessageBytes: cfg.Gateway.MaxMessageBytes,
		WriteWait:       cfg.Gateway.WriteWait,
		PongWait:        cfg.Gateway.PongWait,
		PingInterval:    cfg.Gateway.PingInterval,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, gw, conns)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(mid.Defaults(cfg.Server.AllowedOrigins).Handlers()...)
	r.GET("/health", chatapi.HandlerHealth(stores.Ready))
	r.GET("/chat", ws.HandleWS) // ws://host/chat?userId=<id>

	auth := midsec.DefaultOptions([]byte(cfg.Auth.Secret))
	auth.JWT.Alg = cfg.Auth.Alg
	chatapi.NewHandler(service.NewHistory(stores.Conversations, stores.Messages, stores.Users)).RegisterRoutes(r, auth)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	safe.Go("http-server", func() {
		logger.Info("psocial listening", zap.String("addr", cfg.Server.Addr), zap.String("storage", cfg.Storage.Driver), zap.String("events", cfg.Events.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	ws.Close()
	if err := gw.Close(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("gateway pool release", zap.Error(err))
	}
	return nil
}
