package api

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sepetli/kimlik/api/app/meta"
	"github.com/sepetli/kimlik/config"
	"github.com/sepetli/kimlik/registration"
	"github.com/sepetli/kimlik/tokens"
	"github.com/sepetli/kimlik/user"
	"go.uber.org/zap"
)

type Server struct {
	server  *http.Server
	log     *zap.Logger
	cleaner *tokens.Cleaner
}

func NewServer(
	cfg *config.Configuration,
	logger *zap.Logger,
	userService *user.Service,
	signInService *user.SigninService,
	verifier *tokens.TokenVerifier,
	dataStore meta.DatabasePinger,
	pending registration.Store,
	rdb *redis.Client,
	cleaner *tokens.Cleaner) (*Server, error) {
	api, err := compose(logger.Named("api"),
		cfg,
		userService,
		signInService,
		verifier,
		dataStore,
		pending,
		rdb)
	if err != nil {
		return nil, err
	}
	bind := net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port))
	srv := http.Server{
		Addr:              bind,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{
		server:  &srv,
		log:     logger,
		cleaner: cleaner,
	}, nil
}

// Start runs ListenAndServe on the http.Server with graceful shutdown,
// the background cleanup sweep is cancelled alongside the listener.
func (srv *Server) Start() error {
	srv.log.Info("starting server")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if srv.cleaner != nil {
		go srv.cleaner.Run(ctx)
	}
	go func() {
		if err := srv.server.ListenAndServe(); err != http.ErrServerClosed {
			panic(err)
		}
	}()
	srv.log.Info("listening", zap.String("addr", srv.server.Addr))

	quit := make(chan os.Signal, 1)
	//nolint
	signal.Notify(quit, os.Interrupt)
	sig := <-quit
	srv.log.Info("shutting down", zap.Any("signal", sig))
	cancel()

	if err := srv.server.Shutdown(context.Background()); err != nil {
		srv.log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	srv.log.Info("graceful shutdown completed")
	return nil
}
