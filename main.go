package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coopserver/config"
	"coopserver/server"
	"coopserver/store"
)

// 入口：读取配置，启动 HTTP + WebSocket 服务，并初始化实例管理与进度存储
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	flag.StringVar(&cfg.Address, "addr", cfg.Address, "server listen address, e.g. :8000")
	flag.Parse()

	if err := server.InitLogger(cfg.Logging); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(ctx, cfg.Store)
	cancel()
	if err != nil {
		server.Log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	metrics := server.NewMetrics()
	srv := server.New(cfg, st, metrics)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", srv.HandleAdminConfig)
	mux.HandleFunc("/admin/games", srv.HandleGames)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: cfg.Address, Handler: mux}

	go func() {
		server.Log.Infof("coop server listening on %s store=%s", cfg.Address, cfg.Store.Driver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnf("shutdown: %v", err)
	}
	// 等待进行中的进度保存落盘
	srv.Wait()
}
