package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tankarena/server"
)

// Tank Arena entry point: starts the HTTP + WebSocket server and the room
// manager's background garbage collector.
func main() {
	cfg := server.LoadConfig()

	if err := server.InitLogger(cfg.LogPath, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	server.SetAllowedOrigin(cfg.AllowedOrigin)
	mgr := server.InitRoomManager(cfg.ReconnectGrace, cfg.MaxPlayersPerRoom, server.Log, cfg.EnableAddendumEvents)

	gcStop := make(chan struct{})
	go mgr.RunGC(5*time.Minute, 10*time.Minute, gcStop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		server.HandleWS(mgr, w, r)
	})
	mux.HandleFunc("/admin/rooms", func(w http.ResponseWriter, r *http.Request) {
		server.HandleAdminRooms(mgr, w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		server.HandleHealth(mgr, w, r)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infow("tankarena listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalw("listen failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(gcStop)
	server.Log.Info("shutting down")
}
