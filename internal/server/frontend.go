package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rampartgame/rampart/internal/core"
)

// Frontend owns the HTTP listener. It serves the static client bundle at /
// and upgrades /ws requests into gateway sessions, mirroring the single-port
// layout the browser client expects.
type Frontend struct {
	Config  *core.Config
	Gateway *Gateway
	Logger  *zap.SugaredLogger

	upgrader websocket.Upgrader
}

// Start begins listening on the configured address. The blocking serve loop
// runs in its own goroutine tracked by wg; cancelling ctx shuts the listener
// down gracefully.
func (f *Frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	f.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The client bundle is served from this same origin.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", f.serveWs)
	if f.Config.Web.ClientDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(f.Config.Web.ClientDir)))
	}

	httpServer := &http.Server{
		Addr:    f.Config.WebAddress(),
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		f.Logger.Infof("waiting for connections on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.Logger.Errorf("http server exited: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			f.Logger.Warnf("error shutting down http server: %v", err)
		}
		f.Logger.Info("http server exited")
	}()

	return nil
}

// serveWs upgrades the request and hands the connection to the gateway. The
// handler goroutine becomes the connection's read loop.
func (f *Frontend) serveWs(w http.ResponseWriter, r *http.Request) {
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.Logger.Warnf("failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}

	f.Logger.Infof("accepted connection from %s", ws.RemoteAddr())
	f.Gateway.ServeConn(ws)
	f.Logger.Infof("disconnected client %s", ws.RemoteAddr())
}
