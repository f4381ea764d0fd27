package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ratefeed/internal/rate"
	"ratefeed/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsBuffer     = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleRateStream godoc
// @Summary Stream resolved rates
// @Description Upgrades to a websocket and pushes every resolved rate as a JSON message. The current rate, if any, is sent first. Slow clients miss messages rather than delaying the feed.
// @Tags rates
// @Success 101 {object} RateResponse "Switching protocols"
// @Router /ws/rates [get]
func HandleRateStream(svc service.RateServiceInterface, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnw("WebSocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		updates := make(chan rate.ConversionRate, wsBuffer)
		unsubscribe := svc.Subscribe(func(_ context.Context, cr rate.ConversionRate) error {
			select {
			case updates <- cr:
			default:
				logger.Warnw("WebSocket client lagging, dropping rate", "remote", r.RemoteAddr)
			}
			return nil
		})
		defer unsubscribe()

		closed := make(chan struct{})
		go readUntilClosed(conn, closed)

		if cur, err := svc.Current(r.Context()); err == nil {
			if err := writeWS(conn, toRateResultResponse(cur)); err != nil {
				return
			}
		}

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case cr := <-updates:
				if err := writeWS(conn, toRateResponse(cr)); err != nil {
					logger.Debugw("WebSocket write failed", "error", err)
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// readUntilClosed drains client frames so control messages are processed,
// and closes done once the connection fails.
func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
