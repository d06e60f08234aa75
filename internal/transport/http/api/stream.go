package apihttp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"riskbook/internal/analytics"
	"riskbook/internal/journal"
	"riskbook/internal/logger"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same stance as the REST CORS policy: any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamPayload is one live push: the record set plus the report derived from
// it, so the client never recomputes analytics.
type streamPayload struct {
	Records []journal.TradeRecord `json:"records"`
	Report  analytics.Report      `json:"report"`
}

// handleStream upgrades to a WebSocket and pushes a snapshot on connect and
// after every journal change.
func (r *Router) handleStream(c *gin.Context) {
	userID := r.userID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[api] websocket upgrade failed user=%s err=%v", userID, err)
		return
	}
	defer conn.Close()

	updates, cancel, err := r.journal.Subscribe(c.Request.Context(), userID)
	if err != nil {
		logger.Errorf("[api] stream subscribe failed user=%s err=%v", userID, err)
		return
	}
	defer cancel()

	// Reader goroutine: only pong/close traffic is expected from the client.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger.Debugf("[api] stream connected user=%s ip=%s", userID, c.ClientIP())
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case records, ok := <-updates:
			if !ok {
				return
			}
			if err := r.pushSnapshot(c, conn, records); err != nil {
				logger.Debugf("[api] stream write failed user=%s err=%v", userID, err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (r *Router) pushSnapshot(c *gin.Context, conn *websocket.Conn, records []journal.TradeRecord) error {
	settings, _, err := r.userSettings(c)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(streamPayload{
		Records: records,
		Report:  analytics.BuildReport(records, settings.AccountSize),
	})
}
