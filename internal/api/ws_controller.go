package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

var upgrader = websocket.Upgrader{
	// дашборды открываются с того же набора origin, что и API (CORS)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS GET /api/v1/ws/inventory: поток событий склада для дашбордов
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Logger().Warnf("⚠️ websocket upgrade failed: %v", err)
		return
	}

	h.AddClient(conn)
	utils.Logger().Infof("📊 dashboard connected, clients: %d", h.GetClientsCount())

	defer func() {
		h.RemoveClient(conn)
		utils.Logger().Infof("📊 dashboard disconnected, clients: %d", h.GetClientsCount())
	}()

	// читаем только чтобы заметить закрытие и обработать ping/pong
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.Logger().Warnf("⚠️ websocket error: %v", err)
			}
			break
		}
	}
}
