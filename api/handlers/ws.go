package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"wall/api/middleware"
	"wall/models"
	"wall/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsAction struct {
	Action string `json:"action"`
}

// WSWallHandler - WebSocket endpoint стены. Клиент входит в комнату
// сообщением {"action":"join-community-wall"}, после чего получает
// события комнаты и может публиковать свои: они валидируются и
// рассылаются остальным участникам.
func WSWallHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	middleware.WSConnectionOpened(serviceName)
	defer middleware.WSConnectionClosed(serviceName)
	defer services.GlobalWSRoomManager.LeaveAll(conn)

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"connected","message":"WebSocket connected"}`))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		// Сначала пробуем как служебное действие
		var action wsAction
		if err := json.Unmarshal(msg, &action); err == nil && action.Action != "" {
			if action.Action == "join-"+services.CommunityWallRoom {
				services.GlobalWSRoomManager.Join(services.CommunityWallRoom, userID.(int64), conn)
			}
			continue
		}

		// Иначе это событие стены: валидируем конверт и рассылаем
		// остальным участникам комнаты
		if _, _, err := models.DecodeWallEvent(msg); err != nil {
			log.Println("Dropping bad client wall event:", err)
			continue
		}
		services.GlobalWSRoomManager.BroadcastExcept(services.CommunityWallRoom, conn, msg)
	}
}
