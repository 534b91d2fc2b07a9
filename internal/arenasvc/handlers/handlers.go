package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/stakearena/arena-services/internal/arenasvc/auth"
	"github.com/stakearena/arena-services/internal/arenasvc/service"
	"github.com/stakearena/arena-services/internal/arenasvc/ws"
	"github.com/stakearena/arena-services/internal/comm"
)

type Handler struct {
	upgrader websocket.Upgrader
	gw       *ws.Gateway
	users    *service.UserService
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func NewHandler(gw *ws.Gateway, users *service.UserService) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		gw:    gw,
		users: users,
	}
	return h
}

// HandleWebSocket authenticates the request and upgrades it. Auth happens
// before the upgrade so a bad token costs a plain 401, not a socket.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		log.Warnf("websocket auth rejected: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		log.Warnf("websocket rejected, unknown user %s: %v", userID, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if user.IsBanned {
		log.Warnf("websocket rejected, banned user %s", userID)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	h.gw.StoreConnection(userID, conn)
	log.Infof("New WebSocket connection established for user: %s", userID)

	go h.handleConnection(conn, userID)
}

func (h *Handler) handleConnection(conn *websocket.Conn, userID string) {
	defer func() {
		log.Infof("Closing WebSocket connection for user: %s", userID)
		conn.Close()
		h.gw.HandleDisconnect(userID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for user %s: %v", userID, err)
			} else {
				log.Infof("WebSocket connection closed normally for user: %s", userID)
			}
			break
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			log.Errorf("Failed to unmarshal message from user %s: %v", userID, err)
			h.sendErrorToClient(conn, "Invalid message format")
			continue
		}

		log.Debugf("Received message from user %s: type=%s", userID, message.Type)
		h.gw.SocketMessage(userID, message)
	}
}

// sendErrorToClient reports a frame-level parse failure before dispatch has
// a ref to echo.
func (h *Handler) sendErrorToClient(conn *websocket.Conn, errorMsg string) {
	body, _ := json.Marshal(comm.ErrorBody{Kind: string(service.KindValidation), Message: errorMsg})
	msg := &comm.WSMessage{Type: "error", Data: body}

	if data, err := json.Marshal(msg); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Errorf("Failed to send error message to client: %v", err)
		}
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "arena service is running at port " + os.Getenv("ARENA_SERVICE_PORT"),
		Code:    200,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}
