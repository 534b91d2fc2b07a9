package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/service"
	"github.com/stakearena/arena-services/internal/comm"
)

// RoomPublisher fans room frames out to every gateway instance; the
// instance holding the target socket delivers.
type RoomPublisher interface {
	PublishRoomEvent(ev *comm.RoomEvent) error
}

const opTimeout = 30 * time.Second

// client wraps a socket with a write lock; gorilla connections allow only
// one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg *comm.WSMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Gateway dispatches websocket frames into the coordinator and fans results
// back out. Frames for a player are always published through NATS, because
// the two players of a room may be connected to different instances; the
// instance holding the socket delivers.
type Gateway struct {
	connMap sync.Map // userID -> *client
	Broker  RoomPublisher
	coord   *service.Coordinator
}

func NewGateway(coord *service.Coordinator) *Gateway {
	return &Gateway{coord: coord}
}

func (g *Gateway) StoreConnection(userID string, conn *websocket.Conn) {
	// One socket per user: a reconnect replaces the previous one.
	if prev, ok := g.connMap.Load(userID); ok {
		prev.(*client).conn.Close()
	}
	g.connMap.Store(userID, &client{conn: conn})
}

// DeliverLocal writes a fanned-out frame to the target socket if this
// instance holds it.
func (g *Gateway) DeliverLocal(ev *comm.RoomEvent) {
	c, ok := g.connMap.Load(ev.TargetUserID)
	if !ok {
		return
	}
	if err := c.(*client).send(&ev.Message); err != nil {
		log.Errorf("failed to deliver %s frame to user %s: %v", ev.Message.Type, ev.TargetUserID, err)
	}
}

// HandleDisconnect drops the socket and forfeits whatever the user left
// behind: queued rooms are cancelled, active games resign in the opponent's
// favor.
func (g *Gateway) HandleDisconnect(userID string) {
	g.connMap.Delete(userID)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	for _, end := range g.coord.HandleDisconnect(ctx, userID) {
		g.broadcastGameEnd(&end)
	}
}

// SocketMessage handles one frame from a web client.
func (g *Gateway) SocketMessage(userID string, msg *comm.WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case "create_room":
		g.handleCreateRoom(ctx, userID, msg)
	case "join_room":
		g.handleJoinRoom(ctx, userID, msg)
	case "join_by_code":
		g.handleJoinByCode(ctx, userID, msg)
	case "join_random":
		g.handleJoinRandom(ctx, userID, msg)
	case "move":
		g.handleMove(ctx, userID, msg)
	case "resign":
		g.handleResign(ctx, userID, msg)
	default:
		log.Warnf("unknown event received: %s", msg.Type)
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "unknown message type %q", msg.Type))
	}
}

func (g *Gateway) handleCreateRoom(ctx context.Context, userID string, msg *comm.WSMessage) {
	var payload comm.CreateRoomPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "malformed create_room payload"))
		return
	}

	room, err := g.coord.CreateRoom(ctx, userID, payload.GameType, payload.StakeAsset, payload.StakeAmount, payload.IsPrivate)
	if err != nil {
		g.sendError(userID, msg.Ref, err)
		return
	}
	g.reply(userID, msg.Ref, "room_created", comm.RoomData{Room: room})
}

func (g *Gateway) handleJoinRoom(ctx context.Context, userID string, msg *comm.WSMessage) {
	var payload comm.JoinRoomPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "malformed join_room payload"))
		return
	}

	room, err := g.coord.JoinRoom(ctx, userID, payload.RoomID)
	if err != nil {
		g.sendError(userID, msg.Ref, err)
		return
	}
	g.reply(userID, msg.Ref, "room_joined", comm.RoomData{Room: room})
	// An owner re-entering their own lobby joins without activating the
	// room; there is no match to start yet.
	if room.Status == models.RoomActive {
		g.startMatch(ctx, userID, msg.Ref, room.ID)
	}
}

func (g *Gateway) handleJoinByCode(ctx context.Context, userID string, msg *comm.WSMessage) {
	var payload comm.JoinByCodePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "malformed join_by_code payload"))
		return
	}

	room, err := g.coord.JoinRoomByInviteCode(ctx, userID, payload.InviteCode)
	if err != nil {
		g.sendError(userID, msg.Ref, err)
		return
	}
	g.reply(userID, msg.Ref, "room_joined", comm.RoomData{Room: room})
	if room.Status == models.RoomActive {
		g.startMatch(ctx, userID, msg.Ref, room.ID)
	}
}

func (g *Gateway) handleJoinRandom(ctx context.Context, userID string, msg *comm.WSMessage) {
	var payload comm.JoinRandomPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "malformed join_random payload"))
		return
	}

	room, matched, err := g.coord.JoinRandom(ctx, userID, payload.GameType, payload.StakeAsset, payload.StakeAmount)
	if err != nil {
		g.sendError(userID, msg.Ref, err)
		return
	}
	if !matched {
		g.reply(userID, msg.Ref, "waiting_for_match", comm.WaitingData{Room: room, Waiting: true})
		return
	}
	g.reply(userID, msg.Ref, "room_joined", comm.RoomData{Room: room})
	g.startMatch(ctx, userID, msg.Ref, room.ID)
}

// startMatch seeds the game state, locks both stakes and announces the
// start. Each player gets their own start_game frame so your_side is right
// on every socket.
func (g *Gateway) startMatch(ctx context.Context, joinerID, ref string, roomID string) {
	room, err := g.coord.StartGame(ctx, roomID)
	if err != nil {
		g.sendError(joinerID, ref, err)
		// Only a wallet failure makes the room unplayable; anything else
		// (a concurrent start, a transient error) must not kill the lobby.
		if kind := service.KindOf(err); kind != service.KindInsufficientBalance && kind != service.KindLockUnderflow {
			return
		}
		if cancelErr := g.coord.CancelRoom(ctx, roomID, "start_failed"); cancelErr != nil {
			log.Errorf("failed to cancel unstartable room %s: %v", roomID, cancelErr)
		}
		if dead, loadErr := g.coord.Room(ctx, roomID); loadErr == nil {
			g.publishToRoomPlayers(dead, "room_cancelled", comm.RoomCancelledData{RoomID: roomID, Reason: "start_failed"})
		}
		return
	}

	g.publishToRoomPlayers(room, "match_found", comm.RoomData{Room: room})

	players := map[string]string{room.Player1ID: "p1", *room.Player2ID: "p2"}
	for playerID, side := range players {
		opponentID := room.Player1ID
		if playerID == room.Player1ID {
			opponentID = *room.Player2ID
		}
		g.publishToUser(room.ID, playerID, "start_game", comm.StartGameData{
			RoomID:      room.ID,
			GameType:    room.GameType,
			YourSide:    side,
			OpponentID:  opponentID,
			StakeAsset:  room.StakeAsset,
			StakeAmount: room.StakeAmount,
			State:       room.GameState,
		})
	}
}

func (g *Gateway) handleMove(ctx context.Context, userID string, msg *comm.WSMessage) {
	var payload comm.MovePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "malformed move payload"))
		return
	}

	outcome, err := g.coord.ApplyMove(ctx, payload.RoomID, userID, payload.Move)
	if err != nil {
		g.sendError(userID, msg.Ref, err)
		return
	}

	stateRaw, err := json.Marshal(outcome.State)
	if err != nil {
		log.Errorf("failed to marshal state for room %s: %v", payload.RoomID, err)
		return
	}
	g.publishToRoomPlayers(outcome.Room, "move", comm.MoveData{
		RoomID: outcome.Room.ID,
		BySide: string(outcome.BySide),
		Move:   outcome.Move,
		State:  stateRaw,
	})

	if outcome.End != nil {
		g.broadcastGameEnd(outcome.End)
	}
}

func (g *Gateway) handleResign(ctx context.Context, userID string, msg *comm.WSMessage) {
	var payload comm.ResignPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		g.sendError(userID, msg.Ref, service.E(service.KindValidation, "malformed resign payload"))
		return
	}

	end, err := g.coord.Resign(ctx, payload.RoomID, userID, "")
	if err != nil {
		g.sendError(userID, msg.Ref, err)
		return
	}
	g.broadcastGameEnd(end)
}

func (g *Gateway) broadcastGameEnd(end *service.GameEnd) {
	data := comm.GameEndData{
		RoomID:       end.RoomID,
		WinnerUserID: end.WinnerUserID,
		Reason:       end.Reason,
	}
	if end.Settlement != nil {
		data.Draw = end.Settlement.Draw
		data.Payout = &comm.Payout{
			Asset:                end.StakeAsset,
			Amount:               end.Settlement.Payout.String(),
			FeeAmount:            end.Settlement.Fee.String(),
			ReferralRewardAmount: end.Settlement.ReferralReward.String(),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	room, err := g.coord.Room(ctx, end.RoomID)
	if err != nil {
		log.Errorf("failed to load room %s for game_end broadcast: %v", end.RoomID, err)
		return
	}
	g.publishToRoomPlayers(room, "game_end", data)
}

// reply answers the caller on their own socket, echoing the request ref.
func (g *Gateway) reply(userID, ref, msgType string, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Errorf("unable to marshal %s payload for user %s: %v", msgType, userID, err)
		return
	}
	c, ok := g.connMap.Load(userID)
	if !ok {
		return
	}
	if err := c.(*client).send(&comm.WSMessage{Type: msgType, Ref: ref, Data: data}); err != nil {
		log.Errorf("failed to send %s to user %s: %v", msgType, userID, err)
	}
}

func (g *Gateway) sendError(userID, ref string, err error) {
	body := comm.ErrorBody{Kind: string(service.KindOf(err)), Message: err.Error()}
	g.reply(userID, ref, "error", body)
}

func (g *Gateway) publishToUser(roomID, userID, msgType string, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Errorf("unable to marshal %s payload for room %s: %v", msgType, roomID, err)
		return
	}
	ev := &comm.RoomEvent{
		RoomID:       roomID,
		TargetUserID: userID,
		Message:      comm.WSMessage{Type: msgType, Data: data},
	}
	if g.Broker != nil {
		g.Broker.PublishRoomEvent(ev)
		return
	}
	g.DeliverLocal(ev)
}

func (g *Gateway) publishToRoomPlayers(room *models.Room, msgType string, body interface{}) {
	for _, playerID := range room.Players() {
		g.publishToUser(room.ID, playerID, msgType, body)
	}
}
