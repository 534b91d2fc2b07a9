package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/service"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
	"github.com/stakearena/arena-services/internal/comm"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// capturePublisher records fanned-out frames instead of going through NATS.
type capturePublisher struct {
	mu     sync.Mutex
	events []comm.RoomEvent
}

func (p *capturePublisher) PublishRoomEvent(ev *comm.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *capturePublisher) byType(msgType string) []comm.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []comm.RoomEvent
	for _, ev := range p.events {
		if ev.Message.Type == msgType {
			out = append(out, ev)
		}
	}
	return out
}

// gwStore is an in-memory store.Store with commit-on-success semantics, so a
// failed StartGame rolls back the way the database would.
type gwStore struct {
	mu    sync.Mutex
	state *gwState
}

type gwState struct {
	users   map[string]*models.User
	wallets map[string]*models.WalletAsset // userID + "/" + asset
	rooms   map[string]*models.Room
	ledger  []*models.LedgerEntry
	nextID  int64
}

func newGwStore() *gwStore {
	return &gwStore{state: &gwState{
		users:   map[string]*models.User{},
		wallets: map[string]*models.WalletAsset{},
		rooms:   map[string]*models.Room{},
		nextID:  1,
	}}
}

func gwWalletKey(userID, asset string) string { return userID + "/" + asset }

func (st *gwState) clone() *gwState {
	c := &gwState{
		users:   make(map[string]*models.User, len(st.users)),
		wallets: make(map[string]*models.WalletAsset, len(st.wallets)),
		rooms:   make(map[string]*models.Room, len(st.rooms)),
		ledger:  append([]*models.LedgerEntry{}, st.ledger...),
		nextID:  st.nextID,
	}
	for k, u := range st.users {
		cp := *u
		c.users[k] = &cp
	}
	for k, w := range st.wallets {
		cp := *w
		c.wallets[k] = &cp
	}
	for k, r := range st.rooms {
		cp := *r
		c.rooms[k] = &cp
	}
	return c
}

func (s *gwStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&gwTx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *gwStore) seedUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[id] = &models.User{ID: id, Username: id}
}

func (s *gwStore) seedWallet(userID, asset string, available decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.wallets[gwWalletKey(userID, asset)] = &models.WalletAsset{
		ID:               s.state.nextID,
		UserID:           userID,
		Asset:            asset,
		BalanceAvailable: available,
		BalanceLocked:    decimal.Zero,
	}
	s.state.nextID++
}

func (s *gwStore) room(id string) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state.rooms[id]
}

func (s *gwStore) wallet(userID, asset string) models.WalletAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state.wallets[gwWalletKey(userID, asset)]
}

type gwTx struct {
	st *gwState
}

func (t *gwTx) User(ctx context.Context, id string) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *gwTx) UserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return nil, store.ErrNotFound
}

func (t *gwTx) SetReferredBy(ctx context.Context, userID, referrerID string) error {
	return store.ErrNotFound
}

func (t *gwTx) InsertRoom(ctx context.Context, room *models.Room) error {
	if _, ok := t.st.rooms[room.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *room
	t.st.rooms[room.ID] = &cp
	return nil
}

func (t *gwTx) Room(ctx context.Context, id string) (*models.Room, error) {
	r, ok := t.st.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *gwTx) RoomForUpdate(ctx context.Context, id string) (*models.Room, error) {
	return t.Room(ctx, id)
}

func (t *gwTx) RoomIDByInviteCode(ctx context.Context, code string) (string, error) {
	for _, r := range t.st.rooms {
		if r.InviteCode != nil && *r.InviteCode == code {
			return r.ID, nil
		}
	}
	return "", store.ErrNotFound
}

func (t *gwTx) UpdateRoom(ctx context.Context, room *models.Room) error {
	if _, ok := t.st.rooms[room.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *room
	t.st.rooms[room.ID] = &cp
	return nil
}

func (t *gwTx) InsertMove(ctx context.Context, move *models.Move) error {
	move.ID = t.st.nextID
	t.st.nextID++
	return nil
}

func (t *gwTx) ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for _, r := range t.st.rooms {
		if r.Status != models.RoomActive {
			continue
		}
		if r.Player1ID == userID || (r.Player2ID != nil && *r.Player2ID == userID) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (t *gwTx) TopWinners(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	return nil, nil
}

func (t *gwTx) WalletAssetForUpdate(ctx context.Context, userID, asset string) (*models.WalletAsset, error) {
	key := gwWalletKey(userID, asset)
	wa, ok := t.st.wallets[key]
	if !ok {
		wa = &models.WalletAsset{
			ID:               t.st.nextID,
			UserID:           userID,
			Asset:            asset,
			BalanceAvailable: decimal.Zero,
			BalanceLocked:    decimal.Zero,
		}
		t.st.nextID++
		t.st.wallets[key] = wa
	}
	cp := *wa
	return &cp, nil
}

func (t *gwTx) WalletAssetIfExists(ctx context.Context, userID, asset string) (*models.WalletAsset, error) {
	wa, ok := t.st.wallets[gwWalletKey(userID, asset)]
	if !ok {
		return nil, nil
	}
	cp := *wa
	return &cp, nil
}

func (t *gwTx) WalletAssets(ctx context.Context, userID string) ([]*models.WalletAsset, error) {
	var out []*models.WalletAsset
	for _, wa := range t.st.wallets {
		if wa.UserID == userID {
			cp := *wa
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *gwTx) UpdateWalletAsset(ctx context.Context, wa *models.WalletAsset) error {
	key := gwWalletKey(wa.UserID, wa.Asset)
	if _, ok := t.st.wallets[key]; !ok {
		return store.ErrNotFound
	}
	cp := *wa
	t.st.wallets[key] = &cp
	return nil
}

func (t *gwTx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	entry.ID = t.st.nextID
	t.st.nextID++
	cp := *entry
	t.st.ledger = append(t.st.ledger, &cp)
	return nil
}

func (t *gwTx) InsertReferralReward(ctx context.Context, reward *models.ReferralReward) error {
	reward.ID = t.st.nextID
	t.st.nextID++
	return nil
}

func newTestGateway(t *testing.T) (*Gateway, *gwStore, *capturePublisher) {
	t.Helper()
	st := newGwStore()
	for _, id := range []string{"p1", "p2"} {
		st.seedUser(id)
		st.seedWallet(id, "USDT", dec("100"))
	}
	gw := NewGateway(service.NewCoordinator(st, service.NewSettlementEngine(service.SettlementConfig{})))
	pub := &capturePublisher{}
	gw.Broker = pub
	return gw, st, pub
}

func joinRoomFrame(t *testing.T, roomID string) *comm.WSMessage {
	t.Helper()
	data, err := json.Marshal(comm.JoinRoomPayload{RoomID: roomID})
	require.NoError(t, err)
	return &comm.WSMessage{Type: "join_room", Ref: "r1", Data: data}
}

func TestOwnerRejoinLeavesWaitingRoomIntact(t *testing.T) {
	gw, st, pub := newTestGateway(t)
	ctx := context.Background()

	room, err := gw.coord.CreateRoom(ctx, "p1", models.GameTicTacToe, "USDT", dec("10"), false)
	require.NoError(t, err)

	// The owner re-entering their own lobby must not start or kill anything.
	gw.SocketMessage("p1", joinRoomFrame(t, room.ID))

	got := st.room(room.ID)
	assert.Equal(t, models.RoomWaiting, got.Status)
	assert.Equal(t, models.PhasePending, got.Phase)
	assert.Nil(t, got.Player2ID)

	wa := st.wallet("p1", "USDT")
	assert.True(t, wa.BalanceAvailable.Equal(dec("100")))
	assert.True(t, wa.BalanceLocked.IsZero())

	assert.Empty(t, pub.byType("room_cancelled"))
	assert.Empty(t, pub.byType("start_game"))
}

func TestJoinRoomStartsGameWithStakeDetails(t *testing.T) {
	gw, st, pub := newTestGateway(t)
	ctx := context.Background()

	room, err := gw.coord.CreateRoom(ctx, "p1", models.GameTicTacToe, "USDT", dec("10"), false)
	require.NoError(t, err)

	gw.SocketMessage("p2", joinRoomFrame(t, room.ID))

	got := st.room(room.ID)
	assert.Equal(t, models.RoomActive, got.Status)
	assert.Equal(t, models.PhaseStarted, got.Phase)
	for _, id := range []string{"p1", "p2"} {
		assert.True(t, st.wallet(id, "USDT").BalanceLocked.Equal(dec("10")), "%s locked", id)
	}

	starts := pub.byType("start_game")
	require.Len(t, starts, 2)
	sides := map[string]string{}
	for _, ev := range starts {
		var data comm.StartGameData
		require.NoError(t, json.Unmarshal(ev.Message.Data, &data))
		assert.Equal(t, room.ID, data.RoomID)
		assert.Equal(t, "USDT", data.StakeAsset)
		assert.True(t, data.StakeAmount.Equal(dec("10")), "stake = %s", data.StakeAmount)
		sides[ev.TargetUserID] = data.YourSide
	}
	assert.Equal(t, map[string]string{"p1": "p1", "p2": "p2"}, sides)
}

func TestStartFailureCancelsRoomOnWalletError(t *testing.T) {
	gw, st, pub := newTestGateway(t)
	ctx := context.Background()
	st.seedWallet("p2", "USDT", dec("5")) // below the stake

	room, err := gw.coord.CreateRoom(ctx, "p1", models.GameTicTacToe, "USDT", dec("10"), false)
	require.NoError(t, err)

	gw.SocketMessage("p2", joinRoomFrame(t, room.ID))

	got := st.room(room.ID)
	assert.Equal(t, models.RoomCancelled, got.Status)

	// The aborted start left no lock behind.
	wa := st.wallet("p1", "USDT")
	assert.True(t, wa.BalanceAvailable.Equal(dec("100")))
	assert.True(t, wa.BalanceLocked.IsZero())

	assert.NotEmpty(t, pub.byType("room_cancelled"))
	assert.Empty(t, pub.byType("start_game"))
}
