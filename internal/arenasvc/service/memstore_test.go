package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
)

// memStore is an in-memory store.Store with real transaction semantics:
// each WithinTx works on a deep copy that replaces the live state only on
// success, so rollback-on-error behaves like the database.
type memStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	users   map[string]*models.User
	wallets map[string]*models.WalletAsset // userID + "/" + asset
	rooms   map[string]*models.Room
	invites map[string]string // invite code -> room id
	moves   []*models.Move
	ledger  []*models.LedgerEntry
	rewards []*models.ReferralReward
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:   map[string]*models.User{},
		wallets: map[string]*models.WalletAsset{},
		rooms:   map[string]*models.Room{},
		invites: map[string]string{},
		nextID:  1,
	}}
}

func walletKey(userID, asset string) string { return userID + "/" + asset }

func (st *memState) clone() *memState {
	c := &memState{
		users:   make(map[string]*models.User, len(st.users)),
		wallets: make(map[string]*models.WalletAsset, len(st.wallets)),
		rooms:   make(map[string]*models.Room, len(st.rooms)),
		invites: make(map[string]string, len(st.invites)),
		moves:   append([]*models.Move{}, st.moves...),
		ledger:  append([]*models.LedgerEntry{}, st.ledger...),
		rewards: append([]*models.ReferralReward{}, st.rewards...),
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
	for k, v := range st.invites {
		c.invites[k] = v
	}
	return c
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&memTx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// test seeding helpers

func (s *memStore) seedUser(id string, referredBy *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[id] = &models.User{
		ID:           id,
		Username:     id,
		ReferralCode: strings.ToUpper(id) + "CODE",
		ReferredBy:   referredBy,
	}
}

func (s *memStore) seedWallet(userID, asset string, available decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.wallets[walletKey(userID, asset)] = &models.WalletAsset{
		ID:               s.state.nextID,
		UserID:           userID,
		Asset:            asset,
		BalanceAvailable: available,
		BalanceLocked:    decimal.Zero,
	}
	s.state.nextID++
}

func (s *memStore) wallet(userID, asset string) models.WalletAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state.wallets[walletKey(userID, asset)]
}

func (s *memStore) room(id string) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state.rooms[id]
}

func (s *memStore) ledgerEntries(userID string, t models.LedgerType) []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range s.state.ledger {
		if e.UserID == userID && e.Type == t {
			out = append(out, *e)
		}
	}
	return out
}

func (s *memStore) referralRewards() []models.ReferralReward {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReferralReward
	for _, r := range s.state.rewards {
		out = append(out, *r)
	}
	return out
}

func (s *memStore) moveCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.state.moves {
		if m.RoomID == roomID {
			n++
		}
	}
	return n
}

// memTx implements store.Tx against a working copy of memState.
type memTx struct {
	st *memState
}

func (t *memTx) User(ctx context.Context, id string) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) UserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	for _, u := range t.st.users {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) SetReferredBy(ctx context.Context, userID, referrerID string) error {
	u, ok := t.st.users[userID]
	if !ok || u.ReferredBy != nil {
		return store.ErrNotFound
	}
	u.ReferredBy = &referrerID
	return nil
}

func (t *memTx) InsertRoom(ctx context.Context, room *models.Room) error {
	if _, ok := t.st.rooms[room.ID]; ok {
		return store.ErrDuplicate
	}
	if room.InviteCode != nil {
		if _, ok := t.st.invites[*room.InviteCode]; ok {
			return store.ErrDuplicate
		}
		t.st.invites[*room.InviteCode] = room.ID
	}
	cp := *room
	t.st.rooms[room.ID] = &cp
	return nil
}

func (t *memTx) Room(ctx context.Context, id string) (*models.Room, error) {
	r, ok := t.st.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) RoomForUpdate(ctx context.Context, id string) (*models.Room, error) {
	return t.Room(ctx, id)
}

func (t *memTx) RoomIDByInviteCode(ctx context.Context, code string) (string, error) {
	id, ok := t.st.invites[code]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

func (t *memTx) UpdateRoom(ctx context.Context, room *models.Room) error {
	if _, ok := t.st.rooms[room.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *room
	t.st.rooms[room.ID] = &cp
	return nil
}

func (t *memTx) InsertMove(ctx context.Context, move *models.Move) error {
	move.ID = t.st.nextID
	t.st.nextID++
	cp := *move
	t.st.moves = append(t.st.moves, &cp)
	return nil
}

func (t *memTx) ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
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

func (t *memTx) TopWinners(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	wins := map[string]int64{}
	for _, r := range t.st.rooms {
		if r.Status == models.RoomEnded && r.WinnerID != nil {
			wins[*r.WinnerID]++
		}
	}
	var entries []*models.LeaderboardEntry
	for id, n := range wins {
		username := id
		if u, ok := t.st.users[id]; ok {
			username = u.Username
		}
		entries = append(entries, &models.LeaderboardEntry{UserID: id, Username: username, Wins: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (t *memTx) WalletAssetForUpdate(ctx context.Context, userID, asset string) (*models.WalletAsset, error) {
	key := walletKey(userID, asset)
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

func (t *memTx) WalletAssetIfExists(ctx context.Context, userID, asset string) (*models.WalletAsset, error) {
	wa, ok := t.st.wallets[walletKey(userID, asset)]
	if !ok {
		return nil, nil
	}
	cp := *wa
	return &cp, nil
}

func (t *memTx) WalletAssets(ctx context.Context, userID string) ([]*models.WalletAsset, error) {
	var out []*models.WalletAsset
	for _, wa := range t.st.wallets {
		if wa.UserID == userID {
			cp := *wa
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) UpdateWalletAsset(ctx context.Context, wa *models.WalletAsset) error {
	key := walletKey(wa.UserID, wa.Asset)
	if _, ok := t.st.wallets[key]; !ok {
		return fmt.Errorf("wallet asset %s missing", key)
	}
	cp := *wa
	t.st.wallets[key] = &cp
	return nil
}

func (t *memTx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	entry.ID = t.st.nextID
	t.st.nextID++
	cp := *entry
	t.st.ledger = append(t.st.ledger, &cp)
	return nil
}

func (t *memTx) InsertReferralReward(ctx context.Context, reward *models.ReferralReward) error {
	reward.ID = t.st.nextID
	t.st.nextID++
	cp := *reward
	t.st.rewards = append(t.st.rewards, &cp)
	return nil
}
