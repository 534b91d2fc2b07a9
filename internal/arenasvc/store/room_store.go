package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stakearena/arena-services/internal/arenasvc/models"
)

const roomColumns = `id, game_type, stake_asset, stake_amount, status, phase,
		player1_id, player2_id, winner_id, game_state, is_private, invite_code,
		created_at, updated_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	r := &models.Room{}
	err := row.Scan(
		&r.ID,
		&r.GameType,
		&r.StakeAsset,
		&r.StakeAmount,
		&r.Status,
		&r.Phase,
		&r.Player1ID,
		&r.Player2ID,
		&r.WinnerID,
		&r.GameState,
		&r.IsPrivate,
		&r.InviteCode,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return r, nil
}

func (t *pgTx) InsertRoom(ctx context.Context, room *models.Room) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO rooms (id, game_type, stake_asset, stake_amount, status, phase,
			player1_id, player2_id, winner_id, game_state, is_private, invite_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, room.ID, room.GameType, room.StakeAsset, room.StakeAmount, room.Status, room.Phase,
		room.Player1ID, room.Player2ID, room.WinnerID, room.GameState, room.IsPrivate, room.InviteCode,
	).Scan(&room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (t *pgTx) Room(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	return scanRoom(t.tx.QueryRow(ctx, query, id))
}

// RoomForUpdate locks the room row for the rest of the transaction. Every
// state-changing room operation goes through this lookup so that, e.g., a
// winning move and a disconnect-resignation on the same room serialize.
func (t *pgTx) RoomForUpdate(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 FOR UPDATE`
	return scanRoom(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTx) RoomIDByInviteCode(ctx context.Context, code string) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx,
		`SELECT id FROM rooms WHERE invite_code = $1`, code,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve invite code: %w", err)
	}
	return id, nil
}

func (t *pgTx) UpdateRoom(ctx context.Context, room *models.Room) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE rooms
		SET status = $2, phase = $3, player2_id = $4, winner_id = $5,
			game_state = $6, updated_at = NOW()
		WHERE id = $1
	`, room.ID, room.Status, room.Phase, room.Player2ID, room.WinnerID, room.GameState)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

func (t *pgTx) InsertMove(ctx context.Context, move *models.Move) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO moves (room_id, player_id, move)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, move.RoomID, move.PlayerID, move.Move).Scan(&move.ID, &move.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert move: %w", err)
	}
	return nil
}

func (t *pgTx) ActiveRoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM rooms
		WHERE status = 'active' AND (player1_id = $1 OR player2_id = $1)
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *pgTx) TopWinners(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT u.id, u.username, COUNT(*) AS wins
		FROM rooms r
		JOIN users u ON u.id = r.winner_id
		WHERE r.status = 'ended' AND r.winner_id IS NOT NULL
		GROUP BY u.id, u.username
		ORDER BY wins DESC, u.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank winners: %w", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		e := &models.LeaderboardEntry{}
		if err := rows.Scan(&e.UserID, &e.Username, &e.Wins); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
