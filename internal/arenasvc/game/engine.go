// Package game holds the pure, deterministic rule engines for the supported
// game types. Engines never touch the clock, storage or any other ambient
// state: identical (state, side, move) inputs always produce identical
// outputs, so persisted states stay reproducible across restarts and audits.
package game

import (
	"encoding/json"
	"fmt"
)

// Side is a player's position within a room.
type Side string

const (
	SideP1 Side = "p1"
	SideP2 Side = "p2"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideP1 {
		return SideP2
	}
	return SideP1
}

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// State is the opaque, serializable per-room game state. Snapshot is a
// per-variant payload that only the owning engine encodes and decodes.
type State struct {
	Status   Status          `json:"status"`
	NextTurn Side            `json:"next_turn"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// End reasons surfaced to clients and settlement.
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonInsufficientMaterial = "insufficient_material"
	ReasonThreefoldRepetition  = "threefold_repetition"
	ReasonFiftyMoveRule        = "fifty_move_rule"
	ReasonDraw                 = "draw"
	ReasonTttWin               = "ttt_win"
	ReasonTttDraw              = "ttt_draw"
	ReasonResign               = "resign"
	ReasonDisconnect           = "disconnect"
)

// End describes a terminal outcome. An empty WinnerSide means a draw.
type End struct {
	WinnerSide Side   `json:"winner_side,omitempty"`
	Reason     string `json:"reason"`
}

// Result is the successful outcome of applying a move.
type Result struct {
	State State `json:"state"`
	End   *End  `json:"end,omitempty"`
}

// Engine is the contract every game variant implements.
type Engine interface {
	// Create returns the initial state with NextTurn = p1.
	Create() (State, error)
	// ApplyMove validates and applies one move for the given side. Rule
	// violations are reported as *RuleError; any other error is internal.
	ApplyMove(state State, side Side, move json.RawMessage) (Result, error)
}

// RuleError rejects a move with a player-facing reason. It carries no
// side effects: the caller must leave persisted state untouched.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string { return e.Reason }

func rejectf(format string, args ...interface{}) error {
	return &RuleError{Reason: fmt.Sprintf(format, args...)}
}
