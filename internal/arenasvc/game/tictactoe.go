package game

import "encoding/json"

// TicTacToeEngine plays standard 3x3 tic-tac-toe. p1 marks X, p2 marks O,
// a move addresses a cell by index 0-8.
type TicTacToeEngine struct{}

type tttSnapshot struct {
	Board [9]string `json:"board"` // "", "X" or "O"
}

type tttMove struct {
	Index *int `json:"index"`
}

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

func tttMark(side Side) string {
	if side == SideP1 {
		return "X"
	}
	return "O"
}

func tttWinner(board [9]string) string {
	for _, line := range tttLines {
		v := board[line[0]]
		if v != "" && v == board[line[1]] && v == board[line[2]] {
			return v
		}
	}
	return ""
}

func (e *TicTacToeEngine) Create() (State, error) {
	snap, err := json.Marshal(tttSnapshot{})
	if err != nil {
		return State{}, err
	}
	return State{Status: StatusActive, NextTurn: SideP1, Snapshot: snap}, nil
}

func (e *TicTacToeEngine) ApplyMove(state State, side Side, move json.RawMessage) (Result, error) {
	if state.Status != StatusActive {
		return Result{}, rejectf("game is not active")
	}
	if state.NextTurn != side {
		return Result{}, rejectf("not your turn")
	}

	var snap tttSnapshot
	if err := json.Unmarshal(state.Snapshot, &snap); err != nil {
		return Result{}, err
	}

	var mv tttMove
	if err := json.Unmarshal(move, &mv); err != nil || mv.Index == nil {
		return Result{}, rejectf("invalid move")
	}
	idx := *mv.Index
	if idx < 0 || idx > 8 {
		return Result{}, rejectf("invalid cell")
	}
	if snap.Board[idx] != "" {
		return Result{}, rejectf("cell already taken")
	}
	snap.Board[idx] = tttMark(side)

	winner := tttWinner(snap.Board)
	full := true
	for _, c := range snap.Board {
		if c == "" {
			full = false
			break
		}
	}

	next := State{Status: StatusActive, NextTurn: side.Other()}
	if winner != "" || full {
		next.Status = StatusEnded
		next.NextTurn = state.NextTurn
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return Result{}, err
	}
	next.Snapshot = raw

	if winner != "" {
		winSide := SideP1
		if winner == "O" {
			winSide = SideP2
		}
		return Result{State: next, End: &End{WinnerSide: winSide, Reason: ReasonTttWin}}, nil
	}
	if full {
		return Result{State: next, End: &End{Reason: ReasonTttDraw}}, nil
	}
	return Result{State: next}, nil
}
