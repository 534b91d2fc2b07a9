package game

import (
	"encoding/json"
	"strings"

	"github.com/notnil/chess"
)

// ChessEngine wraps notnil/chess with the engine contract. p1 plays white.
// The snapshot keeps the full UCI move list and replays it on every apply,
// so repetition counters and the fifty-move clock survive restarts instead
// of being lost to a bare FEN.
type ChessEngine struct{}

type chessSnapshot struct {
	FEN   string   `json:"fen"`
	Moves []string `json:"moves"` // UCI, in play order
	Turn  string   `json:"turn"`  // "w" or "b"
}

type chessMove struct {
	UCI       string `json:"uci,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

func sideToColor(side Side) chess.Color {
	if side == SideP1 {
		return chess.White
	}
	return chess.Black
}

func colorToSide(c chess.Color) Side {
	if c == chess.White {
		return SideP1
	}
	return SideP2
}

func turnLetter(c chess.Color) string {
	if c == chess.White {
		return "w"
	}
	return "b"
}

// uciFor normalizes the two accepted move encodings into one UCI string.
func uciFor(mv chessMove) (string, error) {
	if mv.UCI != "" {
		uci := strings.TrimSpace(strings.ToLower(mv.UCI))
		if len(uci) < 4 || len(uci) > 5 {
			return "", rejectf("invalid uci move")
		}
		return uci, nil
	}
	if mv.From != "" && mv.To != "" {
		return strings.ToLower(mv.From + mv.To + mv.Promotion), nil
	}
	return "", rejectf("invalid move")
}

func replay(moves []string) (*chess.Game, error) {
	g := chess.NewGame()
	for _, uci := range moves {
		m, err := chess.UCINotation{}.Decode(g.Position(), uci)
		if err != nil {
			return nil, err
		}
		if err := g.Move(m); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func chessState(g *chess.Game, moves []string, prevTurn Side) (State, error) {
	over := g.Outcome() != chess.NoOutcome
	st := State{Status: StatusActive, NextTurn: colorToSide(g.Position().Turn())}
	if over {
		st.Status = StatusEnded
		st.NextTurn = prevTurn
	}
	raw, err := json.Marshal(chessSnapshot{
		FEN:   g.Position().String(),
		Moves: moves,
		Turn:  turnLetter(g.Position().Turn()),
	})
	if err != nil {
		return State{}, err
	}
	st.Snapshot = raw
	return st, nil
}

func (e *ChessEngine) Create() (State, error) {
	return chessState(chess.NewGame(), []string{}, SideP1)
}

func (e *ChessEngine) ApplyMove(state State, side Side, move json.RawMessage) (Result, error) {
	if state.Status != StatusActive {
		return Result{}, rejectf("game is not active")
	}

	var snap chessSnapshot
	if err := json.Unmarshal(state.Snapshot, &snap); err != nil {
		return Result{}, err
	}

	g, err := replay(snap.Moves)
	if err != nil {
		return Result{}, err
	}

	if g.Position().Turn() != sideToColor(side) {
		return Result{}, rejectf("not your turn")
	}

	var mv chessMove
	if err := json.Unmarshal(move, &mv); err != nil {
		return Result{}, rejectf("invalid move")
	}
	uci, err := uciFor(mv)
	if err != nil {
		return Result{}, err
	}

	decoded, err := chess.UCINotation{}.Decode(g.Position(), uci)
	if err != nil {
		return Result{}, rejectf("illegal move")
	}
	if err := g.Move(decoded); err != nil {
		return Result{}, rejectf("illegal move")
	}
	moves := append(append([]string{}, snap.Moves...), uci)

	// The server claims repetition and fifty-move draws on the players'
	// behalf; there is no draw-offer flow in a wagered game.
	if g.Outcome() == chess.NoOutcome {
		for _, m := range g.EligibleDraws() {
			if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
				if err := g.Draw(m); err != nil {
					return Result{}, err
				}
				break
			}
		}
	}

	next, err := chessState(g, moves, state.NextTurn)
	if err != nil {
		return Result{}, err
	}

	switch g.Outcome() {
	case chess.NoOutcome:
		return Result{State: next}, nil
	case chess.WhiteWon, chess.BlackWon:
		// Only checkmate decides a game here; resignation and forfeits are
		// handled by the coordinator, never inside the rule engine.
		winner := SideP1
		if g.Outcome() == chess.BlackWon {
			winner = SideP2
		}
		return Result{State: next, End: &End{WinnerSide: winner, Reason: ReasonCheckmate}}, nil
	default:
		return Result{State: next, End: &End{Reason: drawReason(g.Method())}}, nil
	}
}

func drawReason(m chess.Method) string {
	switch m {
	case chess.Stalemate:
		return ReasonStalemate
	case chess.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return ReasonThreefoldRepetition
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return ReasonFiftyMoveRule
	default:
		return ReasonDraw
	}
}
