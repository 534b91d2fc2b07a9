package game

import "github.com/stakearena/arena-services/internal/arenasvc/models"

var engines = map[models.GameType]Engine{
	models.GameChess:     &ChessEngine{},
	models.GameTicTacToe: &TicTacToeEngine{},
}

// ForType resolves the engine for a game type. Dispatch is exhaustive over
// the registered variants; unknown types report ok=false.
func ForType(t models.GameType) (Engine, bool) {
	e, ok := engines[t]
	return e, ok
}
