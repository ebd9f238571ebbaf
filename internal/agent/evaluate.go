package agent

import "chess-core/internal/game"

// Material returns side's piece values minus the opponent's, using the weights
// pawn=1, knight=3, bishop=3, rook=5, queen=9, king=100.
func Material(pos *game.Position, side game.Color) int {
	return pos.Material(side) - pos.Material(side.Other())
}

// evaluate scores pos from side's point of view, looking lookahead plies
// past the move that produced it.
//
// lookahead 0 is pure material. From 1 upward the side to move in pos is
// examined: if it has no legal reply at all the score gets bonus (or loses it
// when that side is us). This fires on stalemate as well as mate. From 2
// upward the replies are searched minimax-style.
func evaluate(pos game.Position, side game.Color, lookahead, bonus int) int {
	material := Material(&pos, side)
	if lookahead <= 0 {
		return material
	}

	mover := pos.SideToMove
	if lookahead == 1 {
		if game.HasLegalMoves(&pos, mover) {
			return material
		}
		return material + noReplyScore(mover, side, bonus)
	}

	replies := game.AllLegalMoves(&pos, mover)
	if len(replies) == 0 {
		return material + noReplyScore(mover, side, bonus)
	}

	best := 0
	for i, r := range replies {
		score := evaluate(pos.Play(r), side, lookahead-1, bonus)
		switch {
		case i == 0:
			best = score
		case mover == side && score > best:
			best = score
		case mover != side && score < best:
			best = score
		}
	}
	return best
}

func noReplyScore(stuck, side game.Color, bonus int) int {
	if stuck == side {
		return -bonus
	}
	return bonus
}
