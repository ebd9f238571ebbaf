package agent

import (
	"crypto/rand"
	"log"
	"math/big"

	"chess-core/internal/game"
)

// Options tunes ChooseMove.
type Options struct {
	// Depth counts plies including the candidate move itself. 1 is greedy
	// material, 2 adds the no-reply bonus, 3 and up search replies.
	Depth int `json:"depth"`
	// DeepenBelow adds one ply when the side has at most this many legal moves.
	DeepenBelow int `json:"deepenBelow"`
	// NoReplyBonus is added when the opponent is left without a legal reply.
	NoReplyBonus int `json:"noReplyBonus"`
	// Rand returns a uniform integer in [0, n). Defaults to crypto/rand.
	Rand func(n int) int `json:"-"`
}

// DefaultOptions returns depth 2, deepening at 12 or fewer moves, bonus 100.
func DefaultOptions() Options {
	return Options{Depth: 2, DeepenBelow: 12, NoReplyBonus: 100}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Depth <= 0 {
		o.Depth = d.Depth
	}
	if o.DeepenBelow < 0 {
		o.DeepenBelow = 0
	}
	if o.NoReplyBonus == 0 {
		o.NoReplyBonus = d.NoReplyBonus
	}
	if o.Rand == nil {
		o.Rand = cryptoIntn
	}
	return o
}

// ChooseMove picks a move for side in pos. It returns game.NoMove when side
// has no legal move. pos is never modified; every candidate is scored on its
// own copy.
//
// Candidates are scanned from a random starting index and the first strictly
// highest score wins, so equally scored moves are chosen at random.
func ChooseMove(pos game.Position, side game.Color, opts Options) game.Move {
	opts = opts.normalized()
	pos.SideToMove = side

	moves := representatives(game.AllLegalMoves(&pos, side))
	if len(moves) == 0 {
		return game.NoMove
	}

	depth := opts.Depth
	if len(moves) <= opts.DeepenBelow {
		depth++
	}

	start := opts.Rand(len(moves))
	best := moves[start]
	bestScore := evaluate(pos.Play(best), side, depth-1, opts.NoReplyBonus)
	for i := 1; i < len(moves); i++ {
		m := moves[(start+i)%len(moves)]
		if score := evaluate(pos.Play(m), side, depth-1, opts.NoReplyBonus); score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

// representatives keeps one move per pawn promotion, the queen promotion.
func representatives(moves []game.Move) []game.Move {
	out := moves[:0]
	for _, m := range moves {
		if m.Promotion == game.NoKind || m.Promotion == game.Queen {
			out = append(out, m)
		}
	}
	return out
}

func cryptoIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		log.Printf("[Agent] crypto/rand failed, taking first candidate: %v", err)
		return 0
	}
	return int(v.Int64())
}
