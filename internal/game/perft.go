package game

// Perft counts the leaf nodes of the legal move tree to the given depth. It
// is the standard way to check a move generator against published counts.
func Perft(p Position, depth int) int64 {
	if depth <= 0 {
		return 1
	}
	moves := AllLegalMoves(&p, p.SideToMove)
	if depth == 1 {
		return int64(len(moves))
	}
	var nodes int64
	for _, m := range moves {
		nodes += Perft(p.Play(m), depth-1)
	}
	return nodes
}

// Divide returns the perft count below each root move, keyed by move string.
func Divide(p Position, depth int) map[string]int64 {
	out := make(map[string]int64)
	if depth <= 0 {
		return out
	}
	for _, m := range AllLegalMoves(&p, p.SideToMove) {
		out[m.String()] = Perft(p.Play(m), depth-1)
	}
	return out
}
