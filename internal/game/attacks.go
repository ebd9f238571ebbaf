package game

// AttackedSquares unions the attack sets of every piece of color by, and
// locates the king of the other color for the caller's check tests. The king
// square is NoSquare when that color has no king.
//
// Attack sets are built from pseudo-legal attack-mode generation only, never
// from legal moves, so this never recurses into self-check filtering.
func AttackedSquares(p *Position, by Color) (SquareSet, Square) {
	var set SquareSet
	king := NoSquare
	var buf [32]Move

	for r := 1; r <= 8; r++ {
		for f := 1; f <= 8; f++ {
			sq := Sq(f, r)
			pc := p.PieceAt(sq)
			if pc.IsEmpty() {
				continue
			}
			if pc.Color != by {
				if pc.Kind == King {
					king = sq
				}
				continue
			}
			for _, m := range generators[pc.Kind](p, sq, pc, attackMode, buf[:0]) {
				set = set.Add(m.To)
			}
		}
	}
	return set, king
}

// IsAttacked reports whether sq is attacked by color by.
func IsAttacked(p *Position, sq Square, by Color) bool {
	set, _ := AttackedSquares(p, by)
	return set.Has(sq)
}
