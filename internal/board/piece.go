package board

import "github.com/notnil/chess"

// PieceValue is the coarse material scale used for game-phase and balance
// classification. Kings count zero.
var PieceValue = map[chess.PieceType]int{
	chess.Pawn:   1,
	chess.Knight: 3,
	chess.Bishop: 3,
	chess.Rook:   5,
	chess.Queen:  8,
	chess.King:   0,
}

// ColorSign is +1 for white and -1 for black.
func ColorSign(c chess.Color) int {
	if c == chess.Black {
		return -1
	}
	return 1
}

// Material returns the material balance (positive favors white).
func (p *Position) Material() int {
	score := 0
	for _, piece := range p.Current().Board().SquareMap() {
		score += PieceValue[piece.Type()] * ColorSign(piece.Color())
	}
	return score
}

// TotalMaterial returns the material of both sides added together.
func (p *Position) TotalMaterial() int {
	total := 0
	for _, piece := range p.Current().Board().SquareMap() {
		total += PieceValue[piece.Type()]
	}
	return total
}

// PieceCount returns how many pieces of the given type and color are on the board.
func (p *Position) PieceCount(c chess.Color, pt chess.PieceType) int {
	n := 0
	for _, piece := range p.Current().Board().SquareMap() {
		if piece.Color() == c && piece.Type() == pt {
			n++
		}
	}
	return n
}
