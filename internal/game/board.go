package game

// Symbol is a cell mark. The zero value means an empty cell.
type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

// Other returns the opposing symbol. SymbolNone maps to itself.
func (s Symbol) Other() Symbol {
	switch s {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	default:
		return SymbolNone
	}
}

// Board is a 3x3 grid in row-major order.
type Board [9]Symbol

// winLines are the 8 winning triples: 3 rows, 3 columns, 2 diagonals.
var winLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Place writes s into the cell if the index is in range and the cell is
// empty. It reports whether the write happened; a false return leaves the
// board untouched.
func (b *Board) Place(cell int, s Symbol) bool {
	if cell < 0 || cell >= len(b) || s == SymbolNone {
		return false
	}
	if b[cell] != SymbolNone {
		return false
	}
	b[cell] = s
	return true
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	for _, c := range b {
		if c == SymbolNone {
			return false
		}
	}
	return true
}

// Winner returns the symbol occupying the first uniform non-empty win
// line, or SymbolNone when no line is complete.
func (b Board) Winner() Symbol {
	for _, line := range winLines {
		a, m, z := line[0], line[1], line[2]
		if b[a] != SymbolNone && b[a] == b[m] && b[m] == b[z] {
			return b[a]
		}
	}
	return SymbolNone
}

// Evaluate reports the terminal state of the board: the winning symbol if
// a line is complete, and whether the game is over (win or draw).
func Evaluate(b Board) (winner Symbol, over bool) {
	if w := b.Winner(); w != SymbolNone {
		return w, true
	}
	return SymbolNone, b.Full()
}
