package rule

// Board dimensions: 10 ranks by 9 files.
const (
	Rows = 10
	Cols = 9
)

// Pos is a board coordinate. Row 0 is the black back rank, row 9 the red
// back rank.
type Pos struct {
	Row int
	Col int
}

func (p Pos) Equals(other Pos) bool { return p.Row == other.Row && p.Col == other.Col }

func (p Pos) InBounds() bool {
	return p.Row >= 0 && p.Row < Rows && p.Col >= 0 && p.Col < Cols
}
