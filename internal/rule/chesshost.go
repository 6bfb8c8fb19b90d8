package rule

// ChessHost identifies a side of the board. Wire code 1 is red, 2 is black,
// matching the server's chessHost integers.
type ChessHost int

const (
	HostNone  ChessHost = 0
	HostRed   ChessHost = 1
	HostBlack ChessHost = 2
)

// Reverse returns the opposing side. Reverse(Reverse(h)) == h for red/black;
// HostNone reverses to itself.
func (h ChessHost) Reverse() ChessHost {
	switch h {
	case HostRed:
		return HostBlack
	case HostBlack:
		return HostRed
	default:
		return HostNone
	}
}

func (h ChessHost) String() string {
	switch h {
	case HostRed:
		return "red"
	case HostBlack:
		return "black"
	default:
		return "none"
	}
}

// Code returns the wire representation.
func (h ChessHost) Code() int { return int(h) }

// HostFromCode maps a wire code back to a ChessHost. Unknown codes map to
// HostNone rather than failing; the server is authoritative.
func HostFromCode(code int) ChessHost {
	switch code {
	case 1:
		return HostRed
	case 2:
		return HostBlack
	default:
		return HostNone
	}
}
