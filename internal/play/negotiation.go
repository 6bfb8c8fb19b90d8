package play

import (
	"errors"

	"github.com/openxq/xiangqi-client/internal/rule"
)

// ConfirmRequestType identifies an in-game action that needs the
// opponent's agreement before it takes effect.
type ConfirmRequestType int

const (
	ConfirmWhiteFlag ConfirmRequestType = 1
	ConfirmDraw      ConfirmRequestType = 2
	ConfirmWithdraw  ConfirmRequestType = 3
)

func (c ConfirmRequestType) Code() int { return int(c) }

func (c ConfirmRequestType) String() string {
	switch c {
	case ConfirmWhiteFlag:
		return "white_flag"
	case ConfirmDraw:
		return "draw"
	case ConfirmWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// CatalogKey maps the request type to its message-catalog action label.
func (c ConfirmRequestType) CatalogKey() string {
	switch c {
	case ConfirmWhiteFlag:
		return "play.action_white_flag"
	case ConfirmDraw:
		return "play.action_draw"
	case ConfirmWithdraw:
		return "play.action_withdraw"
	default:
		return ""
	}
}

func ConfirmTypeFromCode(code int) (ConfirmRequestType, bool) {
	switch code {
	case 1, 2, 3:
		return ConfirmRequestType(code), true
	default:
		return 0, false
	}
}

var ErrRequestOutstanding = errors.New("play: confirm request already outstanding")

// ConfirmRequest is one pending agree/decline question.
type ConfirmRequest struct {
	Type      ConfirmRequestType
	Requester rule.ChessHost
}

// ConfirmNegotiation tracks at most one outstanding confirm request per
// session. The first request wins; a second one from either side is
// rejected until the pending one resolves. Owned by the session loop,
// so no locking.
type ConfirmNegotiation struct {
	pending *ConfirmRequest
}

func (n *ConfirmNegotiation) Outstanding() bool { return n.pending != nil }

func (n *ConfirmNegotiation) Pending() *ConfirmRequest { return n.pending }

// Begin registers a request; fails if one is already pending.
func (n *ConfirmNegotiation) Begin(typ ConfirmRequestType, requester rule.ChessHost) (*ConfirmRequest, error) {
	if n.pending != nil {
		return nil, ErrRequestOutstanding
	}
	n.pending = &ConfirmRequest{Type: typ, Requester: requester}
	return n.pending, nil
}

// Resolve clears and returns the pending request, or nil if none.
func (n *ConfirmNegotiation) Resolve() *ConfirmRequest {
	req := n.pending
	n.pending = nil
	return req
}
