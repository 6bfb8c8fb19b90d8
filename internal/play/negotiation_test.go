package play

import (
	"errors"
	"testing"

	"github.com/openxq/xiangqi-client/internal/rule"
)

func TestNegotiationSingleOutstanding(t *testing.T) {
	var n ConfirmNegotiation

	req, err := n.Begin(ConfirmDraw, rule.HostRed)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if req.Type != ConfirmDraw || req.Requester != rule.HostRed {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !n.Outstanding() {
		t.Fatal("expected outstanding request")
	}

	if _, err := n.Begin(ConfirmWithdraw, rule.HostBlack); !errors.Is(err, ErrRequestOutstanding) {
		t.Fatalf("second Begin err = %v, want ErrRequestOutstanding", err)
	}

	got := n.Resolve()
	if got == nil || got.Type != ConfirmDraw {
		t.Fatalf("Resolve = %+v, want pending draw", got)
	}
	if n.Outstanding() {
		t.Fatal("still outstanding after Resolve")
	}
	if n.Resolve() != nil {
		t.Fatal("Resolve on empty negotiation should be nil")
	}
}

func TestConfirmTypeFromCode(t *testing.T) {
	if typ, ok := ConfirmTypeFromCode(1); !ok || typ != ConfirmWhiteFlag {
		t.Fatalf("code 1 = %v %v", typ, ok)
	}
	if _, ok := ConfirmTypeFromCode(9); ok {
		t.Fatal("code 9 should be invalid")
	}
}
