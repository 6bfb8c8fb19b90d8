package play

import "testing"

func TestObservableNotifiesOnChangeOnly(t *testing.T) {
	o := NewObservable(1)

	var seen []int
	cancel := o.Subscribe(func(v int) { seen = append(seen, v) })
	defer cancel()

	o.Set(2)
	o.Set(2) // unchanged, no notification
	o.Set(3)

	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("seen = %v, want [2 3]", seen)
	}
	if got := o.Value(); got != 3 {
		t.Fatalf("value = %d", got)
	}
}

func TestObservableSubscribeWithCurrent(t *testing.T) {
	o := NewObservable("ready")

	var seen []string
	cancel := o.SubscribeWithCurrent(func(v string) { seen = append(seen, v) })
	o.Set("playing")
	cancel()
	o.Set("end")

	if len(seen) != 2 || seen[0] != "ready" || seen[1] != "playing" {
		t.Fatalf("seen = %v", seen)
	}
}
