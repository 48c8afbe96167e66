package events

import (
	"testing"

	"lendingpool/core/types"
)

func TestBufferDrainResets(t *testing.T) {
	var buf Buffer
	buf.Emit(nil)
	buf.Emit(ModulePaused{Module: "lending", Paused: true})
	buf.Emit(&types.Event{Type: "lending.deposit"})

	drained := buf.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 events, got %d", len(drained))
	}
	if again := buf.Drain(); len(again) != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", len(again))
	}
}

func TestRender(t *testing.T) {
	evt := Render(ModulePaused{Module: " Lending ", Paused: true, Actor: "lp1admin"})
	if evt.Type != TypeModulePaused {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["module"] != "lending" || evt.Attributes["paused"] != "true" || evt.Attributes["actor"] != "lp1admin" {
		t.Fatalf("unexpected attributes %+v", evt.Attributes)
	}
	raw := &types.Event{Type: "lending.borrow", Attributes: map[string]string{"amount": "5"}}
	if Render(raw) != raw {
		t.Fatalf("expected structured event to pass through")
	}
	if Render(nil) != nil {
		t.Fatalf("expected nil render for nil event")
	}
}
