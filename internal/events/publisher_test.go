package events_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"drone-route-planner/internal/events"
	"drone-route-planner/internal/route"
)

func TestNewRouteEvent(t *testing.T) {
	r := route.Route{
		From: "校门1", To: "1号楼", Category: route.GateToDorm,
		Height: route.High, Tier: route.TierRelaxed,
		Path: []orb.Point{{0, 0}, {0.01, 0}},
	}

	ev := events.NewRouteEvent(7, r)
	if ev.RunID != 7 || ev.Height != route.High || ev.Tier != route.TierRelaxed {
		t.Errorf("event = %+v", ev)
	}
	if math.Abs(ev.LengthKm-1.1132) > 1e-6 {
		t.Errorf("length = %v", ev.LengthKm)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["category"] != "gate_to_dorm" || decoded["from"] != "校门1" {
		t.Errorf("payload = %s", data)
	}
	if path, ok := decoded["path"].([]any); !ok || len(path) != 2 {
		t.Errorf("path payload = %v", decoded["path"])
	}
}

func TestSubject(t *testing.T) {
	if got := events.Subject(events.DefaultSubject, route.CanteenToDorm); got != "droneplan.routes.canteen_to_dorm" {
		t.Errorf("Subject = %q", got)
	}
}
