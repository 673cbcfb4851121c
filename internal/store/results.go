// Package store persists planned routes: the results JSON file consumed by
// the map front end, and a SQLite database of planning runs.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"drone-route-planner/internal/route"
)

// Results is the layout of the results file.
type Results struct {
	Routes     map[route.Category][]route.Route `json:"routes"`
	Statistics Statistics                       `json:"statistics"`
}

// Statistics are the summary counts stored next to the routes.
type Statistics struct {
	TotalCanteenRoutes int `json:"total_canteen_routes"`
	TotalGateRoutes    int `json:"total_gate_routes"`
}

// NewResults wraps a route set in the results file layout.
func NewResults(set *route.Set) Results {
	routes := make(map[route.Category][]route.Route, len(route.Categories))
	for _, c := range route.Categories {
		rs := set.Routes[c]
		if rs == nil {
			rs = []route.Route{}
		}
		routes[c] = rs
	}
	return Results{
		Routes: routes,
		Statistics: Statistics{
			TotalCanteenRoutes: len(routes[route.CanteenToDorm]),
			TotalGateRoutes:    len(routes[route.GateToDorm]),
		},
	}
}

// WriteResults writes set to path as indented UTF-8 JSON.
func WriteResults(path string, set *route.Set) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(NewResults(set)); err != nil {
		f.Close()
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", path, err)
	}
	return nil
}

// ReadResults loads a results file written by WriteResults.
func ReadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return &r, nil
}
