// Package events publishes planning results to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"drone-route-planner/internal/analysis"
	"drone-route-planner/internal/route"
)

// DefaultSubject is the subject prefix routes are published under.
const DefaultSubject = "droneplan.routes"

// RouteEvent is the payload published for each planned route.
type RouteEvent struct {
	RunID    int64          `json:"runId,omitempty"`
	Category route.Category `json:"category"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Height   route.Altitude `json:"height"`
	Tier     route.Tier     `json:"tier"`
	LengthKm float64        `json:"lengthKm"`
	Path     [][2]float64   `json:"path"`
}

// NewRouteEvent converts a planned route into its event payload.
func NewRouteEvent(runID int64, r route.Route) RouteEvent {
	path := make([][2]float64, len(r.Path))
	for i, p := range r.Path {
		path[i] = p
	}
	return RouteEvent{
		RunID:    runID,
		Category: r.Category,
		From:     r.From,
		To:       r.To,
		Height:   r.Height,
		Tier:     r.Tier,
		LengthKm: analysis.PlanarLengthKm(r.Path),
		Path:     path,
	}
}

// Publisher sends route events to a JetStream stream.
type Publisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewPublisher connects to NATS and ensures the ROUTES stream covers subject.>.
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "DRONE_ROUTES",
		Subjects:  []string{subject + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist.
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js, subject: subject}, nil
}

// Subject returns the subject a route of category c is published on.
func Subject(prefix string, c route.Category) string {
	return prefix + "." + string(c)
}

// PublishRoute publishes one route event.
func (p *Publisher) PublishRoute(ctx context.Context, runID int64, r route.Route) error {
	data, err := json.Marshal(NewRouteEvent(runID, r))
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(Subject(p.subject, r.Category), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", r, err)
	}
	return nil
}

// PublishSet publishes every route of set in planning order and returns how many were sent.
func (p *Publisher) PublishSet(ctx context.Context, runID int64, set *route.Set) (int, error) {
	sent := 0
	for _, c := range route.Categories {
		for _, r := range set.Routes[c] {
			if err := p.PublishRoute(ctx, runID, r); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
