package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/odysseyatlas/atlas/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
// Walk steps are high-frequency and ephemeral, so they go out on core NATS;
// planned tours and walk status events are persisted in JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher enables JetStream on conn and ensures the streams exist.
func NewPublisher(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishTourPlanned(ctx context.Context, tour *domain.Tour) error {
	data, err := json.Marshal(tourPlannedEvent{
		ID:             tour.ID,
		CityID:         tour.CityID,
		From:           tour.From,
		To:             tour.To,
		Polyline:       tour.Polyline,
		DistanceMeters: tour.DistanceMeters,
		Steps:          len(tour.Steps),
		CreatedAt:      tour.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectToursPlanned, data, nats.Context(ctx), nats.MsgId(tour.ID))
	return err
}

func (p *Publisher) PublishWalkStep(ctx context.Context, step *domain.WalkStep) error {
	data, err := json.Marshal(step)
	if err != nil {
		return err
	}
	return p.conn.Publish(WalkStepSubject(step.TourID), data)
}

func (p *Publisher) PublishWalkStatus(ctx context.Context, event *domain.WalkStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(WalkStatusSubject(event.TourID), data, nats.Context(ctx))
	return err
}
