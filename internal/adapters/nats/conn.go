package natsadapter

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects and streams used by the service.
const (
	SubjectToursPlanned = "atlas.tours.planned"
	subjectWalkPrefix   = "atlas.walk."

	streamTours = "TOURS"
	streamWalks = "WALKS"
)

// WalkStepSubject is the subject carrying the steps of one walk.
func WalkStepSubject(tourID string) string { return subjectWalkPrefix + tourID + ".step" }

// WalkStatusSubject is the subject carrying the lifecycle events of one walk.
func WalkStatusSubject(tourID string) string { return subjectWalkPrefix + tourID + ".status" }

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// ensureStreams creates the JetStream streams, updating them if they exist.
func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      streamTours,
			Subjects:  []string{SubjectToursPlanned},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      streamWalks,
			Subjects:  []string{subjectWalkPrefix + "*.status"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, update it instead
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}
