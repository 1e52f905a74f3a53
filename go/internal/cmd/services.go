package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/matchlive/matchcore/go/internal/match"
	"github.com/matchlive/matchcore/go/internal/offline"
	"github.com/matchlive/matchcore/go/internal/replicator"
)

type Services struct {
	Match     *match.Service
	App       *match.App
	Queue     *offline.Queue
	Publisher *replicator.JetStreamPublisher
	Manager   *replicator.ConnectionManager
	Consumer  *replicator.EventConsumer
	WSHandler *replicator.WebSocketHandler
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	clock := clockwork.NewRealClock()

	repo := match.NewPostgresRepository(database)

	// Publisher with offline fallback: broadcasts survive a NATS outage
	// by queueing durably and replaying in order once it recovers.
	publisher, err := replicator.NewJetStreamPublisher(replicator.JetStreamConfig{
		URL:             config.NATS.URL,
		StreamName:      config.NATS.StreamName,
		SubjectPrefix:   config.NATS.SubjectPrefix,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("setup publisher: %w", err)
	}

	sink := offline.NewFallbackSink(publisher)
	queue := offline.NewQueue(
		offline.NewPostgresStorage(database),
		sink,
		clock,
		offline.Config{
			FlushInterval: config.flushInterval(),
			MaxRetries:    config.Queue.MaxRetries,
			Backoff:       offline.DefaultBackoff,
		},
		nil,
	)
	sink.AttachQueue(queue)

	app := match.NewApp(repo, sink, clock)

	manager := replicator.NewConnectionManager(replicator.DefaultConnectionConfig(), app)
	consumer, err := replicator.NewEventConsumer(manager, replicator.JetStreamConsumerConfig{
		URL:           config.NATS.URL,
		StreamName:    config.NATS.StreamName,
		ConsumerName:  "match-replicator",
		SubjectFilter: fmt.Sprintf("%s.>", config.NATS.SubjectPrefix),
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	})
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("setup consumer: %w", err)
	}

	return &Services{
		Match:     match.NewService(app),
		App:       app,
		Queue:     queue,
		Publisher: publisher,
		Manager:   manager,
		Consumer:  consumer,
		WSHandler: replicator.NewWebSocketHandler(manager),
	}, nil
}
