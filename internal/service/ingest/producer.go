// internal/service/ingest/producer.go

package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Publisher sends location pings onto the ingestion topic. Messages are keyed
// by user id so one user's pings stay ordered within a partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	zone     *time.Location
}

// NewPublisher creates a synchronous producer for the ingestion topic.
func NewPublisher(brokers []string, topic string, zone *time.Location) (*Publisher, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return &Publisher{producer: producer, topic: topic, zone: zone}, nil
}

// PublishPosition enqueues one ping, stamped at the given instant in the
// service zone.
func (p *Publisher) PublishPosition(userID string, lat, lon float64, at time.Time) error {
	msg := locationMessage{
		UserID:       userID,
		Latitude:     &lat,
		Longitude:    &lon,
		UserDateTime: at.In(p.zone).Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Close flushes and shuts down the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
