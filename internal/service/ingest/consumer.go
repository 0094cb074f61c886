// internal/service/ingest/consumer.go

package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// ConsumerConfig contains configuration for the Kafka consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// FlushInterval is how long buffered messages may wait before a flush.
	FlushInterval time.Duration

	// BatchSize flushes early once this many messages are buffered.
	BatchSize int
}

// Consumer pulls location pings off Kafka and feeds them to the pipeline in
// batches. Offsets are marked and committed only after a whole batch is
// durably indexed, so a crash mid-flush redelivers the batch; the pipeline's
// member identities make redelivery idempotent.
type Consumer struct {
	group    sarama.ConsumerGroup
	pipeline *Pipeline
	config   ConsumerConfig
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewConsumer creates a consumer group client for the ingestion topic.
func NewConsumer(pipeline *Pipeline, config ConsumerConfig) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = false
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		group:    group,
		pipeline: pipeline,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins consuming. The claim loop rejoins after every rebalance until
// Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		handler := &batchHandler{
			pipeline:      c.pipeline,
			flushInterval: c.config.FlushInterval,
			batchSize:     c.config.BatchSize,
		}
		for {
			if err := c.group.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				log.Printf("Error consuming %s: %v", c.config.Topic, err)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				log.Printf("Consumer group error: %v", err)
			}
		}
	}()

	return nil
}

// Stop signals the claim loop to finish its in-flight batch and waits for it
// with the caller's deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return c.group.Close()
}

// batchHandler implements sarama.ConsumerGroupHandler, buffering claimed
// messages and flushing them as one pipeline batch per interval.
type batchHandler struct {
	pipeline      *Pipeline
	flushInterval time.Duration
	batchSize     int
}

func (h *batchHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *batchHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *batchHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	var raws [][]byte
	var msgs []*sarama.ConsumerMessage

	flush := func() error {
		if len(raws) == 0 {
			return nil
		}
		accepted, err := h.pipeline.Process(sess.Context(), raws)
		if err != nil {
			// Leave offsets unmarked; the batch comes back after rejoin.
			return fmt.Errorf("process batch: %w", err)
		}
		if accepted < len(raws) {
			log.Printf("Ingested %d of %d messages in batch", accepted, len(raws))
		}
		for _, m := range msgs {
			sess.MarkMessage(m, "")
		}
		sess.Commit()
		raws, msgs = nil, nil
		return nil
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			raws = append(raws, msg.Value)
			msgs = append(msgs, msg)
			if len(raws) >= h.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-sess.Context().Done():
			return flush()
		}
	}
}
