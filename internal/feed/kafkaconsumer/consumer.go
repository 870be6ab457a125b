// Package kafkaconsumer applies feed events from a Kafka topic to a session.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	obs "github.com/mohammed-shakir/indoor-levels/internal/core/observability"
	"github.com/mohammed-shakir/indoor-levels/internal/feed"
	"github.com/mohammed-shakir/indoor-levels/internal/indoor"
	mylog "github.com/mohammed-shakir/indoor-levels/internal/logger"
	"github.com/mohammed-shakir/indoor-levels/internal/session"
)

// Target is what feed events are applied to.
type Target interface {
	AddGeoJSON(ctx context.Context, raw []byte, opts session.AddOptions) (*model.IndoorMap, error)
	RemoveMap(ctx context.Context, id string) error
	MoveCamera(cam model.Camera)
	SetLevel(l *model.Level)
}

var _ Target = (*session.Session)(nil)

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	target Target
	seen   *seqDedupe

	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
}

func New(cfg Config, logger *slog.Logger, target Target) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		target: target,
		seen:   newSeqDedupe(cfg.DedupeSize),
		assign: map[int32]struct{}{},
	}
}

// consumes feed events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.target == nil {
		return errors.New("kafkaconsumer: missing target")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{
		setup:   c.claimed,
		cleanup: func(sarama.ConsumerGroupSession) { c.released() },
		process: c.ProcessOne,
		logger:  c.logger,
	}
	defer c.released()

	c.logger.Info("indoor feed consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("indoor feed consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

func (c *Consumer) claimed(sess sarama.ConsumerGroupSession) {
	c.assignMu.Lock()
	defer c.assignMu.Unlock()
	c.assign = map[int32]struct{}{}
	for _, parts := range sess.Claims() {
		for _, p := range parts {
			c.assign[p] = struct{}{}
		}
	}
	c.assigned.Store(true)
}

func (c *Consumer) released() {
	c.assignMu.Lock()
	defer c.assignMu.Unlock()
	c.assigned.Store(false)
	c.assign = map[int32]struct{}{}
}

// Readiness reports whether the group currently holds any partitions.
func (c *Consumer) Readiness() (ready bool, partitions []int32) {
	if !c.assigned.Load() {
		return false, nil
	}
	c.assignMu.RLock()
	defer c.assignMu.RUnlock()
	for p := range c.assign {
		partitions = append(partitions, p)
	}
	slices.Sort(partitions)
	return true, partitions
}

// process a single feed message
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := feed.Decode(msg.Value)
	if err != nil {
		obs.ObserveFeedEvent("decode", err)
		c.logger.ErrorContext(ctx, "feed event rejected",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return err
	}
	if ev.MapID != "" {
		ctx = mylog.WithMapID(ctx, ev.MapID)
	}

	if ev.Seq > 0 && !c.seen.shouldApply(ev.DedupeKey(), ev.Seq) {
		obs.ObserveFeedEvent(ev.Op+"_replay", nil)
		c.logger.DebugContext(ctx, "feed event replayed (skipping)", "op", ev.Op, "seq", ev.Seq)
		return nil
	}

	err = c.apply(ctx, ev)
	obs.ObserveFeedEvent(ev.Op, err)
	if err != nil {
		return fmt.Errorf("apply %s: %w", ev.Op, err)
	}
	c.logger.DebugContext(ctx, "feed event applied", "op", ev.Op, "offset", msg.Offset)
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev feed.Event) error {
	switch ev.Op {
	case feed.OpAdd:
		im, err := c.target.AddGeoJSON(ctx, ev.GeoJSON, session.AddOptions{
			ID:            ev.MapID,
			BeforeLayerID: ev.BeforeLayerID,
			LayersToHide:  ev.LayersToHide,
		})
		switch {
		case errors.Is(err, indoor.ErrDuplicateMap):
			return nil
		case err != nil:
			return markPermanent(err)
		}
		c.logger.InfoContext(ctx, "indoor map registered from feed", "levels", im.LevelsRange.String())
		return nil
	case feed.OpRemove:
		err := c.target.RemoveMap(ctx, ev.MapID)
		if errors.Is(err, indoor.ErrUnknownMap) {
			return nil
		}
		return err
	case feed.OpCamera:
		c.target.MoveCamera(ev.Camera.Model())
		return nil
	case feed.OpLevel:
		var l *model.Level
		if ev.Level != nil {
			l = model.Level(*ev.Level).Ptr()
		}
		c.target.SetLevel(l)
		return nil
	default:
		return markPermanent(fmt.Errorf("unsupported op %q", ev.Op))
	}
}

// a rejected dataset will not improve on redelivery
func markPermanent(err error) error {
	return fmt.Errorf("%w: %w", feed.ErrInvalidEvent, err)
}
