package indoor

import (
	"log/slog"
	"time"

	"github.com/mohammed-shakir/indoor-levels/internal/events"
	"github.com/mohammed-shakir/indoor-levels/internal/locator"
	"github.com/mohammed-shakir/indoor-levels/internal/selector"
	"github.com/mohammed-shakir/indoor-levels/internal/throttle"
)

type settings struct {
	logger         *slog.Logger
	minZoom        float64
	clock          throttle.Clock
	rescanInterval time.Duration
	styles         StyleLoader
	cellRes        int
	bus            *events.Bus
}

func defaults() settings {
	return settings{
		logger:         slog.Default(),
		minZoom:        selector.DefaultMinZoom,
		clock:          throttle.SystemClock(),
		rescanInterval: throttle.DefaultInterval,
		cellRes:        locator.DefaultResolution,
	}
}

type Option func(*settings)

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMinZoom(z float64) Option {
	return func(s *settings) { s.minZoom = z }
}

// WithClock replaces the time source of the rescan throttle.
func WithClock(c throttle.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithRescanInterval(d time.Duration) Option {
	return func(s *settings) { s.rescanInterval = d }
}

func WithStyleLoader(l StyleLoader) Option {
	return func(s *settings) { s.styles = l }
}

// WithCellResolution sets the H3 resolution of IndoorMap.Cell; negative disables it.
func WithCellResolution(res int) Option {
	return func(s *settings) { s.cellRes = res }
}

// WithBus shares an event bus with other components.
func WithBus(b *events.Bus) Option {
	return func(s *settings) { s.bus = b }
}
