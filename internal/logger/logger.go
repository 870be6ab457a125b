// Package logger builds the process zerolog logger and carries per-request
// log fields (request ID, component, map ID) through a context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string // debug|info|warn|error, anything else is info
	Console   bool
	SampleN   int // keep 1 of every N lines; 0 keeps all
	Service   string
	Component string
}

// fields are the log fields a context carries. Each With* call copies them,
// so a derived context never mutates its parent's fields.
type fields struct {
	requestID string
	component string
	mapID     string
}

type fieldsKey struct{}

func fieldsOf(ctx context.Context) fields {
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func withFields(ctx context.Context, edit func(*fields)) context.Context {
	f := fieldsOf(ctx)
	edit(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithRequestID tags ctx with reqID, minting one when it is empty.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return withFields(ctx, func(f *fields) { f.requestID = reqID })
}

// WithMapID tags log lines emitted while handling one indoor map.
func WithMapID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withFields(ctx, func(f *fields) { f.mapID = id })
}

func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return withFields(ctx, func(f *fields) { f.component = component })
}

// NewID returns 16 random hex characters.
func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func parseLevel(s string) zerolog.Level {
	switch l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s))); {
	case err != nil, l < zerolog.DebugLevel, l > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return l
	}
}

// Build configures the global zerolog field names and level, then returns
// the root logger tagged with service and component.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	root := zerolog.New(out)
	if cfg.SampleN > 1 {
		n := uint32(min(uint64(cfg.SampleN), math.MaxUint32))
		root = root.Sample(&zerolog.BasicSampler{N: n})
	}

	zc := root.With().Timestamp()
	if cfg.Service != "" {
		zc = zc.Str("service", cfg.Service)
	}
	if cfg.Component != "" {
		zc = zc.Str("component", cfg.Component)
	}
	return zc.Logger()
}

// FromContext returns a child of parent carrying ctx's log fields. A nil
// parent logs nowhere.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	l := zerolog.Nop()
	if parent != nil {
		l = *parent
	}
	f := fieldsOf(ctx)
	if f == (fields{}) {
		return &l
	}
	zc := l.With()
	if f.requestID != "" {
		zc = zc.Str("request_id", f.requestID)
	}
	if f.component != "" {
		zc = zc.Str("component", f.component)
	}
	if f.mapID != "" {
		zc = zc.Str("map_id", f.mapID)
	}
	l = zc.Logger()
	return &l
}
