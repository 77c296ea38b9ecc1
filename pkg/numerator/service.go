// Package numerator provides document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict reserves every number individually.
	// Numbers are sequential without gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers and hands them out from memory.
	// Gaps appear when the process restarts with an unused range.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Sequencer reserves n consecutive values of the sequence identified by key
// and returns the last one.
type Sequencer interface {
	Reserve(ctx context.Context, key string, n int64) (int64, error)
}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSequencer keeps sequences in sys_sequences.
type PostgresSequencer struct {
	q Querier
}

// NewPostgresSequencer creates a sequencer on top of a pool or transaction.
func NewPostgresSequencer(q Querier) *PostgresSequencer {
	return &PostgresSequencer{q: q}
}

// Reserve bumps the stored value by n with a single upsert.
func (p *PostgresSequencer) Reserve(ctx context.Context, key string, n int64) (int64, error) {
	var last int64
	err := p.q.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", key, err)
	}
	return last, nil
}

// MemorySequencer keeps sequences in process memory.
type MemorySequencer struct {
	mu   sync.Mutex
	vals map[string]int64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{vals: make(map[string]int64)}
}

func (m *MemorySequencer) Reserve(_ context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] += n
	return m.vals[key], nil
}

type cachedRange struct {
	current int64
	max     int64
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "REC", "TRF")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Service provides document numbering functionality.
type Service struct {
	seq  Sequencer
	opts *Options

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a numerator. A nil opts selects the strict strategy.
func New(seq Sequencer, opts *Options) *Service {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Service{
		seq:    seq,
		opts:   opts,
		ranges: make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next document number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., REC-2024-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := buildKey(cfg, period)
	var (
		num int64
		err error
	)
	switch s.opts.Strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, key)
	default:
		num, err = s.seq.Reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}
	return formatNumber(cfg, period, num), nil
}

// Next generates the next number for prefix using the default config.
func (s *Service) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	return s.GetNextNumber(ctx, DefaultConfig(prefix), at)
}

func (s *Service) nextCached(ctx context.Context, key string) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := s.opts.RangeSize
		if size <= 0 {
			size = 50
		}
		last, err := s.seq.Reserve(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}
		// The reserved range is (last-size, last].
		rng.current = last - size
		rng.max = last
	}

	rng.current++
	return rng.current, nil
}

func buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

func formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric suffix of a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 || i == len(formatted)-1 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}
