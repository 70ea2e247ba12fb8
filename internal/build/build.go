// Package build implements the sha1t48 index builder pipeline: partition
// prefixes across workers, fetch-decode-sort-write each prefix, and report
// progress, per spec §4.5.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hibpindex/sha1t48/internal/codec"
	"github.com/hibpindex/sha1t48/internal/progress"
	"github.com/hibpindex/sha1t48/internal/shard"
)

// TotalPrefixes is the number of distinct 20-bit prefixes (2^20).
const TotalPrefixes = 1 << 20

// Fetcher is the subset of internal/fetch.Fetcher the builder depends on;
// declared here so tests can substitute a fake without touching the real
// network, per spec §8's fake-fetcher scenarios.
type Fetcher interface {
	FetchRange(ctx context.Context, prefix uint32) ([]byte, error)
}

// DirPolicy selects the pre-flight behavior for the output directory,
// per spec §4.5 #2.
type DirPolicy int

const (
	// PolicyFailIfExists fails fast if the output directory exists and is
	// non-empty. The zero value, so an unconfigured Config is safe.
	PolicyFailIfExists DirPolicy = iota
	// PolicyForce deletes and recreates the output directory.
	PolicyForce
	// PolicyResume keeps existing shards; workers skip any prefix for
	// which ShardExistsNonempty is true.
	PolicyResume
)

// Config controls a Builder run.
type Config struct {
	OutputDir string
	Workers   int    // default 64, range 1..1024 per spec §5.
	Limit     uint32 // exclusive upper bound on prefixes; 0 means TotalPrefixes.
	Policy    DirPolicy
	Reporter  progress.Reporter // nil selects progress.NoopReporter{}.
	Logger    *logrus.Logger    // nil selects logrus.StandardLogger().
}

// Builder runs the acquisition pipeline described in spec §4.5.
type Builder struct {
	fetcher Fetcher
	cfg     Config
	log     *logrus.Logger
}

// New constructs a Builder that fetches prefixes through fetcher.
func New(fetcher Fetcher, cfg Config) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = 64
	}
	if cfg.Workers > 1024 {
		cfg.Workers = 1024
	}
	if cfg.Limit == 0 || cfg.Limit > TotalPrefixes {
		cfg.Limit = TotalPrefixes
	}
	if cfg.Reporter == nil {
		cfg.Reporter = progress.NoopReporter{}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{fetcher: fetcher, cfg: cfg, log: log}
}

// ErrDirExists is returned by Run when the output directory exists and is
// non-empty under PolicyFailIfExists.
var ErrDirExists = errors.New("build: output directory exists and is non-empty")

// Run executes the full pipeline: pre-flight the output directory, partition
// [0, cfg.Limit) across cfg.Workers goroutines via a shared atomic cursor,
// fetch-decode-sort-write each assigned prefix, and report progress. Run
// returns the first fatal error encountered, per spec §4.5 #4 and §7's
// "surface the first fatal cause."
func (b *Builder) Run(ctx context.Context) error {
	if err := b.preflight(); err != nil {
		return err
	}

	var cursor atomic.Uint32
	var completed progress.Counter

	// The reporter tracks total = full limit regardless of resume, so a
	// resumed run's bar reflects true overall completion rather than just
	// the remaining work.
	total := uint64(b.cfg.Limit)
	b.cfg.Reporter.Start(&completed, total)
	defer b.cfg.Reporter.Finish()

	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < b.cfg.Workers; w++ {
		group.Go(func() error {
			return b.worker(groupCtx, &cursor, &completed)
		})
	}

	return group.Wait()
}

func (b *Builder) preflight() error {
	switch b.cfg.Policy {
	case PolicyForce:
		if err := os.RemoveAll(b.cfg.OutputDir); err != nil {
			return fmt.Errorf("build: removing existing output dir: %w", err)
		}
		return os.MkdirAll(b.cfg.OutputDir, 0o755)
	case PolicyResume:
		return os.MkdirAll(b.cfg.OutputDir, 0o755)
	default:
		entries, err := os.ReadDir(b.cfg.OutputDir)
		if err == nil && len(entries) > 0 {
			return ErrDirExists
		}
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("build: checking output dir: %w", err)
		}
		return os.MkdirAll(b.cfg.OutputDir, 0o755)
	}
}

// worker repeatedly claims the next prefix from cursor and processes it
// until the cursor exhausts cfg.Limit, ctx is cancelled, or a fatal error
// occurs. A shared atomic cursor (spec §9) load-balances naturally across
// workers of uneven per-prefix response size, avoiding straggler tails.
func (b *Builder) worker(ctx context.Context, cursor *atomic.Uint32, completed *progress.Counter) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		prefix := cursor.Add(1) - 1
		if prefix >= b.cfg.Limit {
			return nil
		}

		if b.cfg.Policy == PolicyResume && shard.ShardExistsNonempty(b.cfg.OutputDir, prefix) {
			completed.Add(1)
			continue
		}

		// Any error from processPrefix (fatal HTTP, filesystem failure, or
		// context cancellation) aborts this worker; errgroup.WithContext
		// cancels the shared context so every other worker observes it
		// between prefixes and stops too (spec §5, §7).
		if err := b.processPrefix(ctx, prefix); err != nil {
			return fmt.Errorf("build: prefix %05X: %w", prefix, err)
		}
		completed.Add(1)
	}
}

// processPrefix implements the per-prefix unit of work of spec §4.5 #3:
// fetch, decode each valid line into a record, verify (or restore)
// monotonicity, and write the shard.
func (b *Builder) processPrefix(ctx context.Context, prefix uint32) error {
	body, err := b.fetcher.FetchRange(ctx, prefix)
	if err != nil {
		return err
	}

	records, err := decodeLines(body, prefix, b.log)
	if err != nil {
		return err
	}

	return shard.WriteShard(b.cfg.OutputDir, prefix, records)
}

// decodeLines splits body into lines, decodes each into a record, and skips
// malformed lines with a logged warning (spec §7's "malformed response line
// ... skipped; logged; decoding continues"). Per spec §9, it verifies
// monotonicity as records are appended and falls back to an explicit sort
// only if that invariant is violated, since the upstream response is
// expected to already be sorted by SHA1.
func decodeLines(body []byte, prefix uint32, log *logrus.Logger) ([][codec.RecordSize]byte, error) {
	var records [][codec.RecordSize]byte
	sorted := true

	for lineIdx, line := range bytes.Split(body, []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		var rec [codec.RecordSize]byte
		if err := codec.ParseSuffixLine(line, prefix, lineIdx, &rec); err != nil {
			var lineErr *codec.LineError
			if errors.As(err, &lineErr) {
				log.WithFields(logrus.Fields{
					"prefix": fmt.Sprintf("%05X", prefix),
					"line":   lineErr.Line,
				}).Warn("skipping malformed range response line: " + lineErr.Reason)
				continue
			}
			return nil, err
		}

		if sorted && len(records) > 0 && bytes.Compare(rec[:], records[len(records)-1][:]) < 0 {
			sorted = false
		}
		records = append(records, rec)
	}

	if !sorted {
		sort.Slice(records, func(i, j int) bool {
			return bytes.Compare(records[i][:], records[j][:]) < 0
		})
	}
	return records, nil
}
