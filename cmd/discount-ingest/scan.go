package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxFiles is bounded by the width of the per-code file bitmask.
const maxFiles = bits.UintSize

// scanner finds codes that appear in at least minFiles of the partner lists.
type scanner struct {
	lg            *zap.Logger
	capacity      uint
	fpr           float64
	minLen        int
	maxLen        int
	minFiles      int
	progressEvery uint64
}

// accepted is a code that passed the agreement threshold, with the rule
// given for it in the input if any.
type accepted struct {
	code string
	rule *rule
}

// fileResult holds what pass 2 found in one file.
type fileResult struct {
	masks map[string]uint
	rules map[string]*rule
}

// scan runs both passes and returns the accepted codes sorted.
func (s *scanner) scan(ctx context.Context, files []string) ([]accepted, error) {
	if len(files) > maxFiles {
		return nil, errors.Errorf("at most %d files are supported, got %d", maxFiles, len(files))
	}
	if s.minFiles < 1 || s.minFiles > len(files) {
		return nil, errors.Errorf("min files must be between 1 and %d, got %d", len(files), s.minFiles)
	}

	s.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := s.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	s.lg.Info("Pass 2: finding candidate codes")
	codes, err := s.findCodes(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "find codes")
	}
	return codes, nil
}

// accept parses a raw line and reports whether it holds a plausible code.
// Malformed definitions are skipped.
func (s *scanner) accept(line string) (string, *rule, bool) {
	if strings.TrimSpace(line) == "" {
		return "", nil, false
	}
	code, r, err := parseLine(line)
	if err != nil {
		s.lg.Debug("Skipping malformed line", zap.String("code", code), zap.Error(err))
		return "", nil, false
	}
	if len(code) < s.minLen || len(code) > s.maxLen {
		return "", nil, false
	}
	return code, r, true
}

func (s *scanner) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(s.capacity, s.fpr)
			var count uint64
			if err := streamGzFile(ctx, path, func(line string) {
				code, _, ok := s.accept(line)
				if !ok {
					return
				}
				filter.AddString(code)
				count++
				if s.progressEvery > 0 && count%s.progressEvery == 0 {
					s.lg.Info("Pass 1 progress", zap.String("file", path), zap.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			s.lg.Info("Pass 1 complete", zap.String("file", path), zap.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findCodes re-streams each file and records, per code, the set of files
// it was seen in. A code seen in its own file only needs minFiles-1 other
// filters to match before it becomes a candidate.
func (s *scanner) findCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]accepted, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			rules := make(map[string]*rule)
			fileBit := uint(1) << uint(i)
			var count uint64
			if err := streamGzFile(ctx, path, func(line string) {
				code, r, ok := s.accept(line)
				if !ok {
					return
				}
				count++
				if s.progressEvery > 0 && count%s.progressEvery == 0 {
					s.lg.Info("Pass 2 progress", zap.String("file", path), zap.Uint64("codes", count))
				}
				if !s.candidate(i, code, filters) {
					return
				}
				candidates[code] |= fileBit
				if _, seen := rules[code]; r != nil && !seen {
					rules[code] = r
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for candidates", path)
			}
			s.lg.Info("Pass 2 complete",
				zap.String("file", path),
				zap.Uint64("codes", count),
				zap.Int("candidates", len(candidates)),
			)
			results[i] = fileResult{masks: candidates, rules: rules}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Bloom hits may be false positives; the merged bitmask is exact.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.masks {
			merged[code] |= mask
		}
	}

	var codes []accepted
	for code, mask := range merged {
		if bits.OnesCount(mask) < s.minFiles {
			continue
		}
		a := accepted{code: code}
		// The earliest file that defines the code wins.
		for _, r := range results {
			if def, ok := r.rules[code]; ok {
				a.rule = def
				break
			}
		}
		codes = append(codes, a)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].code < codes[j].code })
	return codes, nil
}

// candidate reports whether code, seen in file idx, may reach minFiles
// according to the other files' filters.
func (s *scanner) candidate(idx int, code string, filters []*bloom.BloomFilter) bool {
	hits := 1
	for j, f := range filters {
		if hits >= s.minFiles {
			break
		}
		if j != idx && f.TestString(code) {
			hits++
		}
	}
	return hits >= s.minFiles
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
