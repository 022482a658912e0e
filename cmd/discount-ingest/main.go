// Command discount-ingest loads partner discount code lists into the
// discounts table. Each gzip file holds one code per line, either bare or
// as "code,type,value[,min,max,days]". A code is imported only when it
// appears in enough of the lists, which filters out typos and one-off leaks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type options struct {
	dataDir     string
	pattern     string
	databaseURL string
	minFiles    int
	minLen      int
	maxLen      int
	capacity    uint
	fpr         float64
	batchSize   int
	validFor    time.Duration
	discType    string
	value       string
	dryRun      bool
}

func main() {
	var o options
	flag.StringVar(&o.dataDir, "data-dir", "data", "directory containing gzip-compressed code lists")
	flag.StringVar(&o.pattern, "pattern", "*.gz", "glob selecting code lists inside data-dir")
	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or SHOP_DATABASE_URL / DATABASE_URL env)")
	flag.IntVar(&o.minFiles, "min-files", 2, "number of lists a code must appear in")
	flag.IntVar(&o.minLen, "min-len", 4, "minimum code length")
	flag.IntVar(&o.maxLen, "max-len", 32, "maximum code length")
	flag.UintVar(&o.capacity, "bloom-capacity", 10_000_000, "expected codes per list")
	flag.Float64Var(&o.fpr, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&o.batchSize, "batch-size", 1000, "discounts inserted per round trip")
	flag.DurationVar(&o.validFor, "valid-for", 0, "validity window of imported codes (0 = no end date)")
	flag.StringVar(&o.discType, "type", string(discount.TypePercentage), "default discount type (percentage or fixed)")
	flag.StringVar(&o.value, "value", "10", "default discount value")
	flag.BoolVar(&o.dryRun, "dry-run", false, "scan and report without writing")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("SHOP_DATABASE_URL")
	}
	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" && !o.dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, o); err != nil {
		lg.Fatal("Discount ingest failed", zap.Error(err))
	}
	lg.Info("Discount ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, o options) error {
	value, err := decimal.NewFromString(o.value)
	if err != nil {
		return errors.Wrap(err, "parse default value")
	}
	def := rule{
		typ:         discount.Type(o.discType),
		value:       value,
		description: fmt.Sprintf("Partner code: %s %s off", value.String(), o.discType),
	}

	files, err := filepath.Glob(filepath.Join(o.dataDir, o.pattern))
	if err != nil {
		return errors.Wrap(err, "list code files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", o.pattern, o.dataDir)
	}

	s := &scanner{
		lg:            lg,
		capacity:      o.capacity,
		fpr:           o.fpr,
		minLen:        o.minLen,
		maxLen:        o.maxLen,
		minFiles:      o.minFiles,
		progressEvery: 1_000_000,
	}
	codes, err := s.scan(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Codes accepted", zap.Int("count", len(codes)))

	ds, err := build(codes, def, time.Now().UTC(), o.validFor)
	if err != nil {
		return errors.Wrap(err, "build discounts")
	}
	if o.dryRun || len(ds) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return write(ctx, lg, postgres.NewDiscountRepository(pool), ds, o.batchSize)
}

type importer interface {
	ImportBatch(ctx context.Context, ds []discount.Discount) (int64, error)
}

// write imports ds in batches. Codes that already exist are left untouched.
func write(ctx context.Context, lg *zap.Logger, repo importer, ds []discount.Discount, batchSize int) error {
	if batchSize < 1 {
		batchSize = 1
	}
	var inserted int64
	for start := 0; start < len(ds); start += batchSize {
		end := min(start+batchSize, len(ds))
		n, err := repo.ImportBatch(ctx, ds[start:end])
		inserted += n
		if err != nil {
			return errors.Wrapf(err, "import batch at %d", start)
		}
		lg.Info("Write progress", zap.Int("processed", end), zap.Int("total", len(ds)), zap.Int64("inserted", inserted))
	}
	lg.Info("Discounts imported", zap.Int64("inserted", inserted), zap.Int64("skipped", int64(len(ds))-inserted))
	return nil
}
