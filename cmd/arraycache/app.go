package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/dustin/go-humanize"
	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/blobstore"
	"github.com/hupe1980/arraycache/codec"
	"github.com/hupe1980/arraycache/feature"
	"github.com/hupe1980/arraycache/resource"
)

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "arraycache",
		Usage:  "publish and read typed feature columns",
		Writer: w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Usage:   "feature store: dir, file://dir, s3://bucket/prefix, minio://host/bucket/prefix or http(s)://host",
				Value:   "./features",
				Sources: cli.NewValueSourceChain(cli.EnvVar("ARRAYCACHE_STORE")),
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "session id sent to feature servers",
				Sources: cli.NewValueSourceChain(cli.EnvVar("ARRAYCACHE_SESSION")),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				Sources: cli.NewValueSourceChain(cli.EnvVar("ARRAYCACHE_LOG_LEVEL")),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "write logs as JSON",
				Sources: cli.NewValueSourceChain(cli.EnvVar("ARRAYCACHE_LOG_JSON")),
			},
			&cli.StringFlag{
				Name:    "io-limit",
				Usage:   "maximum read rate, e.g. 20MB (per second)",
				Sources: cli.NewValueSourceChain(cli.EnvVar("ARRAYCACHE_IO_LIMIT")),
			},
			&cli.StringFlag{
				Name:    "memory-limit",
				Usage:   "maximum bytes admitted into the cache, e.g. 1GiB",
				Sources: cli.NewValueSourceChain(cli.EnvVar("ARRAYCACHE_MEMORY_LIMIT")),
			},
		},
		Commands: []*cli.Command{
			getCommand(),
			putCommand(),
			lsCommand(),
		},
	}
}

// env is the state shared by all subcommands.
type env struct {
	logger  *arraycache.Logger
	rc      *resource.Controller
	metrics *arraycache.BasicMetricsCollector
	loc     storeLocation
}

func newEnv(cmd *cli.Command) (*env, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}

	logger := arraycache.NewTextLogger(level)
	if cmd.Bool("log-json") {
		logger = arraycache.NewJSONLogger(level)
	}

	ioLimit, err := parseBytes(cmd.String("io-limit"))
	if err != nil {
		return nil, fmt.Errorf("--io-limit: %w", err)
	}
	memLimit, err := parseBytes(cmd.String("memory-limit"))
	if err != nil {
		return nil, fmt.Errorf("--memory-limit: %w", err)
	}

	loc, err := parseStore(cmd.String("store"))
	if err != nil {
		return nil, err
	}

	return &env{
		logger: logger,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   memLimit,
			IOLimitBytesPerSec: ioLimit,
		}),
		metrics: &arraycache.BasicMetricsCollector{},
		loc:     loc,
	}, nil
}

func parseBytes(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%s is too large", s)
	}
	return int64(n), nil
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "resolve features and print their values",
		ArgsUsage: "<name>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "downsample",
				Aliases: []string{"d"},
				Usage:   "downsample level (0 for full resolution)",
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "print length, size and range instead of values",
			},
			&cli.StringFlag{
				Name:  "rows",
				Usage: "comma separated rows or ranges to select, e.g. 0-9,20",
			},
		},
		Action: getAction,
	}
}

func getAction(ctx context.Context, cmd *cli.Command) error {
	names := cmd.Args().Slice()
	if len(names) == 0 {
		return errors.New("get: at least one feature name is required")
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	src, _, err := openSource(ctx, e.loc, e.rc)
	if err != nil {
		return err
	}

	cache := arraycache.New(
		arraycache.WithLogger(e.logger),
		arraycache.WithMetricsCollector(e.metrics),
		arraycache.WithResourceController(e.rc),
	)
	loader := feature.NewLoader(cache, src,
		feature.WithLogger(e.logger),
		feature.WithMetricsCollector(e.metrics),
		feature.WithResourceController(e.rc),
		feature.WithSession(cmd.String("session")),
	)

	downsample := cmd.Int("downsample")

	var rows *roaring.Bitmap
	if expr := cmd.String("rows"); expr != "" {
		if rows, err = parseRows(expr); err != nil {
			return fmt.Errorf("--rows: %w", err)
		}
	}

	views, err := loader.ResolveMany(ctx, names, downsample)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for i, name := range names {
		v := views[i]
		if rows != nil {
			id, err := feature.SubsetID(rows)
			if err != nil {
				return err
			}
			if v, err = loader.ResolveSubset(ctx, name, id, downsample, rows); err != nil {
				return err
			}
		}

		if cmd.Bool("summary") {
			printSummary(w, name, v)
			continue
		}
		printValues(w, name, v)
	}

	stats := e.metrics.GetStats()
	e.logger.InfoContext(ctx, "get completed",
		"features", len(names),
		"loaded", humanize.Bytes(uint64(max(stats.LoadBytes, 0))),
		"avg_load", time.Duration(stats.LoadAvgNanos),
	)
	return nil
}

func printValues(w io.Writer, name string, v arraycache.View) {
	values := v.Float64s()
	parts := make([]string, len(values))
	for i, f := range values {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	fmt.Fprintf(w, "%s\t%s\t[%s]\n", name, v.ElementType(), strings.Join(parts, " "))
}

func printSummary(w io.Writer, name string, v arraycache.View) {
	n := v.Len()
	size := uint64(n * v.ElementType().Size())

	if n == 0 {
		fmt.Fprintf(w, "%s\t%s\tlen=0\tsize=%s\n", name, v.ElementType(), humanize.Bytes(size))
		return
	}

	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for i := range n {
		f := v.At(i)
		lo, hi = min(lo, f), max(hi, f)
		sum += f
	}

	fmt.Fprintf(w, "%s\t%s\tlen=%s\tsize=%s\tmin=%g\tmax=%g\tmean=%g\n",
		name, v.ElementType(), humanize.Comma(int64(n)), humanize.Bytes(size), lo, hi, sum/float64(n))
}

// parseRows parses "0-9,20,30-31" into a bitmap.
func parseRows(expr string) (*roaring.Bitmap, error) {
	rows := roaring.New()
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.ParseUint(lo, 10, 32)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = strconv.ParseUint(hi, 10, 32); err != nil {
				return nil, err
			}
		}
		if end < start {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		rows.AddRange(start, end+1)
	}
	return rows, nil
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "frame a raw column file and publish it to the store",
		ArgsUsage: "<name> <file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dtype",
				Usage:    "element type of the file (int8 … float64, or native for a JSON array)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "compression",
				Usage: "none, lz4 or zstd",
				Value: "zstd",
			},
			&cli.IntFlag{
				Name:    "downsample",
				Aliases: []string{"d"},
				Usage:   "downsample level the file holds (0 for full resolution)",
			},
		},
		Action: putAction,
	}
}

func putAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("put: want <name> <file>")
	}
	name, file := cmd.Args().Get(0), cmd.Args().Get(1)

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	t, err := arraycache.ParseElementType(cmd.String("dtype"))
	if err != nil {
		return err
	}
	c, err := codec.ParseCompression(cmd.String("compression"))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	store, err := openBlobStore(ctx, e.loc)
	if err != nil {
		return err
	}
	src := feature.NewStoreSource(store)
	downsample := cmd.Int("downsample")

	if t == arraycache.Native {
		var seq []float64
		if err := gojson.Unmarshal(data, &seq); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		err = src.PublishNative(ctx, name, downsample, seq, c)
	} else {
		if len(data)%t.Size() != 0 {
			return fmt.Errorf("%s: %d bytes is not a multiple of the %s width", file, len(data), t)
		}
		err = src.Publish(ctx, name, downsample, data, t, c)
	}
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "feature published",
		"name", name,
		"blob", feature.BlobName(name, downsample),
		"bytes", humanize.Bytes(uint64(len(data))),
	)
	fmt.Fprintf(cmd.Root().Writer, "%s\t%s\t%s\n", feature.BlobName(name, downsample), t, humanize.Bytes(uint64(len(data))))
	return nil
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:   "ls",
		Usage:  "list stored features and their downsample levels",
		Action: lsAction,
	}
}

func lsAction(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	store, err := openBlobStore(ctx, e.loc)
	if err != nil {
		return err
	}
	src := feature.NewStoreSource(store)

	features, err := src.Features(ctx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	for _, name := range features {
		levels, err := src.Levels(ctx, name)
		if err != nil {
			return err
		}
		for _, d := range levels {
			size, err := blobSize(ctx, store, feature.BlobName(name, d))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, levelLabel(d), humanize.Bytes(uint64(size)))
		}
	}
	return nil
}

func levelLabel(d int) string {
	if d == 0 {
		return "full"
	}
	return "downsample=" + strconv.Itoa(d)
}

func blobSize(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer func() { _ = blob.Close() }()
	return blob.Size(), nil
}
