package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harriteja/squeezejpg/compress"
	"github.com/harriteja/squeezejpg/internal/config"
	"github.com/harriteja/squeezejpg/internal/logging"
	"github.com/harriteja/squeezejpg/metrics"
	"github.com/harriteja/squeezejpg/parallel"
)

var (
	// ErrFilesFailed is returned when at least one file could not be compressed or written
	ErrFilesFailed = errors.New("some files failed")
	// ErrDuplicateOutput is returned when two inputs map to the same output file
	ErrDuplicateOutput = errors.New("inputs map to the same output file")
)

// inputFile is a file picked for compression
type inputFile struct {
	path string
	data []byte
}

// runBatch reads the inputs, compresses them and writes the outputs
func runBatch(cmd *cobra.Command, cfg *config.Config, args []string) error {
	logger, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paths, err := collectInputs(cfg, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Warn("no matching files", "args", args, "extensions", cfg.Input.Extensions)
		fmt.Fprintln(cmd.OutOrStdout(), "no images found")
		return nil
	}
	if err := checkOutputNames(cfg.Output.Prefix, paths); err != nil {
		return err
	}

	inputs, err := readInputs(ctx, paths, cfg.Input.ReadConcurrency)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("cannot create output dir %s: %w", cfg.Output.Dir, err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}

	dispatcher, err := parallel.NewDispatcher(parallel.Config{
		Workers: cfg.Workers,
		Quality: cfg.Quality,
		Ordered: cfg.Ordered,
		Codec:   compress.NewJPEG(),
		Logger:  logger.Slog(),
		Metrics: collector,
	})
	if err != nil {
		return err
	}

	payloads := make([][]byte, len(inputs))
	for i, in := range inputs {
		payloads[i] = in.data
		// The payload now belongs to the dispatcher
		inputs[i].data = nil
	}

	start := time.Now()
	results := dispatcher.Run(payloads)
	logger.Info("compression started",
		"run_id", results.RunID(),
		"files", len(inputs),
		"workers", dispatcher.NumWorkers(),
		"quality", dispatcher.Quality(),
		"ordered", dispatcher.Ordered())

	var succeeded, failed atomic.Int64
	out := cmd.OutOrStdout()

	writers := new(errgroup.Group)
	writers.SetLimit(cfg.Input.ReadConcurrency)

	for res := range results.All() {
		name := inputs[res.Index].path
		if res.Err != nil {
			failed.Add(1)
			logger.Error("compression failed", "file", name, "error", res.Err)
			continue
		}

		dst := filepath.Join(cfg.Output.Dir, outputName(cfg.Output.Prefix, name))
		data, worker := res.Data, res.Worker
		// Writes stay sequential in ordered mode so files land in input order
		write := func() error {
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				failed.Add(1)
				logger.Error("write failed", "file", dst, "error", err)
				return nil
			}
			succeeded.Add(1)
			fmt.Fprintf(out, "done: %s (worker %d)\n", filepath.Base(dst), worker)
			return nil
		}
		if cfg.Ordered {
			_ = write()
			continue
		}
		writers.Go(write)
	}
	_ = writers.Wait()
	results.Wait()

	logger.Info("compression finished",
		"run_id", results.RunID(),
		"succeeded", succeeded.Load(),
		"failed", failed.Load(),
		"elapsed", time.Since(start))

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, n, len(inputs))
	}
	return nil
}

// collectInputs expands the arguments into a list of files. Directories are
// listed without recursion and filtered by extension; files named explicitly
// are always taken. A file reached twice is listed once.
func collectInputs(cfg *config.Config, args []string) ([]string, error) {
	outDir, _ := filepath.Abs(cfg.Output.Dir)

	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		key, err := filepath.Abs(p)
		if err != nil {
			key = p
		}
		if !seen[key] {
			seen[key] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			add(arg)
			continue
		}

		if abs, _ := filepath.Abs(arg); abs == outDir {
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot list %s: %w", arg, err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if cfg.AcceptsExtension(filepath.Ext(e.Name())) {
				add(filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

// checkOutputNames rejects inputs that would be written to the same file
func checkOutputNames(prefix string, paths []string) error {
	owners := make(map[string]string, len(paths))
	for _, p := range paths {
		name := outputName(prefix, p)
		if prev, ok := owners[name]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", ErrDuplicateOutput, prev, p, name)
		}
		owners[name] = p
	}
	return nil
}

// readInputs loads every file with at most limit reads in flight
func readInputs(ctx context.Context, paths []string, limit int) ([]inputFile, error) {
	inputs := make([]inputFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}
			inputs[i] = inputFile{path: p, data: data}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// outputName keeps the input name, switching non-JPEG extensions to .jpg
func outputName(prefix, path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
	default:
		base = strings.TrimSuffix(base, ext) + ".jpg"
	}
	return prefix + base
}

// serveMetrics exposes reg on addr until the returned stop function is called
func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
