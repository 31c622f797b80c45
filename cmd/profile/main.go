//go:build profiling
// +build profiling

// Command profile runs upload batches under a profiler.
//
// By default it uploads to an in-process fake service that discards the data,
// so the profile covers chunking, multipart encoding and the worker pool
// rather than the network.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"time"

	"github.com/felixge/fgprof"
	"github.com/grafana/pyroscope-go"

	"github.com/meigma/ferry"
	"github.com/meigma/ferry/internal/testutil/fakehosting"
)

type profileKind string

const (
	profileCPU     profileKind = "cpu"
	profileFG      profileKind = "fgprof"
	profileTrace   profileKind = "trace"
	profileNone    profileKind = "none"
	defaultPayload             = "tmp/profiledata"
)

func main() {
	var (
		api       = flag.String("api", "", "hosting API root (default: in-process discard service)")
		loginID   = flag.String("login", os.Getenv("FERRY_LOGIN_ID"), "login id for --api")
		loginKey  = flag.String("key", os.Getenv("FERRY_LOGIN_KEY"), "login key for --api")
		payload   = flag.String("payload", defaultPayload, "directory of files to upload (generated if missing)")
		files     = flag.Int("files", 8, "number of files to generate")
		fileSize  = flag.Int64("file-size", 16<<20, "size of each generated file in bytes")
		workers   = flag.Int("workers", 2, "concurrent uploads")
		chunkSize = flag.Int("chunk-size", ferry.DefaultChunkSize, "upload chunk size in bytes")
		profile   = flag.String("profile", "cpu", "profile type: cpu, fgprof, trace, none")
		outDir    = flag.String("out", "profiles", "output directory for profiles")
		label     = flag.String("label", "", "label suffix for profile files")
		repeat    = flag.Int("repeat", 1, "number of iterations")
		logLevel  = flag.String("log-level", "", "log level: debug, info, warn, error")
		timeout   = flag.Duration("timeout", 15*time.Minute, "overall timeout")
		pyroAddr  = flag.String("pyroscope", "", "Pyroscope server URL (enables streaming, disables local profiles)")
	)
	flag.Parse()

	runID := time.Now().UTC().Format("20060102T150405Z")

	profileKindValue := profileKind(strings.ToLower(*profile))
	if !isValidProfile(profileKindValue) {
		log.Fatalf("invalid profile %q (expected cpu, fgprof, trace, none)", *profile)
	}
	if *repeat < 1 {
		log.Fatalf("repeat must be >= 1")
	}

	paths, err := preparePayload(*payload, *files, *fileSize)
	if err != nil {
		log.Fatalf("prepare payload: %v", err)
	}

	// When Pyroscope is enabled, stream profiles instead of writing locally
	var pyroProfiler *pyroscope.Profiler
	if *pyroAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "ferry-profile",
			ServerAddress:   *pyroAddr,
			// Grafana Cloud requires BasicAuth
			BasicAuthUser:     os.Getenv("PYROSCOPE_BASIC_AUTH_USER"),
			BasicAuthPassword: os.Getenv("PYROSCOPE_BASIC_AUTH_PASSWORD"),
			UploadRate:        5 * time.Second,
			Logger:            pyroscope.StandardLogger,
			Tags: map[string]string{
				"workers": fmt.Sprint(*workers),
				"git_sha": os.Getenv("GITHUB_SHA"),
				"git_ref": os.Getenv("GITHUB_REF_NAME"),
				"run_id":  runID,
			},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("start pyroscope: %v", err)
		}
		pyroProfiler = profiler
		log.Printf("streaming profiles to %s", *pyroAddr)
	} else if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create profile output dir: %v", err)
	}

	labelParts := []string{fmt.Sprintf("w%d", *workers)}
	if *label != "" {
		labelParts = append(labelParts, sanitizeLabel(*label))
	}
	labelParts = append(labelParts, runID)
	labelValue := strings.Join(labelParts, "_")

	var stopProfile func() error
	if *pyroAddr == "" {
		stopProfile, err = startProfile(profileKindValue, *outDir, labelValue)
		if err != nil {
			log.Fatalf("start profile: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	clientOpts := []ferry.ClientOption{ferry.WithChunkSize(*chunkSize)}
	var logger *slog.Logger
	if *logLevel != "" {
		level, err := parseLogLevel(*logLevel)
		if err != nil {
			log.Fatalf("parse log level: %v", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		clientOpts = append(clientOpts, ferry.WithLogger(logger))
	}

	if *api == "" {
		srv := httptest.NewServer(fakehosting.New(fakehosting.WithDiscard()))
		defer srv.Close()
		clientOpts = append(clientOpts,
			ferry.WithBaseURL(srv.URL+"/1/"),
			ferry.WithHTTPClient(srv.Client()),
			ferry.WithCredentials(fakehosting.DefaultLoginID, fakehosting.DefaultLoginKey),
		)
	} else {
		clientOpts = append(clientOpts,
			ferry.WithBaseURL(*api),
			ferry.WithCredentials(*loginID, *loginKey),
		)
	}

	client, err := ferry.NewClient(clientOpts...)
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	for i := range *repeat {
		if *repeat > 1 {
			log.Printf("iteration %d/%d", i+1, *repeat)
		}
		start := time.Now()
		summary, err := runBatch(ctx, client, *workers, logger, paths)
		if err != nil {
			log.Fatalf("upload: %v", err)
		}
		log.Printf("upload complete: %s (done=%d failed=%d cancelled=%d)",
			time.Since(start), summary.Done, summary.Failed, summary.Cancelled)
	}

	// Stop profiling - either Pyroscope or local
	if pyroProfiler != nil {
		if err := pyroProfiler.Stop(); err != nil {
			log.Fatalf("stop pyroscope: %v", err)
		}
		log.Printf("pyroscope profiling stopped")
		return
	}
	if stopErr := stopProfile(); stopErr != nil {
		log.Fatalf("stop profile: %v", stopErr)
	}
	if err := writeHeapProfile(*outDir, labelValue); err != nil {
		log.Fatalf("write heap profile: %v", err)
	}
	if err := writeAllocsProfile(*outDir, labelValue); err != nil {
		log.Fatalf("write allocs profile: %v", err)
	}
}

func runBatch(ctx context.Context, client *ferry.Client, workers int, logger *slog.Logger, paths []string) (ferry.Summary, error) {
	opts := []ferry.BatchOption{}
	if logger != nil {
		opts = append(opts, ferry.WithBatchLogger(logger))
	}
	batch, err := ferry.NewBatch(client, workers, opts...)
	if err != nil {
		return ferry.Summary{}, err
	}
	defer batch.Close()

	for _, p := range paths {
		if _, err := batch.Add(p); err != nil {
			return ferry.Summary{}, err
		}
	}
	stop := context.AfterFunc(ctx, batch.CancelAll)
	defer stop()

	return batch.Wait(context.Background())
}

// preparePayload returns the regular files in dir, generating count files
// of size bytes when dir does not exist.
func preparePayload(dir string, count int, size int64) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := generatePayload(dir, count, size); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files in %s", dir)
	}
	return paths, nil
}

func generatePayload(dir string, count int, size int64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range count {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("file-%03d.bin", i)))
		if err != nil {
			return err
		}
		_, copyErr := io.CopyN(f, rng, size)
		closeErr := f.Close()
		if err := errors.Join(copyErr, closeErr); err != nil {
			return err
		}
	}
	return nil
}

func isValidProfile(kind profileKind) bool {
	switch kind {
	case profileCPU, profileFG, profileTrace, profileNone:
		return true
	default:
		return false
	}
}

func startProfile(kind profileKind, outDir, label string) (func() error, error) {
	switch kind {
	case profileCPU:
		f, err := os.Create(filepath.Join(outDir, "cpu_"+label+".pprof"))
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		return func() error {
			pprof.StopCPUProfile()
			return f.Close()
		}, nil
	case profileFG:
		f, err := os.Create(filepath.Join(outDir, "fgprof_"+label+".pprof"))
		if err != nil {
			return nil, err
		}
		stop := fgprof.Start(f, fgprof.FormatPprof)
		return func() error {
			return errors.Join(stop(), f.Close())
		}, nil
	case profileTrace:
		f, err := os.Create(filepath.Join(outDir, "trace_"+label+".out"))
		if err != nil {
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		return func() error {
			trace.Stop()
			return f.Close()
		}, nil
	case profileNone:
		return func() error { return nil }, nil
	default:
		return nil, fmt.Errorf("unknown profile type: %s", kind)
	}
}

func writeHeapProfile(outDir, label string) error {
	f, err := os.Create(filepath.Join(outDir, "heap_"+label+".pprof"))
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

func writeAllocsProfile(outDir, label string) error {
	f, err := os.Create(filepath.Join(outDir, "allocs_"+label+".pprof"))
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.Lookup("allocs").WriteTo(f, 0)
}

func sanitizeLabel(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}

func parseLogLevel(value string) (slog.Leveler, error) {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, fmt.Errorf("unknown level %q", value)
	}
}
