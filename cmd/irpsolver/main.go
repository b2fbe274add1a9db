// Command irpsolver runs the hybrid tabu/MIP matheuristic against an
// inventory routing instance and writes the best solution found within the
// given wallclock budget.
//
// Usage:
//
//	irpsolver -p instance.json -o solution.json [-s seed] [-t seconds] \
//	          [-j workers] [-r runid] [-c config.yaml] [-l logfile]
//
// Exit code is 0 on success, -1 on a missing or unreadable instance/solution
// path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"irpsolver/internal/config"
	"irpsolver/internal/logging"
	"irpsolver/internal/metrics"
	"irpsolver/internal/mipengine"
	"irpsolver/internal/model"
	"irpsolver/internal/routingcost"
	"irpsolver/internal/search"
	"irpsolver/internal/tspcache"
	"irpsolver/internal/tsprepair"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("irpsolver", flag.ContinueOnError)
	instancePath := fs.String("p", "", "instance file (required)")
	solutionPath := fs.String("o", "", "solution file (required)")
	seed := fs.Int64("s", 0, "random seed")
	timeoutSec := fs.Int("t", 2400, "wallclock timeout in seconds")
	maxIterations := fs.Int("i", 0, "tabu steps without improvement before a restart, overriding search.alpha (0 = keep search.alpha); does not cap the total iteration count")
	jobs := fs.Int("j", 0, "worker count (auto when <=0 or > hardware concurrency)")
	runID := fs.String("r", "", "run id (default: generated uuid)")
	envPath := fs.String("e", "", "environment file")
	configPath := fs.String("c", "", "config file")
	logPath := fs.String("l", "", "log file")
	author := fs.Bool("a", false, "print author/version information and exit")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: irpsolver -p <instance> -o <solution> [options]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return -1
	}

	if *author {
		fmt.Println("irpsolver — inventory routing matheuristic")
		return 0
	}

	if *envPath != "" {
		loadEnvFile(*envPath)
	}

	cfg, err := config.NewLoader(config.WithConfigPath(*configPath)).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return -1
	}
	if *logPath != "" {
		cfg.Log.Output = "file"
		cfg.Log.FilePath = *logPath
	}
	logging.InitWithConfig(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	if *instancePath == "" || *solutionPath == "" {
		logging.Error("missing required flag", "instance", *instancePath, "solution", *solutionPath)
		return -1
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}
	log := logging.WithRunID(id)

	if cfg.Metrics.Enabled {
		metrics.InitMetrics(cfg.Metrics.Namespace, "")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	inst, err := model.LoadInstance(*instancePath)
	if err != nil {
		log.Error("failed to load instance", "path", *instancePath, "error", err)
		return -1
	}

	matrix := buildMatrix(inst)

	cache, err := openCache(cfg)
	if err != nil {
		log.Warn("failed to open tsp cache, continuing without persistence", "error", err)
		cache = tspcache.New(mustMemoryBackend())
	}
	defer cache.Close()

	jobCount := *jobs
	if jobCount <= 0 || jobCount > runtime.NumCPU() {
		jobCount = runtime.NumCPU()
	}

	opts := search.DefaultOptions()
	opts.Jobs = jobCount
	opts.ThreadsPerWorker = cfg.Search.ThreadsPerWorker
	if opts.ThreadsPerWorker <= 0 {
		opts.ThreadsPerWorker = 1
	}
	opts.Seed = *seed
	opts.Alpha = cfg.Search.Alpha
	opts.TabuBits = cfg.Search.BitSize
	opts.Gamma = [3]float64{cfg.Search.Beta1, cfg.Search.Beta2, cfg.Search.Beta3}
	opts.Epsilon = cfg.Search.Epsilon
	opts.WindowMIPBudget = cfg.Search.WindowMIPTimeout
	opts.SearchBudget = time.Duration(*timeoutSec) * time.Second
	if *maxIterations > 0 {
		opts.Alpha = *maxIterations
	}

	engines := func(threads int) mipengine.Engine {
		return &mipengine.BranchAndBound{Threads: threads, Tol: opts.Epsilon}
	}

	controller := search.New(inst, matrix, cache, tsprepair.NearestNeighborTwoOpt{}, engines, opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSec)*time.Second)
	defer cancel()
	ctx = withSignalCancel(ctx)

	log.Info("starting search",
		"instance", *instancePath,
		"periods", inst.PeriodNum,
		"nodes", inst.NodeNum(),
		"jobs", jobCount,
		"timeout_s", *timeoutSec,
	)

	start := time.Now()
	sln, err := controller.Solve(ctx)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("search failed", "error", err)
		return -1
	}

	sub := model.NewSubmission(strconv.Itoa(jobCount), *instancePath, elapsed, sln.TotalCost)
	if err := model.SaveSolution(*solutionPath, sln, sub); err != nil {
		log.Error("failed to save solution", "path", *solutionPath, "error", err)
		return -1
	}

	if cfg.Metrics.Enabled {
		metrics.Get().SetBestCost("final", sln.TotalCost)
	}
	log.Info("search complete", "total_cost", sln.TotalCost, "duration", elapsed)
	return 0
}

func buildMatrix(inst *model.Instance) *routingcost.Matrix {
	xs := make([]float64, inst.NodeNum())
	ys := make([]float64, inst.NodeNum())
	for i, n := range inst.Nodes {
		xs[i], ys[i] = n.X, n.Y
	}
	return routingcost.Build(xs, ys)
}

func openCache(cfg *config.Config) (*tspcache.Cache, error) {
	switch cfg.Cache.Driver {
	case "redis":
		backend, err := tspcache.NewRedisBackend(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		return tspcache.New(backend), nil
	default:
		backend, err := tspcache.NewFileBackend(cfg.Cache.FilePath)
		if err != nil {
			return nil, err
		}
		return tspcache.New(backend), nil
	}
}

func mustMemoryBackend() tspcache.Backend {
	backend, err := tspcache.NewFileBackend("")
	if err != nil {
		panic(err)
	}
	return backend
}

// withSignalCancel returns a context canceled on SIGINT/SIGTERM, so a
// worker's next outer-loop deadline check returns the best incumbent found
// so far instead of leaving the process to be force-killed.
func withSignalCancel(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx
}

// loadEnvFile applies KEY=VALUE lines from an environment file, mirroring
// what the -e flag is for: overriding IRPSOLVER_* variables the config
// loader reads before the config file and CLI flags take effect.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read env file %s: %v\n", path, err)
		return
	}
	for _, line := range splitLines(string(data)) {
		key, val, ok := splitKV(line)
		if !ok {
			continue
		}
		os.Setenv(key, val)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func splitKV(line string) (key, val string, ok bool) {
	for i := 0; i < len(line); i++ {
		if line[i] == '=' {
			return line[:i], line[i+1:], true
		}
	}
	return "", "", false
}
