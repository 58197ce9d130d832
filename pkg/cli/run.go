package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"querybench/internal/config"
	"querybench/internal/db"
	"querybench/internal/db/repository"
	"querybench/internal/domain"
	"querybench/internal/output"
	"querybench/internal/runner"
	"querybench/internal/scheduler"
	"querybench/internal/server"
)

// run is the whole program: resolve options, validate, assemble the
// runner and scheduler, execute the batch, and optionally keep serving
// the monitoring endpoints as a daemon.
func run(ctx context.Context, flags *flagValues) error {
	appCfg, err := config.LoadAppConfig(flags.appConfigFile)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		appCfg.LogLevel = flags.logLevel
	}
	if flags.dbPath != "" {
		appCfg.Backend.DatabasePath = flags.dbPath
	}
	if flags.catalog != "" {
		appCfg.Backend.DefaultCatalog = flags.catalog
	}
	if flags.noHistory {
		appCfg.History.Disabled = true
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: appCfg.SlogLevel()}))

	registry := output.NewRegistry()
	defer func() {
		if err := registry.Close(); err != nil {
			log.Warn("closing output files failed", "error", err)
		}
	}()

	exec, runnerOpts, err := buildOptions(flags, appCfg, registry)
	if err != nil {
		return err
	}

	warnings, err := exec.Validate(runnerOpts)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	duck, err := sql.Open("duckdb", runnerOpts.DatabasePath)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer duck.Close() //nolint:errcheck

	var history domain.HistoryRepository
	if runnerOpts.HistoryEnabled {
		histDB, err := db.OpenSQLite(runnerOpts.HistoryDBPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer histDB.Close() //nolint:errcheck
		if err := db.RunMigrations(histDB); err != nil {
			return fmt.Errorf("migrate history store: %w", err)
		}
		history = repository.NewHistoryRepo(histDB)
	}

	r := runner.NewDuckDBRunner(duck, runnerOpts, log, history)
	defer func() {
		if err := r.Close(); err != nil {
			log.Warn("closing runner failed", "error", err)
		}
	}()
	r.SetResultsRowsLimit(exec.ResultsRowsLimit)

	status := domain.NewRunStatus()
	sched := scheduler.New(exec, r, log, status)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !runnerOpts.MonitoringEnabled && !runnerOpts.QueryAPIEnabled {
		return sched.Run(ctx)
	}
	return runDaemon(ctx, flags, appCfg, sched, r, status, log)
}

// runDaemon serves the HTTP endpoints alongside the batch and keeps
// serving after it finishes, until the context is cancelled. A batch
// failure is reported but does not bring the daemon down.
func runDaemon(ctx context.Context, flags *flagValues, appCfg *config.AppConfig,
	sched *scheduler.Scheduler, r *runner.DuckDBRunner, status *domain.RunStatus, log *slog.Logger) error {
	opts := server.Options{
		Addr:           flags.listenAddr,
		Status:         status,
		InFlight:       r.AsyncInFlight,
		RateLimitRPS:   appCfg.Server.RateLimitRPS,
		RateLimitBurst: appCfg.Server.RateLimitBurst,
		CORSOrigins:    appCfg.Server.CORSOrigins,
		Log:            log,
	}
	if flags.serveQueries {
		opts.Executor = r
	}
	srv := server.New(opts)

	var runErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil {
			runErr = err
			log.Error("batch execution failed", "error", err)
		}
		log.Info("running as daemon", "addr", flags.listenAddr)
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}

// buildOptions loads the query files and turns raw flags into the
// execution and runner option surfaces.
func buildOptions(flags *flagValues, appCfg *config.AppConfig, registry *output.Registry) (*config.ExecutionOptions, *config.RunnerOptions, error) {
	exec := &config.ExecutionOptions{
		UseTemplates:      flags.useTemplates,
		LoopCount:         flags.loopCount,
		LoopDelay:         flags.loopDelay,
		ContinueAfterFail: flags.continueAfterFail,
		ForgetExecution:   flags.forgetExecution,
		Databases:         flags.databases,
		TraceIDs:          flags.traceIDs,
		PoolIDs:           flags.poolIDs,
		Users:             flags.users,
		Timeouts:          flags.timeouts,
		ResultsRowsLimit:  flags.resultRowsLimit,
	}

	if flags.schemeQueryFile != "" {
		text, err := readQueryFile(flags.schemeQueryFile)
		if err != nil {
			return nil, nil, err
		}
		exec.SchemeQuery = text
	}
	for _, path := range flags.scriptQueryFiles {
		text, err := readQueryFile(path)
		if err != nil {
			return nil, nil, err
		}
		exec.ScriptQueries = append(exec.ScriptQueries, text)
	}

	var err error
	if exec.ExecutionCases, err = executionCaseChoices.parseAll(flags.executionCases); err != nil {
		return nil, nil, domain.ErrConfiguration("execution case: %v", err)
	}
	if exec.ScriptQueryActions, err = scriptActionChoices.parseAll(flags.scriptActions); err != nil {
		return nil, nil, domain.ErrConfiguration("script action: %v", err)
	}

	traceScope, err := traceScopeChoices.parse(flags.traceOpt)
	if err != nil {
		return nil, nil, domain.ErrConfiguration("trace opt: %v", err)
	}
	asyncVerbose, err := asyncVerboseChoices.parse(flags.asyncVerbose)
	if err != nil {
		return nil, nil, domain.ErrConfiguration("async verbose: %v", err)
	}
	resultFormat, err := resultFormatChoices.parse(flags.resultFormat)
	if err != nil {
		return nil, nil, domain.ErrConfiguration("result format: %v", err)
	}

	if flags.scriptStats == "-" {
		return nil, nil, domain.ErrConfiguration("script statistics can not be written to stdout")
	}

	runnerOpts := &config.RunnerOptions{
		TraceScope:          traceScope,
		ResultFormat:        resultFormat,
		PrettyResults:       flags.resultFile == "-" && term.IsTerminal(int(os.Stdout.Fd())),
		InProgressStatsPath: flags.scriptStats,
		ScriptCancelAfter:   flags.cancelAfter,
		SameSession:         flags.sameSession,
		Async: config.AsyncSettings{
			InFlightLimit: flags.inFlightLimit,
			Verbose:       asyncVerbose,
		},
		MonitoringEnabled: flags.monitoring,
		QueryAPIEnabled:   flags.serveQueries,
		ListenAddr:        flags.listenAddr,
		DatabasePath:      appCfg.Backend.DatabasePath,
		DefaultCatalog:    appCfg.Backend.DefaultCatalog,
		HistoryDBPath:     appCfg.History.Path,
		HistoryEnabled:    !appCfg.History.Disabled,
	}

	if runnerOpts.ResultOutput, err = registry.Writer(flags.resultFile); err != nil {
		return nil, nil, err
	}
	if runnerOpts.SchemeASTOutput, err = registry.Writer(flags.schemeASTFile); err != nil {
		return nil, nil, err
	}
	if runnerOpts.ScriptASTOutput, err = registry.Writer(flags.scriptASTFile); err != nil {
		return nil, nil, err
	}
	if runnerOpts.ScriptPlanOutput, err = registry.Writer(flags.scriptPlanFile); err != nil {
		return nil, nil, err
	}
	return exec, runnerOpts, nil
}

func readQueryFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return "", domain.ErrConfiguration("read query file %s: %v", path, err)
	}
	return string(data), nil
}
