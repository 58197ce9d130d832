// Package cli wires the querybench command line: flag parsing, option
// resolution, and assembly of the runner, scheduler, and the optional
// monitoring server.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
)

// flagValues collects every raw flag before choice parsing and file
// loading turn them into execution and runner options.
type flagValues struct {
	schemeQueryFile  string
	scriptQueryFiles []string
	useTemplates     bool

	executionCases []string
	scriptActions  []string
	databases      []string
	traceIDs       []string
	poolIDs        []string
	users          []string
	timeouts       []time.Duration

	loopCount         int
	loopDelay         time.Duration
	continueAfterFail bool
	forgetExecution   bool
	cancelAfter       time.Duration
	sameSession       bool

	inFlightLimit int64
	asyncVerbose  string

	resultFile      string
	resultRowsLimit int
	resultFormat    string

	schemeASTFile  string
	scriptASTFile  string
	scriptPlanFile string
	scriptStats    string

	traceOpt string

	monitoring   bool
	serveQueries bool
	listenAddr   string

	appConfigFile string
	dbPath        string
	catalog       string
	noHistory     bool
	logLevel      string
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           "querybench",
		Short:         "Batch query execution driver for DuckDB",
		Long:          "Executes a scheme query and a looped batch of script queries against DuckDB,\nwith per-query overrides, async dispatch, and optional monitoring endpoints.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), &flags)
		},
	}

	registerQueryFlags(rootCmd.Flags(), &flags)
	registerLoopFlags(rootCmd.Flags(), &flags)
	registerOutputFlags(rootCmd.Flags(), &flags)
	registerServerFlags(rootCmd.Flags(), &flags)
	return rootCmd
}

func registerQueryFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.StringVarP(&f.schemeQueryFile, "scheme-query", "s", "", "file with the scheme (DDL) query executed once before the batch")
	fs.StringArrayVarP(&f.scriptQueryFiles, "script-query", "p", nil, "file with a script query, repeatable and order-preserving")
	fs.BoolVar(&f.useTemplates, "templates", false, "expand ${QUERY_TOKEN} and ${QUERY_ID} placeholders in query texts")

	fs.StringArrayVarP(&f.executionCases, "execution-case", "C", nil, "execution case per query ("+executionCaseChoices.usage()+")")
	fs.StringArrayVarP(&f.scriptActions, "script-action", "A", nil, "action per query ("+scriptActionChoices.usage()+")")
	fs.StringArrayVarP(&f.databases, "database", "D", nil, "database per query")
	fs.StringArrayVar(&f.traceIDs, "trace-id", nil, "trace id prefix per query")
	fs.StringArrayVar(&f.poolIDs, "pool", nil, "resource pool id per query")
	fs.StringArrayVarP(&f.users, "user", "U", nil, "user per query")
	fs.DurationSliceVar(&f.timeouts, "timeout", nil, "execution timeout per query")
}

func registerLoopFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.IntVar(&f.loopCount, "loop-count", 1, "number of passes over the script queries, 0 loops until interrupted")
	fs.DurationVar(&f.loopDelay, "loop-delay", 0, "delay before each pass after the first")
	fs.BoolVar(&f.continueAfterFail, "continue-after-fail", false, "record synchronous failures and keep going instead of aborting")
	fs.BoolVarP(&f.forgetExecution, "forget", "F", false, "forget each script execution operation after fetching its results")
	fs.DurationVar(&f.cancelAfter, "cancel-after", 0, "request cancellation of script executions after the delay")
	fs.BoolVar(&f.sameSession, "same-session", false, "run all synchronous queries on one database session")

	fs.Int64Var(&f.inFlightLimit, "inflight-limit", 0, "max outstanding async queries, 0 for unlimited")
	fs.StringVar(&f.asyncVerbose, "async-verbose", "final", "async completion reporting ("+asyncVerboseChoices.usage()+")")
}

func registerOutputFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.StringVar(&f.resultFile, "result-file", "-", "file for query results, - for stdout")
	fs.IntVarP(&f.resultRowsLimit, "result-rows-limit", "L", 0, "max rows kept per result set, 0 for unlimited")
	fs.StringVarP(&f.resultFormat, "result-format", "R", "rows", "result rendering ("+resultFormatChoices.usage()+")")

	fs.StringVar(&f.schemeASTFile, "scheme-ast-file", "", "file for the scheme query AST")
	fs.StringVar(&f.scriptASTFile, "script-ast-file", "", "file for script query ASTs")
	fs.StringVar(&f.scriptPlanFile, "script-plan-file", "", "file for script query plans")
	fs.StringVar(&f.scriptStats, "script-statistics", "", "file receiving periodic in-progress statistics, never stdout")

	fs.StringVarP(&f.traceOpt, "trace-opt", "T", "disabled", "query text tracing scope ("+traceScopeChoices.usage()+")")
}

func registerServerFlags(fs *pflag.FlagSet, f *flagValues) {
	fs.BoolVar(&f.monitoring, "monitoring", false, "serve monitoring endpoints and stay up as a daemon after the batch")
	fs.BoolVar(&f.serveQueries, "serve-queries", false, "serve the ad-hoc query endpoint, implies daemon mode")
	fs.StringVar(&f.listenAddr, "listen", ":8080", "listen address for the monitoring and query endpoints")

	fs.StringVarP(&f.appConfigFile, "app-config", "c", "", "YAML application configuration file")
	fs.StringVar(&f.dbPath, "db-path", "", "DuckDB database file, empty for in-memory")
	fs.StringVar(&f.catalog, "catalog", "", "default catalog applied with USE")
	fs.BoolVar(&f.noHistory, "no-history", false, "disable the execution history log")
	fs.StringVar(&f.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}
