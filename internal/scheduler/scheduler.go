// Package scheduler drives the configured batch of queries through
// the runner: scheme query first, then the (query × loop) cross
// product with concurrency bounding and the failure policy.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"querybench/internal/config"
	"querybench/internal/domain"
	"querybench/internal/runner"
)

// Scheduler sequences the run. It is single-threaded: synchronous
// requests block it, async requests are handed to the runner after
// reserving an in-flight slot.
type Scheduler struct {
	exec   *config.ExecutionOptions
	runner runner.Runner
	log    *slog.Logger
	status *domain.RunStatus
}

// New creates a Scheduler.
func New(exec *config.ExecutionOptions, r runner.Runner, log *slog.Logger, status *domain.RunStatus) *Scheduler {
	if status == nil {
		status = domain.NewRunStatus()
	}
	return &Scheduler{exec: exec, runner: r, log: log, status: status}
}

// Status returns the live run status.
func (s *Scheduler) Status() *domain.RunStatus { return s.status }

// Run executes the whole batch. Scheme failures are always fatal; a
// synchronous job failure aborts the loop unless continue-after-fail
// is set, in which case it is recorded and the loop proceeds. The
// runner is finalized unconditionally on loop exit. Cancelling ctx is
// the external stop signal for unbounded loops.
func (s *Scheduler) Run(ctx context.Context) error {
	runErr := s.runQueries(ctx)
	if runErr != nil {
		s.status.SetState(domain.StateFailed)
	}

	s.status.SetState(domain.StateFinalizing)
	if err := s.runner.Finalize(ctx); err != nil {
		ferr := domain.ErrFinalization(err)
		s.log.Error("finalization failed", "error", err)
		if runErr == nil {
			runErr = ferr
		}
	}

	if runErr == nil && s.exec.HasResults() {
		if err := s.runner.PrintScriptResults(); err != nil {
			runErr = domain.ErrResultPrint(err)
		}
	}

	if runErr != nil {
		s.status.SetState(domain.StateFailed)
		return runErr
	}

	if failures := s.status.Failures(); failures > 0 {
		s.log.Warn("run finished with recorded failures", "failures", failures)
	}
	s.status.SetState(domain.StateDone)
	return nil
}

func (s *Scheduler) runQueries(ctx context.Context) error {
	if s.exec.SchemeQuery != "" {
		s.status.SetState(domain.StateScheme)
		s.log.Info("executing scheme query")

		req, err := s.exec.SchemeRequest()
		if err != nil {
			return domain.ErrScheme(err, "scheme query preparation failed: %v", err)
		}
		if err := s.runner.ExecuteSchemeQuery(ctx, req); err != nil {
			return domain.ErrScheme(err, "scheme query execution failed: %v", err)
		}
	}

	n := len(s.exec.ScriptQueries)
	if n == 0 {
		return nil
	}

	s.status.SetState(domain.StateRunning)
	loops := s.exec.LoopCount

	for q := 0; q < n*loops || loops == 0; q++ {
		if err := ctx.Err(); err != nil {
			s.log.Info("run stopped", "iteration", q, "reason", err)
			return nil
		}

		i := q % n
		if i == 0 && q > 0 {
			if err := sleepCtx(ctx, s.exec.LoopDelay); err != nil {
				s.log.Info("run stopped during loop delay", "iteration", q)
				return nil
			}
		}

		s.status.SetIteration(q)
		startTime := time.Now()

		if s.exec.ExecutionCaseAt(i) != domain.CaseAsyncQuery {
			args := []any{"query", i}
			if loops != 1 {
				args = append(args, "loop", q/n)
			}
			s.log.Info("executing query", args...)
		}

		if err := s.dispatch(ctx, i, q, startTime); err != nil {
			if !s.exec.ContinueAfterFail {
				return err
			}
			s.status.AddFailure()
			s.log.Error("query failed, continuing", "query", i, "iteration", q, "error", err)
		}
	}
	return nil
}

// dispatch resolves the request for query index i at iteration q and
// hands it to the runner according to its execution case.
func (s *Scheduler) dispatch(ctx context.Context, i, q int, startTime time.Time) error {
	req, err := s.exec.ScriptRequest(i, q, startTime)
	if err != nil {
		return domain.ErrJob(err, "query %d preparation failed: %v", i, err)
	}
	s.status.AddDispatched()

	switch s.exec.ExecutionCaseAt(i) {
	case domain.CaseGenericScript:
		if err := s.runner.ExecuteScript(ctx, req); err != nil {
			return domain.ErrJob(err, "script execution failed: %v", err)
		}
		s.log.Info("fetching script results", "query", i)
		if err := s.runner.FetchScriptResults(ctx); err != nil {
			return domain.ErrJob(err, "fetch script results failed: %v", err)
		}
		if s.exec.ForgetExecution {
			s.log.Info("forgetting script execution operation", "query", i)
			if err := s.runner.ForgetExecutionOperation(ctx); err != nil {
				return domain.ErrJob(err, "forget script execution operation failed: %v", err)
			}
		}

	case domain.CaseGenericQuery:
		if err := s.runner.ExecuteQuery(ctx, req); err != nil {
			return domain.ErrJob(err, "query execution failed: %v", err)
		}

	case domain.CaseLegacyScript:
		if err := s.runner.ExecuteLegacyScript(ctx, req); err != nil {
			return domain.ErrJob(err, "legacy script execution failed: %v", err)
		}

	case domain.CaseAsyncQuery:
		if err := s.runner.WaitAsyncSlot(ctx); err != nil {
			return domain.ErrJob(err, "waiting for async slot failed: %v", err)
		}
		s.runner.ExecuteQueryAsync(ctx, req)

	case domain.CaseSchemeQuery:
		// Scheme queries are dispatched once before the loop.
	}
	return nil
}

// sleepCtx sleeps for d, returning early when ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
