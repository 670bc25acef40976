package problog

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/gitrdm/goproblog/internal/parallel"
)

// Program is one job of a batch run.
type Program struct {
	Name   string
	Source string
}

// BatchResult is the outcome of one program. Err is set when grounding or
// evaluation failed; the other programs of the batch are unaffected.
type BatchResult struct {
	RunID         string
	Program       string
	Probabilities map[string]float64
	Queries       []string
	Duration      time.Duration
	Err           error
}

// ResultSink persists the results of a batch run.
type ResultSink interface {
	SaveBatch(ctx context.Context, runID string, results []BatchResult) error
}

// BatchOptions configures RunBatch.
type BatchOptions struct {
	// Workers bounds concurrent programs (0 = number of CPUs)
	Workers int
	// Engine options applied to every program
	EngineOptions []Option
	// Compiler used for every program (nil = EnumCompiler)
	Compiler Compiler
	// Sink receives all results once the batch completes (optional)
	Sink   ResultSink
	Logger *zap.Logger
}

// NewRunID returns a new time-ordered run identifier.
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// RunBatch parses, grounds and evaluates independent programs concurrently,
// each with its own formula. Results are returned in input order and
// tagged with one run id. Per-program failures are reported in the
// results; the returned error covers cancellation and the sink.
func RunBatch(ctx context.Context, programs []Program, opts BatchOptions) (string, []BatchResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	comp := opts.Compiler
	if comp == nil {
		comp = EnumCompiler{Logger: logger}
	}
	runID := NewRunID()
	engine := NewEngine(append([]Option{WithLogger(logger)}, opts.EngineOptions...)...)

	pool := parallel.NewWorkerPool(opts.Workers)
	defer pool.Shutdown()

	results := make([]BatchResult, len(programs))
	var mu sync.Mutex
	var submitErr error
	for i, prog := range programs {
		err := pool.Submit(ctx, func() {
			r := runProgram(engine, comp, prog)
			r.RunID = runID
			mu.Lock()
			results[i] = r
			mu.Unlock()
			logger.Debug("program done",
				zap.String("run", runID),
				zap.String("program", prog.Name),
				zap.Duration("duration", r.Duration),
				zap.Error(r.Err),
			)
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	pool.Wait()
	if submitErr != nil {
		return runID, nil, submitErr
	}
	if opts.Sink != nil {
		if err := opts.Sink.SaveBatch(ctx, runID, results); err != nil {
			return runID, results, err
		}
	}
	return runID, results, nil
}

func runProgram(e *Engine, comp Compiler, prog Program) BatchResult {
	start := time.Now()
	res := BatchResult{Program: prog.Name}
	db, err := Parse(prog.Source)
	if err == nil {
		var circ *Circuit
		if circ, err = CompileProgram(e, db, nil, comp); err == nil {
			for _, q := range circ.Queries {
				res.Queries = append(res.Queries, q.Name.String())
			}
			res.Probabilities, err = circ.Probabilities()
		}
	}
	res.Err = err
	res.Duration = time.Since(start)
	return res
}
