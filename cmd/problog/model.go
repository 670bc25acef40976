package main

import (
	"fmt"
	"os"

	"github.com/gitrdm/goproblog/pkg/problog"
)

// loadModel reads and parses a program file.
func loadModel(path string) (*problog.ClauseDB, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	db, err := problog.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// engine builds a grounding engine from the configuration plus extra
// options, which take precedence.
func (a *app) engine(extra ...problog.Option) *problog.Engine {
	opts := append(a.cfg.EngineOptions(), problog.WithLogger(a.logger))
	return problog.NewEngine(append(opts, extra...)...)
}

// groundAcyclic grounds db and breaks the cycles of the result.
func groundAcyclic(e *problog.Engine, db *problog.ClauseDB) (*problog.Formula, error) {
	raw, err := e.GroundAll(db, nil)
	if err != nil {
		return nil, err
	}
	return problog.BreakCycles(raw)
}
