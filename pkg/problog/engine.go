package problog

import (
	"errors"

	"go.uber.org/zap"
)

// EngineConfig holds configuration for a grounding engine.
type EngineConfig struct {
	// MaxCallDepth limits nested resolution depth (0 = unlimited)
	MaxCallDepth int

	// MaxFixpointIterations limits re-evaluation rounds of a recursive
	// component (0 = unlimited)
	MaxFixpointIterations int

	// KeepAll records deterministic facts as weight-less atoms instead of
	// folding them to TRUE
	KeepAll bool

	// HideBuiltins folds builtin successes to TRUE even with KeepAll
	HideBuiltins bool

	// PropagateEvidence pushes evidence values through the formula before
	// queries are grounded
	PropagateEvidence bool

	// ProbabilisticBuiltins selects the builtin table whose comparisons
	// over distribution terms yield weighted atoms
	ProbabilisticBuiltins bool

	// GroundAllHeads grounds every defined predicate when the program
	// declares no queries
	GroundAllHeads bool

	// Labels lists custom label predicates of arity 1
	Labels []string
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxCallDepth:          10000, // Deep enough for long chains
		MaxFixpointIterations: 1000,  // Prevent infinite loops
		KeepAll:               false,
		HideBuiltins:          false,
		PropagateEvidence:     false,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the engine configuration.
func WithConfig(cfg *EngineConfig) Option {
	return func(e *Engine) {
		if cfg != nil {
			c := *cfg
			e.config = &c
		}
	}
}

// WithKeepAll keeps deterministic facts as atoms.
func WithKeepAll(keep bool) Option {
	return func(e *Engine) { e.config.KeepAll = keep }
}

// WithHideBuiltins folds builtin successes to TRUE.
func WithHideBuiltins(hide bool) Option {
	return func(e *Engine) { e.config.HideBuiltins = hide }
}

// WithPropagateEvidence enables evidence propagation.
func WithPropagateEvidence(on bool) Option {
	return func(e *Engine) { e.config.PropagateEvidence = on }
}

// WithProbabilisticBuiltins selects the probabilistic builtin table.
func WithProbabilisticBuiltins() Option {
	return func(e *Engine) { e.config.ProbabilisticBuiltins = true }
}

// WithGroundAllHeads grounds all predicates when no queries are declared.
func WithGroundAllHeads() Option {
	return func(e *Engine) { e.config.GroundAllHeads = true }
}

// WithLabels declares custom label predicates.
func WithLabels(names ...string) Option {
	return func(e *Engine) { e.config.Labels = append(e.config.Labels, names...) }
}

// WithBuiltin registers or replaces a builtin predicate.
func WithBuiltin(name string, arity int, b Builtin) Option {
	return func(e *Engine) { e.extra = append(e.extra, registration{name, arity, b}) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

type registration struct {
	name  string
	arity int
	b     Builtin
}

// Engine grounds programs into formulas. An Engine holds only
// configuration; every GroundAll call owns its own formula and tables, so
// one Engine may serve concurrent runs.
type Engine struct {
	config   *EngineConfig
	logger   *zap.Logger
	builtins BuiltinTable
	extra    []registration
}

// NewEngine creates a grounding engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{config: DefaultEngineConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.ProbabilisticBuiltins {
		e.builtins = ProbabilisticBuiltins()
	} else {
		e.builtins = DefaultBuiltins()
	}
	for _, r := range e.extra {
		e.builtins.Register(r.name, r.arity, r.b)
	}
	return e
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() EngineConfig { return *e.config }

// EvidenceSpec is an evidence or observation goal with its observed value.
type EvidenceSpec struct {
	Term  Term
	Value bool
}

// Goals lists the goals to ground. A nil slice means the goals are
// discovered from the program's query/1, evidence/1,2 and observation/2
// facts; an empty non-nil slice means none.
type Goals struct {
	Queries      []Term
	Evidence     []EvidenceSpec
	Observations []EvidenceSpec
}

// marker predicates are never undefined: a program without queries simply
// has no query/1 clauses.
var markerPredicates = map[string]bool{
	"query/1": true, "evidence/1": true, "evidence/2": true, "observation/2": true,
}

// GroundAll grounds the program for the given goals and returns the
// possibly cyclic formula.
//
// Evidence is grounded first, then observations, then queries, then custom
// labels. With PropagateEvidence set, evidence values are propagated
// before queries are grounded.
func (e *Engine) GroundAll(db *ClauseDB, goals *Goals) (*Formula, error) {
	if goals == nil {
		goals = &Goals{}
	}
	defer StartTimer(e.logger, "ground")()

	evidence := goals.Evidence
	if evidence == nil {
		var err error
		if evidence, err = e.discoverEvidence(db); err != nil {
			return nil, err
		}
	}
	observations := goals.Observations
	if observations == nil {
		var err error
		if observations, err = e.discoverPairs(db, "observation"); err != nil {
			return nil, err
		}
	}
	queries := goals.Queries
	if queries == nil {
		var err error
		if queries, err = e.discover(db, "query"); err != nil {
			return nil, err
		}
	}

	r := newRun(e, db, NewFormula())
	for _, ev := range evidence {
		e.logger.Debug("grounding evidence", zap.Stringer("term", ev.Term), zap.Bool("value", ev.Value))
		if err := r.groundLabel(Label{Role: RoleEvidence, Name: ev.Term, Value: ev.Value}); err != nil {
			return nil, err
		}
	}
	for _, ob := range observations {
		e.logger.Debug("grounding observation", zap.Stringer("term", ob.Term), zap.Bool("value", ob.Value))
		if err := r.groundLabel(Label{Role: RoleObservation, Name: ob.Term, Value: ob.Value}); err != nil {
			return nil, err
		}
	}
	if e.config.PropagateEvidence {
		if err := r.f.PropagateEvidence(); err != nil {
			return nil, err
		}
		e.logger.Debug("propagated evidence", zap.Int("forced", len(r.f.forced)))
	}
	for _, q := range queries {
		e.logger.Debug("grounding query", zap.Stringer("term", q))
		if err := r.groundQuery(q); err != nil {
			return nil, err
		}
	}
	if len(queries) == 0 && e.config.GroundAllHeads {
		if err := r.groundAllHeads(); err != nil {
			return nil, err
		}
	}
	for _, name := range e.config.Labels {
		targets, err := e.discover(db, name)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			e.logger.Debug("grounding label", zap.String("label", name), zap.Stringer("term", t))
			if err := r.groundLabel(Label{Role: RoleCustom, Custom: name, Name: t, Value: true}); err != nil {
				return nil, err
			}
		}
	}
	stats := r.f.Stats()
	e.logger.Debug("ground program",
		zap.Int("nodes", stats.Nodes),
		zap.Int("atoms", stats.Atoms),
		zap.Int("tables", len(r.table)),
	)
	return r.f, nil
}

// Ground resolves goal into f and returns its ground answers. It is the
// entry point for callers that build formulas incrementally.
func (e *Engine) Ground(db *ClauseDB, f *Formula, goal Term) ([]NamedRef, error) {
	r := newRun(e, db, f)
	return r.answersOf(goal)
}

// discover collects the ground arguments of pred/1 facts.
func (e *Engine) discover(db *ClauseDB, pred string) ([]Term, error) {
	if _, ok := db.Find(pred, 1); !ok {
		return []Term{}, nil
	}
	x := Fresh("X")
	r := newRun(e.scratch(), db, NewFormula())
	answers, err := r.answersOf(NewCompound(pred, x))
	if err != nil {
		return nil, err
	}
	out := make([]Term, 0, len(answers))
	for _, a := range answers {
		if !r.deterministicTrue(a.Ref) {
			return nil, groundingErr(ErrInvalidDeclaration, a.Name, "%s/1 must be deterministic", pred)
		}
		out = append(out, a.Name.(*Compound).args[0])
	}
	return out, nil
}

func (e *Engine) discoverEvidence(db *ClauseDB) ([]EvidenceSpec, error) {
	single, err := e.discover(db, "evidence")
	if err != nil {
		return nil, err
	}
	out := make([]EvidenceSpec, 0, len(single))
	for _, t := range single {
		out = append(out, EvidenceSpec{Term: t, Value: true})
	}
	pairs, err := e.discoverPairs(db, "evidence")
	if err != nil {
		return nil, err
	}
	return append(out, pairs...), nil
}

// discoverPairs collects pred(Term, Value) facts. Value must be true or
// false, except for observation/2 where any other value turns the pair
// into an observation_builtin/2 goal that must hold.
func (e *Engine) discoverPairs(db *ClauseDB, pred string) ([]EvidenceSpec, error) {
	if _, ok := db.Find(pred, 2); !ok {
		return []EvidenceSpec{}, nil
	}
	r := newRun(e.scratch(), db, NewFormula())
	answers, err := r.answersOf(NewCompound(pred, Fresh("X"), Fresh("V")))
	if err != nil {
		return nil, err
	}
	var out []EvidenceSpec
	for _, a := range answers {
		if !r.deterministicTrue(a.Ref) {
			return nil, groundingErr(ErrInvalidDeclaration, a.Name, "%s/2 must be deterministic", pred)
		}
		args := a.Name.(*Compound).args
		switch v := args[1].(type) {
		case *Atom:
			if v.name == "true" || v.name == "false" {
				out = append(out, EvidenceSpec{Term: args[0], Value: v.name == "true"})
				continue
			}
		}
		if pred != "observation" {
			return nil, groundingErr(ErrInvalidDeclaration, a.Name, "evidence value must be true or false")
		}
		out = append(out, EvidenceSpec{Term: NewCompound("observation_builtin", args[0], args[1]), Value: true})
	}
	return out, nil
}

// scratch returns an engine for declaration discovery: same builtins and
// limits, deterministic facts folded.
func (e *Engine) scratch() *Engine {
	cfg := *e.config
	cfg.KeepAll = false
	cfg.PropagateEvidence = false
	return &Engine{config: &cfg, logger: e.logger, builtins: e.builtins}
}

// IsGroundingError reports whether err is a grounding failure.
func IsGroundingError(err error) bool {
	var ge *GroundingError
	return errors.As(err, &ge)
}

func nonGround(kind string, t Term) error {
	return groundingErr(ErrNonGround, t, "%s is not ground", kind)
}
