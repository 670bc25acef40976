package problog_test

import (
	"fmt"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func coinNet() *problog.PGM {
	db, _ := problog.Parse(`0.3::a; 0.4::b. query(a). query(b).`)
	raw, _ := problog.NewEngine().GroundAll(db, nil)
	dag, _ := problog.BreakCycles(raw)
	pgm, _ := problog.CompileBayesNet(dag)
	return pgm
}

// ExampleCompileBayesNet shows the latent choice variable introduced for
// an annotated disjunction.
func ExampleCompileBayesNet() {
	fmt.Print(coinNet())
	// Output:
	// OrCPT a
	//   c0=1
	//
	// OrCPT b
	//   c0=2
	//
	// CPT c0 (latent)
	//   domain: 0 1 2
	//   [0.3, 0.3, 0.4]
}

func ExamplePGM_ToUAI08() {
	fmt.Print(coinNet().ToUAI08())
	// Output:
	// BAYES
	// 3
	// 3 2 2
	// 3
	// 1 0
	// 2 0 1
	// 2 0 2
	//
	// 3
	//  0.3 0.3 0.4
	//
	// 6
	//  1 0
	//  0 1
	//  1 0
	//
	// 6
	//  1 0
	//  1 0
	//  0 1
}
