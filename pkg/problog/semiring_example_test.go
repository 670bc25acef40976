package problog_test

import (
	"fmt"

	"github.com/gitrdm/goproblog/pkg/problog"
)

// ExampleSymbolicSemiring keeps one weight as a parameter and evaluates
// the resulting expression later.
func ExampleSymbolicSemiring() {
	db, _ := problog.Parse(`0.5::a. 0.4::b. c :- a, b. query(c).`)
	circ, _ := problog.CompileProgram(problog.NewEngine(), db, nil, problog.EnumCompiler{})

	weights := map[string]*problog.Expr{"a": problog.Param("p")}
	out, err := problog.Evaluate(circ, problog.SymbolicSemiring{}, weights)
	if err != nil {
		fmt.Println(err)
		return
	}
	expr := out["c"]
	v, _ := expr.Eval(map[string]float64{"p": 0.5})
	fmt.Println("c =", expr)
	fmt.Printf("c(p=0.5) = %.2f\n", v)
	// Output:
	// c = p*0.4
	// c(p=0.5) = 0.20
}
