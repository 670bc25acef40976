package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestProb(t *testing.T) {
	model := writeModel(t, "a.pl", "0.25::a. query(a).")

	out, _, code := execute(t, "prob", model)
	require.Equal(t, 0, code)
	assert.Equal(t, "a: 0.25\n", out)

	out, _, code = execute(t, "prob", "--weight", "a=0.1", model)
	require.Equal(t, 0, code)
	assert.Equal(t, "a: 0.1\n", out)

	out, _, code = execute(t, "prob", "--semiring", "log", model)
	require.Equal(t, 0, code)
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(out, "a: ")), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, math.Exp(v), 1e-9)

	out, _, code = execute(t, "prob", "--semiring", "symbolic", "--weight", "a=p", model)
	require.Equal(t, 0, code)
	assert.Equal(t, "a: p\n", out)
}

func TestProbWithEvidence(t *testing.T) {
	model := writeModel(t, "alarm.pl", `
0.1::burglary.
0.2::earthquake.
0.9::alarm :- burglary.
0.8::alarm :- earthquake.
evidence(alarm, true).
query(burglary).
`)
	out, stderr, code := execute(t, "prob", model)
	require.Equal(t, 0, code, stderr)
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(out, "burglary: ")), 64)
	require.NoError(t, err)
	// P(alarm) = 1 - (1-0.09)(1-0.16) = 0.2356, P(burglary, alarm) = 0.1*0.916
	assert.InDelta(t, 0.0916/0.2356, v, 1e-9)
}

func TestProbDirectBackend(t *testing.T) {
	model := writeModel(t, "and.pl", "0.5::a. 0.4::b. c :- a, b. query(c).")
	out, stderr, code := execute(t, "prob", "--backend", "direct", model)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "c: 0.2\n", out)
}

func TestProbErrors(t *testing.T) {
	_, stderr, code := execute(t, "prob", filepath.Join(t.TempDir(), "missing.pl"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: failed to read model")

	model := writeModel(t, "bad.pl", "0.5::a :- .")
	_, stderr, code = execute(t, "prob", model)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")

	model = writeModel(t, "bad.pl", "0.5::a. evidence(a, true). evidence(a, false). query(a).")
	_, stderr, code = execute(t, "prob", model)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "evidence")
}

func TestErrorGoesToOutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	_, stderr, code := execute(t, "prob", "-o", out, filepath.Join(t.TempDir(), "missing.pl"))
	assert.Equal(t, 1, code)
	assert.Empty(t, stderr)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Error:")
}

func TestBN(t *testing.T) {
	model := writeModel(t, "ad.pl", "0.3::a; 0.4::b.")

	out, stderr, code := execute(t, "bn", "--format", "internal", model)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "CPT c0 (latent)")
	assert.Contains(t, out, "OrCPT a")
	assert.Contains(t, out, "OrCPT b")

	for _, format := range []string{"hugin", "xdsl", "uai08", "dot"} {
		t.Run(format, func(t *testing.T) {
			out, stderr, code := execute(t, "bn", "--format", format, model)
			require.Equal(t, 0, code, stderr)
			assert.NotEmpty(t, out)
		})
	}

	path := filepath.Join(t.TempDir(), "net.uai")
	_, _, code = execute(t, "bn", "--format", "uai08", "-o", path, model)
	require.Equal(t, 0, code)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "BAYES"))

	_, stderr, code = execute(t, "bn", "--format", "png", model)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown format")
}

func TestGround(t *testing.T) {
	model := writeModel(t, "g.pl", "0.5::b. a :- b. query(a).")

	out, stderr, code := execute(t, "ground", model)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "0.5::b.")
	assert.Contains(t, out, "a :- b.")

	labelled := writeModel(t, "labels.pl", "0.5::a. evidence(a, true). query(a).")
	out, stderr, code = execute(t, "ground", labelled)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "0.5::a.\n")
	assert.Contains(t, out, "query(a).\n")
	assert.Contains(t, out, "evidence(a, true).\n")

	out, _, code = execute(t, "ground", "--formula", "--stats", model)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "atom(0.5::b)")
	assert.Contains(t, out, "% nodes=")
}

func TestSample(t *testing.T) {
	model := writeModel(t, "coin.pl", "0.5::heads. query(heads).")

	out, stderr, code := execute(t, "sample", "-n", "3", "--seed", "7", model)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 3, strings.Count(out, "----"))
	again, _, _ := execute(t, "sample", "-n", "3", "--seed", "7", model)
	assert.Equal(t, out, again)

	out, stderr, code = execute(t, "sample", "--estimate", "-n", "20000", "--workers", "2", model)
	require.Equal(t, 0, code, stderr)
	line := strings.SplitN(out, "\n", 2)[0]
	v, err := strconv.ParseFloat(strings.TrimPrefix(line, "heads: "), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 0.03)
}

func TestBatch(t *testing.T) {
	a := writeModel(t, "a.pl", "0.25::a. query(a).")
	b := writeModel(t, "b.pl", "0.5::b. query(b).")
	db := filepath.Join(t.TempDir(), "runs.db")

	out, stderr, code := execute(t, "batch", "--store", db, a, b)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "% run ")
	assert.Contains(t, out, "== a.pl\na: 0.25\n")
	assert.Contains(t, out, "== b.pl\nb: 0.5\n")
	_, err := os.Stat(db)
	assert.NoError(t, err)

	bad := writeModel(t, "bad.pl", "a :- \\+ a. query(a).")
	out, stderr, code = execute(t, "batch", a, bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "== bad.pl\nError:")
	assert.Contains(t, stderr, "1 of 2 programs failed")
}

func TestVersion(t *testing.T) {
	out, _, code := execute(t, "version")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "problog "))
}

func TestConfigFile(t *testing.T) {
	model := writeModel(t, "a.pl", "0.25::a. query(a).")
	cfg := writeModel(t, "problog.yaml", "evaluation:\n  semiring: symbolic\n")

	out, stderr, code := execute(t, "prob", "--config", cfg, model)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "a: 0.25\n", out)

	bad := writeModel(t, "bad.yaml", "evaluation:\n  backend: bdd\n")
	_, stderr, code = execute(t, "prob", "--config", bad, model)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown backend")
}
