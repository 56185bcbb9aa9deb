package qap

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"

	"github.com/flyinglimao/go-wkem/internal/r1cs"
	"github.com/flyinglimao/go-wkem/internal/workerpool"
)

// pseudoElement derives a reproducible field element from a label, so
// randomized tests are deterministic without depending on a seeded RNG
// carried across calls.
func pseudoElement(label string) fr.Element {
	sum := sha256.Sum256([]byte("qap-random-test:" + label))
	var e fr.Element
	e.SetBytes(sum[:])
	return e
}

// randomSparseLC builds a 3-entry sparse linear combination over m wires,
// with wire indices and coefficients both derived from label.
func randomSparseLC(label string, m uint32) r1cs.LinearCombination {
	lc := make(r1cs.LinearCombination, 0, 3)
	for k := 0; k < 3; k++ {
		coef := pseudoElement(fmt.Sprintf("%s-coef-%d", label, k))
		idxElem := pseudoElement(fmt.Sprintf("%s-idx-%d", label, k))
		var idxBig [8]byte
		b := idxElem.Bytes()
		copy(idxBig[:], b[len(b)-8:])
		wire := uint32(0)
		for _, bb := range idxBig {
			wire = wire*256 + uint32(bb)
		}
		wire %= m
		lc = append(lc, r1cs.Factor{Wire: wire, Coef: coef})
	}
	return lc
}

// rowsFromIdentity builds the one-constraint identity circuit's sparse
// rows directly, mirroring what internal/circuit would produce for
// circuit.IdentityCircuit, without depending on circuit's internals.
func rowsFromIdentity() (rows []r1cs.Constraint, m, ell uint32) {
	one := fr.One()
	// wire 0 = const 1, wire 1 = public, wire 2 = secret.
	a := r1cs.LinearCombination{{Wire: 2, Coef: one}}
	b := r1cs.LinearCombination{{Wire: 0, Coef: one}}
	c := r1cs.LinearCombination{{Wire: 1, Coef: one}}
	return []r1cs.Constraint{{A: a, B: b, C: c}}, 3, 1
}

func TestEvaluateAtDomainRootMatchesRow(t *testing.T) {
	rows, m, ell := rowsFromIdentity()

	// x = 1 is the first root of any radix-2 domain built by fft.NewDomain.
	x := fr.One()
	evals, err := Evaluate(rows, m, ell, x, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// At the domain's first root (x=1, since every radix-2 domain starts
	// at generator^0=1), L_0(x)=1 and every other L_j(x)=0, so U/V/W must
	// equal the first constraint row directly.
	one := fr.One()
	if !evals.U[2].Equal(&one) {
		t.Fatalf("U[2] at root 0 = %v, want 1", evals.U[2])
	}
	if !evals.V[0].Equal(&one) {
		t.Fatalf("V[0] at root 0 = %v, want 1", evals.V[0])
	}
	if !evals.W[1].Equal(&one) {
		t.Fatalf("W[1] at root 0 = %v, want 1", evals.W[1])
	}
}

func TestEvaluateVanishesOnDomain(t *testing.T) {
	rows, m, ell := rowsFromIdentity()
	x := fr.One()
	evals, err := Evaluate(rows, m, ell, x, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !evals.T.IsZero() {
		t.Fatalf("vanishing polynomial at a domain root should be zero, got %v", evals.T)
	}
}

func TestEvaluateOffDomainNonZero(t *testing.T) {
	rows, m, ell := rowsFromIdentity()
	var x fr.Element
	x.SetUint64(12345)
	evals, err := Evaluate(rows, m, ell, x, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if evals.T.IsZero() {
		t.Fatal("vanishing polynomial should not be zero off the domain")
	}
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	// Evaluate takes the gated path only for two or more rows, so this
	// uses several random rows rather than the one-row identity circuit.
	const m = 12
	const ell = 3
	rows := make([]r1cs.Constraint, 5)
	for j := range rows {
		rows[j] = r1cs.Constraint{
			A: randomSparseLC(fmt.Sprintf("par%d-A", j), m),
			B: randomSparseLC(fmt.Sprintf("par%d-B", j), m),
			C: randomSparseLC(fmt.Sprintf("par%d-C", j), m),
		}
	}
	var x fr.Element
	x.SetUint64(999)

	seq, err := Evaluate(rows, m, ell, x, nil)
	if err != nil {
		t.Fatalf("sequential Evaluate: %v", err)
	}
	par, err := Evaluate(rows, m, ell, x, workerpool.New(4))
	if err != nil {
		t.Fatalf("parallel Evaluate: %v", err)
	}
	for i := range seq.U {
		if !seq.U[i].Equal(&par.U[i]) || !seq.V[i].Equal(&par.V[i]) || !seq.W[i].Equal(&par.W[i]) {
			t.Fatalf("wire %d: sequential and parallel accumulation disagree", i)
		}
	}
}

// TestEvaluateMatchesDomainPolynomialIdentity checks the domain
// polynomial identity directly: for any z, sum_i z_i*U[i] (the per-wire
// accumulation Evaluate returns) must equal sum_j L_j(x)*(A_j . z) (the
// row-by-row definition U is derived from), over randomized sparse
// constraint matrices and a random x and z. This would catch an indexing
// or accumulation bug that TestEvaluateAtDomainRootMatchesRow's single
// fixed row cannot.
func TestEvaluateMatchesDomainPolynomialIdentity(t *testing.T) {
	const m = 12
	const ell = 3
	const n = 5

	rows := make([]r1cs.Constraint, n)
	for j := 0; j < n; j++ {
		rows[j] = r1cs.Constraint{
			A: randomSparseLC(fmt.Sprintf("row%d-A", j), m),
			B: randomSparseLC(fmt.Sprintf("row%d-B", j), m),
			C: randomSparseLC(fmt.Sprintf("row%d-C", j), m),
		}
	}

	z := make([]fr.Element, m)
	for i := range z {
		z[i] = pseudoElement(fmt.Sprintf("z%d", i))
	}
	x := pseudoElement("x")

	evals, err := Evaluate(rows, m, ell, x, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	domain := fft.NewDomain(domainSize(uint32(n), ell))
	lagrange, err := lagrangeBasisAt(domain, x)
	if err != nil {
		t.Fatalf("lagrangeBasisAt: %v", err)
	}

	check := func(name string, u []fr.Element, pick func(r1cs.Constraint) r1cs.LinearCombination) {
		var lhs fr.Element
		for i := range z {
			var term fr.Element
			term.Mul(&z[i], &u[i])
			lhs.Add(&lhs, &term)
		}

		var rhs fr.Element
		for j, row := range rows {
			var rowZ fr.Element
			for _, f := range pick(row) {
				var term fr.Element
				term.Mul(&f.Coef, &z[f.Wire])
				rowZ.Add(&rowZ, &term)
			}
			var term fr.Element
			term.Mul(&lagrange[j], &rowZ)
			rhs.Add(&rhs, &term)
		}

		if !lhs.Equal(&rhs) {
			t.Fatalf("%s: sum z_i*%s[i] = %v, want sum L_j(x)*(row . z) = %v", name, name, lhs, rhs)
		}
	}

	check("U", evals.U, func(c r1cs.Constraint) r1cs.LinearCombination { return c.A })
	check("V", evals.V, func(c r1cs.Constraint) r1cs.LinearCombination { return c.B })
	check("W", evals.W, func(c r1cs.Constraint) r1cs.LinearCombination { return c.C })
}

func TestDomainSizeRoundsUpToPowerOfTwo(t *testing.T) {
	cases := []struct{ n, ell, want uint32 }{
		{1, 1, 2},
		{3, 1, 4},
		{5, 10, 16},
		{16, 0, 16},
	}
	for _, c := range cases {
		got := domainSize(c.n, c.ell)
		if got != uint64(c.want) {
			t.Fatalf("domainSize(%d,%d) = %d, want %d", c.n, c.ell, got, c.want)
		}
	}
}
