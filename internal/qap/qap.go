// Package qap implements the R1CS-to-QAP reduction:
// evaluation-domain selection over a radix-2 multiplicative subgroup,
// closed-form Lagrange-basis evaluation at an arbitrary point x, and
// per-wire accumulation of U, V, W from the sparse constraint rows.
package qap

import (
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"

	"github.com/flyinglimao/go-wkem/internal/r1cs"
	"github.com/flyinglimao/go-wkem/internal/workerpool"
	"github.com/flyinglimao/go-wkem/internal/wkemerr"
)

// Evals holds the per-wire QAP evaluations at one point x, plus the
// vanishing-polynomial value t(x) and the size of the evaluation
// domain H (|H|-2 is the top exponent of the Encap h query).
type Evals struct {
	U, V, W []fr.Element
	T       fr.Element
	Size    uint64
}

// domainSize returns the smallest power of two >= max(n, ell+1).
func domainSize(n, ell uint32) uint64 {
	need := uint64(n)
	if uint64(ell)+1 > need {
		need = uint64(ell) + 1
	}
	if need == 0 {
		need = 1
	}
	size := uint64(1)
	for size < need {
		size <<= 1
	}
	return size
}

// Evaluate computes U, V, W (length m) and t(x) for the given constraint
// rows at point x, using a domain of size max(n, ell+1) rounded up to a
// power of two. gate may be nil, in which case accumulation runs on the
// calling goroutine.
func Evaluate(constraints []r1cs.Constraint, m uint32, ell uint32, x fr.Element, gate *workerpool.Gate) (Evals, error) {
	n := uint32(len(constraints))
	size := domainSize(n, ell)

	domain := fft.NewDomain(size)
	if domain == nil || domain.Cardinality != size {
		return Evals{}, wkemerr.New(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "could not build evaluation domain")
	}

	lagrange, err := lagrangeBasisAt(domain, x)
	if err != nil {
		return Evals{}, err
	}

	u := make([]fr.Element, m)
	v := make([]fr.Element, m)
	w := make([]fr.Element, m)

	accumulate := func(lo, hi int) {
		for j := lo; j < hi; j++ {
			if j >= len(constraints) {
				continue
			}
			lj := lagrange[j]
			accRow(u, constraints[j].A, lj)
			accRow(v, constraints[j].B, lj)
			accRow(w, constraints[j].C, lj)
		}
	}

	if gate == nil || n < 2 {
		accumulate(0, int(n))
	} else {
		// Rows are independent and additive: each chunk accumulates into
		// its own partial arrays, then every partial is folded into the
		// shared result under a mutex. The reduction order is undefined
		// but the result is not, since field addition commutes.
		var mu sync.Mutex
		gate.Run(int(n), func(lo, hi int) {
			pu := make([]fr.Element, m)
			pv := make([]fr.Element, m)
			pw := make([]fr.Element, m)
			for j := lo; j < hi; j++ {
				lj := lagrange[j]
				accRow(pu, constraints[j].A, lj)
				accRow(pv, constraints[j].B, lj)
				accRow(pw, constraints[j].C, lj)
			}
			mu.Lock()
			addInto(u, pu)
			addInto(v, pv)
			addInto(w, pw)
			mu.Unlock()
		})
	}

	t := vanishing(size, x)

	return Evals{U: u, V: v, W: w, T: t, Size: size}, nil
}

func addInto(dst, src []fr.Element) {
	for i := range dst {
		dst[i].Add(&dst[i], &src[i])
	}
}

func accRow(dst []fr.Element, lc r1cs.LinearCombination, lj fr.Element) {
	for _, f := range lc {
		if int(f.Wire) >= len(dst) {
			continue
		}
		var term fr.Element
		term.Mul(&f.Coef, &lj)
		dst[f.Wire].Add(&dst[f.Wire], &term)
	}
}

// vanishing evaluates t(x) = x^size - 1 for the radix-2 subgroup H of
// the given size.
func vanishing(size uint64, x fr.Element) fr.Element {
	var xn fr.Element
	xn.Exp(x, new(big.Int).SetUint64(size))
	one := fr.One()
	xn.Sub(&xn, &one)
	return xn
}

// lagrangeBasisAt evaluates every Lagrange basis polynomial L_j of the
// domain at x, using the closed form
//
//	L_j(x) = (x^N - 1) * omega^j / (N * (x - omega^j))
//
// with the Kronecker-delta fallback when x coincides with a domain
// root (still correct, just slower; nothing special is needed beyond
// avoiding the division by zero).
func lagrangeBasisAt(domain *fft.Domain, x fr.Element) ([]fr.Element, error) {
	n := domain.Cardinality
	out := make([]fr.Element, n)

	zX := vanishing(n, x)

	// omega^j for j = 0..n-1
	omegaPow := make([]fr.Element, n)
	omegaPow[0] = fr.One()
	for j := uint64(1); j < n; j++ {
		omegaPow[j].Mul(&omegaPow[j-1], &domain.Generator)
	}

	if zX.IsZero() {
		// x is itself a domain root: L_j(x) = 1 at the matching root, 0
		// elsewhere.
		for j := uint64(0); j < n; j++ {
			if x.Equal(&omegaPow[j]) {
				out[j] = fr.One()
				return out, nil
			}
		}
		return nil, wkemerr.New(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "vanishing polynomial zero but no matching root found")
	}

	var nInv fr.Element
	nInv.SetUint64(n)
	nInv.Inverse(&nInv)

	for j := uint64(0); j < n; j++ {
		var denom fr.Element
		denom.Sub(&x, &omegaPow[j])
		denom.Inverse(&denom)

		var lj fr.Element
		lj.Mul(&zX, &omegaPow[j])
		lj.Mul(&lj, &nInv)
		lj.Mul(&lj, &denom)
		out[j] = lj
	}
	return out, nil
}
