// Package wkem implements the Witness Key Encapsulation Mechanism core:
// Encap samples fresh toxic randomness, builds the CRS (sigma) of
// per-wire group-element queries, and derives a 32-byte key by pairing;
// Decap checks R1CS satisfaction against a full assignment and recovers
// the same key via a circuit-weighted sum over the CRS queries.
//
// The toxic scalars (alpha, beta, delta, r, x) never escape Encap: they
// are sampled, used to build sigma, and zeroed before Encap returns.
package wkem

import (
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/hkdf"

	"github.com/flyinglimao/go-wkem/internal/circuit"
	"github.com/flyinglimao/go-wkem/internal/qap"
	"github.com/flyinglimao/go-wkem/internal/wkemerr"
	"github.com/flyinglimao/go-wkem/internal/workerpool"
)

// Key is the 32-byte symmetric key Encap and Decap agree on.
type Key [32]byte

// CRS is the ciphertext sigma: the group-element queries derived from
// one Encap draw, plus the public-input vector the ciphertext is bound
// to. The toxic scalars themselves are never stored here.
type CRS struct {
	AlphaG1 bn254.G1Affine
	BetaG2  bn254.G2Affine
	DeltaG2 bn254.G2Affine

	RuQuery  []bn254.G1Affine // length m
	RvQuery  []bn254.G2Affine // length m
	PhiQuery []bn254.G1Affine // length m
	HQuery   []bn254.G1Affine // length |H|-1

	PublicInputs []fr.Element // length ell
}

// Gate, when non-nil, bounds the concurrency of Encap's QAP
// accumulation; nil runs it on the calling goroutine. The per-wire CRS
// query construction and the MSMs do not use it, and Decap takes no
// gate.
type Gate = workerpool.Gate

// Encap encapsulates a fresh 32-byte key against circ, which must have
// its instance assignments filled in and its witness wires left unset.
// rng is a caller-owned CSPRNG; two calls with the same circuit and
// identical rng output produce byte-identical sigma and K.
func Encap(circ circuit.Circuit, rng io.Reader, gate *Gate) (*CRS, Key, error) {
	sys := circuit.New()
	if err := circ.Fill(sys); err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindAssignment, wkemerr.CodeSynthesisError, "circuit fill", err)
	}

	ell := sys.NPublic()
	m := sys.NWires()
	rows := sys.Matrices()

	a, err := sys.Instance()
	if err != nil {
		return nil, Key{}, err
	}

	alpha, err := sampleScalar(rng)
	if err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "sample alpha", err)
	}
	beta, err := sampleScalar(rng)
	if err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "sample beta", err)
	}
	delta, err := sampleNonZeroScalar(rng)
	if err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "sample delta", err)
	}
	r, err := sampleScalar(rng)
	if err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "sample r", err)
	}
	x, err := sampleScalar(rng)
	if err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeDomainUnavailable, "sample x", err)
	}
	defer zero(&alpha, &beta, &delta, &r, &x)

	evals, err := qap.Evaluate(rows, m, ell, x, gate)
	if err != nil {
		return nil, Key{}, err
	}

	var deltaInv fr.Element
	deltaInv.Inverse(&delta)
	defer zero(&deltaInv)

	_, _, g1Gen, g2Gen := bn254.Generators()

	ruQuery := make([]bn254.G1Affine, m)
	rvQuery := make([]bn254.G2Affine, m)
	phiQuery := make([]bn254.G1Affine, m)
	phiScalars := make([]fr.Element, m)

	var ru, rv, phiOverDelta fr.Element
	defer zero(&ru, &rv, &phiOverDelta)
	for i := uint32(0); i < m; i++ {
		ru.Mul(&r, &evals.U[i])
		ruQuery[i].ScalarMultiplication(&g1Gen, ru.BigInt(new(big.Int)))

		rv.Mul(&r, &evals.V[i])
		rvQuery[i].ScalarMultiplication(&g2Gen, rv.BigInt(new(big.Int)))

		phiScalars[i] = phi(r, beta, alpha, evals.U[i], evals.V[i], evals.W[i])
		phiOverDelta.Mul(&phiScalars[i], &deltaInv)
		phiQuery[i].ScalarMultiplication(&g1Gen, phiOverDelta.BigInt(new(big.Int)))
	}

	hQuery, err := buildHQuery(evals.Size, r, delta, deltaInv, evals.T, x, g1Gen)
	if err != nil {
		return nil, Key{}, err
	}

	piScalars := make([]fr.Element, ell+1)
	piScalars[0] = fr.One()
	copy(piScalars[1:], a)
	piPoints := phiQuery[:ell+1]

	var pi bn254.G1Affine
	if _, err := pi.MultiExp(piPoints, piScalars, ecc.MultiExpConfig{}); err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeSerializationError, "instance accumulator MSM", err)
	}

	var alphaG1 bn254.G1Affine
	alphaG1.ScalarMultiplication(&g1Gen, alpha.BigInt(new(big.Int)))
	var betaG2 bn254.G2Affine
	betaG2.ScalarMultiplication(&g2Gen, beta.BigInt(new(big.Int)))
	var deltaG2 bn254.G2Affine
	deltaG2.ScalarMultiplication(&g2Gen, delta.BigInt(new(big.Int)))

	s, err := bn254.Pair([]bn254.G1Affine{alphaG1, pi}, []bn254.G2Affine{betaG2, g2Gen})
	if err != nil {
		return nil, Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeSerializationError, "encap pairing", err)
	}
	key, err := deriveKey(s)
	if err != nil {
		return nil, Key{}, err
	}

	inst := make([]fr.Element, len(a))
	copy(inst, a)

	crs := &CRS{
		AlphaG1:      alphaG1,
		BetaG2:       betaG2,
		DeltaG2:      deltaG2,
		RuQuery:      ruQuery,
		RvQuery:      rvQuery,
		PhiQuery:     phiQuery,
		HQuery:       hQuery,
		PublicInputs: inst,
	}

	for i := range phiScalars {
		phiScalars[i].SetZero()
	}

	return crs, key, nil
}

// Decap recovers the encapsulated key from circ, which must have a
// full assignment (instance and witness), and sigma produced by a
// prior Encap call. PublicInputMismatch is checked before satisfaction
// so a ciphertext from a different instance is always a hard failure,
// never silently accepted.
func Decap(circ circuit.Circuit, sigma *CRS) (Key, error) {
	sys := circuit.New()
	if err := circ.Fill(sys); err != nil {
		return Key{}, wkemerr.Wrap(wkemerr.KindAssignment, wkemerr.CodeSynthesisError, "circuit fill", err)
	}

	ell := sys.NPublic()
	m := sys.NWires()

	a, err := sys.Instance()
	if err != nil {
		return Key{}, err
	}
	if len(a) != len(sigma.PublicInputs) {
		return Key{}, wkemerr.New(wkemerr.KindAlgebraic, wkemerr.CodePublicInputMismatch, "public input length mismatch")
	}
	for i := range a {
		if !a[i].Equal(&sigma.PublicInputs[i]) {
			return Key{}, wkemerr.New(wkemerr.KindAlgebraic, wkemerr.CodePublicInputMismatch, "public input value mismatch")
		}
	}

	ok, failedRow, err := sys.IsSatisfied()
	if err != nil {
		return Key{}, err
	}
	if !ok {
		return Key{}, wkemerr.New(wkemerr.KindAlgebraic, wkemerr.CodeInvalidWitness, constraintContext(failedRow))
	}

	witness, err := sys.Witness()
	if err != nil {
		return Key{}, err
	}
	if uint32(len(sigma.PhiQuery)) != m {
		return Key{}, wkemerr.New(wkemerr.KindAssignment, wkemerr.CodeAssignmentMissing, "sigma wire count mismatch")
	}

	piScalars := make([]fr.Element, ell+1)
	piScalars[0] = fr.One()
	copy(piScalars[1:], a)
	var pi bn254.G1Affine
	if _, err := pi.MultiExp(sigma.PhiQuery[:ell+1], piScalars, ecc.MultiExpConfig{}); err != nil {
		return Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeSerializationError, "instance accumulator MSM", err)
	}

	var psi bn254.G1Affine
	if m > ell+1 {
		if _, err := psi.MultiExp(sigma.PhiQuery[ell+1:m], witness, ecc.MultiExpConfig{}); err != nil {
			return Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeSerializationError, "witness accumulator MSM", err)
		}
	}

	var sum bn254.G1Affine
	sum.Add(&pi, &psi)

	_, _, _, g2Gen := bn254.Generators()
	s, err := bn254.Pair([]bn254.G1Affine{sigma.AlphaG1, sum}, []bn254.G2Affine{sigma.BetaG2, g2Gen})
	if err != nil {
		return Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeSerializationError, "decap pairing", err)
	}
	return deriveKey(s)
}

func constraintContext(row int) string {
	return "constraint " + itoa(row) + " unsatisfied"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// phi computes phi_i(x) = r*beta*U_i + r*alpha*V_i + r^2*W_i.
func phi(r, beta, alpha, u, v, w fr.Element) fr.Element {
	var rBeta, rAlpha, r2 fr.Element
	rBeta.Mul(&r, &beta)
	rAlpha.Mul(&r, &alpha)
	r2.Mul(&r, &r)

	var t1, t2, t3 fr.Element
	t1.Mul(&rBeta, &u)
	t2.Mul(&rAlpha, &v)
	t3.Mul(&r2, &w)

	var out fr.Element
	out.Add(&t1, &t2)
	out.Add(&out, &t3)
	return out
}

// buildHQuery computes h_k = [r^2 * x^k * t(x) / delta]_1 for
// k = 0..size-2. The h query rides along in sigma for completeness of
// the CRS; key recovery never reads it.
func buildHQuery(size uint64, r, delta, deltaInv, t, x fr.Element, g1Gen bn254.G1Affine) ([]bn254.G1Affine, error) {
	if size == 0 {
		return nil, nil
	}
	count := size - 1
	out := make([]bn254.G1Affine, count)

	var r2 fr.Element
	r2.Mul(&r, &r)

	var base fr.Element
	base.Mul(&r2, &t)
	base.Mul(&base, &deltaInv)
	defer zero(&r2, &base)

	xk := fr.One()
	var coef fr.Element
	defer zero(&xk, &coef)
	for k := uint64(0); k < count; k++ {
		coef.Mul(&base, &xk)
		out[k].ScalarMultiplication(&g1Gen, coef.BigInt(new(big.Int)))
		xk.Mul(&xk, &x)
	}
	return out, nil
}

// deriveKey hashes the canonical serialization of s (a GT element)
// into a 32-byte key via HKDF-SHA256: s is high-entropy but
// algebraically structured, so a KDF rather than a bare truncated hash
// turns it into a uniform symmetric key.
func deriveKey(s bn254.GT) (Key, error) {
	raw := s.Marshal()
	reader := hkdf.New(sha256.New, raw, nil, []byte("go-wkem/v1/encap-key"))
	var key Key
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return Key{}, wkemerr.Wrap(wkemerr.KindResource, wkemerr.CodeSerializationError, "key derivation", err)
	}
	return key, nil
}

// sampleScalar draws a uniformly random field element from rng via
// rejection sampling against the field modulus: a single read that
// reduces modulo r without rejection would make small values more likely
// than large ones.
func sampleScalar(rng io.Reader) (fr.Element, error) {
	modulus := fr.Modulus()
	buf := make([]byte, fr.Bytes)
	for {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return fr.Element{}, err
		}
		v := new(big.Int).SetBytes(buf)
		if v.Cmp(modulus) < 0 {
			var e fr.Element
			e.SetBigInt(v)
			return e, nil
		}
	}
}

func sampleNonZeroScalar(rng io.Reader) (fr.Element, error) {
	for {
		e, err := sampleScalar(rng)
		if err != nil {
			return fr.Element{}, err
		}
		if !e.IsZero() {
			return e, nil
		}
	}
}

func zero(elems ...*fr.Element) {
	for _, e := range elems {
		e.SetZero()
	}
}
