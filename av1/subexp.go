package av1

// The finite subexponential codes of Section 4.10 are read both from
// the uncompressed header (global motion parameters) and from tile
// payloads (restoration filter taps), so they are written against the
// smallest surface both readers share.
type literalSource interface {
	ReadBit() uint32
	ReadLiteral(n int) uint32
}

// readQuniform reads a value in [0, n) using the quasi-uniform code
// ns(n) of Section 4.10.7.
func readQuniform(r literalSource, n uint32) uint32 {
	if n <= 1 {
		return 0
	}
	l := log2u(n-1) + 1
	m := uint32(1)<<uint(l) - n
	v := r.ReadLiteral(l - 1)
	if v < m {
		return v
	}
	return v<<1 - m + r.ReadBit()
}

// readSubexpFin reads a value in [0, n) with subexponential parameter
// k. Section 4.10.8.
func readSubexpFin(r literalSource, n, k uint32) uint32 {
	i := uint32(0)
	mk := uint32(0)
	for {
		b := k
		if i > 0 {
			b = k + i - 1
		}
		a := uint32(1) << uint(b)
		if n <= mk+3*a {
			return readQuniform(r, n-mk) + mk
		}
		if r.ReadBit() == 0 {
			return r.ReadLiteral(int(b)) + mk
		}
		i++
		mk += a
	}
}

// inverseRecenter maps the recentered value v back around the
// reference r. Section 4.10.9.
func inverseRecenter(r, v uint32) uint32 {
	if v > 2*r {
		return v
	}
	if v&1 != 0 {
		return r - (v+1)>>1
	}
	return r + v>>1
}

// readSubexpFinRef reads a recentered subexponential value in [0, n)
// relative to ref.
func readSubexpFinRef(src literalSource, n, k, ref uint32) uint32 {
	v := readSubexpFin(src, n, k)
	if ref<<1 <= n {
		return inverseRecenter(ref, v)
	}
	return n - 1 - inverseRecenter(n-1-ref, v)
}

// readSignedSubexpFinRef reads a recentered subexponential value in
// [low, high) relative to ref, all signed.
func readSignedSubexpFinRef(src literalSource, low, high, k, ref int32) int32 {
	x := readSubexpFinRef(src, uint32(high-low), uint32(k), uint32(ref-low))
	return int32(x) + low
}
