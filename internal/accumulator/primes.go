package accumulator

import "math/big"

// smallPrimes holds the odd primes 3, 5, ..., 1621 (256 entries).
var smallPrimes = oddPrimes(DefaultSecLevel)

func oddPrimes(n int) []*big.Int {
	out := make([]*big.Int, 0, n)
	for c := int64(3); len(out) < n; c += 2 {
		prime := true
		for _, p := range out {
			pv := p.Int64()
			if pv*pv > c {
				break
			}
			if c%pv == 0 {
				prime = false
				break
			}
		}
		if prime {
			out = append(out, big.NewInt(c))
		}
	}
	return out
}
