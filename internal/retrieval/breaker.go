package retrieval

// Breaker stops a source once the duplicate count exceeds
// max(Floor, floor(Percent * total items seen))
type Breaker struct {
	Enabled bool
	Floor   uint64
	Percent float64
}

// Threshold returns the duplicate count that must be exceeded to trip
func (b Breaker) Threshold(totalSeen uint64) uint64 {
	pct := uint64(float64(totalSeen) * b.Percent)
	if pct > b.Floor {
		return pct
	}
	return b.Floor
}

// Tripped reports whether duplicates exceed the threshold for totalSeen
func (b Breaker) Tripped(duplicates, totalSeen uint64) bool {
	return b.Enabled && duplicates > b.Threshold(totalSeen)
}
