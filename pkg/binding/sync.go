package binding

// Direction is the resolved forwarding behavior of one edge, derived from
// the two independently stored flags and never persisted.
type Direction int

const (
	// Disabled means neither side forwards.
	Disabled Direction = iota
	// Bidirectional means both sides forward.
	Bidirectional
	// AToB means only the A side forwards (the peer does not forward back).
	AToB
	// BToA means only the B side forwards.
	BToA
)

func (d Direction) String() string {
	switch d {
	case Bidirectional:
		return "bidirectional"
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return "disabled"
	}
}

// EffectiveDirection combines A's own flag with the peer's mirrored flag.
// It must be recomputed on every read; callers must not cache it.
func EffectiveDirection(ownSync, peerSync bool) Direction {
	switch {
	case ownSync && peerSync:
		return Bidirectional
	case ownSync:
		return AToB
	case peerSync:
		return BToA
	default:
		return Disabled
	}
}

// ForwardsFrom reports whether a message originating on the A side crosses
// the edge under direction d.
func (d Direction) ForwardsFrom() bool {
	return d == Bidirectional || d == AToB
}
