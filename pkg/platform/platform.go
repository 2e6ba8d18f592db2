// Package platform defines the closed set of chat surfaces the bridge links
// and the node identities used as binding and log keys.
package platform

import "strings"

// Platform is one of the three chat surfaces the bridge connects.
type Platform uint8

const (
	// QQ is a QQ group reached over the OneBot v11 protocol.
	QQ Platform = iota + 1
	// Yunhu is a Yunhu group reached over the Yunhu bot API.
	Yunhu
	// Minecraft is a Minecraft server reached over the server hook socket.
	Minecraft
)

// All lists every platform kind in stable order.
var All = []Platform{QQ, Yunhu, Minecraft}

// String returns the wire tag used in log keys and API payloads.
func (p Platform) String() string {
	switch p {
	case QQ:
		return "QQ"
	case Yunhu:
		return "YH"
	case Minecraft:
		return "MC"
	default:
		return "??"
	}
}

// Valid reports whether p is a known platform kind.
func (p Platform) Valid() bool {
	switch p {
	case QQ, Yunhu, Minecraft:
		return true
	default:
		return false
	}
}

// Others returns the two platform kinds that are not p, in stable order.
func (p Platform) Others() []Platform {
	others := make([]Platform, 0, 2)
	for _, o := range All {
		if o != p {
			others = append(others, o)
		}
	}
	return others
}

// Parse maps a wire tag to a Platform. Tags are case-insensitive.
func Parse(s string) (Platform, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QQ":
		return QQ, true
	case "YH", "YUNHU":
		return Yunhu, true
	case "MC", "MINECRAFT":
		return Minecraft, true
	default:
		return 0, false
	}
}

// Node identifies one group or server on a specific platform.
type Node struct {
	Platform Platform
	ID       string
}

// NewNode builds a Node.
func NewNode(p Platform, id string) Node {
	return Node{Platform: p, ID: id}
}

// String renders the node as "<platform>:<id>".
func (n Node) String() string {
	return n.Platform.String() + ":" + n.ID
}

// PairKey returns the log key for the ordered pair (a, b):
// "<platformA>:<idA>:<platformB>:<idB>". The layout is a compatibility
// contract shared with the persisted logs; do not change it.
func PairKey(a, b Node) string {
	return a.String() + ":" + b.String()
}

// LocalKey returns the self-pair key holding a node's canonical log.
func LocalKey(n Node) string {
	return PairKey(n, n)
}

// InboundPattern matches every pair key whose destination side is n,
// regardless of origin.
func InboundPattern(n Node) string {
	return "*:*:" + n.String()
}
