package model

import "fmt"

// Gate identifies one of the seven sequential governance checkpoints an
// initiative passes through.
type Gate string

const (
	GateL0 Gate = "L0"
	GateL1 Gate = "L1"
	GateL2 Gate = "L2"
	GateL3 Gate = "L3"
	GateL4 Gate = "L4"
	GateL5 Gate = "L5"
	GateL6 Gate = "L6"
)

// Gates lists every gate in progression order.
var Gates = []Gate{GateL0, GateL1, GateL2, GateL3, GateL4, GateL5, GateL6}

// String returns the string representation of the gate.
func (g Gate) String() string {
	return string(g)
}

// IsValid checks whether the gate is one of L0..L6.
func (g Gate) IsValid() bool {
	return g.Index() >= 0
}

// Index returns the gate's position in Gates, or -1 for an unknown gate.
func (g Gate) Index() int {
	for i, known := range Gates {
		if g == known {
			return i
		}
	}
	return -1
}

// ParseGate returns the Gate named exactly s, one of L0 through L6.
func ParseGate(s string) (Gate, error) {
	g := Gate(s)
	if !g.IsValid() {
		return "", fmt.Errorf("invalid gate %q (must be L0-L6)", s)
	}
	return g, nil
}
