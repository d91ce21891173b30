package graph

import (
	"fmt"
	"strings"
)

// Direction selects which adjacency backs traversal of a loaded graph.
type Direction uint8

const (
	// Outgoing stores each relationship under its source node.
	Outgoing Direction = iota
	// Incoming stores each relationship under its target node.
	Incoming
	// Both stores each relationship under both endpoints.
	Both
)

// DirectionNames lists the accepted spellings, in Direction order.
var DirectionNames = []string{"OUTGOING", "INCOMING", "BOTH"}

// String returns the canonical name of the direction.
func (d Direction) String() string {
	if int(d) < len(DirectionNames) {
		return DirectionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", d)
}

// ParseDirection parses a direction name, ignoring case. "UNDIRECTED" is
// accepted as an alias of BOTH.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "OUTGOING", "NATURAL":
		return Outgoing, nil
	case "INCOMING", "REVERSE":
		return Incoming, nil
	case "BOTH", "UNDIRECTED":
		return Both, nil
	}
	return Outgoing, fmt.Errorf("unknown direction %q", s)
}

// UnmarshalText lets directions be decoded from YAML and JSON strings.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText encodes the canonical name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
