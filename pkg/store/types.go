// Package store defines the record-store collaborator the loader scans:
// node and relationship records with stable identifiers, label and type
// tokens, and property chains resolved on demand.
package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// TokenID identifies a label or relationship type name.
type TokenID int32

// PropertyRef points at the head of a record's property chain.
type PropertyRef int64

// NoProperties marks a record without properties.
const NoProperties PropertyRef = -1

// NodeRecord is a node as stored. Records are owned by the store and must
// not be modified by scanners.
type NodeRecord struct {
	ID       uint64
	Labels   []TokenID
	NextProp PropertyRef
}

// HasLabel reports whether the record carries the label token.
func (r *NodeRecord) HasLabel(label TokenID) bool {
	for _, l := range r.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// RelationshipRecord is a relationship as stored.
type RelationshipRecord struct {
	ID       uint64
	Source   uint64
	Target   uint64
	Type     TokenID
	NextProp PropertyRef
}

// ValueType represents the type of a property value
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
)

// Value represents a typed property value
type Value struct {
	Type ValueType
	Data []byte
}

func StringValue(s string) Value {
	return Value{Type: TypeString, Data: []byte(s)}
}

func IntValue(i int64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(i))
	return Value{Type: TypeInt, Data: data}
}

func FloatValue(f float64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(f))
	return Value{Type: TypeFloat, Data: data}
}

func BoolValue(b bool) Value {
	data := []byte{0}
	if b {
		data[0] = 1
	}
	return Value{Type: TypeBool, Data: data}
}

// ValueOf converts a Go value into a Value. Supported kinds are strings,
// integers, floats and booleans.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return StringValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int32:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: integer %d overflows int64", ErrUnsupportedValueType, x)
		}
		return IntValue(int64(x)), nil
	case float32:
		return FloatValue(float64(x)), nil
	case float64:
		return FloatValue(x), nil
	case bool:
		return BoolValue(x), nil
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
}

func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("value is not a string")
	}
	return string(v.Data), nil
}

func (v Value) AsInt() (int64, error) {
	if v.Type != TypeInt || len(v.Data) != 8 {
		return 0, fmt.Errorf("value is not an int")
	}
	return int64(binary.LittleEndian.Uint64(v.Data)), nil
}

func (v Value) AsFloat() (float64, error) {
	if v.Type != TypeFloat || len(v.Data) != 8 {
		return 0, fmt.Errorf("value is not a float")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Data)), nil
}

func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool || len(v.Data) != 1 {
		return false, fmt.Errorf("value is not a bool")
	}
	return v.Data[0] == 1, nil
}

// Number returns the value as a float64. Ints and floats convert directly,
// numeric strings are parsed, everything else reports false.
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case TypeFloat:
		f, err := v.AsFloat()
		return f, err == nil
	case TypeInt:
		i, err := v.AsInt()
		return float64(i), err == nil
	case TypeString:
		f, err := strconv.ParseFloat(string(v.Data), 64)
		return f, err == nil
	}
	return 0, false
}

// Interface returns the value as a native Go value.
func (v Value) Interface() any {
	switch v.Type {
	case TypeString:
		return string(v.Data)
	case TypeInt:
		i, _ := v.AsInt()
		return i
	case TypeFloat:
		f, _ := v.AsFloat()
		return f
	case TypeBool:
		b, _ := v.AsBool()
		return b
	}
	return nil
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	switch v.Type {
	case TypeString:
		return strconv.Quote(string(v.Data))
	case TypeInt:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case TypeFloat:
		f, _ := v.AsFloat()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case TypeBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	}
	return fmt.Sprintf("Value(type=%d)", v.Type)
}
