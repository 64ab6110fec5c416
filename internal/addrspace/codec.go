package addrspace

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// storedValue is the tagged JSON form of a normalized value. The tag keeps
// integers and floats apart across a round trip.
type storedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Items []storedValue   `json:"items,omitempty"`
}

type storedAttribute struct {
	ID     uint32      `json:"id"`
	Status uint32      `json:"status"`
	Source *time.Time  `json:"source,omitempty"`
	Server *time.Time  `json:"server,omitempty"`
	Value  storedValue `json:"value"`
}

const (
	typeNull   = "null"
	typeBool   = "bool"
	typeInt    = "int"
	typeUint   = "uint"
	typeFloat  = "float"
	typeString = "string"
	typeTime   = "time"
	typeArray  = "array"
)

func encodeAttributes(attrs []Attribute) ([]byte, error) {
	stored := make([]storedAttribute, 0, len(attrs))
	for _, a := range attrs {
		v, err := encodeValue(a.Value.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", a.ID, err)
		}
		sa := storedAttribute{ID: uint32(a.ID), Status: uint32(a.Value.Status), Value: v}
		if ts := a.Value.SourceTimestamp; !ts.IsZero() {
			sa.Source = &ts
		}
		if ts := a.Value.ServerTimestamp; !ts.IsZero() {
			sa.Server = &ts
		}
		stored = append(stored, sa)
	}
	return json.Marshal(stored)
}

// decodeAttributes rejects unknown keys so a snapshot written by another
// tool fails loudly instead of silently losing data.
func decodeAttributes(data []byte) ([]Attribute, error) {
	var stored []storedAttribute
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	attrs := make([]Attribute, 0, len(stored))
	for _, sa := range stored {
		v, err := decodeValue(sa.Value)
		if err != nil {
			return nil, fmt.Errorf("decode attribute %d: %w", sa.ID, err)
		}
		a := Attribute{ID: AttributeID(sa.ID), Value: DataValue{Value: v, Status: StatusCode(sa.Status)}}
		if sa.Source != nil {
			a.Value.SourceTimestamp = *sa.Source
		}
		if sa.Server != nil {
			a.Value.ServerTimestamp = *sa.Server
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func encodeValue(v any) (storedValue, error) {
	var typ string
	switch x := v.(type) {
	case nil:
		return storedValue{Type: typeNull}, nil
	case []any:
		items := make([]storedValue, len(x))
		for i, item := range x {
			sv, err := encodeValue(item)
			if err != nil {
				return storedValue{}, err
			}
			items[i] = sv
		}
		return storedValue{Type: typeArray, Items: items}, nil
	case bool:
		typ = typeBool
	case int64:
		typ = typeInt
	case uint64:
		typ = typeUint
	case float64:
		typ = typeFloat
	case string:
		typ = typeString
	case time.Time:
		typ = typeTime
	default:
		return storedValue{}, fmt.Errorf("unsupported value type %T", v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return storedValue{}, err
	}
	return storedValue{Type: typ, Value: raw}, nil
}

func decodeValue(sv storedValue) (any, error) {
	switch sv.Type {
	case typeNull:
		return nil, nil
	case typeArray:
		out := make([]any, len(sv.Items))
		for i, item := range sv.Items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case typeBool:
		return unmarshalAs[bool](sv.Value)
	case typeInt:
		return unmarshalAs[int64](sv.Value)
	case typeUint:
		return unmarshalAs[uint64](sv.Value)
	case typeFloat:
		return unmarshalAs[float64](sv.Value)
	case typeString:
		return unmarshalAs[string](sv.Value)
	case typeTime:
		return unmarshalAs[time.Time](sv.Value)
	default:
		return nil, fmt.Errorf("unknown value type %q", sv.Type)
	}
}

func unmarshalAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
