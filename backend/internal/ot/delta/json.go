package delta

import (
	"encoding/json"
	"fmt"
)

// Wire form, Quill style: a delta is an array of one-key objects
// {"retain": n} / {"insert": "text"} / {"delete": n}, each optionally
// carrying "attributes". Empty attribute maps are never emitted. Decoding is
// strict on op shape (unknown keys rejected) and tolerant on the attribute
// vocabulary (unknown keys pass through).

type opJSON struct {
	Retain     *int       `json:"retain,omitempty"`
	Insert     *string    `json:"insert,omitempty"`
	Delete     *int       `json:"delete,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

func (o Op) MarshalJSON() ([]byte, error) {
	var out opJSON
	if !o.Attrs.IsEmpty() {
		out.Attributes = o.Attrs
	}
	switch o.Kind {
	case KindRetain:
		out.Retain = &o.N
	case KindInsert:
		out.Insert = &o.Text
	case KindDelete:
		out.Delete = &o.N
	default:
		return nil, fmt.Errorf("marshal op: unknown kind %q", o.Kind)
	}
	return json.Marshal(out)
}

func (o *Op) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var attrs Attributes
	if rawAttrs, ok := raw["attributes"]; ok {
		if err := json.Unmarshal(rawAttrs, &attrs); err != nil {
			return fmt.Errorf("unmarshal op attributes: %w", err)
		}
		delete(raw, "attributes")
	}
	if len(raw) != 1 {
		return fmt.Errorf("unmarshal op: expected exactly one of retain/insert/delete, got %d keys", len(raw))
	}
	for key, val := range raw {
		switch key {
		case "retain":
			var n int
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("unmarshal retain: %w", err)
			}
			*o = Op{Kind: KindRetain, N: n, Attrs: attrs}
		case "insert":
			var s string
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("unmarshal insert: %w", err)
			}
			*o = Op{Kind: KindInsert, Text: s, Attrs: attrs}
		case "delete":
			var n int
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("unmarshal delete: %w", err)
			}
			if attrs != nil {
				return fmt.Errorf("unmarshal delete: %w", ErrAttributeMisuse)
			}
			*o = Op{Kind: KindDelete, N: n}
		default:
			return fmt.Errorf("unmarshal op: unknown key %q", key)
		}
	}
	return nil
}

func (d Delta) MarshalJSON() ([]byte, error) {
	if len(d.ops) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(d.ops)
}

func (d *Delta) UnmarshalJSON(data []byte) error {
	var ops []Op
	if err := json.Unmarshal(data, &ops); err != nil {
		return err
	}
	*d = FromOps(ops)
	return nil
}

// Encode serializes the delta for persistence and the wire.
func (d Delta) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Decode parses serialized delta data and recomputes its lengths.
func Decode(data []byte) (Delta, error) {
	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return Delta{}, fmt.Errorf("decode delta: %w", err)
	}
	return d, nil
}
