package tool

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ShapeKind discriminates shape-tree nodes.
type ShapeKind string

const (
	KindPrimitive ShapeKind = "primitive"
	KindObject    ShapeKind = "object"
	KindArray     ShapeKind = "array"
)

// Field is one named member of an object shape. Field order is preserved
// from the first observation that introduced the field.
type Field struct {
	Name  string `json:"name"`
	Shape *Shape `json:"shape"`
}

// Shape is a structural description of a value: a primitive, an object of
// fields, or an array of items, with per-node optionality.
type Shape struct {
	Kind      ShapeKind `json:"kind"`
	Primitive ParamType `json:"primitive,omitempty"`
	Fields    []Field   `json:"fields,omitempty"`
	Item      *Shape    `json:"item,omitempty"`
	Optional  bool      `json:"optional,omitempty"`
}

// PrimitiveShape returns a primitive shape of the given type.
func PrimitiveShape(t ParamType) *Shape {
	return &Shape{Kind: KindPrimitive, Primitive: t}
}

// ObjectShape returns an object shape with the given fields, in order.
func ObjectShape(fields ...Field) *Shape {
	return &Shape{Kind: KindObject, Fields: fields}
}

// ArrayShape returns an array shape with the given item shape.
func ArrayShape(item *Shape) *Shape {
	return &Shape{Kind: KindArray, Item: item}
}

// ShapeOf derives the shape of a decoded JSON value.
func ShapeOf(v any) *Shape {
	switch val := v.(type) {
	case nil:
		return PrimitiveShape(TypeNull)
	case bool:
		return PrimitiveShape(TypeBoolean)
	case string:
		return PrimitiveShape(TypeString)
	case float64:
		// encoding/json decodes every number as float64
		if val == float64(int64(val)) {
			return PrimitiveShape(TypeInteger)
		}
		return PrimitiveShape(TypeNumber)
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return PrimitiveShape(TypeInteger)
		}
		return PrimitiveShape(TypeNumber)
	case map[string]any:
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]Field, 0, len(names))
		for _, name := range names {
			fields = append(fields, Field{Name: name, Shape: ShapeOf(val[name])})
		}
		return ObjectShape(fields...)
	case []any:
		var item *Shape
		for _, elem := range val {
			if item == nil {
				item = ShapeOf(elem)
			} else {
				item = MergeShapes(item, ShapeOf(elem))
			}
		}
		return ArrayShape(item)
	default:
		return PrimitiveShape(TypeUnknown)
	}
}

// ShapeOfJSON derives the shape of a JSON document.
func ShapeOfJSON(payload string) (*Shape, error) {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return ShapeOf(v), nil
}

// Clone returns a deep copy of s.
func (s *Shape) Clone() *Shape {
	if s == nil {
		return nil
	}
	out := &Shape{
		Kind:      s.Kind,
		Primitive: s.Primitive,
		Optional:  s.Optional,
		Item:      s.Item.Clone(),
	}
	if len(s.Fields) > 0 {
		out.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = Field{Name: f.Name, Shape: f.Shape.Clone()}
		}
	}
	return out
}

// Equal reports structural equality, including optionality.
func (s *Shape) Equal(other *Shape) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Kind != other.Kind || s.Primitive != other.Primitive || s.Optional != other.Optional {
		return false
	}
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range s.Fields {
		if f.Name != other.Fields[i].Name || !f.Shape.Equal(other.Fields[i].Shape) {
			return false
		}
	}
	if (s.Item == nil) != (other.Item == nil) {
		return false
	}
	if s.Item != nil && !s.Item.Equal(other.Item) {
		return false
	}
	return true
}

// Field returns the named field's shape of an object shape.
func (s *Shape) Field(name string) (*Shape, bool) {
	if s == nil || s.Kind != KindObject {
		return nil, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Shape, true
		}
	}
	return nil, false
}

// MergeShapes folds a newly observed shape into an existing one so the
// result covers every shape ever seen:
//
//   - primitive ⊔ primitive of the same type → that primitive
//   - primitive ⊔ primitive of a different type → primitive(unknown)
//   - object ⊔ object → field-set union; one-sided fields become optional;
//     common fields merge recursively
//   - array ⊔ array → array of the merged item shapes
//   - shape ⊔ absent → shape marked optional
//   - null merges into any shape as optionality
//
// Kind mismatches widen to primitive(unknown).
func MergeShapes(a, b *Shape) *Shape {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		out := b.Clone()
		out.Optional = true
		return out
	}
	if b == nil {
		out := a.Clone()
		out.Optional = true
		return out
	}

	optional := a.Optional || b.Optional

	// null is absence of a value, not a competing type
	if isNullShape(a) && isNullShape(b) {
		out := a.Clone()
		out.Optional = optional
		return out
	}
	if isNullShape(a) {
		out := b.Clone()
		out.Optional = true
		return out
	}
	if isNullShape(b) {
		out := a.Clone()
		out.Optional = true
		return out
	}

	if a.Kind != b.Kind {
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: optional}
	}

	switch a.Kind {
	case KindPrimitive:
		if a.Primitive == b.Primitive {
			return &Shape{Kind: KindPrimitive, Primitive: a.Primitive, Optional: optional}
		}
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: optional}

	case KindArray:
		return &Shape{Kind: KindArray, Item: MergeShapes(a.Item, b.Item), Optional: optional}

	case KindObject:
		merged := &Shape{Kind: KindObject, Optional: optional}
		inB := make(map[string]*Shape, len(b.Fields))
		for _, f := range b.Fields {
			inB[f.Name] = f.Shape
		}
		seen := make(map[string]bool, len(a.Fields))
		for _, f := range a.Fields {
			seen[f.Name] = true
			if bShape, ok := inB[f.Name]; ok {
				merged.Fields = append(merged.Fields, Field{Name: f.Name, Shape: MergeShapes(f.Shape, bShape)})
			} else {
				fs := f.Shape.Clone()
				fs.Optional = true
				merged.Fields = append(merged.Fields, Field{Name: f.Name, Shape: fs})
			}
		}
		for _, f := range b.Fields {
			if seen[f.Name] {
				continue
			}
			fs := f.Shape.Clone()
			fs.Optional = true
			merged.Fields = append(merged.Fields, Field{Name: f.Name, Shape: fs})
		}
		return merged

	default:
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: optional}
	}
}

func isNullShape(s *Shape) bool {
	return s.Kind == KindPrimitive && s.Primitive == TypeNull
}

// Covers reports whether s represents every value described by observed:
// all of observed's fields exist in s and their types are represented
// (possibly widened to unknown).
func (s *Shape) Covers(observed *Shape) bool {
	if observed == nil {
		return true
	}
	if s == nil {
		return false
	}
	if s.Kind == KindPrimitive && s.Primitive == TypeUnknown {
		return true
	}
	if s.Kind != observed.Kind {
		return false
	}
	switch observed.Kind {
	case KindPrimitive:
		return s.Primitive == observed.Primitive || s.Primitive == TypeUnknown
	case KindArray:
		return s.Item.Covers(observed.Item)
	case KindObject:
		for _, f := range observed.Fields {
			own, ok := s.Field(f.Name)
			if !ok || !own.Covers(f.Shape) {
				return false
			}
		}
		return true
	}
	return false
}
