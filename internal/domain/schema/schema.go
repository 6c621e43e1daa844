// Package schema converts tool parameter type descriptors into
// JSON-Schema-shaped mappings for discovery.
package schema

// Kind identifies the shape of a type descriptor.
type Kind int

// Supported descriptor kinds.
const (
	KindAny Kind = iota
	KindString
	KindInteger
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindUnion
)

// Type is a small tagged-union descriptor declared by each tool parameter.
// It replaces runtime annotation introspection with an explicit structure;
// the normalization rules applied in JSON() are the authoritative contract.
type Type struct {
	kind Kind
	elem *Type
	alts []*Type
}

// AnyType returns a descriptor for an unconstrained value.
func AnyType() *Type { return &Type{kind: KindAny} }

// StringType returns a string descriptor.
func StringType() *Type { return &Type{kind: KindString} }

// IntType returns an integer descriptor.
func IntType() *Type { return &Type{kind: KindInteger} }

// NumberType returns a floating point number descriptor.
func NumberType() *Type { return &Type{kind: KindNumber} }

// BoolType returns a boolean descriptor.
func BoolType() *Type { return &Type{kind: KindBoolean} }

// ArrayOf returns an array descriptor. A nil element descriptor means the
// element type is unknown; JSON() substitutes a permissive items schema.
func ArrayOf(elem *Type) *Type { return &Type{kind: KindArray, elem: elem} }

// ObjectType returns a descriptor for a mapping with unspecified keys.
func ObjectType() *Type { return &Type{kind: KindObject} }

// UnionOf returns a descriptor matching any of the given alternatives.
func UnionOf(alts ...*Type) *Type { return &Type{kind: KindUnion, alts: alts} }

// Optional marks a descriptor as optional. Optionality never changes the
// emitted schema; it is conveyed only by the parameter's absence from the
// required list, so Optional simply returns the inner descriptor.
func Optional(t *Type) *Type {
	if t == nil {
		return AnyType()
	}
	return t
}

// Kind returns the descriptor kind.
func (t *Type) Kind() Kind {
	if t == nil {
		return KindAny
	}
	return t.kind
}

// JSON renders the descriptor as a normalized JSON-Schema-shaped mapping.
// Unresolvable descriptors degrade to an empty mapping rather than failing,
// so tool registration never breaks on a bad declaration.
func (t *Type) JSON() map[string]interface{} {
	if t == nil {
		return map[string]interface{}{}
	}

	switch t.kind {
	case KindString:
		return map[string]interface{}{"type": "string"}
	case KindInteger:
		return map[string]interface{}{"type": "integer"}
	case KindNumber:
		return map[string]interface{}{"type": "number"}
	case KindBoolean:
		return map[string]interface{}{"type": "boolean"}
	case KindArray:
		return map[string]interface{}{
			"type":  "array",
			"items": itemsSchema(t.elem),
		}
	case KindObject:
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	case KindUnion:
		return unionSchema(t.alts)
	default:
		return map[string]interface{}{}
	}
}

// itemsSchema never returns an empty mapping: downstream validators reject
// array schemas without an items body.
func itemsSchema(elem *Type) map[string]interface{} {
	if elem != nil {
		if s := elem.JSON(); len(s) > 0 {
			return s
		}
	}
	return permissiveItems()
}

// permissiveItems enumerates every scalar plus object and null. Array is
// deliberately absent so the fallback never nests an untyped array.
func permissiveItems() map[string]interface{} {
	kinds := []string{"boolean", "integer", "number", "string", "object", "null"}
	anyOf := make([]interface{}, 0, len(kinds))
	for _, kind := range kinds {
		anyOf = append(anyOf, map[string]interface{}{"type": kind})
	}
	return map[string]interface{}{"anyOf": anyOf}
}

func unionSchema(alts []*Type) map[string]interface{} {
	schemas := make([]interface{}, 0, len(alts))
	for _, alt := range alts {
		if alt == nil {
			continue
		}
		if s := alt.JSON(); len(s) > 0 {
			schemas = append(schemas, s)
		}
	}

	switch len(schemas) {
	case 0:
		return map[string]interface{}{}
	case 1:
		return schemas[0].(map[string]interface{})
	default:
		return map[string]interface{}{"anyOf": schemas}
	}
}
