package querylanguage

// Typed field helpers. They define predicate construction once per
// value kind, so entity packages can expose type-safe columns without
// generated per-field code:
//
//	var (
//	    Name = querylanguage.StringField("name")
//	    Age  = querylanguage.IntField("age")
//	)
//	expr := querylanguage.Source("users").
//	    Where(querylanguage.And(Name.Contains("a8"), Age.GTE(18)))

// StringField is a string-valued column with type-safe predicate
// methods.
type StringField string

// Name returns the field name.
func (f StringField) Name() string { return string(f) }

// X returns the field as an expression.
func (f StringField) X() *Field { return F(string(f)) }

// EQ returns a predicate that checks if the field equals the given value.
func (f StringField) EQ(v string) P { return FieldEQ(string(f), v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f StringField) NEQ(v string) P { return FieldNEQ(string(f), v) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f StringField) GT(v string) P { return FieldGT(string(f), v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f StringField) LT(v string) P { return FieldLT(string(f), v) }

// In returns a predicate that checks if the field value is in the given list.
func (f StringField) In(vs ...string) P {
	return FieldIn(string(f), anys(vs)...)
}

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f StringField) NotIn(vs ...string) P {
	return FieldNotIn(string(f), anys(vs)...)
}

// Contains returns a predicate that checks substring containment.
func (f StringField) Contains(v string) P { return FieldContains(string(f), v) }

// ContainsFold returns a case-insensitive containment predicate.
func (f StringField) ContainsFold(v string) P { return FieldContainsFold(string(f), v) }

// HasPrefix returns a prefix predicate on the field.
func (f StringField) HasPrefix(v string) P { return FieldHasPrefix(string(f), v) }

// HasSuffix returns a suffix predicate on the field.
func (f StringField) HasSuffix(v string) P { return FieldHasSuffix(string(f), v) }

// EqualFold returns a case-insensitive equality predicate.
func (f StringField) EqualFold(v string) P { return FieldEqualFold(string(f), v) }

// IntField is an integer-valued column with type-safe predicate
// methods.
type IntField string

// Name returns the field name.
func (f IntField) Name() string { return string(f) }

// X returns the field as an expression.
func (f IntField) X() *Field { return F(string(f)) }

// EQ returns a predicate that checks if the field equals the given value.
func (f IntField) EQ(v int) P { return FieldEQ(string(f), v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f IntField) NEQ(v int) P { return FieldNEQ(string(f), v) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f IntField) GT(v int) P { return FieldGT(string(f), v) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f IntField) GTE(v int) P { return FieldGTE(string(f), v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f IntField) LT(v int) P { return FieldLT(string(f), v) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f IntField) LTE(v int) P { return FieldLTE(string(f), v) }

// In returns a predicate that checks if the field value is in the given list.
func (f IntField) In(vs ...int) P {
	return FieldIn(string(f), anys(vs)...)
}

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f IntField) NotIn(vs ...int) P {
	return FieldNotIn(string(f), anys(vs)...)
}

// BoolField is a boolean-valued column with type-safe predicate
// methods.
type BoolField string

// Name returns the field name.
func (f BoolField) Name() string { return string(f) }

// X returns the field as an expression.
func (f BoolField) X() *Field { return F(string(f)) }

// EQ returns a predicate that checks if the field equals the given value.
func (f BoolField) EQ(v bool) P { return FieldEQ(string(f), v) }

// IsTrue returns a predicate that checks if the field is true.
func (f BoolField) IsTrue() P { return FieldEQ(string(f), true) }

// IsFalse returns a predicate that checks if the field is false.
func (f BoolField) IsFalse() P { return FieldEQ(string(f), false) }

func anys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
