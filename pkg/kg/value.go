package kg

// ValueKind enumerates the kinds a Value can take in object position.
type ValueKind string

const (
	ValueRef    ValueKind = "ref"
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueBool   ValueKind = "bool"
	ValueDate   ValueKind = "date"
)

// Value is a typed term in object position: either a reference to an
// entity or a scalar literal. The lexical form is kept verbatim so that
// amounts like "9500.00" survive round-trips unchanged.
type Value struct {
	Kind ValueKind `json:"kind"`
	Text string    `json:"text"`
}

// Ref references an entity by id.
func Ref(id string) Value {
	return Value{Kind: ValueRef, Text: id}
}

// String builds a string literal.
func String(text string) Value {
	return Value{Kind: ValueString, Text: text}
}

// Number builds a numeric literal from its lexical form.
func Number(lexical string) Value {
	return Value{Kind: ValueNumber, Text: lexical}
}

// Bool builds a boolean literal.
func Bool(v bool) Value {
	if v {
		return Value{Kind: ValueBool, Text: "true"}
	}
	return Value{Kind: ValueBool, Text: "false"}
}

// Date builds a date literal from an ISO 8601 day, e.g. "2024-05-10".
func Date(day string) Value {
	return Value{Kind: ValueDate, Text: day}
}

// String returns the plain lexical form.
func (v Value) String() string {
	return v.Text
}

// IsRef reports whether the value references an entity.
func (v Value) IsRef() bool {
	return v.Kind == ValueRef
}

func (v Value) valid() bool {
	switch v.Kind {
	case ValueString:
		return true
	case ValueRef, ValueNumber, ValueBool, ValueDate:
		return v.Text != ""
	}
	return false
}
