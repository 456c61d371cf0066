// Package domain defines the core request/response model, the provider SPI,
// and the error taxonomy shared by every backend the engine dispatches to.
package domain

// OptionValue is a closed tagged union over the provider-specific knobs
// carried in ProviderRequest.Options and the opaque values in Metadata.
// The core never inspects these; only providers interpret keys. A tagged
// union (instead of bare interface{}) keeps the boundary explicit about
// what a value can be.
type OptionValue struct {
	kind   optionKind
	str    string
	num    float64
	boolv  bool
	mapv   map[string]OptionValue
}

type optionKind int

const (
	optionKindString optionKind = iota
	optionKindNumber
	optionKindBool
	optionKindMap
)

func StringValue(s string) OptionValue { return OptionValue{kind: optionKindString, str: s} }
func NumberValue(f float64) OptionValue { return OptionValue{kind: optionKindNumber, num: f} }
func BoolValue(b bool) OptionValue     { return OptionValue{kind: optionKindBool, boolv: b} }
func MapValue(m map[string]OptionValue) OptionValue {
	return OptionValue{kind: optionKindMap, mapv: m}
}

// IsString, IsNumber, IsBool, IsMap report the OptionValue's dynamic kind.
func (v OptionValue) IsString() bool { return v.kind == optionKindString }
func (v OptionValue) IsNumber() bool { return v.kind == optionKindNumber }
func (v OptionValue) IsBool() bool   { return v.kind == optionKindBool }
func (v OptionValue) IsMap() bool    { return v.kind == optionKindMap }

// String, Number, Bool, Map return the underlying value and whether the
// kind matched. Callers that don't check the kind get the zero value.
func (v OptionValue) String() (string, bool) { return v.str, v.kind == optionKindString }
func (v OptionValue) Number() (float64, bool) { return v.num, v.kind == optionKindNumber }
func (v OptionValue) Bool() (bool, bool)       { return v.boolv, v.kind == optionKindBool }
func (v OptionValue) Map() (map[string]OptionValue, bool) {
	return v.mapv, v.kind == optionKindMap
}

// Raw returns the underlying Go value for JSON marshalling and debugging.
func (v OptionValue) Raw() any {
	switch v.kind {
	case optionKindString:
		return v.str
	case optionKindNumber:
		return v.num
	case optionKindBool:
		return v.boolv
	case optionKindMap:
		raw := make(map[string]any, len(v.mapv))
		for k, val := range v.mapv {
			raw[k] = val.Raw()
		}
		return raw
	default:
		return nil
	}
}

// MarshalJSON renders the underlying value directly, not the tagged wrapper.
func (v OptionValue) MarshalJSON() ([]byte, error) {
	return jsonMarshal(v.Raw())
}
