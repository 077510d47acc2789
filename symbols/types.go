package symbols

// Type is the inferred classification of a Symbol.
type Type int

const (
	// TypeUnknown is the pending type of a symbol created without evidence.
	TypeUnknown Type = iota
	TypeGenericData
	TypeTextData
	TypeRodata
	TypeBss
	TypeString
	TypeFloat32
	TypeFloat64
	// TypeLabel is an interior branch target of a function.
	TypeLabel
	TypeFunction
)

var typeNames = [...]string{
	TypeUnknown:     "unknown",
	TypeGenericData: "data",
	TypeTextData:    "text-data",
	TypeRodata:      "rodata",
	TypeBss:         "bss",
	TypeString:      "string",
	TypeFloat32:     "float",
	TypeFloat64:     "double",
	TypeLabel:       "label",
	TypeFunction:    "func",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return typeNames[TypeUnknown]
	}
	return typeNames[t]
}

// ParseType accepts the names produced by String plus a few common aliases.
func ParseType(s string) (Type, bool) {
	switch s {
	case "function", "fn":
		return TypeFunction, true
	case "asciz", "str":
		return TypeString, true
	case "f32":
		return TypeFloat32, true
	case "f64":
		return TypeFloat64, true
	}
	for t, name := range typeNames {
		if name == s {
			return Type(t), true
		}
	}
	return TypeUnknown, false
}

// IsCode reports Function and Label.
func (t Type) IsCode() bool {
	return t == TypeFunction || t == TypeLabel
}

// IsData reports every classified non-code type.
func (t Type) IsData() bool {
	return t != TypeUnknown && !t.IsCode()
}

// rank orders data evidence: guesses < section-derived types < content-proven types.
func (t Type) rank() int {
	switch t {
	case TypeGenericData:
		return 1
	case TypeTextData, TypeRodata, TypeBss:
		return 2
	case TypeString, TypeFloat32, TypeFloat64:
		return 3
	}
	return 0
}

// Merge combines the current type of a symbol with new evidence. The result
// is total and deterministic:
//
//   - unknown on either side yields the other side
//   - control flow evidence wins over data: Function beats Label, code beats data
//   - among data types the higher ranked one wins
//
// conflict is set when evidence is rejected or overrides a content-proven type.
func Merge(cur, ev Type) (merged Type, conflict bool) {
	switch {
	case ev == TypeUnknown || cur == ev:
		return cur, false
	case cur == TypeUnknown:
		return ev, false
	case cur.IsCode() && ev.IsCode():
		return TypeFunction, false
	case cur.IsCode():
		// pointers into code are expected; content guesses are not
		return cur, ev.rank() == 3
	case ev.IsCode():
		return ev, cur.rank() == 3
	case ev.rank() > cur.rank():
		return ev, false
	case ev.rank() == cur.rank():
		return cur, true
	default:
		return cur, false
	}
}
