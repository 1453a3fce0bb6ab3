package descriptor

// Kind is the closed classification of a value slot's marshalling strategy.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindArray
	KindList
	KindFunction
	KindAsyncResult
	KindObject
	KindJSON
)

var kindNames = [...]string{
	KindVoid:        "Void",
	KindBool:        "Bool",
	KindByte:        "Byte",
	KindShort:       "Short",
	KindInt:         "Int",
	KindLong:        "Long",
	KindFloat:       "Float",
	KindDouble:      "Double",
	KindString:      "String",
	KindArray:       "Array",
	KindList:        "List",
	KindFunction:    "Function",
	KindAsyncResult: "AsyncResult",
	KindObject:      "Object",
	KindJSON:        "JSON",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsNumeric reports whether k is an integer or floating point kind.
func (k Kind) IsNumeric() bool {
	return k >= KindByte && k <= KindDouble
}

// IsCompound reports whether k carries an element descriptor.
func (k Kind) IsCompound() bool {
	switch k {
	case KindArray, KindList, KindFunction, KindAsyncResult:
		return true
	default:
		return false
	}
}
