package pdf

import (
	"math"
	"sort"
	"strconv"
)

// Value is a PDF object value. The set of implementations is closed:
// Null, Bool, Number, Text, Name, Array, Dict, *Stream and Ref.
type Value interface {
	isValue()
}

// Null is the PDF null object.
type Null struct{}

// Bool is a PDF boolean.
type Bool bool

// Number is a PDF integer or real. Integers are stored exactly up to 2^53.
type Number float64

// Text is a PDF string. The bytes are kept as read; use DecodeTextString
// for text strings meant for humans.
type Text []byte

// Name is a PDF name without the leading slash.
type Name string

// Array is a PDF array.
type Array []Value

// Dict is a PDF dictionary.
type Dict map[Name]Value

// Ref is an indirect reference.
type Ref struct {
	Num int
	Gen int
}

func (Null) isValue()    {}
func (Bool) isValue()    {}
func (Number) isValue()  {}
func (Text) isValue()    {}
func (Name) isValue()    {}
func (Array) isValue()   {}
func (Dict) isValue()    {}
func (*Stream) isValue() {}
func (Ref) isValue()     {}

// ObjectID identifies an indirect object inside one Document.
type ObjectID struct {
	Num int
	Gen int
}

// String formats the id the way it appears in a PDF file.
func (id ObjectID) String() string {
	return strconv.Itoa(id.Num) + " " + strconv.Itoa(id.Gen)
}

// Ref returns a reference to the object.
func (id ObjectID) Ref() Ref { return Ref(id) }

// ID returns the object id the reference points to.
func (r Ref) ID() ObjectID { return ObjectID(r) }

// Object is one entry of a document's object table.
type Object struct {
	ID    ObjectID
	Value Value
}

// IsInteger reports whether the number has no fractional part.
func (n Number) IsInteger() bool {
	f := float64(n)
	return f == math.Trunc(f) && math.Abs(f) < 1<<53
}

// Int returns the number truncated to an int.
func (n Number) Int() int { return int(n) }

// Get returns the value stored under key, or Null when absent.
func (d Dict) Get(key Name) Value {
	if v, ok := d[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether key is present.
func (d Dict) Has(key Name) bool {
	_, ok := d[key]
	return ok
}

// Set stores v under key.
func (d Dict) Set(key Name, v Value) { d[key] = v }

// Delete removes key and reports whether it was present.
func (d Dict) Delete(key Name) bool {
	if _, ok := d[key]; !ok {
		return false
	}
	delete(d, key)
	return true
}

// Keys returns the keys in sorted order.
func (d Dict) Keys() []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// NameValue returns the name stored under key.
func (d Dict) NameValue(key Name) (Name, bool) {
	n, ok := d.Get(key).(Name)
	return n, ok
}

// IntValue returns the integer stored under key.
func (d Dict) IntValue(key Name) (int, bool) {
	n, ok := d.Get(key).(Number)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// DictOf returns the dictionary of a Dict or a Stream.
func DictOf(v Value) (Dict, bool) {
	switch t := v.(type) {
	case Dict:
		return t, true
	case *Stream:
		if t == nil {
			return nil, false
		}
		return t.Dict, true
	default:
		return nil, false
	}
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Rect builds an array of four numbers.
func Rect(llx, lly, urx, ury float64) Array {
	return Array{Number(llx), Number(lly), Number(urx), Number(ury)}
}

// LetterBox is the US-Letter page box used when a page declares none.
func LetterBox() Array { return Rect(0, 0, 612, 792) }
