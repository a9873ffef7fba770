// Package types holds the value model shared by every layer of the data
// access stack: the tagged Value union, the ordered Row container, the
// logical Kind enumeration, and the error taxonomy.
package types

import "fmt"

// Kind is the logical column type declared on a schema.Column. Physical
// storage is derived from Kind at migration time (see internal/schema).
type Kind int

const (
	KindGUID Kind = iota
	KindText
	KindInteger
	KindReal
	KindDate
	KindFileset
	KindHLC
)

func (k Kind) String() string {
	switch k {
	case KindGUID:
		return "guid"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindDate:
		return "date"
	case KindFileset:
		return "fileset"
	case KindHLC:
		return "hlc"
	default:
		return "unknown"
	}
}

// PhysicalType returns the native SQL column type used to store values of
// this logical Kind. guid/date/fileset/hlc are stored as TEXT; the rest map
// onto their native SQL affinity.
func (k Kind) PhysicalType() string {
	switch k {
	case KindGUID, KindDate, KindFileset, KindHLC:
		return "TEXT"
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// Value is a tagged sum type over {null, int, real, text, blob, date, guid,
// hlc, fileset}. Dates and HLC stamps are carried in their canonical string
// form (ISO-8601 / fixed-width HLC text) so that equality and ordering match
// the persisted representation.
type Value struct {
	kind Kind
	null bool
	i    int64
	r    float64
	s    string
	b    []byte
}

// Null reports whether the value represents SQL NULL.
func (v Value) Null() bool { return v.null }

// Kind returns the logical kind the value was tagged with.
func (v Value) Kind() Kind { return v.kind }

func NullValue(k Kind) Value               { return Value{kind: k, null: true} }
func IntValue(i int64) Value               { return Value{kind: KindInteger, i: i} }
func RealValue(r float64) Value            { return Value{kind: KindReal, r: r} }
func TextValue(s string) Value             { return Value{kind: KindText, s: s} }
func BlobValue(b []byte) Value             { return Value{kind: KindText, b: b} }
func GUIDValue(s string) Value             { return Value{kind: KindGUID, s: s} }
func DateValue(iso8601 string) Value       { return Value{kind: KindDate, s: iso8601} }
func HLCValue(fixedWidth string) Value     { return Value{kind: KindHLC, s: fixedWidth} }
func FilesetValue(identifier string) Value { return Value{kind: KindFileset, s: identifier} }

// Text returns the string form of the value regardless of kind; numeric
// kinds are formatted. Used by the value serializer when rendering SQL
// parameters and by typed record accessors.
func (v Value) Text() string {
	if v.null {
		return ""
	}
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%v", v.r)
	default:
		return v.s
	}
}

func (v Value) Int() int64     { return v.i }
func (v Value) Real() float64  { return v.r }
func (v Value) Bytes() []byte  { return v.b }

// Raw returns the value as a driver-friendly any, suitable for passing as a
// database/sql parameter.
func (v Value) Raw() any {
	if v.null {
		return nil
	}
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.r
	case KindText:
		if v.b != nil {
			return v.b
		}
		return v.s
	default:
		return v.s
	}
}

// Equal compares two values for equality of kind and payload.
func (v Value) Equal(o Value) bool {
	if v.null != o.null || v.kind != o.kind {
		return false
	}
	if v.null {
		return true
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindReal:
		return v.r == o.r
	default:
		return v.s == o.s
	}
}

// FromRaw converts a raw driver scan result (as returned by database/sql)
// into a Value of the given logical Kind.
func FromRaw(k Kind, raw any) Value {
	if raw == nil {
		return NullValue(k)
	}
	switch k {
	case KindInteger:
		switch n := raw.(type) {
		case int64:
			return IntValue(n)
		case int:
			return IntValue(int64(n))
		}
	case KindReal:
		switch n := raw.(type) {
		case float64:
			return RealValue(n)
		case int64:
			return RealValue(float64(n))
		}
	case KindText:
		switch n := raw.(type) {
		case []byte:
			return BlobValue(n)
		case string:
			return TextValue(n)
		}
	}
	switch n := raw.(type) {
	case string:
		return Value{kind: k, s: n}
	case []byte:
		return Value{kind: k, s: string(n)}
	case int64:
		return Value{kind: k, s: fmt.Sprintf("%d", n)}
	default:
		return Value{kind: k, s: fmt.Sprintf("%v", n)}
	}
}
