// Package value implements the tagged Value union of §3 of the
// specification: Null, Bool, Int64, Float64, Decimal, String, Timestamp,
// Date, Time, Duration, Bytes, List, and Map, with structural equality and
// a defined ordering for comparable kinds.
package value

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindDecimal
	KindString
	KindTimestamp
	KindDate
	KindTime
	KindDuration
	KindBytes
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindFloat64:
		return "Float64"
	case KindDecimal:
		return "Decimal"
	case KindString:
		return "String"
	case KindTimestamp:
		return "Timestamp"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	case KindDuration:
		return "Duration"
	case KindBytes:
		return "Bytes"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// Value is an immutable tagged union. Zero value is Null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	dec   decimal.Decimal
	s     string
	t     time.Time
	dur   time.Duration
	bytes []byte
	list  []Value
	m     map[string]Value
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int64(i int64) Value        { return Value{kind: KindInt64, i: i} }
func Float64(f float64) Value    { return Value{kind: KindFloat64, f: f} }
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

// Date stores a calendar date as a Time with zero clock fields, tagged
// distinctly so formatting and comparisons treat it as date-only.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Time stores a time-of-day as a Time with a zero calendar date.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

func Duration(d time.Duration) Value { return Value{kind: KindDuration, dur: d} }
func Bytes(b []byte) Value           { return Value{kind: KindBytes, bytes: b} }

func List(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt64() (int64, bool)     { return v.i, v.kind == KindInt64 }
func (v Value) AsFloat64() (float64, bool) { return v.f, v.kind == KindFloat64 }
func (v Value) AsDecimal() (decimal.Decimal, bool) {
	return v.dec, v.kind == KindDecimal
}
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTimestamp || v.kind == KindDate || v.kind == KindTime
}
func (v Value) AsDuration() (time.Duration, bool) { return v.dur, v.kind == KindDuration }
func (v Value) AsBytes() ([]byte, bool)           { return v.bytes, v.kind == KindBytes }
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	cp := make(map[string]Value, len(v.m))
	for k, val := range v.m {
		cp[k] = val
	}
	return cp, true
}

// Truthy implements §4.7's truthiness rule used by rule conditions.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt64:
		return v.i != 0
	case KindFloat64:
		return v.f != 0
	case KindDecimal:
		return !v.dec.IsZero()
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.m) > 0
	default:
		return true
	}
}

// Equal implements structural equality, comparing numeric kinds by
// mathematical value as required by §4.1.
func Equal(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == b.kind
	}
	if isNumeric(a.kind) && isNumeric(b.kind) {
		ad, bd := toDecimal(a), toDecimal(b)
		return ad.Equal(bd)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindTimestamp, KindDate, KindTime:
		return a.t.Equal(b.t)
	case KindDuration:
		return a.dur == b.dur
	case KindBytes:
		return bytes.Equal(a.bytes, b.bytes)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isNumeric(k Kind) bool {
	return k == KindInt64 || k == KindFloat64 || k == KindDecimal
}

func toDecimal(v Value) decimal.Decimal {
	switch v.kind {
	case KindInt64:
		return decimal.NewFromInt(v.i)
	case KindFloat64:
		return decimal.NewFromFloat(v.f)
	case KindDecimal:
		return v.dec
	default:
		return decimal.Zero
	}
}

// Compare orders two Values per §3: numerics, timestamps/dates/times, and
// strings are ordered; other kinds return ok=false.
func Compare(a, b Value) (int, bool) {
	if isNumeric(a.kind) && isNumeric(b.kind) {
		ad, bd := toDecimal(a), toDecimal(b)
		return ad.Cmp(bd), true
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString:
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	case KindTimestamp, KindDate, KindTime:
		switch {
		case a.t.Before(b.t):
			return -1, true
		case a.t.After(b.t):
			return 1, true
		default:
			return 0, true
		}
	case KindDuration:
		switch {
		case a.dur < b.dur:
			return -1, true
		case a.dur > b.dur:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Format renders a Value using the canonical template-interpolation rule of
// §4.1: decimals preserve trailing zeros by scale, dates/timestamps use
// ISO-8601, and null renders as the empty string.
func Format(v Value) string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f)
	case KindDecimal:
		if exp := v.dec.Exponent(); exp < 0 {
			return v.dec.StringFixed(-exp)
		}
		return v.dec.String()
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t.UTC().Format(time.RFC3339)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindTime:
		return v.t.Format("15:04:05")
	case KindDuration:
		return v.dur.String()
	case KindBytes:
		return fmt.Sprintf("%x", v.bytes)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = Format(item)
		}
		return "[" + joinStrings(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + Format(v.m[k])
		}
		return "{" + joinStrings(parts, ", ") + "}"
	default:
		return ""
	}
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// FromAny converts a loosely-typed Go value (as produced by YAML/JSON
// decoding) into a Value. Used at the boundary when ingesting input
// records and driver results.
func FromAny(a any) Value {
	switch x := a.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int:
		return Int64(int64(x))
	case int64:
		return Int64(x)
	case float64:
		return Float64(x)
	case decimal.Decimal:
		return Decimal(x)
	case string:
		return String(x)
	case time.Time:
		return Timestamp(x)
	case time.Duration:
		return Duration(x)
	case []byte:
		return Bytes(x)
	case []any:
		items := make([]Value, len(x))
		for i, it := range x {
			items[i] = FromAny(it)
		}
		return List(items)
	case []Value:
		return List(x)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, v := range x {
			m[k] = FromAny(v)
		}
		return Map(m)
	case map[any]any:
		m := make(map[string]Value, len(x))
		for k, v := range x {
			m[fmt.Sprintf("%v", k)] = FromAny(v)
		}
		return Map(m)
	case Value:
		return x
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// ToAny converts a Value back into a loosely-typed Go value, the inverse
// of FromAny, used when handing data to external collaborators (audit
// sinks, driver params).
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindDecimal:
		return v.dec
	case KindString:
		return v.s
	case KindTimestamp, KindDate, KindTime:
		return v.t
	case KindDuration:
		return v.dur
	case KindBytes:
		return v.bytes
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = ToAny(it)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, it := range v.m {
			out[k] = ToAny(it)
		}
		return out
	default:
		return nil
	}
}
