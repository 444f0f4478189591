package expr

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Clock backs now()/today(); defaults to the wall clock and may be
// swapped for deterministic tests (see §6.3's Clock collaborator).
var Clock clock.Clock = clock.Default

type function func(args []value.Value) (value.Value, error)

var registry map[string]function

func init() {
	registry = map[string]function{
		"now":         fnNow,
		"today":       fnToday,
		"size":        fnSize,
		"contains":    fnContains,
		"startsWith":  fnStartsWith,
		"endsWith":    fnEndsWith,
		"matches":     fnMatches,
		"toUpper":     fnToUpper,
		"toLower":     fnToLower,
		"trim":        fnTrim,
		"format":      fnFormat,
		"parseDate":   fnParseDate,
		"if":          fnIf,
		"coalesce":    fnCoalesce,
		"sum":         fnSum,
		"avg":         fnAvg,
		"min":         fnMin,
		"max":         fnMax,
		"count":       fnCount,
	}
}

func lookupFunction(name string) (function, bool) {
	fn, ok := registry[name]
	return fn, ok
}

func arity(name string, args []value.Value, n int) error {
	if len(args) != n {
		return apexerr.New(apexerr.KindArityError, name, "expects exactly "+strconv.Itoa(n)+" argument(s)")
	}
	return nil
}

func fnNow(args []value.Value) (value.Value, error) {
	if err := arity("now", args, 0); err != nil {
		return value.Value{}, err
	}
	return value.Timestamp(Clock.Now()), nil
}

func fnToday(args []value.Value) (value.Value, error) {
	if err := arity("today", args, 0); err != nil {
		return value.Value{}, err
	}
	now := Clock.Now()
	return value.Date(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())), nil
}

func fnSize(args []value.Value) (value.Value, error) {
	if err := arity("size", args, 1); err != nil {
		return value.Value{}, err
	}
	v := args[0]
	if v.IsNull() {
		return value.Null(), nil
	}
	if l, ok := v.AsList(); ok {
		return value.Int64(int64(len(l))), nil
	}
	if m, ok := v.AsMap(); ok {
		return value.Int64(int64(len(m))), nil
	}
	if s, ok := v.AsString(); ok {
		return value.Int64(int64(len(s))), nil
	}
	return value.Value{}, apexerr.New(apexerr.KindFunctionError, "size", "requires a string, list, or map")
}

func fnContains(args []value.Value) (value.Value, error) {
	if err := arity("contains", args, 2); err != nil {
		return value.Value{}, err
	}
	coll, needle := args[0], args[1]
	if s, ok := coll.AsString(); ok {
		n, ok := needle.AsString()
		if !ok {
			return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "contains", "needle must be a string")
		}
		return value.Bool(strings.Contains(s, n)), nil
	}
	if l, ok := coll.AsList(); ok {
		for _, item := range l {
			if value.Equal(item, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "contains", "requires a string or list")
}

func fnStartsWith(args []value.Value) (value.Value, error) {
	if err := arity("startsWith", args, 2); err != nil {
		return value.Value{}, err
	}
	s, _ := args[0].AsString()
	p, _ := args[1].AsString()
	return value.Bool(strings.HasPrefix(s, p)), nil
}

func fnEndsWith(args []value.Value) (value.Value, error) {
	if err := arity("endsWith", args, 2); err != nil {
		return value.Value{}, err
	}
	s, _ := args[0].AsString()
	p, _ := args[1].AsString()
	return value.Bool(strings.HasSuffix(s, p)), nil
}

func fnMatches(args []value.Value) (value.Value, error) {
	if err := arity("matches", args, 2); err != nil {
		return value.Value{}, err
	}
	s, _ := args[0].AsString()
	pattern, _ := args[1].AsString()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.Value{}, apexerr.Wrap(apexerr.KindFunctionError, "matches", "invalid pattern", err)
	}
	return value.Bool(re.MatchString(s)), nil
}

func fnToUpper(args []value.Value) (value.Value, error) {
	if err := arity("toUpper", args, 1); err != nil {
		return value.Value{}, err
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "toUpper", "requires a string")
	}
	return value.String(strings.ToUpper(s)), nil
}

func fnToLower(args []value.Value) (value.Value, error) {
	if err := arity("toLower", args, 1); err != nil {
		return value.Value{}, err
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "toLower", "requires a string")
	}
	return value.String(strings.ToLower(s)), nil
}

func fnTrim(args []value.Value) (value.Value, error) {
	if err := arity("trim", args, 1); err != nil {
		return value.Value{}, err
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "trim", "requires a string")
	}
	return value.String(strings.TrimSpace(s)), nil
}

// fnFormat renders a number with a Java-DecimalFormat-style pattern
// reduced to the subset APEX needs: the number of characters after '.'
// sets the exact number of fraction digits (the value is rounded and
// zero-padded to that scale); with no '.', it renders with none.
func fnFormat(args []value.Value) (value.Value, error) {
	if err := arity("format", args, 2); err != nil {
		return value.Value{}, err
	}
	pattern, ok := args[1].AsString()
	if !ok {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "format", "pattern must be a string")
	}
	scale := 0
	if i := strings.IndexByte(pattern, '.'); i >= 0 {
		scale = len(pattern) - i - 1
	}
	var d decimal.Decimal
	switch args[0].Kind() {
	case value.KindInt64:
		i, _ := args[0].AsInt64()
		d = decimal.NewFromInt(i)
	case value.KindFloat64:
		f, _ := args[0].AsFloat64()
		d = decimal.NewFromFloat(f)
	case value.KindDecimal:
		d, _ = args[0].AsDecimal()
	default:
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "format", "requires a numeric value")
	}
	return value.String(d.StringFixed(int32(scale))), nil
}

func fnParseDate(args []value.Value) (value.Value, error) {
	if err := arity("parseDate", args, 2); err != nil {
		return value.Value{}, err
	}
	s, ok1 := args[0].AsString()
	pattern, ok2 := args[1].AsString()
	if !ok1 || !ok2 {
		return value.Value{}, apexerr.New(apexerr.KindTypeMismatch, "parseDate", "requires two strings")
	}
	layout := javaToGoLayout(pattern)
	t, err := time.Parse(layout, s)
	if err != nil {
		return value.Value{}, apexerr.Wrap(apexerr.KindFunctionError, "parseDate", "cannot parse "+s, err)
	}
	return value.Date(t), nil
}

func javaToGoLayout(pattern string) string {
	r := strings.NewReplacer(
		"yyyy", "2006", "MM", "01", "dd", "02",
		"HH", "15", "mm", "04", "ss", "05",
	)
	return r.Replace(pattern)
}

func fnIf(args []value.Value) (value.Value, error) {
	if err := arity("if", args, 3); err != nil {
		return value.Value{}, err
	}
	if args[0].Truthy() {
		return args[1], nil
	}
	return args[2], nil
}

func fnCoalesce(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null(), nil
}

func numericList(name string, args []value.Value) ([]value.Value, error) {
	if err := arity(name, args, 1); err != nil {
		return nil, err
	}
	l, ok := args[0].AsList()
	if !ok {
		return nil, apexerr.New(apexerr.KindTypeMismatch, name, "requires a list")
	}
	return l, nil
}

func fnSum(args []value.Value) (value.Value, error) {
	l, err := numericList("sum", args)
	if err != nil {
		return value.Value{}, err
	}
	acc := value.Int64(0)
	for _, v := range l {
		acc, err = value.Add("sum", acc, v)
		if err != nil {
			return value.Value{}, err
		}
	}
	return acc, nil
}

func fnAvg(args []value.Value) (value.Value, error) {
	l, err := numericList("avg", args)
	if err != nil {
		return value.Value{}, err
	}
	if len(l) == 0 {
		return value.Null(), nil
	}
	sum, err := fnSum(args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Div("avg", sum, value.Int64(int64(len(l))))
}

func fnMin(args []value.Value) (value.Value, error) {
	l, err := numericList("min", args)
	if err != nil {
		return value.Value{}, err
	}
	if len(l) == 0 {
		return value.Null(), nil
	}
	best := l[0]
	for _, v := range l[1:] {
		c, ok := value.Compare(v, best)
		if ok && c < 0 {
			best = v
		}
	}
	return best, nil
}

func fnMax(args []value.Value) (value.Value, error) {
	l, err := numericList("max", args)
	if err != nil {
		return value.Value{}, err
	}
	if len(l) == 0 {
		return value.Null(), nil
	}
	best := l[0]
	for _, v := range l[1:] {
		c, ok := value.Compare(v, best)
		if ok && c > 0 {
			best = v
		}
	}
	return best, nil
}

func fnCount(args []value.Value) (value.Value, error) {
	l, err := numericList("count", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Int64(int64(len(l))), nil
}
