package expr

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func ctxFrom(root map[string]any) *evalctx.Context {
	m := make(map[string]value.Value, len(root))
	for k, v := range root {
		m[k] = value.FromAny(v)
	}
	return evalctx.New(m)
}

func evalStr(t *testing.T, src string, root map[string]any) value.Value {
	t.Helper()
	prog, err := Compile(src)
	require.NoError(t, err)
	v, err := prog.Eval(ctxFrom(root))
	require.NoError(t, err)
	return v
}

func TestLiteralsAndArithmetic(t *testing.T) {
	v := evalStr(t, "1 + 2 * 3", nil)
	i, ok := v.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(7), i)
}

func TestBareIdentifierRootAccess(t *testing.T) {
	v := evalStr(t, "currency", map[string]any{"currency": "USD"})
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "USD", s)
}

func TestSafeNavigationOnMissingPath(t *testing.T) {
	v := evalStr(t, "trade?.otcTrade?.otcLeg", map[string]any{"trade": map[string]any{}})
	assert.True(t, v.IsNull())
}

func TestUnsafeMissingPathFails(t *testing.T) {
	prog, err := Compile("trade.otcTrade")
	require.NoError(t, err)
	_, err = prog.Eval(ctxFrom(map[string]any{"trade": map[string]any{}}))
	require.Error(t, err)
}

func TestDynamicIndexWithSafeNavigation(t *testing.T) {
	root := map[string]any{
		"trade": map[string]any{
			"selectedLegIndex": int64(1),
			"otcTrade": map[string]any{
				"otcLeg": []any{
					map[string]any{"stbRuleName": "RULE_A"},
					map[string]any{"stbRuleName": "RULE_B"},
					map[string]any{"stbRuleName": "RULE_C"},
				},
			},
		},
	}
	v := evalStr(t, "trade?.otcTrade?.otcLeg?.size() > trade.selectedLegIndex && trade.otcTrade.otcLeg[trade.selectedLegIndex]?.stbRuleName != null", root)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestDynamicIndexOutOfRangeViaSize(t *testing.T) {
	root := map[string]any{
		"trade": map[string]any{
			"selectedLegIndex": int64(5),
			"otcTrade": map[string]any{
				"otcLeg": []any{
					map[string]any{"stbRuleName": "RULE_A"},
				},
			},
		},
	}
	v := evalStr(t, "trade?.otcTrade?.otcLeg?.size() > trade.selectedLegIndex && trade.otcTrade.otcLeg[trade.selectedLegIndex]?.stbRuleName != null", root)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.False(t, b)
}

func TestTernaryAndElvis(t *testing.T) {
	v := evalStr(t, "1 == 1 ? 'yes' : 'no'", nil)
	s, _ := v.AsString()
	assert.Equal(t, "yes", s)

	v2 := evalStr(t, "null ?: 'fallback'", nil)
	s2, _ := v2.AsString()
	assert.Equal(t, "fallback", s2)
}

func TestCollectionProjectionSelectionFirstLast(t *testing.T) {
	root := map[string]any{"nums": []any{int64(1), int64(2), int64(3), int64(4)}}
	doubled := evalStr(t, "nums.![#this * 2]", root)
	l, _ := doubled.AsList()
	require.Len(t, l, 4)
	i, _ := l[0].AsInt64()
	assert.Equal(t, int64(2), i)

	evens := evalStr(t, "nums.?[#this % 2 == 0]", root)
	el, _ := evens.AsList()
	assert.Len(t, el, 2)

	first := evalStr(t, "nums.^[#this > 2]", root)
	fi, _ := first.AsInt64()
	assert.Equal(t, int64(3), fi)

	last := evalStr(t, "nums.$[#this < 4]", root)
	li, _ := last.AsInt64()
	assert.Equal(t, int64(3), li)
}

func TestCollectionOperatorBareIdentifierResolvesAgainstElement(t *testing.T) {
	root := map[string]any{
		"orders": []any{
			map[string]any{"status": "OPEN", "amount": int64(10)},
			map[string]any{"status": "CLOSED", "amount": int64(20)},
			map[string]any{"status": "OPEN", "amount": int64(30)},
		},
	}

	open := evalStr(t, "orders.?[status == 'OPEN']", root)
	l, ok := open.AsList()
	require.True(t, ok)
	require.Len(t, l, 2)
	m0, ok := l[0].AsMap()
	require.True(t, ok)
	amt, _ := m0["amount"].AsInt64()
	assert.Equal(t, int64(10), amt)

	amounts := evalStr(t, "orders.![amount]", root)
	al, ok := amounts.AsList()
	require.True(t, ok)
	require.Len(t, al, 3)
	a0, _ := al[0].AsInt64()
	assert.Equal(t, int64(10), a0)

	firstClosed := evalStr(t, "orders.^[status == 'CLOSED']", root)
	fm, ok := firstClosed.AsMap()
	require.True(t, ok)
	famt, _ := fm["amount"].AsInt64()
	assert.Equal(t, int64(20), famt)
}

func TestCollectionOperatorBareIdentifierNestedScopesToInnermostElement(t *testing.T) {
	root := map[string]any{
		"groups": []any{
			map[string]any{
				"items": []any{
					map[string]any{"price": int64(50)},
					map[string]any{"price": int64(150)},
				},
			},
		},
	}
	v := evalStr(t, "groups.![items.?[price > 100]]", root)
	groups, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, groups, 1)
	filtered, ok := groups[0].AsList()
	require.True(t, ok)
	require.Len(t, filtered, 1)
	m, ok := filtered[0].AsMap()
	require.True(t, ok)
	price, _ := m["price"].AsInt64()
	assert.Equal(t, int64(150), price)
}

func TestWhitelistedFunctions(t *testing.T) {
	v := evalStr(t, "size('hello')", nil)
	i, _ := v.AsInt64()
	assert.Equal(t, int64(5), i)

	v2 := evalStr(t, "contains(nums, 2)", map[string]any{"nums": []any{int64(1), int64(2)}})
	b, _ := v2.AsBool()
	assert.True(t, b)

	v3 := evalStr(t, "coalesce(null, null, 'x')", nil)
	s, _ := v3.AsString()
	assert.Equal(t, "x", s)
}

func TestUnknownFunctionFails(t *testing.T) {
	prog, err := Compile("frobnicate(1)")
	require.NoError(t, err)
	_, err = prog.Eval(ctxFrom(nil))
	require.Error(t, err)
}

func TestDecimalNeverImplicitlyCoercesWithFloat(t *testing.T) {
	prog, err := Compile("#d + #f")
	require.NoError(t, err)
	ctx := evalctx.New(nil)
	ctx.SetVariable("d", value.Decimal(decimal.RequireFromString("1.50")))
	ctx.SetVariable("f", value.Float64(1.5))
	_, err = prog.Eval(ctx)
	require.Error(t, err)
}

func TestVariableVsRootPrecedence(t *testing.T) {
	ctx := evalctx.New(map[string]value.Value{"name": value.String("root-value")})
	ctx.SetVariable("name", value.String("var-value"))

	progVar, err := Compile("#name")
	require.NoError(t, err)
	v, err := progVar.Eval(ctx)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "var-value", s)

	progRoot, err := Compile("name")
	require.NoError(t, err)
	v2, err := progRoot.Eval(ctx)
	require.NoError(t, err)
	s2, _ := v2.AsString()
	assert.Equal(t, "root-value", s2)
}

func TestTemplateRendering(t *testing.T) {
	tmpl, err := CompileTemplate("Currency {{currency}} ({{currencyName}}) is active")
	require.NoError(t, err)
	ctx := ctxFrom(map[string]any{"currency": "USD", "currencyName": "US Dollar"})
	out, degraded := tmpl.Render(ctx)
	assert.False(t, degraded)
	assert.Equal(t, "Currency USD (US Dollar) is active", out)
}

func TestTemplateDegradesOnError(t *testing.T) {
	tmpl, err := CompileTemplate("Value: {{missing.path}}")
	require.NoError(t, err)
	out, degraded := tmpl.Render(ctxFrom(nil))
	assert.True(t, degraded)
	assert.Equal(t, "Value: {{missing.path}}", out)
}
