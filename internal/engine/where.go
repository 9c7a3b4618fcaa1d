package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scrylang/scry/internal/query"
)

// attrFn looks up an attribute on the row under evaluation. The bool
// reports whether the attribute exists on that row at all.
type attrFn func(name string) (any, bool)

// collectAttrs gathers every attribute name referenced by an
// expression, for upfront validation against the scanned collection.
func collectAttrs(expr query.Expr, into map[string]bool) {
	switch e := expr.(type) {
	case *query.BinaryExpr:
		collectAttrs(e.Left, into)
		collectAttrs(e.Right, into)
	case *query.CompareExpr:
		into[e.Attr] = true
	case *query.LikeExpr:
		into[e.Attr] = true
	}
}

// evalExpr evaluates a WHERE expression against one row. A property
// missing on this particular row evaluates to no-match; attribute
// names unknown to the whole collection are rejected before the scan
// (see validateAttrs), so a typo is an ExecutionError rather than a
// silent empty result.
func evalExpr(expr query.Expr, attr attrFn) (bool, error) {
	switch e := expr.(type) {
	case *query.BinaryExpr:
		left, err := evalExpr(e.Left, attr)
		if err != nil {
			return false, err
		}
		// Short-circuit.
		if e.Op == query.OpAnd && !left {
			return false, nil
		}
		if e.Op == query.OpOr && left {
			return true, nil
		}
		return evalExpr(e.Right, attr)
	case *query.CompareExpr:
		val, ok := attr(e.Attr)
		if !ok {
			return false, nil
		}
		return compare(val, e.Op, e.Value)
	case *query.LikeExpr:
		val, ok := attr(e.Attr)
		if !ok {
			return false, nil
		}
		s, ok := val.(string)
		if !ok {
			return false, execErrorf("LIKE requires a string attribute, %s is %T", e.Attr, val)
		}
		return likeMatch(e.Pattern, s), nil
	default:
		return false, execErrorf("unsupported expression %T", expr)
	}
}

// compare applies a comparison operator between an attribute value and
// a literal, coercing numerics. Mismatched kinds are an execution
// error, not false.
func compare(val any, op query.CmpOp, lit query.Literal) (bool, error) {
	if num, ok := toFloat(val); ok && lit.IsNum {
		return cmpOrdered(num, lit.Num, op)
	}
	if s, ok := val.(string); ok && lit.IsStr {
		switch op {
		case query.CmpEq:
			return s == lit.Str, nil
		case query.CmpNe:
			return s != lit.Str, nil
		default:
			return cmpOrdered(s, lit.Str, op)
		}
	}
	if b, ok := val.(bool); ok && lit.IsBool {
		switch op {
		case query.CmpEq:
			return b == lit.Bool, nil
		case query.CmpNe:
			return b != lit.Bool, nil
		default:
			return false, execErrorf("operator %s not supported for booleans", op)
		}
	}
	return false, execErrorf("cannot compare %T with %s literal", val, litKind(lit))
}

func litKind(lit query.Literal) string {
	switch {
	case lit.IsNum:
		return "numeric"
	case lit.IsBool:
		return "boolean"
	default:
		return "string"
	}
}

func cmpOrdered[T float64 | string](a, b T, op query.CmpOp) (bool, error) {
	switch op {
	case query.CmpEq:
		return a == b, nil
	case query.CmpNe:
		return a != b, nil
	case query.CmpLt:
		return a < b, nil
	case query.CmpLe:
		return a <= b, nil
	case query.CmpGt:
		return a > b, nil
	case query.CmpGe:
		return a >= b, nil
	default:
		return false, execErrorf("unsupported operator %q", op)
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// likeMatch matches a SQL-style pattern (% = any run, _ = one rune)
// case-insensitively against s.
func likeMatch(pattern, s string) bool {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// sortValueLess orders two attribute values for ORDER BY: numbers
// before strings, missing values last.
func sortValueLess(a, b any) bool {
	na, aNum := toFloat(a)
	nb, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		return na < nb
	case aNum:
		return true
	case bNum:
		return false
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	switch {
	case aStr && bStr:
		return sa < sb
	case aStr:
		return true
	case bStr:
		return false
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
