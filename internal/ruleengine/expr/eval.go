package expr

import (
	"strconv"
	"strings"
)

// Eval reports whether facts satisfy the expression.
func (e *Expression) Eval(facts Facts) bool {
	return Accept[bool](e.root, evaluator{facts: facts})
}

// evaluator stops descending as soon as an AND sees false or an OR sees true.
type evaluator struct {
	facts Facts
}

func (v evaluator) VisitAnd(n *Node) bool {
	for _, c := range n.Children {
		if !Accept[bool](c, v) {
			return false
		}
	}
	return true
}

func (v evaluator) VisitOr(n *Node) bool {
	for _, c := range n.Children {
		if Accept[bool](c, v) {
			return true
		}
	}
	return false
}

func (v evaluator) VisitNot(n *Node) bool {
	return !Accept[bool](n.Children[0], v)
}

func (v evaluator) VisitPredicate(n *Node) bool {
	f := v.facts
	switch n.Field {
	case FieldProduct:
		return f.ProductID == n.ID || (f.ParentID > 0 && f.ParentID == n.ID)
	case FieldCategory:
		return containsID(f.CategoryIDs, n.ID)
	case FieldTag:
		return containsID(f.TagIDs, n.ID)
	case FieldType:
		return strings.EqualFold(f.Type, n.Text)
	case FieldOnSale:
		return f.OnSale
	case FieldPrice:
		c := f.Price.Cmp(n.Number)
		switch n.Op {
		case "=":
			return c == 0
		case "!=":
			return c != 0
		case "<":
			return c < 0
		case "<=":
			return c <= 0
		case ">":
			return c > 0
		case ">=":
			return c >= 0
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// printer renders a canonical, fully parenthesised form.
type printer struct{}

func (p printer) join(n *Node, sep string) string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = Accept[string](c, p)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (p printer) VisitAnd(n *Node) string { return p.join(n, " AND ") }
func (p printer) VisitOr(n *Node) string  { return p.join(n, " OR ") }
func (p printer) VisitNot(n *Node) string { return "NOT " + Accept[string](n.Children[0], p) }

func (p printer) VisitPredicate(n *Node) string {
	switch n.Field {
	case FieldOnSale:
		return string(FieldOnSale)
	case FieldPrice:
		return "price " + n.Op + " " + n.Number.String()
	case FieldType:
		return "type:" + n.Text
	default:
		return string(n.Field) + ":" + strconv.FormatInt(n.ID, 10)
	}
}
