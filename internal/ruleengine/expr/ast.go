package expr

import (
	"github.com/shopspring/decimal"
)

// Kind discriminates Node.
type Kind int

const (
	KindAnd Kind = iota + 1
	KindOr
	KindNot
	KindPredicate
)

// Field is the product fact a predicate tests.
type Field string

const (
	FieldProduct  Field = "product"
	FieldCategory Field = "category"
	FieldTag      Field = "tag"
	FieldType     Field = "type"
	FieldPrice    Field = "price"
	FieldOnSale   Field = "on_sale"
)

// Node is one vertex of a parsed expression. And/Or/Not use Children;
// predicates use Field with either ID, Text or Op+Number.
type Node struct {
	Kind     Kind
	Children []*Node

	Field  Field
	ID     int64
	Text   string
	Op     string
	Number decimal.Decimal

	// Pos is the rune offset of the node in the source expression.
	Pos int
}

// Facts is what an expression is evaluated against.
type Facts struct {
	ProductID   int64
	ParentID    int64
	Type        string
	CategoryIDs []int64
	TagIDs      []int64
	Price       decimal.Decimal
	OnSale      bool
}

// Visitor computes a T from a node. Implementations decide whether and in which
// order to descend into children, which is what lets evaluation short-circuit.
type Visitor[T any] interface {
	VisitAnd(n *Node) T
	VisitOr(n *Node) T
	VisitNot(n *Node) T
	VisitPredicate(n *Node) T
}

// Accept dispatches n to the matching Visit method.
func Accept[T any](n *Node, v Visitor[T]) T {
	switch n.Kind {
	case KindAnd:
		return v.VisitAnd(n)
	case KindOr:
		return v.VisitOr(n)
	case KindNot:
		return v.VisitNot(n)
	default:
		return v.VisitPredicate(n)
	}
}

// Walk calls fn for n and every descendant, depth first, until fn returns false.
func Walk(n *Node, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}
