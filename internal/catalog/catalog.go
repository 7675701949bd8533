// Package catalog supplies the product facts the pricing engine targets rules on.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product types as reported by the store front.
const (
	TypeSimple    = "simple"
	TypeVariable  = "variable"
	TypeVariation = "variation"
)

// Product is the read model of one catalog entry. Variations carry their parent's
// id; taxonomy ids belong to the product itself (variations usually have none).
type Product struct {
	ID           int64           `json:"id" yaml:"id"`
	ParentID     int64           `json:"parent_id,omitempty" yaml:"parent_id"`
	Type         string          `json:"type" yaml:"type"`
	CategoryIDs  []int64         `json:"category_ids,omitempty" yaml:"category_ids"`
	TagIDs       []int64         `json:"tag_ids,omitempty" yaml:"tag_ids"`
	Price        decimal.Decimal `json:"price" yaml:"-"`
	RegularPrice decimal.Decimal `json:"regular_price" yaml:"-"`
	OnSale       bool            `json:"on_sale" yaml:"on_sale"`
}

// IsVariation reports whether p has a parent product.
func (p *Product) IsVariation() bool {
	return p != nil && p.ParentID > 0
}

// Catalog loads products. GetProducts returns only the ids it found; missing ids
// are simply absent from the map.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)
}
