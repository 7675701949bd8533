package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var _ Catalog = (*PostgresCatalog)(nil)

// Querier is the read side of *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresCatalog reads products and their taxonomy from the products and
// product_terms tables in one round trip per batch.
type PostgresCatalog struct {
	db Querier
}

func NewPostgresCatalog(db Querier) *PostgresCatalog {
	if db == nil {
		panic("catalog: database pool cannot be nil")
	}
	return &PostgresCatalog{db: db}
}

const productsSQL = `
	SELECT p.id, COALESCE(p.parent_id, 0), p.product_type,
	       p.price::text, p.regular_price::text, p.on_sale,
	       COALESCE(array_agg(t.term_id) FILTER (WHERE t.taxonomy = 'category'), '{}'),
	       COALESCE(array_agg(t.term_id) FILTER (WHERE t.taxonomy = 'tag'), '{}')
	FROM products p
	LEFT JOIN product_terms t ON t.product_id = p.id
	WHERE p.id = ANY($1)
	GROUP BY p.id
`

func (c *PostgresCatalog) GetProduct(ctx context.Context, id int64) (*Product, error) {
	products, err := c.GetProducts(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p, ok := products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (c *PostgresCatalog) GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	if len(ids) == 0 {
		return map[int64]*Product{}, nil
	}

	rows, err := c.db.Query(ctx, productsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Product, len(ids))
	for rows.Next() {
		var (
			p              Product
			price, regular string
		)
		if err := rows.Scan(&p.ID, &p.ParentID, &p.Type, &price, &regular, &p.OnSale, &p.CategoryIDs, &p.TagIDs); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %d price %q: %w", p.ID, price, err)
		}
		if p.RegularPrice, err = decimal.NewFromString(regular); err != nil {
			return nil, fmt.Errorf("product %d regular price %q: %w", p.ID, regular, err)
		}
		out[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
