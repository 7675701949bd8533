package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var _ Catalog = (*MemoryCatalog)(nil)

// MemoryCatalog is an in-process Catalog for tests and local fixtures.
// It can be told to fail batch loads to reproduce an unavailable catalog.
type MemoryCatalog struct {
	mu        sync.RWMutex
	products  map[int64]*Product
	batchErr  error
	batchCall int
}

func NewMemoryCatalog(products ...*Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[int64]*Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p *Product) {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
}

// FailBatches makes every later GetProducts call return err (nil restores normal behaviour).
func (c *MemoryCatalog) FailBatches(err error) {
	c.mu.Lock()
	c.batchErr = err
	c.mu.Unlock()
}

// BatchCalls reports how many times GetProducts ran.
func (c *MemoryCatalog) BatchCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batchCall
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id int64) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (c *MemoryCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]*Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchCall++
	if c.batchErr != nil {
		return nil, c.batchErr
	}
	out := make(map[int64]*Product, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// yamlProduct carries prices as strings so decimals survive YAML's float parsing.
type yamlProduct struct {
	Product      `yaml:",inline"`
	Price        string `yaml:"price"`
	RegularPrice string `yaml:"regular_price"`
}

// LoadMemoryCatalog reads a YAML fixture of the form {products: [...]}.
func LoadMemoryCatalog(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc struct {
		Products []yamlProduct `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	c := NewMemoryCatalog()
	for _, yp := range doc.Products {
		p := yp.Product
		if p.Type == "" {
			p.Type = TypeSimple
		}
		if p.Price, err = parsePrice(yp.Price); err != nil {
			return nil, fmt.Errorf("product %d price: %w", p.ID, err)
		}
		if p.RegularPrice, err = parsePrice(yp.RegularPrice); err != nil {
			return nil, fmt.Errorf("product %d regular_price: %w", p.ID, err)
		}
		if p.RegularPrice.IsZero() {
			p.RegularPrice = p.Price
		}
		c.Put(&p)
	}
	return c, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
