package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/2b33rs/codevision-backend/internal/allocation"
	"github.com/2b33rs/codevision-backend/internal/cmyk"
	"github.com/2b33rs/codevision-backend/internal/inventory"
	"github.com/2b33rs/codevision-backend/internal/order"
)

type CatalogStore interface {
	CreateStandardProduct(ctx context.Context, p *order.StandardProduct) error
	GetStandardProduct(ctx context.Context, id uuid.UUID) (*order.StandardProduct, error)
	ListStandardProducts(ctx context.Context, search string) ([]order.StandardProduct, error)
	UpdateStandardProduct(ctx context.Context, p *order.StandardProduct) error
	DeleteStandardProduct(ctx context.Context, id uuid.UUID) error
}

// ProductPatch holds the catalog fields to change. Nil fields are kept.
type ProductPatch struct {
	Name      *string
	Category  *order.ProductCategory
	Color     *string
	Size      *order.ShirtSize
	SubTypes  []string
	MinAmount *int
}

// ProductStock is a catalog product with its blank stock in the warehouse.
// RemainingStock is what is left above the minimum once production lands.
type ProductStock struct {
	order.StandardProduct
	CurrentStock   int `json:"current_stock"`
	RemainingStock int `json:"remaining_stock"`
}

type Catalog struct {
	store       CatalogStore
	stock       allocation.StockQuerier
	concurrency int
}

func NewCatalog(store CatalogStore, stock allocation.StockQuerier, concurrency int) *Catalog {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Catalog{store: store, stock: stock, concurrency: concurrency}
}

func validateProduct(p *order.StandardProduct) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidPosition)
	case p.Category != order.CategoryTShirt:
		return fmt.Errorf("%w: unknown product category %q", ErrInvalidPosition, p.Category)
	case p.MinAmount < 0:
		return fmt.Errorf("%w: min amount must not be negative", ErrInvalidPosition)
	}
	if p.Color != "" {
		if _, err := cmyk.Parse(p.Color); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) CreateProduct(ctx context.Context, p *order.StandardProduct) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return c.store.CreateStandardProduct(ctx, p)
}

// UpdateProduct applies patch to the live product with the given id.
func (c *Catalog) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*order.StandardProduct, error) {
	p, err := c.store.GetStandardProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	if patch.Size != nil {
		p.Size = *patch.Size
	}
	if patch.SubTypes != nil {
		p.SubTypes = patch.SubTypes
	}
	if patch.MinAmount != nil {
		p.MinAmount = *patch.MinAmount
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := c.store.UpdateStandardProduct(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Stringer("standard_product_id", p.ID).Msg("service: standard product updated")
	return p, nil
}

// DeleteProduct removes the product from the catalog. Orders already placed
// for it are unaffected.
func (c *Catalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := c.store.DeleteStandardProduct(ctx, id); err != nil {
		return err
	}
	log.Info().Stringer("standard_product_id", id).Msg("service: standard product deleted")
	return nil
}

func (c *Catalog) GetProduct(ctx context.Context, id uuid.UUID) (*ProductStock, error) {
	p, err := c.store.GetStandardProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	ps, err := c.withStock(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// ListProducts returns the products matching search, lowest remaining stock first.
func (c *Catalog) ListProducts(ctx context.Context, search string) ([]ProductStock, error) {
	products, err := c.store.ListStandardProducts(ctx, search)
	if err != nil {
		return nil, err
	}

	out := make([]ProductStock, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range products {
		g.Go(func() error {
			ps, err := c.withStock(gctx, p)
			if err != nil {
				return err
			}
			out[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RemainingStock < out[j].RemainingStock })
	return out, nil
}

func (c *Catalog) withStock(ctx context.Context, p order.StandardProduct) (ProductStock, error) {
	stock, err := c.stock.QueryStock(ctx, inventory.Signature{
		Category: string(p.Category),
		Size:     string(p.Size),
		Color:    p.Color,
		SubType:  p.PrimarySubType(),
	})
	if err != nil {
		return ProductStock{}, fmt.Errorf("service: stock of product %s: %w", p.ID, err)
	}
	return ProductStock{
		StandardProduct: p,
		CurrentStock:    stock.Count,
		RemainingStock:  stock.Count + p.AmountInProduction - p.MinAmount,
	}, nil
}
