package console

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/distro/internal/catalog"
)

// Catalog is the product and municipality data preloaded at startup.
type Catalog struct {
	Products       []catalog.Product
	Municipalities []catalog.Municipality
	byID           map[int64]catalog.Product
}

// LoadCatalog fetches products and municipalities concurrently.
func LoadCatalog(ctx context.Context, gateway Gateway) (*Catalog, error) {
	var c Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := gateway.ListProducts(gctx)
		c.Products = products
		return err
	})
	g.Go(func() error {
		munis, err := gateway.ListMunicipalities(gctx)
		c.Municipalities = munis
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.byID = make(map[int64]catalog.Product, len(c.Products))
	for _, p := range c.Products {
		c.byID[p.ID] = p
	}
	return &c, nil
}

// Product looks a product up by id.
func (c *Catalog) Product(id int64) (catalog.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}
