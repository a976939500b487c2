package catalog

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository defines catalog reads.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	SearchClients(ctx context.Context, query string, limit int) ([]Client, error)
	ListMunicipalities(ctx context.Context) ([]Municipality, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx backed catalog repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// ListProducts returns active products ordered by description.
func (r *repository) ListProducts(ctx context.Context) ([]Product, error) {
	query := `
		SELECT id, code, description, sale_price::text
		FROM products
		WHERE is_active
		ORDER BY description
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var (
			p     Product
			price string
		)
		if err := row.Scan(&p.ID, &p.Code, &p.Description, &price); err != nil {
			return Product{}, err
		}
		parsed, err := decimal.NewFromString(price)
		if err != nil {
			return Product{}, err
		}
		p.SalePrice = parsed
		return p, nil
	})
}

// SearchClients matches name (case insensitive) or phone prefix.
func (r *repository) SearchClients(ctx context.Context, query string, limit int) ([]Client, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `
		SELECT c.id, c.name, c.phone, c.email, c.address, m.id, m.name
		FROM clients c
		LEFT JOIN municipalities m ON m.id = c.municipality_id
		WHERE lower(c.name) LIKE $1 OR c.phone LIKE $2
		ORDER BY c.name
		LIMIT $3
	`
	q := strings.ToLower(strings.TrimSpace(query))
	rows, err := r.pool.Query(ctx, sql, "%"+q+"%", q+"%", limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Client, error) {
		var (
			c        Client
			muniID   *int64
			muniName *string
		)
		if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &muniID, &muniName); err != nil {
			return Client{}, err
		}
		if muniID != nil {
			c.Municipality = &Municipality{ID: *muniID}
			if muniName != nil {
				c.Municipality.Name = *muniName
			}
		}
		return c, nil
	})
}

// ListMunicipalities returns every municipality ordered by name.
func (r *repository) ListMunicipalities(ctx context.Context) ([]Municipality, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM municipalities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Municipality])
}
