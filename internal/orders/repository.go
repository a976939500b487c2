package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/platform/db"
)

// Repository defines order persistence.
type Repository interface {
	// Read operations
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, error)
	SearchDrafts(ctx context.Context, req DraftSearchRequest) ([]Order, error)
	GetClient(ctx context.Context, id int64) (*ClientSnapshot, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	LockStatus(ctx context.Context, id int64) (pipeline.Status, error)
	CreateOrder(ctx context.Context, o Order) (int64, error)
	UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status pipeline.Status, updates map[string]interface{}) error
	ReplaceItems(ctx context.Context, orderID int64, items []Item) error
	ListItems(ctx context.Context, orderID int64) ([]Item, error)
	PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	InsertStatusChange(ctx context.Context, c StatusChange) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx backed order repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `
	o.id, o.client_id, o.client_name, o.client_phone, o.municipality_snapshot,
	o.status, o.notes, o.delivery_address, o.delivery_date, o.latitude, o.longitude,
	o.payment_confirmed, o.delivered_at, o.delivery_latitude, o.delivery_longitude,
	o.created_by, o.created_at, o.updated_at,
	COALESCE((SELECT SUM(p.amount) FROM order_payments p WHERE p.order_id = o.id), 0)::text
`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o    Order
		paid string
	)
	err := row.Scan(
		&o.ID, &o.ClientID, &o.ClientName, &o.ClientPhone, &o.MunicipalitySnapshot,
		&o.Status, &o.Notes, &o.DeliveryAddress, &o.DeliveryDate, &o.Latitude, &o.Longitude,
		&o.PaymentConfirmed, &o.DeliveredAt, &o.DeliveryLatitude, &o.DeliveryLongitude,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &paid,
	)
	if err != nil {
		return Order{}, err
	}
	o.Paid, err = decimal.NewFromString(paid)
	return o, err
}

// GetByID retrieves an order with its items.
func (r *repository) GetByID(ctx context.Context, id int64) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.itemsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	o.ComputeTotals()
	return &o, nil
}

// List returns orders matching the filters, newest first.
func (r *repository) List(ctx context.Context, req ListRequest) ([]Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(req.Statuses) > 0 {
		statuses := make([]string, 0, len(req.Statuses))
		for _, s := range req.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("o.status = ANY($%d)", len(args)))
	}
	if req.Since != nil {
		args = append(args, *req.Since)
		where = append(where, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders o`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id DESC"
	if req.Limit > 0 {
		args = append(args, req.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.collect(ctx, query, args...)
}

// SearchDrafts finds quotations whose client name contains name or whose
// phone starts with phone.
func (r *repository) SearchDrafts(ctx context.Context, req DraftSearchRequest) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.status = $1`
	args := []interface{}{string(pipeline.StatusQuotation)}
	if req.Phone != "" {
		args = append(args, req.Phone+"%")
		query += fmt.Sprintf(" AND o.client_phone LIKE $%d", len(args))
	} else {
		args = append(args, "%"+strings.ToLower(req.Name)+"%")
		query += fmt.Sprintf(" AND lower(o.client_name) LIKE $%d", len(args))
	}
	query += " ORDER BY o.updated_at DESC LIMIT 20"
	return r.collect(ctx, query, args...)
}

func (r *repository) collect(ctx context.Context, query string, args ...interface{}) ([]Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		orders[i].ComputeTotals()
	}
	return orders, nil
}

func (r *repository) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.pool.Query(ctx, itemsQuery+` WHERE order_id = ANY($1) ORDER BY order_id, line_order, id`, orderIDs)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]Item, len(orderIDs))
	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}

const itemsQuery = `
	SELECT id, order_id, product_id, description, quantity,
	       sale_price::text, discount_percent::text, line_order
	FROM order_items`

func scanItem(row pgx.CollectableRow) (Item, error) {
	var (
		it              Item
		price, discount string
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Description, &it.Quantity, &price, &discount, &it.LineOrder); err != nil {
		return Item{}, err
	}
	var err error
	if it.SalePrice, err = decimal.NewFromString(price); err != nil {
		return Item{}, err
	}
	if it.DiscountPercent, err = decimal.NewFromString(discount); err != nil {
		return Item{}, err
	}
	it.Subtotal = it.LineTotal()
	return it, nil
}

// GetClient loads the client fields snapshotted into orders.
func (r *repository) GetClient(ctx context.Context, id int64) (*ClientSnapshot, error) {
	query := `
		SELECT c.id, c.name, c.phone, m.name
		FROM clients c
		LEFT JOIN municipalities m ON m.id = c.municipality_id
		WHERE c.id = $1
	`
	var c ClientSnapshot
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Municipality)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetProducts loads current prices for the given products.
func (r *repository) GetProducts(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, description, sale_price::text FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductSnapshot, error) {
		var (
			p     ProductSnapshot
			price string
		)
		if err := row.Scan(&p.ID, &p.Description, &price); err != nil {
			return ProductSnapshot{}, err
		}
		parsed, err := decimal.NewFromString(price)
		p.SalePrice = parsed
		return p, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]ProductSnapshot, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// LockStatus reads the current status while holding a row lock.
func (t *txRepository) LockStatus(ctx context.Context, id int64) (pipeline.Status, error) {
	var status pipeline.Status
	err := t.tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return status, err
}

// CreateOrder inserts the order header.
func (t *txRepository) CreateOrder(ctx context.Context, o Order) (int64, error) {
	query := `
		INSERT INTO orders (client_id, client_name, client_phone, municipality_snapshot,
		                    status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		o.ClientID, o.ClientName, o.ClientPhone, o.MunicipalitySnapshot,
		string(o.Status), o.Notes, o.CreatedBy,
	).Scan(&id)
	return id, err
}

// UpdateOrder updates header fields.
func (t *txRepository) UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	var (
		setClauses []string
		args       []interface{}
	)
	for field, value := range updates {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	args = append(args, time.Now())
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), len(args))
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets status along with additional fields.
func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status pipeline.Status, updates map[string]interface{}) error {
	if updates == nil {
		updates = make(map[string]interface{})
	}
	updates["status"] = string(status)
	return t.UpdateOrder(ctx, id, updates)
}

// ReplaceItems swaps the full item list of an order.
func (t *txRepository) ReplaceItems(ctx context.Context, orderID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, description, quantity,
			                         sale_price, discount_percent, line_order)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)`,
			orderID, it.ProductID, it.Description, it.Quantity,
			it.SalePrice.String(), it.DiscountPercent.String(), i,
		)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

// ListItems returns the lines of an order inside the transaction.
func (t *txRepository) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := t.tx.Query(ctx, itemsQuery+` WHERE order_id = $1 ORDER BY line_order, id`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanItem)
}

// PaidTotal sums the recorded payments of an order.
func (t *txRepository) PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var raw string
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM order_payments WHERE order_id = $1`, orderID).Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// InsertPayment stores a partial payment.
func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_payments (order_id, amount, method, reference, created_by)
		VALUES ($1, $2::numeric, $3, $4, $5)
		RETURNING id`,
		p.OrderID, p.Amount.String(), string(p.Method), p.Reference, p.CreatedBy,
	).Scan(&id)
	return id, err
}

// InsertStatusChange appends to the status history.
func (t *txRepository) InsertStatusChange(ctx context.Context, c StatusChange) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor_id, latitude, longitude, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.OrderID, string(c.From), string(c.To), c.ActorID, c.Latitude, c.Longitude, c.ChangedAt,
	)
	return err
}
