package console

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/catalog"
	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/pricing"
)

// CartItem is one line of the draft. SalePrice and Description are
// snapshots taken when the product was added.
type CartItem struct {
	ID              *int64
	ProductID       int64
	Description     string
	Quantity        int
	SalePrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// LineTotal returns the derived final price of the line.
func (i CartItem) LineTotal() decimal.Decimal {
	return pricing.LineTotal(i.SalePrice, i.DiscountPercent, i.Quantity)
}

// ClientRef is the client snapshot held by a draft.
type ClientRef struct {
	ID           int64
	Name         string
	Phone        string
	Municipality string
}

// Draft is the order under edit in the console.
type Draft struct {
	OrderID              *int64
	Client               *ClientRef
	Items                []CartItem
	Status               pipeline.Status
	CreatedAt            time.Time
	DeliveryDate         *time.Time
	Notes                string
	MunicipalitySnapshot string

	dirty    bool
	readOnly bool
	// mayEdit reports whether the current operator may change the draft.
	mayEdit func() bool
}

// NewDraft starts an empty quotation.
func NewDraft(now time.Time) *Draft {
	return &Draft{Status: pipeline.StatusQuotation, CreatedAt: now}
}

// Editable reports whether cart mutations are accepted.
func (d *Draft) Editable() bool {
	if d.readOnly || !d.Status.CanEdit() {
		return false
	}
	return d.mayEdit == nil || d.mayEdit()
}

// Dirty reports edits not yet persisted.
func (d *Draft) Dirty() bool { return d.dirty }

// AddItem merges into the existing line of the product or appends a new one.
func (d *Draft) AddItem(product catalog.Product, quantity int) bool {
	if !d.Editable() {
		return false
	}
	quantity = pricing.FloorQuantity(quantity)
	if idx := d.indexOf(product.ID); idx >= 0 {
		d.Items[idx].Quantity += quantity
	} else {
		d.Items = append(d.Items, CartItem{
			ProductID:       product.ID,
			Description:     product.Description,
			Quantity:        quantity,
			SalePrice:       product.SalePrice,
			DiscountPercent: decimal.Zero,
		})
	}
	d.dirty = true
	return true
}

// UpdateQuantity sets the quantity of a line; values below one become one.
func (d *Draft) UpdateQuantity(productID int64, quantity int) bool {
	idx := d.indexOf(productID)
	if !d.Editable() || idx < 0 {
		return false
	}
	d.Items[idx].Quantity = pricing.FloorQuantity(quantity)
	d.dirty = true
	return true
}

// UpdateDiscount parses operator input. Empty or invalid input means zero.
func (d *Draft) UpdateDiscount(productID int64, raw string) bool {
	return d.UpdateDiscountPercent(productID, pricing.ParseDiscount(raw))
}

// UpdateDiscountPercent sets a discount clamped to [0, 100].
func (d *Draft) UpdateDiscountPercent(productID int64, percent decimal.Decimal) bool {
	idx := d.indexOf(productID)
	if !d.Editable() || idx < 0 {
		return false
	}
	d.Items[idx].DiscountPercent = pricing.ClampDiscount(percent)
	d.dirty = true
	return true
}

func (d *Draft) RemoveItem(productID int64) bool {
	idx := d.indexOf(productID)
	if !d.Editable() || idx < 0 {
		return false
	}
	d.Items = append(d.Items[:idx], d.Items[idx+1:]...)
	d.dirty = true
	return true
}

// Total sums the line totals. It is recomputed on every call.
func (d *Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// LineTotal exposes the derived value of one line.
func (d *Draft) LineTotal(item CartItem) decimal.Decimal {
	return item.LineTotal()
}

func (d *Draft) indexOf(productID int64) int {
	for i, it := range d.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (d *Draft) payload() SaveOrderRequest {
	req := SaveOrderRequest{Notes: d.Notes, Items: make([]ItemPayload, 0, len(d.Items))}
	if d.Client != nil {
		req.ClientID = d.Client.ID
	}
	for _, it := range d.Items {
		req.Items = append(req.Items, ItemPayload{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			DiscountPercent: it.DiscountPercent,
		})
	}
	return req
}
