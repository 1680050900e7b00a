package domain

// Status of an order or an inventory event.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// ReplenishmentOrder groups the order lines placed against a clinic on a date.
type ReplenishmentOrder struct {
	ID        int64   `db:"id" json:"id"`
	ClinicID  int64   `db:"clinic_id" json:"clinic_id"`
	OrderDate string  `db:"order_date" json:"order_date"`
	Status    string  `db:"status" json:"status"`
	CreatedBy int64   `db:"created_by" json:"created_by"`
	CreatedAt string  `db:"created_at" json:"created_at"`
	ClosedAt  *string `db:"closed_at" json:"closed_at,omitempty"`
}

// Open reports whether the order still receives lines.
func (o ReplenishmentOrder) Open() bool {
	return o.Status == StatusOpen
}

// OrderLine is one additive stock movement. InitialQuantity is the ledger
// value immediately before the line was applied.
type OrderLine struct {
	ID              int64  `db:"id" json:"id"`
	OrderID         int64  `db:"order_id" json:"order_id"`
	ProductTariffID int64  `db:"product_tariff_id" json:"product_tariff_id"`
	InitialQuantity int64  `db:"initial_quantity" json:"initial_quantity"`
	QuantityOrdered int64  `db:"quantity_ordered" json:"quantity_ordered"`
	UserID          int64  `db:"user_id" json:"user_id"`
	CreatedAt       string `db:"created_at" json:"created_at"`
}

// ResultingQuantity is the ledger quantity right after the line was applied.
func (l OrderLine) ResultingQuantity() int64 {
	return l.InitialQuantity + l.QuantityOrdered
}

// OrderLineDetail is an order line enriched for display.
type OrderLineDetail struct {
	OrderLine
	ProductName string `json:"product_name"`
	UserName    string `json:"user_name"`
}

// OrderDetail is an order together with its lines.
type OrderDetail struct {
	ReplenishmentOrder
	ClinicName string            `json:"clinic_name"`
	Lines      []OrderLineDetail `json:"lines"`
}
