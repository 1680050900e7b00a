package domain

// ProductTariff is the ledger row for one product at one clinic.
// Quantity is only ever changed through the stock ledger.
type ProductTariff struct {
	ID        int64  `db:"id" json:"id"`
	ClinicID  int64  `db:"clinic_id" json:"clinic_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
	Quantity  int64  `db:"quantity" json:"quantity"`
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

// TariffView is a tariff joined with its catalog entry.
type TariffView struct {
	ProductTariff
	ProductCode string `db:"product_code" json:"product_code"`
	ProductName string `db:"product_name" json:"product_name"`
}

// StockAdjustment records an explicit correction of the ledger.
type StockAdjustment struct {
	ID              int64  `db:"id" json:"id"`
	ProductTariffID int64  `db:"product_tariff_id" json:"product_tariff_id"`
	InitialQuantity int64  `db:"initial_quantity" json:"initial_quantity"`
	Delta           int64  `db:"delta" json:"delta"`
	Reason          string `db:"reason" json:"reason"`
	UserID          int64  `db:"user_id" json:"user_id"`
	DetailLineID    *int64 `db:"detail_line_id" json:"detail_line_id,omitempty"`
	CreatedAt       string `db:"created_at" json:"created_at"`
}
