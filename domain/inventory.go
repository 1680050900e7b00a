package domain

// Anomaly categories.
const (
	AnomalyStockVariance    = "STOCK_VARIANCE"
	AnomalyCriticalVariance = "CRITICAL_VARIANCE"
)

// InventoryEvent is a physical stock count for a clinic on a given date.
type InventoryEvent struct {
	ID        int64   `db:"id" json:"id"`
	ClinicID  int64   `db:"clinic_id" json:"clinic_id"`
	CountDate string  `db:"count_date" json:"count_date"`
	UserID    int64   `db:"user_id" json:"user_id"`
	Status    string  `db:"status" json:"status"`
	CreatedAt string  `db:"created_at" json:"created_at"`
	ClosedAt  *string `db:"closed_at" json:"closed_at,omitempty"`
}

// Open reports whether the event still accepts detail lines.
func (e InventoryEvent) Open() bool {
	return e.Status == StatusOpen
}

// InventoryDetailLine compares the ledger quantity with the counted one.
type InventoryDetailLine struct {
	ID              int64     `db:"id" json:"id"`
	EventID         int64     `db:"event_id" json:"event_id"`
	ProductTariffID int64     `db:"product_tariff_id" json:"product_tariff_id"`
	Theoretical     int64     `db:"theoretical" json:"theoretical"`
	Actual          int64     `db:"actual" json:"actual"`
	Variance        int64     `db:"variance" json:"variance"`
	CreatedAt       string    `db:"created_at" json:"created_at"`
	Anomalies       []Anomaly `db:"-" json:"anomalies"`
}

// Anomaly is a flagged discrepancy attached to a detail line.
type Anomaly struct {
	ID           int64  `db:"id" json:"id"`
	DetailLineID int64  `db:"detail_line_id" json:"detail_line_id"`
	Category     string `db:"category" json:"category"`
	Description  string `db:"description" json:"description"`
	CreatedAt    string `db:"created_at" json:"created_at"`
}

// InventoryEventDetail is an event together with its lines and anomalies.
type InventoryEventDetail struct {
	InventoryEvent
	ClinicName string                `json:"clinic_name"`
	Lines      []InventoryDetailLine `json:"lines"`
}
