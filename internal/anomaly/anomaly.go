// Package anomaly classifies inventory count lines.
package anomaly

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Bando358/ecmis-sub006/domain"
)

var hundred = decimal.NewFromInt(100)

// Detector turns a count line into zero or more anomalies. A zero
// CriticalPercent disables the critical tier.
type Detector struct {
	CriticalPercent decimal.Decimal
}

// Classify applies the default detector, which only reports STOCK_VARIANCE.
func Classify(theoretical, actual, variance int64) []domain.Anomaly {
	return Detector{}.Classify(theoretical, actual, variance)
}

// Classify is pure: the same inputs always yield the same anomalies.
func (d Detector) Classify(theoretical, actual, variance int64) []domain.Anomaly {
	if variance == 0 {
		return nil
	}

	category := domain.AnomalyStockVariance
	if d.critical(theoretical, variance) {
		category = domain.AnomalyCriticalVariance
	}
	return []domain.Anomaly{{
		Category:    category,
		Description: fmt.Sprintf("variance of %+d units (theoretical %d, counted %d)", variance, theoretical, actual),
	}}
}

func (d Detector) critical(theoretical, variance int64) bool {
	if !d.CriticalPercent.IsPositive() {
		return false
	}
	if theoretical == 0 {
		return true
	}
	ratio := decimal.NewFromInt(variance).Abs().Mul(hundred).Div(decimal.NewFromInt(theoretical).Abs())
	return ratio.GreaterThan(d.CriticalPercent)
}
