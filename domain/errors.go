package domain

import "errors"

// Errors returned by the stock core. Callers match them with errors.Is.
var (
	ErrNotFound                = errors.New("record not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidInput            = errors.New("invalid input")
	ErrDuplicateInventoryEvent = errors.New("an inventory event already exists for this clinic and date")
	ErrDuplicateCountLine      = errors.New("product already counted in this inventory event")
	ErrDuplicateTariff         = errors.New("product already has a tariff for this clinic")
	ErrOrderClosed             = errors.New("order is closed")
	ErrEventClosed             = errors.New("inventory event is closed")
	ErrClinicMismatch          = errors.New("tariff belongs to another clinic")
	ErrTariffInUse             = errors.New("tariff is referenced by stock history")
)
