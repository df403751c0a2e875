package tablebook

import "time"

// BookingDuration is the fixed occupancy window of every reservation.
const BookingDuration = 60 * time.Minute

// CookDuration is the kitchen lead time before an order is ready.
const CookDuration = 20 * time.Minute

const (
	// DateLayout is the calendar-date wire format.
	DateLayout = "2006-01-02"
	// TimeLayout is the time-of-day wire format.
	TimeLayout = "15:04"
)

const (
	commentMaxLength = 300
	minCardDigits    = 12
	cardLast4Digits  = 4

	defaultCardBrand = "MIR"
)

const (
	operationBook       = "book"
	operationCancel     = "cancel_booking"
	operationPreview    = "checkout_preview"
	operationConfirm    = "checkout_confirm"
	operationAddCard    = "add_card"
	operationRemoveCard = "remove_card"
	operationRegister   = "register"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
