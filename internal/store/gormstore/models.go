package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReservationRecord mirrors the reservations table. The unique slot index
// rejects exact double submits of the same table and start; overlap within
// an hour is the service's check.
type ReservationRecord struct {
	ReservationID string    `gorm:"type:uuid;primaryKey"`
	TableID       int       `gorm:"not null;index:idx_reservations_slot,unique,priority:1"`
	Date          string    `gorm:"not null;index:idx_reservations_slot,unique,priority:2"`
	TimeOfDay     string    `gorm:"not null;index:idx_reservations_slot,unique,priority:3"`
	HolderName    string    `gorm:"not null"`
	GuestID       int64     `gorm:"not null;index:idx_reservations_guest"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (ReservationRecord) TableName() string { return "reservations" }

func (record *ReservationRecord) BeforeCreate(tx *gorm.DB) error {
	if record.ReservationID == "" {
		record.ReservationID = uuid.NewString()
	}
	return nil
}

// OrderRecord mirrors the orders table. Order ids are allocated by the
// service, not the database.
type OrderRecord struct {
	OrderID       int64          `gorm:"primaryKey;autoIncrement:false"`
	GuestID       int64          `gorm:"not null;index:idx_orders_guest"`
	Status        string         `gorm:"not null"`
	Lines         datatypes.JSON `gorm:"not null"`
	ItemsTotal    int64          `gorm:"not null"`
	PointsApplied int64          `gorm:"not null"`
	PayableTotal  int64          `gorm:"not null"`
	Comment       string         `gorm:""`
	Serving       datatypes.JSON `gorm:"not null"`
	Reservation   datatypes.JSON `gorm:"not null"`
	Card          datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null"`
}

func (OrderRecord) TableName() string { return "orders" }

// AccountRecord mirrors the accounts table.
type AccountRecord struct {
	GuestID       int64     `gorm:"primaryKey;autoIncrement"`
	Name          string    `gorm:"not null"`
	Phone         string    `gorm:"not null;index:idx_accounts_phone,unique"`
	PasswordHash  string    `gorm:"not null"`
	PointsBalance int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AccountRecord) TableName() string { return "accounts" }

// CardRecord mirrors the payment_cards table. Position preserves the order
// in which the guest added cards.
type CardRecord struct {
	CardID    string    `gorm:"type:uuid;primaryKey"`
	GuestID   int64     `gorm:"not null;index:idx_cards_guest,priority:1"`
	Position  int       `gorm:"not null;index:idx_cards_guest,priority:2"`
	Brand     string    `gorm:"not null"`
	Last4     string    `gorm:"not null"`
	Holder    string    `gorm:""`
	Expiry    string    `gorm:""`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (CardRecord) TableName() string { return "payment_cards" }

func (record *CardRecord) BeforeCreate(tx *gorm.DB) error {
	if record.CardID == "" {
		record.CardID = uuid.NewString()
	}
	return nil
}
