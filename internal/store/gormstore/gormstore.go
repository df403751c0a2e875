package gormstore

import (
	"context"
	"encoding/json"
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

const (
	constraintReservationSlot = "idx_reservations_slot"
	constraintAccountPhone    = "idx_accounts_phone"
	pgUniqueViolationCode     = "23505"
	sqliteConstraintCode      = 19
	errorOperationStore       = "store"
	errorSubjectReservation   = "reservation"
	errorSubjectOrder         = "order"
	errorSubjectAccount       = "account"
	errorSubjectCard          = "card"
	errorCodeCreate           = "create"
	errorCodeDuplicate        = "duplicate"
	errorCodeGet              = "get"
	errorCodeInsert           = "insert"
	errorCodeInvalid          = "invalid"
	errorCodeList             = "list"
	errorCodeMax              = "max"
	errorCodeReplace          = "replace"
	errorCodeUpdate           = "update"
)

// Store implements tablebook.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ReservationRecord{}, &OrderRecord{}, &AccountRecord{}, &CardRecord{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore tablebook.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) ListReservations(ctx context.Context) ([]tablebook.Reservation, error) {
	var rows []ReservationRecord
	err := store.db.WithContext(ctx).
		Order("created_at ASC, reservation_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations := make([]tablebook.Reservation, 0, len(rows))
	for _, row := range rows {
		reservations = append(reservations, tablebook.Reservation{
			TableID:    tablebook.TableID(row.TableID),
			Date:       row.Date,
			TimeOfDay:  row.TimeOfDay,
			HolderName: row.HolderName,
			GuestID:    tablebook.GuestID(row.GuestID),
			CreatedAt:  row.CreatedAt,
		})
	}
	return reservations, nil
}

func (store *Store) AppendReservation(ctx context.Context, reservation tablebook.Reservation) error {
	record := ReservationRecord{
		TableID:    int(reservation.TableID),
		Date:       reservation.Date,
		TimeOfDay:  reservation.TimeOfDay,
		HolderName: reservation.HolderName,
		GuestID:    int64(reservation.GuestID),
		CreatedAt:  reservation.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err, constraintReservationSlot) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, tablebook.ErrTableUnavailable)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ReplaceReservations(ctx context.Context, reservations []tablebook.Reservation) error {
	if err := store.db.WithContext(ctx).Where("1 = 1").Delete(&ReservationRecord{}).Error; err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeReplace, err)
	}
	for _, reservation := range reservations {
		record := ReservationRecord{
			TableID:    int(reservation.TableID),
			Date:       reservation.Date,
			TimeOfDay:  reservation.TimeOfDay,
			HolderName: reservation.HolderName,
			GuestID:    int64(reservation.GuestID),
			CreatedAt:  reservation.CreatedAt,
		}
		if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
			return wrapStoreError(errorSubjectReservation, errorCodeReplace, err)
		}
	}
	return nil
}

func (store *Store) ListOrdersByGuest(ctx context.Context, guestID tablebook.GuestID) ([]tablebook.Order, error) {
	var rows []OrderRecord
	err := store.db.WithContext(ctx).
		Where("guest_id = ?", int64(guestID)).
		Order("created_at ASC, order_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	orders := make([]tablebook.Order, 0, len(rows))
	for _, row := range rows {
		order, err := mapOrder(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (store *Store) MaxOrderID(ctx context.Context) (int64, error) {
	var sum sqlMax
	err := store.db.WithContext(ctx).
		Model(&OrderRecord{}).
		Select("coalesce(max(order_id),0) as total").
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectOrder, errorCodeMax, err)
	}
	return sum.Total, nil
}

func (store *Store) AppendOrder(ctx context.Context, order tablebook.Order) error {
	record, err := mapOrderRecord(order)
	if err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetAccount(ctx context.Context, guestID tablebook.GuestID) (tablebook.Account, error) {
	var record AccountRecord
	err := store.db.WithContext(ctx).
		Where("guest_id = ?", int64(guestID)).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tablebook.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, tablebook.ErrAccountNotFound)
		}
		return tablebook.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return store.loadAccount(ctx, record)
}

func (store *Store) GetAccountByPhone(ctx context.Context, phone string) (tablebook.Account, error) {
	var record AccountRecord
	err := store.db.WithContext(ctx).
		Where("phone = ?", phone).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tablebook.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, tablebook.ErrAccountNotFound)
		}
		return tablebook.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return store.loadAccount(ctx, record)
}

func (store *Store) CreateAccount(ctx context.Context, account tablebook.Account) (tablebook.GuestID, error) {
	record := AccountRecord{
		Name:          account.Name,
		Phone:         account.Phone,
		PasswordHash:  account.PasswordHash,
		PointsBalance: account.PointsBalance,
		CreatedAt:     account.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err, constraintAccountPhone) {
		return 0, wrapStoreError(errorSubjectAccount, errorCodeDuplicate, tablebook.ErrPhoneTaken)
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	guestID := tablebook.GuestID(record.GuestID)
	if err := store.replaceCards(ctx, record.GuestID, account.Cards); err != nil {
		return 0, err
	}
	return guestID, nil
}

func (store *Store) SaveAccount(ctx context.Context, account tablebook.Account) error {
	result := store.db.WithContext(ctx).
		Model(&AccountRecord{}).
		Where("guest_id = ?", int64(account.ID)).
		Updates(map[string]interface{}{
			"name":           account.Name,
			"phone":          account.Phone,
			"password_hash":  account.PasswordHash,
			"points_balance": account.PointsBalance,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, tablebook.ErrAccountNotFound)
	}
	return store.replaceCards(ctx, int64(account.ID), account.Cards)
}

func (store *Store) loadAccount(ctx context.Context, record AccountRecord) (tablebook.Account, error) {
	var cardRows []CardRecord
	err := store.db.WithContext(ctx).
		Where("guest_id = ?", record.GuestID).
		Order("position ASC").
		Find(&cardRows).Error
	if err != nil {
		return tablebook.Account{}, wrapStoreError(errorSubjectCard, errorCodeList, err)
	}
	cards := make([]tablebook.PaymentCard, 0, len(cardRows))
	for _, cardRow := range cardRows {
		cards = append(cards, tablebook.PaymentCard{
			Brand:     cardRow.Brand,
			Last4:     cardRow.Last4,
			Holder:    cardRow.Holder,
			Expiry:    cardRow.Expiry,
			Active:    cardRow.Active,
			CreatedAt: cardRow.CreatedAt,
		})
	}
	return tablebook.Account{
		ID:            tablebook.GuestID(record.GuestID),
		Name:          record.Name,
		Phone:         record.Phone,
		PasswordHash:  record.PasswordHash,
		PointsBalance: record.PointsBalance,
		Cards:         cards,
		CreatedAt:     record.CreatedAt,
	}, nil
}

// replaceCards rewrites the guest's card rows to match the account value,
// keeping positions aligned with slice order.
func (store *Store) replaceCards(ctx context.Context, guestID int64, cards []tablebook.PaymentCard) error {
	if err := store.db.WithContext(ctx).Where("guest_id = ?", guestID).Delete(&CardRecord{}).Error; err != nil {
		return wrapStoreError(errorSubjectCard, errorCodeReplace, err)
	}
	for position, card := range cards {
		record := CardRecord{
			GuestID:   guestID,
			Position:  position,
			Brand:     card.Brand,
			Last4:     card.Last4,
			Holder:    card.Holder,
			Expiry:    card.Expiry,
			Active:    card.Active,
			CreatedAt: card.CreatedAt,
		}
		if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
			return wrapStoreError(errorSubjectCard, errorCodeReplace, err)
		}
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return tablebook.WrapError(errorOperationStore, subject, code, err)
}

type sqlMax struct {
	Total int64
}

func mapOrder(row OrderRecord) (tablebook.Order, error) {
	var lines []tablebook.OrderLine
	if err := json.Unmarshal(row.Lines, &lines); err != nil {
		return tablebook.Order{}, err
	}
	var serving tablebook.ServingChoice
	if err := json.Unmarshal(row.Serving, &serving); err != nil {
		return tablebook.Order{}, err
	}
	var reservation tablebook.ReservationRef
	if err := json.Unmarshal(row.Reservation, &reservation); err != nil {
		return tablebook.Order{}, err
	}
	var card tablebook.CardRef
	if err := json.Unmarshal(row.Card, &card); err != nil {
		return tablebook.Order{}, err
	}
	return tablebook.Order{
		ID:            row.OrderID,
		GuestID:       tablebook.GuestID(row.GuestID),
		Status:        tablebook.OrderStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		Lines:         lines,
		ItemsTotal:    row.ItemsTotal,
		PointsApplied: row.PointsApplied,
		PayableTotal:  row.PayableTotal,
		Comment:       row.Comment,
		Serving:       serving,
		Reservation:   reservation,
		Card:          card,
	}, nil
}

func mapOrderRecord(order tablebook.Order) (OrderRecord, error) {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return OrderRecord{}, err
	}
	serving, err := json.Marshal(order.Serving)
	if err != nil {
		return OrderRecord{}, err
	}
	reservation, err := json.Marshal(order.Reservation)
	if err != nil {
		return OrderRecord{}, err
	}
	card, err := json.Marshal(order.Card)
	if err != nil {
		return OrderRecord{}, err
	}
	return OrderRecord{
		OrderID:       order.ID,
		GuestID:       int64(order.GuestID),
		Status:        string(order.Status),
		Lines:         datatypes.JSON(lines),
		ItemsTotal:    order.ItemsTotal,
		PointsApplied: order.PointsApplied,
		PayableTotal:  order.PayableTotal,
		Comment:       order.Comment,
		Serving:       datatypes.JSON(serving),
		Reservation:   datatypes.JSON(reservation),
		Card:          datatypes.JSON(card),
		CreatedAt:     order.CreatedAt,
	}, nil
}

func isUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
