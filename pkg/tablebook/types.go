package tablebook

import (
	"context"
	"strings"
	"time"
)

// TableID identifies a table in the hall layout.
type TableID int

// GuestID identifies an account owner.
type GuestID int64

// Reservation is a stored table booking. Date and TimeOfDay keep the wire
// formats "2006-01-02" and "15:04"; the occupancy window is derived.
type Reservation struct {
	TableID    TableID
	Date       string
	TimeOfDay  string
	HolderName string
	GuestID    GuestID
	CreatedAt  time.Time
}

// NewReservation validates the booking fields and returns a reservation
// without a creation timestamp; the service stamps it on append.
func NewReservation(tableID TableID, date string, timeOfDay string, holderName string, guestID GuestID) (Reservation, error) {
	trimmedHolder := strings.TrimSpace(holderName)
	if trimmedHolder == "" {
		return Reservation{}, WrapError("reservation", "holder", "empty", ErrInvalidHolderName)
	}
	if _, err := CombineDateTime(date, timeOfDay); err != nil {
		return Reservation{}, err
	}
	return Reservation{
		TableID:    tableID,
		Date:       date,
		TimeOfDay:  timeOfDay,
		HolderName: trimmedHolder,
		GuestID:    guestID,
	}, nil
}

// StartAt returns the reservation's start instant.
func (reservation Reservation) StartAt() (time.Time, error) {
	return CombineDateTime(reservation.Date, reservation.TimeOfDay)
}

// Window returns the reservation's half-open occupancy window.
func (reservation Reservation) Window() (Window, error) {
	startAt, err := reservation.StartAt()
	if err != nil {
		return Window{}, err
	}
	return NewOccupancyWindow(startAt), nil
}

// Ref returns the immutable snapshot embedded into orders.
func (reservation Reservation) Ref() ReservationRef {
	return ReservationRef{
		TableID:   reservation.TableID,
		Date:      reservation.Date,
		TimeOfDay: reservation.TimeOfDay,
	}
}

// ReservationRef is the reservation snapshot carried by an order.
type ReservationRef struct {
	TableID   TableID
	Date      string
	TimeOfDay string
}

// Window returns the occupancy window of the snapshotted reservation.
func (ref ReservationRef) Window() (Window, error) {
	startAt, err := CombineDateTime(ref.Date, ref.TimeOfDay)
	if err != nil {
		return Window{}, err
	}
	return NewOccupancyWindow(startAt), nil
}

// BookingState classifies a guest's most recent reservation.
type BookingState string

const (
	BookingStateNone    BookingState = "no_booking"
	BookingStateActive  BookingState = "active"
	BookingStateExpired BookingState = "expired_booking"
)

// BookingLifecycle is the resolved lifecycle view for a guest. Reservation
// is nil only in the no-booking state.
type BookingLifecycle struct {
	State       BookingState
	Reservation *Reservation
}

// OrderStatus tracks a confirmed order.
type OrderStatus string

// OrderStatusPreparing is the only status assigned by checkout; later
// stages belong to kitchen tooling outside this core.
const OrderStatusPreparing OrderStatus = "preparing"

// OrderLine is a priced cart line resolved against the menu catalog.
type OrderLine struct {
	MenuID    int
	Name      string
	UnitPrice int64
	Quantity  int
	PhotoRef  string
}

// CartLine is a raw requested line before catalog resolution. Duplicate
// menu ids are merged by summing quantities.
type CartLine struct {
	MenuID   int
	Quantity int
}

// Order is created at checkout confirmation and immutable afterwards
// except for its status.
type Order struct {
	ID            int64
	GuestID       GuestID
	Status        OrderStatus
	CreatedAt     time.Time
	Lines         []OrderLine
	ItemsTotal    int64
	PointsApplied int64
	PayableTotal  int64
	Comment       string
	Serving       ServingChoice
	Reservation   ReservationRef
	Card          CardRef
}

// CardRef is the payment card snapshot carried by an order.
type CardRef struct {
	Brand string
	Last4 string
}

// PreparingOrder pairs an order with its derived cook window for the
// notifications view.
type PreparingOrder struct {
	Order     Order
	CookStart time.Time
	ReadyAt   time.Time
}

// MenuItem describes a dish in the menu catalog.
type MenuItem struct {
	ID         int
	Name       string
	Lore       string
	Type       string
	Price      int64
	PhotoRef   string
	Popularity int
	Featured   bool
}

// PaymentCard is a stored card stub. At most one card per account is
// active; CreatedAt acts as the card's primary key for removal.
type PaymentCard struct {
	Brand     string
	Last4     string
	Holder    string
	Expiry    string
	Active    bool
	CreatedAt time.Time
}

// Account is a registered guest with a points balance and cards.
type Account struct {
	ID            GuestID
	Name          string
	Phone         string
	PasswordHash  string
	PointsBalance int64
	Cards         []PaymentCard
	CreatedAt     time.Time
}

func (account Account) activeCard() (PaymentCard, bool) {
	for _, card := range account.Cards {
		if card.Active {
			return card, true
		}
	}
	return PaymentCard{}, false
}

// Preview is a priced checkout held per guest until confirmed or dropped.
type Preview struct {
	ID            string
	GuestID       GuestID
	Lines         []OrderLine
	ItemsTotal    int64
	PointsApplied int64
	PayableTotal  int64
	Comment       string
	Serving       ServingChoice
	Reservation   ReservationRef
	Card          CardRef
	CreatedAt     time.Time
}

// Store is the persistence contract used by Service. Implementations must
// serialize every WithTx body against concurrent writers.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	ListReservations(ctx context.Context) ([]Reservation, error)
	AppendReservation(ctx context.Context, reservation Reservation) error
	ReplaceReservations(ctx context.Context, reservations []Reservation) error

	ListOrdersByGuest(ctx context.Context, guestID GuestID) ([]Order, error)
	MaxOrderID(ctx context.Context) (int64, error)
	AppendOrder(ctx context.Context, order Order) error

	GetAccount(ctx context.Context, guestID GuestID) (Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (Account, error)
	CreateAccount(ctx context.Context, account Account) (GuestID, error)
	SaveAccount(ctx context.Context, account Account) error
}

// Catalog resolves menu ids against the current menu.
type Catalog interface {
	Lookup(menuID int) (MenuItem, bool)
	Items() []MenuItem
}

// PreviewCache holds at most one pending checkout preview per guest.
// Take consumes the entry: a second Take for the same guest misses.
type PreviewCache interface {
	Put(ctx context.Context, preview Preview) error
	Take(ctx context.Context, guestID GuestID) (Preview, bool, error)
}
