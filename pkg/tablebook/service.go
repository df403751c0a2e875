package tablebook

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Service contains the domain logic over a Store, a menu Catalog, and a
// PreviewCache. All lifecycle-dependent state is recomputed against the
// injected clock on every read; nothing is expired by background timers.
type Service struct {
	store    Store
	catalog  Catalog
	previews PreviewCache
	nowFn    func() time.Time
	logger   OperationLogger
}

// NewService wires a Service.
func NewService(store Store, catalog Catalog, previews PreviewCache, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if previews == nil {
		return nil, fmt.Errorf("%w: preview cache dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, catalog: catalog, previews: previews, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// ProposeBooking creates a reservation after the past-time and overlap
// checks pass. The conflict check runs against the live store inside the
// same transaction that appends, so concurrent submissions serialize on
// the store.
func (service *Service) ProposeBooking(ctx context.Context, tableID TableID, date string, timeOfDay string, holderName string, guestID GuestID) (Reservation, error) {
	var created Reservation
	operationError := func() error {
		if !tableExists(tableID) {
			return fmt.Errorf("%w: table %d", ErrUnknownTable, tableID)
		}
		candidate, err := NewReservation(tableID, date, timeOfDay, holderName, guestID)
		if err != nil {
			return err
		}
		startAt, err := candidate.StartAt()
		if err != nil {
			return err
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			now := service.nowFn()
			if startAt.Before(now) {
				return ErrBookingInPast
			}
			active, err := service.activeReservations(ctx, transactionStore, now)
			if err != nil {
				return err
			}
			if conflicts(tableID, startAt, active) {
				return ErrTableUnavailable
			}
			candidate.CreatedAt = now
			if err := transactionStore.AppendReservation(ctx, candidate); err != nil {
				return err
			}
			created = candidate
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationBook,
		GuestID:   guestID,
		TableID:   tableID,
		Date:      date,
		TimeOfDay: timeOfDay,
		Error:     operationError,
	})
	return created, operationError
}

// TableOccupancy returns the ids of tables whose occupancy window contains
// the queried instant, for a whole-hall snapshot.
func (service *Service) TableOccupancy(ctx context.Context, date string, timeOfDay string) ([]TableID, error) {
	queryAt, err := CombineDateTime(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	active, err := service.pruneActiveReservations(ctx)
	if err != nil {
		return nil, err
	}
	occupied := occupiedTables(queryAt, active)
	tableIDs := make([]TableID, 0, len(occupied))
	for tableID := range occupied {
		tableIDs = append(tableIDs, tableID)
	}
	sort.Slice(tableIDs, func(left, right int) bool { return tableIDs[left] < tableIDs[right] })
	return tableIDs, nil
}

// LifecycleOf classifies the guest's most recent reservation. It reads the
// raw store, never the pruned active view, so an expired booking is
// reported as expired instead of silently degrading to no-booking.
func (service *Service) LifecycleOf(ctx context.Context, guestID GuestID) (BookingLifecycle, error) {
	reservations, err := service.store.ListReservations(ctx)
	if err != nil {
		return BookingLifecycle{}, err
	}
	return resolveLifecycle(reservations, guestID, service.nowFn()), nil
}

// BookingsOf lists the guest's live bookings for the notifications view,
// most recent scheduled start first.
func (service *Service) BookingsOf(ctx context.Context, guestID GuestID) ([]Reservation, error) {
	active, err := service.pruneActiveReservations(ctx)
	if err != nil {
		return nil, err
	}
	var own []Reservation
	for _, reservation := range active {
		if reservation.GuestID == guestID {
			own = append(own, reservation)
		}
	}
	sort.Slice(own, func(left, right int) bool {
		return reservationLess(own[right], own[left])
	})
	return own, nil
}

// CancelBooking removes the guest's reservation matching the composite key
// and reports whether anything was removed. Only the first match goes.
func (service *Service) CancelBooking(ctx context.Context, guestID GuestID, tableID TableID, date string, timeOfDay string) (bool, error) {
	removed := false
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservations, err := transactionStore.ListReservations(ctx)
		if err != nil {
			return err
		}
		remaining := make([]Reservation, 0, len(reservations))
		for _, reservation := range reservations {
			if !removed &&
				reservation.GuestID == guestID &&
				reservation.TableID == tableID &&
				reservation.Date == date &&
				reservation.TimeOfDay == timeOfDay {
				removed = true
				continue
			}
			remaining = append(remaining, reservation)
		}
		if !removed {
			return nil
		}
		return transactionStore.ReplaceReservations(ctx, remaining)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancel,
		GuestID:   guestID,
		TableID:   tableID,
		Date:      date,
		TimeOfDay: timeOfDay,
		Error:     operationError,
	})
	return removed, operationError
}

// pruneActiveReservations runs the pruned active view inside its own
// transaction for read paths that are not already in one.
func (service *Service) pruneActiveReservations(ctx context.Context) ([]Reservation, error) {
	var active []Reservation
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		active, err = service.activeReservations(ctx, transactionStore, service.nowFn())
		return err
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// activeReservations returns the pruned active view: reservations whose
// window has not ended. Rows that fail to parse are dropped with the
// expired ones. Storage is rewritten only when the view shrank. The list
// and the rewrite must see the same snapshot, so every caller passes a
// transactional store.
func (service *Service) activeReservations(ctx context.Context, store Store, now time.Time) ([]Reservation, error) {
	reservations, err := store.ListReservations(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		window, err := reservation.Window()
		if err != nil {
			continue
		}
		if window.EndedBy(now) {
			continue
		}
		active = append(active, reservation)
	}
	if len(active) != len(reservations) {
		if err := store.ReplaceReservations(ctx, active); err != nil {
			return nil, err
		}
	}
	return active, nil
}

// resolveLifecycle is the pure lifecycle resolver over a raw reservation
// list and a wall-clock instant.
func resolveLifecycle(reservations []Reservation, guestID GuestID, now time.Time) BookingLifecycle {
	var latest *Reservation
	for index := range reservations {
		reservation := reservations[index]
		if reservation.GuestID != guestID {
			continue
		}
		if _, err := reservation.Window(); err != nil {
			continue
		}
		if latest == nil || reservationLess(*latest, reservation) {
			latest = &reservations[index]
		}
	}
	if latest == nil {
		return BookingLifecycle{State: BookingStateNone}
	}
	window, err := latest.Window()
	if err != nil {
		return BookingLifecycle{State: BookingStateNone}
	}
	if window.EndedBy(now) {
		return BookingLifecycle{State: BookingStateExpired, Reservation: latest}
	}
	return BookingLifecycle{State: BookingStateActive, Reservation: latest}
}

// reservationLess orders by (date, time, created_at) ascending, so the
// greatest element is the most recent scheduled start, ties broken by the
// latest creation.
func reservationLess(left Reservation, right Reservation) bool {
	if left.Date != right.Date {
		return left.Date < right.Date
	}
	if left.TimeOfDay != right.TimeOfDay {
		return left.TimeOfDay < right.TimeOfDay
	}
	return left.CreatedAt.Before(right.CreatedAt)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
