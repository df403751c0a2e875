package tablebook

import (
	"context"
	"testing"
	"time"
)

func windowAt(test *testing.T, date string, timeOfDay string) Window {
	test.Helper()
	startAt, err := CombineDateTime(date, timeOfDay)
	if err != nil {
		test.Fatalf("combine: %v", err)
	}
	return NewOccupancyWindow(startAt)
}

func TestCookWindowAtReservationStart(test *testing.T) {
	test.Parallel()
	window := windowAt(test, bookingDate, "18:00")
	createdAt := time.Date(2026, 3, 14, 17, 0, 0, 0, time.Local)

	cookStart, readyAt, err := CookWindow(createdAt, mustServing(test, ServingAtStart), window)
	if err != nil {
		test.Fatalf("cook window: %v", err)
	}
	if !cookStart.Equal(window.Start.Add(-CookDuration)) {
		test.Fatalf("expected cook start 20m before serve, got %v", cookStart)
	}
	if !readyAt.Equal(window.Start) {
		test.Fatalf("expected ready at window start, got %v", readyAt)
	}
}

func TestCookWindowNeverStartsBeforeOrderCreation(test *testing.T) {
	test.Parallel()
	window := windowAt(test, bookingDate, "18:00")
	createdAt := time.Date(2026, 3, 14, 17, 55, 0, 0, time.Local)

	cookStart, readyAt, err := CookWindow(createdAt, mustServing(test, ServingAtStart), window)
	if err != nil {
		test.Fatalf("cook window: %v", err)
	}
	if !cookStart.Equal(createdAt) {
		test.Fatalf("expected cook start at order creation, got %v", cookStart)
	}
	if !readyAt.Equal(createdAt.Add(CookDuration)) {
		test.Fatalf("expected ready 20m after cook start, got %v", readyAt)
	}
}

func TestCookWindowClampsOvershootingOffset(test *testing.T) {
	test.Parallel()
	window := windowAt(test, bookingDate, "18:00")
	createdAt := time.Date(2026, 3, 14, 17, 0, 0, 0, time.Local)

	// plus_60 resolves exactly to window end; the clamp keeps it there.
	cookStart, readyAt, err := CookWindow(createdAt, mustServing(test, ServingPlus60), window)
	if err != nil {
		test.Fatalf("cook window: %v", err)
	}
	if !readyAt.Equal(window.End) {
		test.Fatalf("expected ready at window end, got %v", readyAt)
	}
	if !cookStart.Equal(window.End.Add(-CookDuration)) {
		test.Fatalf("expected cook start 20m before window end, got %v", cookStart)
	}
}

func TestCookWindowCustomTime(test *testing.T) {
	test.Parallel()
	window := windowAt(test, bookingDate, "18:00")
	createdAt := time.Date(2026, 3, 14, 17, 0, 0, 0, time.Local)

	cookStart, _, err := CookWindow(createdAt, mustCustomServing(test, "18:30"), window)
	if err != nil {
		test.Fatalf("cook window: %v", err)
	}
	if !cookStart.Equal(time.Date(2026, 3, 14, 18, 10, 0, 0, time.Local)) {
		test.Fatalf("expected cook start 18:10, got %v", cookStart)
	}
}

func preparingOrder(test *testing.T, orderID int64, date string, timeOfDay string, serving ServingChoice, createdAt time.Time) Order {
	test.Helper()
	return Order{
		ID:          orderID,
		GuestID:     guestOne,
		Status:      OrderStatusPreparing,
		CreatedAt:   createdAt,
		Serving:     serving,
		Reservation: ReservationRef{TableID: 3, Date: date, TimeOfDay: timeOfDay},
	}
}

func TestPreparingOrdersWithinCookWindow(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	createdAt := testNow.Add(-time.Hour)
	// Window 12:00-13:00, serve at start: cook 11:40-12:00. testNow is 12:00,
	// so this one is already done.
	store.orders = append(store.orders, preparingOrder(test, 1, bookingDate, "12:00", mustServing(test, ServingAtStart), createdAt))
	// Serve 12:15: cook 11:55-12:15, testNow inside.
	store.orders = append(store.orders, preparingOrder(test, 2, bookingDate, "12:00", mustServing(test, ServingPlus15), createdAt))
	// Serve 12:45: cook 12:25-12:45, not started yet.
	store.orders = append(store.orders, preparingOrder(test, 3, bookingDate, "12:00", mustServing(test, ServingPlus45), createdAt))
	service := mustNewService(test, store)

	preparing, err := service.PreparingOrdersOf(context.Background(), guestOne)
	if err != nil {
		test.Fatalf("preparing orders: %v", err)
	}
	if len(preparing) != 1 || preparing[0].Order.ID != 2 {
		test.Fatalf("expected only order 2 preparing, got %+v", preparing)
	}
}

// An order never shows as preparing once its reservation window ended,
// even if its cook window would still be open.
func TestPreparingOrdersDropAtWindowEnd(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	// Window 11:00-12:00 ended exactly at testNow. Cook window for plus_60
	// would be 11:40-12:00 and is over too, so pick a custom serve at the
	// window end via clamp: plus_60 cook 11:40-12:00. Use created-late order:
	// created 11:55, serve clamped to 12:00, cook 11:55-12:15 - still open,
	// but the reservation window has ended.
	createdAt := time.Date(2026, 3, 14, 11, 55, 0, 0, time.Local)
	store.orders = append(store.orders, preparingOrder(test, 1, bookingDate, "11:00", mustServing(test, ServingPlus60), createdAt))
	service := mustNewService(test, store)

	preparing, err := service.PreparingOrdersOf(context.Background(), guestOne)
	if err != nil {
		test.Fatalf("preparing orders: %v", err)
	}
	if len(preparing) != 0 {
		test.Fatalf("expected no preparing orders past window end, got %+v", preparing)
	}
}

func TestPreparingOrdersScopedToGuest(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	createdAt := testNow.Add(-time.Hour)
	order := preparingOrder(test, 1, bookingDate, "12:00", mustServing(test, ServingPlus15), createdAt)
	order.GuestID = guestTwo
	store.orders = append(store.orders, order)
	service := mustNewService(test, store)

	preparing, err := service.PreparingOrdersOf(context.Background(), guestOne)
	if err != nil {
		test.Fatalf("preparing orders: %v", err)
	}
	if len(preparing) != 0 {
		test.Fatalf("expected no orders for another guest, got %+v", preparing)
	}
}
