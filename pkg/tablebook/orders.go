package tablebook

import (
	"context"
	"sort"
	"time"
)

// CookWindow computes the derived [cookStart, readyAt) interval for an
// order. The serve instant is clamped into the occupancy window even for
// pre-validated choices, because offset modes can overshoot short windows.
// Pure over its inputs.
func CookWindow(createdAt time.Time, serving ServingChoice, window Window) (time.Time, time.Time, error) {
	serveAt, err := serving.serveAt(window)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	serveAt = window.ClampInclusive(serveAt)
	cookStart := serveAt.Add(-CookDuration)
	if cookStart.Before(createdAt) {
		cookStart = createdAt
	}
	return cookStart, cookStart.Add(CookDuration), nil
}

// PreparingOrdersOf returns the guest's orders currently in their cook
// window. An order drops out as soon as its reservation window ends, even
// mid-cook: nothing dangles past checkout.
func (service *Service) PreparingOrdersOf(ctx context.Context, guestID GuestID) ([]PreparingOrder, error) {
	orders, err := service.store.ListOrdersByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	now := service.nowFn()
	var preparing []PreparingOrder
	for _, order := range orders {
		window, err := order.Reservation.Window()
		if err != nil {
			continue
		}
		if window.EndedBy(now) {
			continue
		}
		cookStart, readyAt, err := CookWindow(order.CreatedAt, order.Serving, window)
		if err != nil {
			continue
		}
		if now.Before(cookStart) || !now.Before(readyAt) {
			continue
		}
		preparing = append(preparing, PreparingOrder{
			Order:     order,
			CookStart: cookStart,
			ReadyAt:   readyAt,
		})
	}
	sort.Slice(preparing, func(left, right int) bool {
		return preparing[left].ReadyAt.Before(preparing[right].ReadyAt)
	})
	return preparing, nil
}
