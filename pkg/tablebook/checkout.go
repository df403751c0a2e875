package tablebook

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"
)

// BuildCheckoutPreview prices the cart and gates it on the guest's booking
// state and card registry. Gating runs in a fixed order (no booking, then
// expired booking, then empty cart, then no card) and the first failure
// wins. A successful preview is held per guest until confirmed.
func (service *Service) BuildCheckoutPreview(ctx context.Context, guestID GuestID, lines []CartLine, usePoints bool, comment string, serving ServingChoice) (Preview, error) {
	var preview Preview
	operationError := func() error {
		if utf8.RuneCountInString(comment) > commentMaxLength {
			return fmt.Errorf("%w: %d runes", ErrCommentTooLong, utf8.RuneCountInString(comment))
		}
		merged, err := mergeCartLines(lines)
		if err != nil {
			return err
		}
		lifecycle, err := service.LifecycleOf(ctx, guestID)
		if err != nil {
			return err
		}
		switch lifecycle.State {
		case BookingStateNone:
			return ErrNoBooking
		case BookingStateExpired:
			return ErrBookingExpired
		}
		reservation := *lifecycle.Reservation
		window, err := reservation.Window()
		if err != nil {
			return err
		}
		resolved := service.resolveCart(merged)
		if len(resolved) == 0 {
			return ErrEmptyCart
		}
		account, err := service.store.GetAccount(ctx, guestID)
		if err != nil {
			return err
		}
		card, hasCard := account.activeCard()
		if !hasCard {
			return ErrNoActiveCard
		}
		if err := serving.Validate(window); err != nil {
			return err
		}
		itemsTotal := int64(0)
		for _, line := range resolved {
			itemsTotal += line.UnitPrice * int64(line.Quantity)
		}
		pointsApplied := int64(0)
		if usePoints {
			pointsApplied = min(account.PointsBalance, itemsTotal)
		}
		preview = Preview{
			ID:            uuid.NewString(),
			GuestID:       guestID,
			Lines:         resolved,
			ItemsTotal:    itemsTotal,
			PointsApplied: pointsApplied,
			PayableTotal:  itemsTotal - pointsApplied,
			Comment:       comment,
			Serving:       serving,
			Reservation:   reservation.Ref(),
			Card:          CardRef{Brand: card.Brand, Last4: card.Last4},
			CreatedAt:     service.nowFn(),
		}
		return service.previews.Put(ctx, preview)
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   operationPreview,
		GuestID:     guestID,
		AmountCents: preview.PayableTotal,
		Error:       operationError,
	})
	return preview, operationError
}

// ConfirmCheckout consumes the held preview exactly once and persists the
// order. The points debit and the order append share one transaction.
func (service *Service) ConfirmCheckout(ctx context.Context, guestID GuestID) (Order, error) {
	var order Order
	operationError := func() error {
		preview, held, err := service.previews.Take(ctx, guestID)
		if err != nil {
			return err
		}
		if !held {
			return ErrStaleCheckout
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			maxOrderID, err := transactionStore.MaxOrderID(ctx)
			if err != nil {
				return err
			}
			order = Order{
				ID:            maxOrderID + 1,
				GuestID:       guestID,
				Status:        OrderStatusPreparing,
				CreatedAt:     service.nowFn(),
				Lines:         preview.Lines,
				ItemsTotal:    preview.ItemsTotal,
				PointsApplied: preview.PointsApplied,
				PayableTotal:  preview.PayableTotal,
				Comment:       preview.Comment,
				Serving:       preview.Serving,
				Reservation:   preview.Reservation,
				Card:          preview.Card,
			}
			if err := transactionStore.AppendOrder(ctx, order); err != nil {
				return err
			}
			if preview.PointsApplied == 0 {
				return nil
			}
			account, err := transactionStore.GetAccount(ctx, guestID)
			if err != nil {
				return err
			}
			account.PointsBalance -= preview.PointsApplied
			if account.PointsBalance < 0 {
				account.PointsBalance = 0
			}
			return transactionStore.SaveAccount(ctx, account)
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   operationConfirm,
		GuestID:     guestID,
		OrderID:     order.ID,
		AmountCents: order.PayableTotal,
		Error:       operationError,
	})
	return order, operationError
}

// mergeCartLines sums duplicated menu ids and rejects non-positive
// quantities. The result is ordered by menu id so pricing is deterministic
// under reordering of the input.
func mergeCartLines(lines []CartLine) ([]CartLine, error) {
	quantities := make(map[int]int)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: menu %d quantity %d", ErrInvalidQuantity, line.MenuID, line.Quantity)
		}
		quantities[line.MenuID] += line.Quantity
	}
	merged := make([]CartLine, 0, len(quantities))
	for menuID, quantity := range quantities {
		merged = append(merged, CartLine{MenuID: menuID, Quantity: quantity})
	}
	sort.Slice(merged, func(left, right int) bool { return merged[left].MenuID < merged[right].MenuID })
	return merged, nil
}

// resolveCart prices merged lines against the catalog. Unknown menu ids
// are dropped, not errored.
func (service *Service) resolveCart(merged []CartLine) []OrderLine {
	resolved := make([]OrderLine, 0, len(merged))
	for _, line := range merged {
		item, known := service.catalog.Lookup(line.MenuID)
		if !known {
			continue
		}
		resolved = append(resolved, OrderLine{
			MenuID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  line.Quantity,
			PhotoRef:  item.PhotoRef,
		})
	}
	return resolved
}
