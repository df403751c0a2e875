package tablebook

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// AddCard validates the card stub, deactivates every existing card, and
// appends the new card as the sole active one. Only the brand and last
// four digits survive; the full number is never stored.
func (service *Service) AddCard(ctx context.Context, guestID GuestID, number string, expiry string, holder string) (PaymentCard, error) {
	var added PaymentCard
	operationError := func() error {
		digits := stripNonDigits(number)
		if len(digits) < minCardDigits {
			return fmt.Errorf("%w: %d digits", ErrInvalidCardNumber, len(digits))
		}
		expiry = strings.TrimSpace(expiry)
		if expiry != "" && !strings.Contains(expiry, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidExpiry, expiry)
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			account, err := transactionStore.GetAccount(ctx, guestID)
			if err != nil {
				return err
			}
			for index := range account.Cards {
				account.Cards[index].Active = false
			}
			added = PaymentCard{
				Brand:  defaultCardBrand,
				Last4:  digits[len(digits)-cardLast4Digits:],
				Holder: strings.TrimSpace(holder),
				Expiry: expiry,
				Active: true,
				// CreatedAt is the removal key and round-trips through
				// RFC3339 on the wire, so it carries second precision.
				CreatedAt: service.nowFn().Truncate(time.Second),
			}
			account.Cards = append(account.Cards, added)
			return transactionStore.SaveAccount(ctx, account)
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationAddCard,
		GuestID:   guestID,
		Error:     operationError,
	})
	return added, operationError
}

// RemoveCard deletes a card located by its creation timestamp, falling
// back to a last4 match only when no timestamp was supplied. Removing the
// active card promotes the last card left in sequence order, keeping the
// registry non-empty-implies-one-active.
func (service *Service) RemoveCard(ctx context.Context, guestID GuestID, createdAt *time.Time, last4 string) (PaymentCard, error) {
	var removed PaymentCard
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := transactionStore.GetAccount(ctx, guestID)
		if err != nil {
			return err
		}
		removedIndex := -1
		if createdAt != nil {
			for index, card := range account.Cards {
				if card.CreatedAt.Equal(*createdAt) {
					removedIndex = index
					break
				}
			}
		} else if last4 != "" {
			for index, card := range account.Cards {
				if card.Last4 == last4 {
					removedIndex = index
					break
				}
			}
		}
		if removedIndex < 0 {
			return ErrCardNotFound
		}
		removed = account.Cards[removedIndex]
		account.Cards = append(account.Cards[:removedIndex], account.Cards[removedIndex+1:]...)
		if removed.Active && len(account.Cards) > 0 {
			if _, hasActive := account.activeCard(); !hasActive {
				account.Cards[len(account.Cards)-1].Active = true
			}
		}
		return transactionStore.SaveAccount(ctx, account)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRemoveCard,
		GuestID:   guestID,
		Error:     operationError,
	})
	return removed, operationError
}

func stripNonDigits(raw string) string {
	var builder strings.Builder
	for _, character := range raw {
		if unicode.IsDigit(character) {
			builder.WriteRune(character)
		}
	}
	return builder.String()
}
