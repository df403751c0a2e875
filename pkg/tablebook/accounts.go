package tablebook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Register creates an account keyed by phone with a bcrypt password hash
// and a zero points balance.
func (service *Service) Register(ctx context.Context, name string, phone string, password string) (Account, error) {
	var created Account
	operationError := func() error {
		name = strings.TrimSpace(name)
		phone = strings.TrimSpace(phone)
		if name == "" || phone == "" || password == "" {
			return fmt.Errorf("%w: name, phone, and password are required", ErrInvalidRegistration)
		}
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			if _, err := transactionStore.GetAccountByPhone(ctx, phone); err == nil {
				return ErrPhoneTaken
			} else if !errors.Is(err, ErrAccountNotFound) {
				return err
			}
			created = Account{
				Name:         name,
				Phone:        phone,
				PasswordHash: string(passwordHash),
				CreatedAt:    service.nowFn(),
			}
			guestID, err := transactionStore.CreateAccount(ctx, created)
			if err != nil {
				return err
			}
			created.ID = guestID
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationRegister,
		GuestID:   created.ID,
		Error:     operationError,
	})
	return created, operationError
}

// Authenticate verifies phone and password. The same sentinel covers an
// unknown phone and a wrong password.
func (service *Service) Authenticate(ctx context.Context, phone string, password string) (Account, error) {
	account, err := service.store.GetAccountByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// AccountOf returns the stored account for profile views.
func (service *Service) AccountOf(ctx context.Context, guestID GuestID) (Account, error) {
	return service.store.GetAccount(ctx, guestID)
}
