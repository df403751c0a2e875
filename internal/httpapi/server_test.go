package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

type memoryStore struct {
	reservations []tablebook.Reservation
	orders       []tablebook.Order
	accounts     map[tablebook.GuestID]tablebook.Account
	nextGuestID  tablebook.GuestID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:    map[tablebook.GuestID]tablebook.Account{},
		nextGuestID: 1,
	}
}

func (store *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore tablebook.Store) error) error {
	return fn(ctx, store)
}

func (store *memoryStore) ListReservations(ctx context.Context) ([]tablebook.Reservation, error) {
	return append([]tablebook.Reservation(nil), store.reservations...), nil
}

func (store *memoryStore) AppendReservation(ctx context.Context, reservation tablebook.Reservation) error {
	store.reservations = append(store.reservations, reservation)
	return nil
}

func (store *memoryStore) ReplaceReservations(ctx context.Context, reservations []tablebook.Reservation) error {
	store.reservations = append([]tablebook.Reservation(nil), reservations...)
	return nil
}

func (store *memoryStore) ListOrdersByGuest(ctx context.Context, guestID tablebook.GuestID) ([]tablebook.Order, error) {
	var orders []tablebook.Order
	for _, order := range store.orders {
		if order.GuestID == guestID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (store *memoryStore) MaxOrderID(ctx context.Context) (int64, error) {
	var maxID int64
	for _, order := range store.orders {
		if order.ID > maxID {
			maxID = order.ID
		}
	}
	return maxID, nil
}

func (store *memoryStore) AppendOrder(ctx context.Context, order tablebook.Order) error {
	store.orders = append(store.orders, order)
	return nil
}

func (store *memoryStore) GetAccount(ctx context.Context, guestID tablebook.GuestID) (tablebook.Account, error) {
	account, ok := store.accounts[guestID]
	if !ok {
		return tablebook.Account{}, tablebook.ErrAccountNotFound
	}
	return account, nil
}

func (store *memoryStore) GetAccountByPhone(ctx context.Context, phone string) (tablebook.Account, error) {
	for _, account := range store.accounts {
		if account.Phone == phone {
			return account, nil
		}
	}
	return tablebook.Account{}, tablebook.ErrAccountNotFound
}

func (store *memoryStore) CreateAccount(ctx context.Context, account tablebook.Account) (tablebook.GuestID, error) {
	guestID := store.nextGuestID
	store.nextGuestID++
	account.ID = guestID
	store.accounts[guestID] = account
	return guestID, nil
}

func (store *memoryStore) SaveAccount(ctx context.Context, account tablebook.Account) error {
	store.accounts[account.ID] = account
	return nil
}

type memoryCatalog map[int]tablebook.MenuItem

func (catalog memoryCatalog) Lookup(menuID int) (tablebook.MenuItem, bool) {
	item, ok := catalog[menuID]
	return item, ok
}

func (catalog memoryCatalog) Items() []tablebook.MenuItem {
	items := make([]tablebook.MenuItem, 0, len(catalog))
	for _, item := range catalog {
		items = append(items, item)
	}
	return items
}

func newTestServer(test *testing.T) *Server {
	test.Helper()
	return newTestServerAt(test, testNow)
}

func newTestServerAt(test *testing.T, now time.Time) *Server {
	test.Helper()
	clock := func() time.Time { return now }
	catalog := memoryCatalog{
		1: {ID: 1, Name: "Borscht", Lore: "beet soup", Type: "soup", Price: 100},
	}
	service, err := tablebook.NewService(newMemoryStore(), catalog, tablebook.NewMemoryPreviewCache(0, clock), clock)
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	cfg := Config{SessionSigningKey: "test-signing-key"}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("config: %v", err)
	}
	return NewServer(cfg, service, catalog, zap.NewNop())
}

func doJSON(test *testing.T, server *Server, method string, path string, token string, body any) *httptest.ResponseRecorder {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)
	return recorder
}

func registerGuest(test *testing.T, server *Server) string {
	test.Helper()
	recorder := doJSON(test, server, http.MethodPost, "/api/auth/register", "", registerRequest{
		Name:     "Anna",
		Phone:    "+70000000001",
		Password: "secret-pass",
	})
	if recorder.Code != http.StatusCreated {
		test.Fatalf("register status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		test.Fatalf("decode register response: %v", err)
	}
	if response.Token == "" {
		test.Fatalf("expected session token")
	}
	return response.Token
}

func TestRegisterLoginAndBook(test *testing.T) {
	test.Parallel()
	server := newTestServer(test)
	token := registerGuest(test, server)

	recorder := doJSON(test, server, http.MethodPost, "/api/bookings", token, bookRequest{
		TableID:    3,
		Date:       "2026-03-14",
		Time:       "18:00",
		HolderName: "Anna",
	})
	if recorder.Code != http.StatusCreated {
		test.Fatalf("book status %d: %s", recorder.Code, recorder.Body.String())
	}

	login := doJSON(test, server, http.MethodPost, "/api/auth/login", "", loginRequest{
		Phone:    "+70000000001",
		Password: "secret-pass",
	})
	if login.Code != http.StatusOK {
		test.Fatalf("login status %d: %s", login.Code, login.Body.String())
	}

	state := doJSON(test, server, http.MethodGet, "/api/booking/state", token, nil)
	if state.Code != http.StatusOK {
		test.Fatalf("state status %d: %s", state.Code, state.Body.String())
	}
	var statePayload struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(state.Body.Bytes(), &statePayload); err != nil {
		test.Fatalf("decode state: %v", err)
	}
	if statePayload.State != "active" {
		test.Fatalf("expected active state, got %q", statePayload.State)
	}
}

func TestBookingConflictMapsToConflictStatus(test *testing.T) {
	test.Parallel()
	server := newTestServer(test)
	token := registerGuest(test, server)

	first := doJSON(test, server, http.MethodPost, "/api/bookings", token, bookRequest{
		TableID: 3, Date: "2026-03-14", Time: "18:00", HolderName: "Anna",
	})
	if first.Code != http.StatusCreated {
		test.Fatalf("book status %d: %s", first.Code, first.Body.String())
	}
	second := doJSON(test, server, http.MethodPost, "/api/bookings", token, bookRequest{
		TableID: 3, Date: "2026-03-14", Time: "18:30", HolderName: "Anna",
	})
	if second.Code != http.StatusConflict {
		test.Fatalf("expected 409, got %d: %s", second.Code, second.Body.String())
	}
	var response struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &response); err != nil {
		test.Fatalf("decode error: %v", err)
	}
	if response.Error.Code != "table_unavailable" {
		test.Fatalf("expected table_unavailable, got %q", response.Error.Code)
	}
}

func TestProtectedRoutesRequireToken(test *testing.T) {
	test.Parallel()
	server := newTestServer(test)

	recorder := doJSON(test, server, http.MethodGet, "/api/notifications", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401, got %d", recorder.Code)
	}
	bad := doJSON(test, server, http.MethodGet, "/api/notifications", "not-a-token", nil)
	if bad.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 for garbage token, got %d", bad.Code)
	}
}

func TestCheckoutFlowOverHTTP(test *testing.T) {
	test.Parallel()
	server := newTestServer(test)
	token := registerGuest(test, server)

	book := doJSON(test, server, http.MethodPost, "/api/bookings", token, bookRequest{
		TableID: 3, Date: "2026-03-14", Time: "18:00", HolderName: "Anna",
	})
	if book.Code != http.StatusCreated {
		test.Fatalf("book status %d: %s", book.Code, book.Body.String())
	}
	card := doJSON(test, server, http.MethodPost, "/api/cards", token, addCardRequest{
		Number: "2200 1234 5678 9010",
		Expiry: "12/27",
		Holder: "ANNA K",
	})
	if card.Code != http.StatusCreated {
		test.Fatalf("add card status %d: %s", card.Code, card.Body.String())
	}

	preview := doJSON(test, server, http.MethodPost, "/api/checkout/preview", token, checkoutPreviewRequest{
		Items:   []cartItemRequest{{ID: 1, Quantity: 2}},
		Serving: servingRequest{Mode: "at_start"},
	})
	if preview.Code != http.StatusOK {
		test.Fatalf("preview status %d: %s", preview.Code, preview.Body.String())
	}
	var previewResponse previewPayload
	if err := json.Unmarshal(preview.Body.Bytes(), &previewResponse); err != nil {
		test.Fatalf("decode preview: %v", err)
	}
	if previewResponse.ItemsTotal != 200 || previewResponse.PayableTotal != 200 {
		test.Fatalf("unexpected preview totals: %+v", previewResponse)
	}

	confirm := doJSON(test, server, http.MethodPost, "/api/checkout/confirm", token, nil)
	if confirm.Code != http.StatusCreated {
		test.Fatalf("confirm status %d: %s", confirm.Code, confirm.Body.String())
	}
	var orderResponse orderPayload
	if err := json.Unmarshal(confirm.Body.Bytes(), &orderResponse); err != nil {
		test.Fatalf("decode order: %v", err)
	}
	if orderResponse.ID != 1 || orderResponse.Status != "preparing" {
		test.Fatalf("unexpected order: %+v", orderResponse)
	}

	stale := doJSON(test, server, http.MethodPost, "/api/checkout/confirm", token, nil)
	if stale.Code != http.StatusConflict {
		test.Fatalf("expected 409 for second confirm, got %d: %s", stale.Code, stale.Body.String())
	}
}

// The created_at echoed by the add-card response is the removal key, so
// it must locate the card again even when the server clock carries
// sub-second precision that the wire format does not.
func TestRemoveCardByEchoedCreatedAt(test *testing.T) {
	test.Parallel()
	server := newTestServerAt(test, time.Date(2026, 3, 14, 12, 0, 0, 123456789, time.Local))
	token := registerGuest(test, server)

	added := doJSON(test, server, http.MethodPost, "/api/cards", token, addCardRequest{
		Number: "2200 1234 5678 9010",
		Expiry: "12/27",
		Holder: "ANNA K",
	})
	if added.Code != http.StatusCreated {
		test.Fatalf("add card status %d: %s", added.Code, added.Body.String())
	}
	var addedCard cardPayload
	if err := json.Unmarshal(added.Body.Bytes(), &addedCard); err != nil {
		test.Fatalf("decode card: %v", err)
	}

	removed := doJSON(test, server, http.MethodDelete, "/api/cards", token, removeCardRequest{
		CreatedAt: addedCard.CreatedAt,
	})
	if removed.Code != http.StatusOK {
		test.Fatalf("remove card status %d: %s", removed.Code, removed.Body.String())
	}

	account := doJSON(test, server, http.MethodGet, "/api/account", token, nil)
	if account.Code != http.StatusOK {
		test.Fatalf("account status %d: %s", account.Code, account.Body.String())
	}
	var accountResponse accountPayload
	if err := json.Unmarshal(account.Body.Bytes(), &accountResponse); err != nil {
		test.Fatalf("decode account: %v", err)
	}
	if len(accountResponse.Cards) != 0 {
		test.Fatalf("expected no cards left, got %+v", accountResponse.Cards)
	}
}

func TestAvailabilityEndpoint(test *testing.T) {
	test.Parallel()
	server := newTestServer(test)
	token := registerGuest(test, server)

	book := doJSON(test, server, http.MethodPost, "/api/bookings", token, bookRequest{
		TableID: 3, Date: "2026-03-14", Time: "18:00", HolderName: "Anna",
	})
	if book.Code != http.StatusCreated {
		test.Fatalf("book status %d: %s", book.Code, book.Body.String())
	}

	path := fmt.Sprintf("/api/availability?date=%s&time=%s", "2026-03-14", "18:30")
	recorder := doJSON(test, server, http.MethodGet, path, "", nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("availability status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		Occupied []int `json:"occupied"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		test.Fatalf("decode availability: %v", err)
	}
	if len(response.Occupied) != 1 || response.Occupied[0] != 3 {
		test.Fatalf("expected table 3 occupied, got %v", response.Occupied)
	}
}
