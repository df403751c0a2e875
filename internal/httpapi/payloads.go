package httpapi

import (
	"time"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type bookRequest struct {
	TableID    int    `json:"table_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	HolderName string `json:"holder_name"`
}

type cancelRequest struct {
	TableID int    `json:"table_id"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

type cartItemRequest struct {
	ID       int `json:"id"`
	Quantity int `json:"qty"`
}

type servingRequest struct {
	Mode       string `json:"mode"`
	CustomTime string `json:"custom_time"`
}

type checkoutPreviewRequest struct {
	Items     []cartItemRequest `json:"items"`
	UsePoints bool              `json:"use_points"`
	Comment   string            `json:"comment"`
	Serving   servingRequest    `json:"serving"`
}

type addCardRequest struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	Holder string `json:"holder"`
}

type removeCardRequest struct {
	CreatedAt string `json:"created_at"`
	Last4     string `json:"last4"`
}

type tablePayload struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Seats    int    `json:"seats"`
	ByWindow bool   `json:"by_window"`
}

type menuItemPayload struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Lore       string `json:"lore"`
	Type       string `json:"type"`
	Price      int64  `json:"price"`
	Photo      string `json:"photo"`
	Popularity int    `json:"popularity"`
	Featured   bool   `json:"featured"`
}

func menuItemPayloadFrom(item tablebook.MenuItem) menuItemPayload {
	return menuItemPayload{
		ID:         item.ID,
		Name:       item.Name,
		Lore:       item.Lore,
		Type:       item.Type,
		Price:      item.Price,
		Photo:      item.PhotoRef,
		Popularity: item.Popularity,
		Featured:   item.Featured,
	}
}

type reservationPayload struct {
	TableID    int    `json:"table_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	HolderName string `json:"holder_name"`
	CreatedAt  string `json:"created_at"`
}

func reservationPayloadFrom(reservation tablebook.Reservation) reservationPayload {
	return reservationPayload{
		TableID:    int(reservation.TableID),
		Date:       reservation.Date,
		Time:       reservation.TimeOfDay,
		HolderName: reservation.HolderName,
		CreatedAt:  reservation.CreatedAt.Format(time.RFC3339),
	}
}

type cardPayload struct {
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	Holder    string `json:"holder,omitempty"`
	Expiry    string `json:"expiry,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func cardPayloadFrom(card tablebook.PaymentCard) cardPayload {
	return cardPayload{
		Brand:     card.Brand,
		Last4:     card.Last4,
		Holder:    card.Holder,
		Expiry:    card.Expiry,
		Active:    card.Active,
		CreatedAt: card.CreatedAt.Format(time.RFC3339),
	}
}

type accountPayload struct {
	ID     int64         `json:"id"`
	Name   string        `json:"name"`
	Phone  string        `json:"phone"`
	Points int64         `json:"points"`
	Cards  []cardPayload `json:"cards"`
}

func accountPayloadFrom(account tablebook.Account) accountPayload {
	cards := make([]cardPayload, 0, len(account.Cards))
	for _, card := range account.Cards {
		cards = append(cards, cardPayloadFrom(card))
	}
	return accountPayload{
		ID:     int64(account.ID),
		Name:   account.Name,
		Phone:  account.Phone,
		Points: account.PointsBalance,
		Cards:  cards,
	}
}

type orderLinePayload struct {
	MenuID    int    `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"qty"`
	Photo     string `json:"photo,omitempty"`
}

func orderLinePayloadsFrom(lines []tablebook.OrderLine) []orderLinePayload {
	payloads := make([]orderLinePayload, 0, len(lines))
	for _, line := range lines {
		payloads = append(payloads, orderLinePayload{
			MenuID:    line.MenuID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Photo:     line.PhotoRef,
		})
	}
	return payloads
}

type servingPayload struct {
	Mode       string `json:"mode"`
	CustomTime string `json:"custom_time,omitempty"`
}

func servingPayloadFrom(serving tablebook.ServingChoice) servingPayload {
	return servingPayload{
		Mode:       string(serving.Mode()),
		CustomTime: serving.CustomTime(),
	}
}

type previewPayload struct {
	ID            string             `json:"id"`
	Lines         []orderLinePayload `json:"items"`
	ItemsTotal    int64              `json:"items_total"`
	PointsApplied int64              `json:"points_applied"`
	PayableTotal  int64              `json:"payable_total"`
	Comment       string             `json:"comment,omitempty"`
	Serving       servingPayload     `json:"serving"`
	TableID       int                `json:"table_id"`
	Date          string             `json:"date"`
	Time          string             `json:"time"`
	CardLast4     string             `json:"card_last4"`
}

func previewPayloadFrom(preview tablebook.Preview) previewPayload {
	return previewPayload{
		ID:            preview.ID,
		Lines:         orderLinePayloadsFrom(preview.Lines),
		ItemsTotal:    preview.ItemsTotal,
		PointsApplied: preview.PointsApplied,
		PayableTotal:  preview.PayableTotal,
		Comment:       preview.Comment,
		Serving:       servingPayloadFrom(preview.Serving),
		TableID:       int(preview.Reservation.TableID),
		Date:          preview.Reservation.Date,
		Time:          preview.Reservation.TimeOfDay,
		CardLast4:     preview.Card.Last4,
	}
}

type orderPayload struct {
	ID            int64              `json:"id"`
	Status        string             `json:"status"`
	Lines         []orderLinePayload `json:"items"`
	ItemsTotal    int64              `json:"items_total"`
	PointsApplied int64              `json:"points_applied"`
	PayableTotal  int64              `json:"payable_total"`
	Comment       string             `json:"comment,omitempty"`
	Serving       servingPayload     `json:"serving"`
	TableID       int                `json:"table_id"`
	Date          string             `json:"date"`
	Time          string             `json:"time"`
	CardLast4     string             `json:"card_last4"`
	CreatedAt     string             `json:"created_at"`
}

func orderPayloadFrom(order tablebook.Order) orderPayload {
	return orderPayload{
		ID:            order.ID,
		Status:        string(order.Status),
		Lines:         orderLinePayloadsFrom(order.Lines),
		ItemsTotal:    order.ItemsTotal,
		PointsApplied: order.PointsApplied,
		PayableTotal:  order.PayableTotal,
		Comment:       order.Comment,
		Serving:       servingPayloadFrom(order.Serving),
		TableID:       int(order.Reservation.TableID),
		Date:          order.Reservation.Date,
		Time:          order.Reservation.TimeOfDay,
		CardLast4:     order.Card.Last4,
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
	}
}

type preparingOrderPayload struct {
	Order     orderPayload `json:"order"`
	CookStart string       `json:"cook_start"`
	ReadyAt   string       `json:"ready_at"`
}

func preparingOrderPayloadFrom(preparing tablebook.PreparingOrder) preparingOrderPayload {
	return preparingOrderPayload{
		Order:     orderPayloadFrom(preparing.Order),
		CookStart: preparing.CookStart.Format(time.RFC3339),
		ReadyAt:   preparing.ReadyAt.Format(time.RFC3339),
	}
}
