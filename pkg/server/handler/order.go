package handler

import (
	"net/http"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/IlyushaZ/rental-store/pkg/service"
	"github.com/google/uuid"
)

type cartLineReq struct {
	ItemID    int64  `json:"item_id" validate:"required,gt=0"`
	Type      string `json:"type" validate:"required,oneof=purchase rental"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required_if=Type rental"`
	EndDate   string `json:"end_date" validate:"required_if=Type rental"`
}

func (c cartLineReq) line() (model.CartLine, error) {
	line := model.CartLine{
		ItemID:   c.ItemID,
		Type:     model.LineType(c.Type),
		Quantity: c.Quantity,
	}

	if line.Type == model.LineRental {
		rng, err := model.ParseDateRange(c.StartDate, c.EndDate)
		if err != nil {
			return model.CartLine{}, err
		}
		line.Range = &rng
	} else if c.StartDate != "" || c.EndDate != "" {
		return model.CartLine{}, model.Validationf("purchase line can't have a date range")
	}

	return line, nil
}

type checkoutReq struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address" validate:"required"`
	City          string `json:"city" validate:"required"`
	ZipCode       string `json:"zip_code" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

func CartGet(svc service.Order) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		cart, err := svc.GetCart(r.Context(), caller)
		writeCart(w, cart, err)
	})
}

func CartAddLine(svc service.Order) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		var req cartLineReq
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}

		line, err := req.line()
		if err != nil {
			writeError(w, err)
			return
		}

		cart, err := svc.AddLine(r.Context(), caller, line)
		writeCart(w, cart, err)
	})
}

func CartRemoveItem(svc service.Order) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		itemID, err := pathInt64(r, "itemId")
		if err != nil {
			writeError(w, err)
			return
		}

		cart, err := svc.RemoveItem(r.Context(), caller, itemID)
		writeCart(w, cart, err)
	})
}

func OrderCheckout(svc service.Order) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		var req checkoutReq
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), caller, model.ShippingInfo(req))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	})
}

func OrderListMine(svc service.Order) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		orders, err := svc.ListOrders(r.Context(), caller)
		if err != nil {
			writeError(w, err)
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}

		writeJSON(w, http.StatusOK, ListResp[model.Order]{Items: orders})
	})
}

func OrderSetStatus(svc service.Order) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, model.Validationf("invalid order id %q", r.PathValue("id")))
			return
		}

		var req statusReq
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}

		status, err := req.parse()
		if err != nil {
			writeError(w, err)
			return
		}

		order, err := svc.SetOrderStatus(r.Context(), caller, id, status)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	})
}

func writeCart(w http.ResponseWriter, cart model.Cart, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}
	writeJSON(w, http.StatusOK, cart)
}
