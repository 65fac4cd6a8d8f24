package handler

import (
	"net/http"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/IlyushaZ/rental-store/pkg/service"
	"github.com/google/uuid"
)

type rentalReq struct {
	ItemID    int64  `json:"item_id" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func RentalRequest(svc service.Booking) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		var req rentalReq
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}

		rng, err := model.ParseDateRange(req.StartDate, req.EndDate)
		if err != nil {
			writeError(w, err)
			return
		}

		entry, err := svc.RequestRental(r.Context(), caller, service.RentalRequest{
			ItemID:   req.ItemID,
			Range:    rng,
			Quantity: req.Quantity,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, entry)
	})
}

func RentalListMine(svc service.Booking) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		entries, err := svc.ListForOwner(r.Context(), caller)
		writeEntries(w, entries, err)
	})
}

func RentalListSeller(svc service.Booking) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		entries, err := svc.ListForSeller(r.Context(), caller)
		writeEntries(w, entries, err)
	})
}

func RentalListAll(svc service.Booking) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		entries, err := svc.ListAll(r.Context(), caller)
		writeEntries(w, entries, err)
	})
}

func RentalSetStatus(svc service.Booking) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, model.Validationf("invalid booking id %q", r.PathValue("id")))
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

		entry, err := svc.SetBookingStatus(r.Context(), caller, id, status)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, entry)
	})
}

func writeEntries(w http.ResponseWriter, entries []model.BookingEntry, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.BookingEntry{}
	}
	writeJSON(w, http.StatusOK, ListResp[model.BookingEntry]{Items: entries})
}
