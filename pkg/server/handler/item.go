package handler

import (
	"net/http"

	"github.com/IlyushaZ/rental-store/pkg/availability"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/IlyushaZ/rental-store/pkg/service"
)

func ItemGet(svc service.Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		item, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, item)
	}
}

func ItemListPage(svc service.Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageNum, err := queryInt(r, "page_num", service.DefaultPageNum)
		if err != nil {
			writeError(w, err)
			return
		}

		pageSize, err := queryInt(r, "page_size", service.DefaultPageSize)
		if err != nil {
			writeError(w, err)
			return
		}

		var resp ListPageResp[model.Item]

		resp.Page, resp.Total, err = svc.ListPage(r.Context(), pageNum, pageSize)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type availabilityResp struct {
	ItemID int64  `json:"item_id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	availability.Result
}

func ItemAvailability(svc service.Booking) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		rng, err := queryRange(r)
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := svc.CheckAvailability(r.Context(), id, rng)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, availabilityResp{
			ItemID: id,
			Start:  rng.Start.Format(model.DateLayout),
			End:    rng.End.Format(model.DateLayout),
			Result: res,
		})
	}
}

func ItemCalendar(svc service.Booking) http.HandlerFunc {
	return authenticated(func(w http.ResponseWriter, r *http.Request, caller model.Caller) {
		id, err := pathInt64(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		rng, err := queryRange(r)
		if err != nil {
			writeError(w, err)
			return
		}

		days, err := svc.Calendar(r.Context(), caller, id, rng)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ListResp[availability.DayUsage]{Items: days})
	})
}
