package server

import (
	"net/http"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/identity"
	"github.com/IlyushaZ/rental-store/pkg/metrics"
	"github.com/IlyushaZ/rental-store/pkg/server/handler"
	"github.com/IlyushaZ/rental-store/pkg/server/middleware"
	"github.com/IlyushaZ/rental-store/pkg/service"
	"github.com/IlyushaZ/rental-store/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

type Services struct {
	Item    service.Item
	Booking service.Booking
	Order   service.Order
}

func New(addr string, svc Services, auth *identity.Authenticator) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      Handler(svc, auth),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

func Handler(svc Services, auth *identity.Authenticator) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /items", handler.ItemListPage(svc.Item))
	mux.Handle("GET /items/{id}", handler.ItemGet(svc.Item))
	mux.Handle("GET /items/{id}/availability", handler.ItemAvailability(svc.Booking))
	mux.Handle("GET /items/{id}/calendar", handler.ItemCalendar(svc.Booking))

	mux.Handle("POST /rentals", handler.RentalRequest(svc.Booking))
	mux.Handle("GET /rentals", handler.RentalListAll(svc.Booking))
	mux.Handle("GET /rentals/my", handler.RentalListMine(svc.Booking))
	mux.Handle("GET /rentals/seller", handler.RentalListSeller(svc.Booking))
	mux.Handle("PUT /rentals/{id}/status", handler.RentalSetStatus(svc.Booking))

	mux.Handle("GET /cart", handler.CartGet(svc.Order))
	mux.Handle("POST /cart/lines", handler.CartAddLine(svc.Order))
	mux.Handle("DELETE /cart/lines/{itemId}", handler.CartRemoveItem(svc.Order))

	mux.Handle("POST /orders/checkout", handler.OrderCheckout(svc.Order))
	mux.Handle("GET /orders/my", handler.OrderListMine(svc.Order))
	mux.Handle("PUT /orders/{id}/status", handler.OrderSetStatus(svc.Order))

	mux.Handle("GET /metrics", promhttp.Handler())

	chain := middleware.Chain{
		tracing.Middleware,
		metrics.Middleware,
		middleware.Log,
		middleware.Recovery,
		auth.Middleware,
	}

	return chain.Then(mux)
}
