package router

import (
	"net/http"

	"github.com/lumiere-studio/backend/internal/auth"
	"github.com/lumiere-studio/backend/internal/collabs"
	"github.com/lumiere-studio/backend/internal/dashboard"
	"github.com/lumiere-studio/backend/internal/middleware"
	"github.com/lumiere-studio/backend/internal/orders"
	"github.com/lumiere-studio/backend/internal/screenplays"
	"github.com/lumiere-studio/backend/internal/tasks"
)

// Deps carries the handlers and middleware the router wires together.
type Deps struct {
	Auth        *auth.Handler
	Collabs     *collabs.Handler
	Orders      *orders.Handler
	Tasks       *tasks.Handler
	Screenplays *screenplays.Handler
	Dashboard   *dashboard.Handler
	JWTAuth     func(http.Handler) http.Handler
	SpendLimit  func(http.Handler) http.Handler
}

// New returns an http.Handler serving the API under /api/v1. Method and path
// parameters use ServeMux patterns; everything except auth requires a valid
// bearer token.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	const base = "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", d.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", d.Auth.Login)

	authed := func(h http.HandlerFunc) http.Handler {
		return d.JWTAuth(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return d.JWTAuth(middleware.AdminOnly(h))
	}

	// Profile and lumen ledger.
	mux.Handle("GET "+base+"/me", authed(d.Dashboard.GetMe))
	mux.Handle("PATCH "+base+"/me/settings", authed(d.Dashboard.UpdateSettings))
	mux.Handle("GET "+base+"/me/ledger", authed(d.Dashboard.ListLedger))
	mux.Handle("GET "+base+"/me/reconcile", authed(d.Dashboard.Reconcile))
	mux.Handle("POST "+base+"/lumens/topup", authed(d.Dashboard.TopUp))
	mux.Handle("PATCH "+base+"/users/{id}/reputation", admin(d.Dashboard.SetReputation))

	// Collab requests.
	mux.Handle("POST "+base+"/collabs", authed(d.Collabs.Create))
	mux.Handle("GET "+base+"/collabs", authed(d.Collabs.List))
	mux.Handle("GET "+base+"/collabs/suggestions", authed(d.Collabs.Suggestions))
	mux.Handle("POST "+base+"/collabs/{id}/accept", authed(d.Collabs.Accept))
	mux.Handle("POST "+base+"/collabs/{id}/reject", authed(d.Collabs.Reject))
	mux.Handle("POST "+base+"/collabs/{id}/start", authed(d.Collabs.Start))
	mux.Handle("POST "+base+"/collabs/{id}/complete", authed(d.Collabs.Complete))
	mux.Handle("POST "+base+"/collabs/{id}/cancel", authed(d.Collabs.Cancel))

	// Orders. Creation additionally passes the per-order spend cap check.
	mux.Handle("POST "+base+"/orders", d.JWTAuth(d.SpendLimit(http.HandlerFunc(d.Orders.Create))))
	mux.Handle("GET "+base+"/orders", authed(d.Orders.ListOpen))
	mux.Handle("GET "+base+"/orders/mine", authed(d.Orders.ListMine))
	mux.Handle("POST "+base+"/orders/{id}/claim", authed(d.Orders.Claim))
	mux.Handle("POST "+base+"/orders/{id}/start", authed(d.Orders.Start))
	mux.Handle("POST "+base+"/orders/{id}/deliver", authed(d.Orders.Deliver))
	mux.Handle("POST "+base+"/orders/{id}/revision", authed(d.Orders.RequestRevision))
	mux.Handle("POST "+base+"/orders/{id}/complete", authed(d.Orders.Complete))
	mux.Handle("POST "+base+"/orders/{id}/dispute", authed(d.Orders.Dispute))
	mux.Handle("POST "+base+"/orders/{id}/cancel", authed(d.Orders.Cancel))

	// Production tasks.
	mux.Handle("GET "+base+"/tasks", authed(d.Tasks.ListAvailable))
	mux.Handle("GET "+base+"/tasks/mine", authed(d.Tasks.ListMine))
	mux.Handle("POST "+base+"/tasks/{id}/claim", authed(d.Tasks.Claim))
	mux.Handle("POST "+base+"/tasks/{id}/submit", authed(d.Tasks.Submit))
	mux.Handle("POST "+base+"/tasks/{id}/score", admin(d.Tasks.RecordAIScore))
	mux.Handle("POST "+base+"/tasks/{id}/validate", admin(d.Tasks.Validate))
	mux.Handle("POST "+base+"/tasks/{id}/reject", admin(d.Tasks.Reject))

	// Screenplays.
	mux.Handle("POST "+base+"/screenplays", authed(d.Screenplays.Submit))
	mux.Handle("GET "+base+"/screenplays", authed(d.Screenplays.ListMine))
	mux.Handle("GET "+base+"/screenplays/{id}", authed(d.Screenplays.Get))

	return mux
}
