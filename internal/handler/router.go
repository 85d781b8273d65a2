package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/profile", h.GetProfile)
			r.Get("/balance", h.GetBalance)
			r.Get("/referrals", h.ListReferrals)

			r.Get("/plans", h.ListPlans)
			r.Post("/investments", h.CreateInvestment)
			r.Get("/investments", h.ListInvestments)
			r.Post("/investments/{id}/topup", h.TopUpInvestment)

			r.Post("/deposits", h.RequestDeposit)
			r.Post("/withdrawals", h.RequestWithdrawal)
			r.Get("/transactions", h.ListTransactions)

			r.Post("/points/exchange", h.ExchangePoints)
			r.Post("/points/purchase", h.PurchasePoints)

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
			r.Post("/tasks/{id}/executions", h.SubmitExecution)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(h.authMiddleware.AdminMiddleware)

		r.Get("/transactions", h.ListPendingTransactions)
		r.Post("/transactions/{id}/approve", h.ApproveTransaction)
		r.Post("/transactions/{id}/reject", h.RejectTransaction)

		r.Get("/executions", h.ListPendingExecutions)
		r.Post("/executions/{id}/approve", h.ApproveExecution)
		r.Post("/executions/{id}/reject", h.RejectExecution)

		r.Post("/plans", h.CreatePlan)
		r.Put("/plans/{id}", h.UpdatePlan)
		r.Delete("/plans/{id}", h.DeactivatePlan)

		r.Post("/accrual/run", h.RunAccrual)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
