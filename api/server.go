/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, included in log lines
  2. Logger:     One zerolog line per request (logging.RequestLogger)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from the ERP front end

  POST /api/payslips/generate is additionally throttled (generateRate,
  generateBurst); callers over the limit get 429.

ROUTE GROUPS:
  /api/employees/*      Employees, current contract, leave balances
  /api/holidays         Holiday calendar
  /api/line-types       Payslip line types
  /api/rulesets/*       Cost rulesets
  /api/contracts/*      Contracts and their workflow
  /api/leave/*          Leave periods and types
  /api/leaves/*         Leave requests
  /api/entitlements/*   Leave entitlements
  /api/leave-payments/* Leave payments
  /api/shifts/*         Working shifts
  /api/payslips/*       Payslips, exports and generation
  /api/lines/*          Payslip lines and attachments
  /api/scheduler        Generation schedule status
  /healthz              Liveness

SEE ALSO:
  - handlers*.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/warp/payroll-engine/logging"
)

const (
	generateRate  = rate.Limit(1.0 / 10) // one manual run every 10s on average
	generateBurst = 5
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger, origins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/contract", h.GetCurrentContract)
			r.Get("/{id}/balances", h.GetBalances)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		r.Route("/line-types", func(r chi.Router) {
			r.Get("/", h.ListLineTypes)
			r.Post("/", h.CreateLineType)
		})

		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", h.ListRuleSets)
			r.Post("/", h.SaveRuleSet)
			r.Get("/{id}", h.GetRuleSet)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Put("/{id}", h.UpdateContract)
			r.Post("/{id}/confirm", h.contractAction("confirm", h.Payroll.ConfirmContract))
			r.Post("/{id}/draft", h.contractAction("reset", h.Payroll.DraftContract))
			r.Post("/{id}/cancel", h.contractAction("cancel", h.Payroll.CancelContract))
			r.Post("/{id}/copy", h.CopyContract)
			r.Get("/{id}/summary", h.GetHoursSummary)
			r.Get("/{id}/rule", h.GetMatchingRule)
		})

		r.Route("/leave", func(r chi.Router) {
			r.Get("/periods", h.ListLeavePeriods)
			r.Post("/periods", h.CreateLeavePeriod)
			r.Get("/types", h.ListLeaveTypes)
			r.Post("/types", h.CreateLeaveType)
		})

		r.Route("/leaves", func(r chi.Router) {
			r.Get("/", h.ListLeaves)
			r.Post("/", h.RequestLeave)
			r.Post("/{id}/{action}", h.LeaveAction)
		})

		r.Route("/entitlements", func(r chi.Router) {
			r.Get("/", h.ListEntitlements)
			r.Post("/", h.CreateEntitlement)
			r.Delete("/{id}", h.DeleteEntitlement)
		})

		r.Route("/leave-payments", func(r chi.Router) {
			r.Get("/", h.ListLeavePayments)
			r.Post("/", h.CreateLeavePayment)
			r.Post("/{id}/detach", h.DetachPayment)
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Get("/{id}", h.GetShift)
			r.Put("/{id}", h.UpdateShift)
			r.Delete("/{id}", h.DeleteShift)
			r.Get("/{id}/cost", h.GetShiftCost)
			r.Post("/{id}/detach", h.DetachShift)
			r.Post("/{id}/{action}", h.ShiftAction)
		})

		r.Route("/payslips", func(r chi.Router) {
			r.Get("/", h.ListPayslips)
			r.Post("/", h.CreatePayslip)
			r.Get("/register.csv", h.ExportRegister)
			r.With(throttle(rate.NewLimiter(generateRate, generateBurst))).Post("/generate", h.GeneratePayslips)
			r.Get("/{id}", h.GetPayslip)
			r.Delete("/{id}", h.DeletePayslip)
			r.Post("/{id}/copy", h.CopyPayslip)
			r.Get("/{id}/pdf", h.GetPayslipPDF)
			r.Post("/{id}/lines", h.AddLine)
		})

		r.Route("/lines", func(r chi.Router) {
			r.Put("/{id}", h.SetLineHours)
			r.Delete("/{id}", h.RemoveLine)
			r.Post("/{id}/shifts", h.AttachShifts)
			r.Post("/{id}/entitlements", h.GenerateEntitlement)
			r.Post("/{id}/payments", h.AttachPayments)
		})

		r.Get("/scheduler", h.GetSchedulerStatus)
	})

	return r
}

// throttle rejects requests once l runs out of tokens.
func throttle(l *rate.Limiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(l.Limit()))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "Too many generation runs", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
