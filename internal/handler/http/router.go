package http

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
	"github.com/meridianhr/payroll-backend-go/internal/handler/http/middleware"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/jwt"
)

func NewRouter(JWTService jwt.Service, payrollHandler PayrollHandler, sideFundHandler SideFundHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-backend"),
		slog.String("version", "v1.0.0"),
		slog.String("env", "development"),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/payroll-runs", func(r chi.Router) {
				// Any payroll role may read runs
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(user.RolePayrollSpecialist, user.RolePayrollManager, user.RoleFinanceStaff))
					r.Get("/", payrollHandler.ListRuns)
					r.Get("/{id}", payrollHandler.GetRun)
					r.Get("/{id}/details", payrollHandler.ListDetails)
					r.Get("/{id}/payslips", payrollHandler.ListPayslips)
					r.Get("/{id}/payslips/export", payrollHandler.ExportPayslipsCSV)
				})

				// Specialist operations
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(user.RolePayrollSpecialist))
					r.Post("/", payrollHandler.CreateRun)
					r.Post("/{id}/submit", payrollHandler.SubmitForReview)
					r.Post("/{id}/reopen", payrollHandler.Reopen)
				})

				// Manager operations
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(user.RolePayrollManager))
					r.Post("/{id}/approve", payrollHandler.ApproveByManager)
					r.Post("/{id}/lock", payrollHandler.Freeze)
					r.Post("/{id}/unlock", payrollHandler.Unfreeze)
				})

				// Finance operations
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(user.RoleFinanceStaff))
					r.Post("/{id}/finance-approve", payrollHandler.ApproveByFinance)
					r.Post("/{id}/payslips/generate", payrollHandler.GeneratePayslips)
				})

				// Rejection role depends on the run's current status; the
				// service enforces it.
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(user.RolePayrollSpecialist, user.RolePayrollManager, user.RoleFinanceStaff))
					r.Post("/{id}/reject", payrollHandler.Reject)
				})
			})

			r.Route("/payslips", func(r chi.Router) {
				r.Get("/my", payrollHandler.MyPayslips)
				r.Get("/{id}", payrollHandler.GetPayslip)
			})

			r.Route("/side-funds", func(r chi.Router) {
				r.Use(middleware.RequireRole(user.RolePayrollManager, user.RoleFinanceStaff))
				r.Get("/pending", sideFundHandler.ListPending)
				r.Get("/{id}", sideFundHandler.Get)
				r.Post("/{id}/approve", sideFundHandler.Approve)
				r.Post("/{id}/reject", sideFundHandler.Reject)
				r.Put("/{id}/payment-date", sideFundHandler.UpdatePaymentDate)
			})
		})
	})
	return r
}
