package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/meridianhr/payroll-backend-go/internal/config"
	appHTTP "github.com/meridianhr/payroll-backend-go/internal/handler/http"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/database"
	"github.com/meridianhr/payroll-backend-go/internal/pkg/jwt"
	"github.com/meridianhr/payroll-backend-go/internal/repository/postgresql"
	payrollService "github.com/meridianhr/payroll-backend-go/internal/service/payroll"
	sideFundService "github.com/meridianhr/payroll-backend-go/internal/service/sidefund"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "payroll-backend"),
	)

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	userRepo := postgresql.NewUserRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	payConfigRepo := postgresql.NewPayConfigRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	leaveRepo := postgresql.NewLeaveRepository(db)
	penaltyLedger := postgresql.NewPenaltyLedgerRepository(db)
	refundLedger := postgresql.NewRefundLedgerRepository(db)
	sideFundRepo := postgresql.NewSideFundRepository(db)
	runRepo := postgresql.NewPayrollRunRepository(db)
	detailRepo := postgresql.NewPayrollDetailRepository(db)
	payslipRepo := postgresql.NewPayslipRepository(db)

	transact := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return postgresql.WithTransaction(ctx, db, fn)
	}

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)

	calculator := payrollService.NewCalculator(
		attendanceRepo,
		leaveRepo,
		penaltyLedger,
		refundLedger,
		sideFundRepo,
		detailRepo,
		payslipRepo,
		payrollService.StandardRates{},
		logger,
	)
	aggregator := payrollService.NewAggregator(
		calculator,
		employeeRepo,
		payConfigRepo,
		detailRepo,
		transact,
		cfg.Payroll.WorkerLimit,
		cfg.Payroll.IrregularitiesCap,
		logger,
	)
	payrollSvc := payrollService.NewService(runRepo, detailRepo, payslipRepo, aggregator, transact, logger)
	sideFundSvc := sideFundService.NewService(sideFundRepo, userRepo, logger)

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	sideFundHandler := appHTTP.NewSideFundHandler(sideFundSvc)

	router := appHTTP.NewRouter(JWTService, payrollHandler, sideFundHandler)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
