package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/metrics"
	"github.com/adibqt/LibroTrack/internal/middleware"
	"github.com/adibqt/LibroTrack/internal/services"
)

// RouterDeps collects everything the HTTP surface is built from. The four
// lifecycle services are normally the same *services.Lifecycle.
type RouterDeps struct {
	Loans         LoanService
	Reservations  ReservationService
	Fines         FineService
	Catalog       CatalogService
	Reports       ReportService
	Notifications services.NotificationQueue

	Auth        *middleware.AuthMiddleware
	Tokens      TokenRevoker
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Metrics

	DB    HealthChecker
	Redis HealthChecker
}

// NewRouter builds the gin engine with every route under /api/v1
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(nil)
	}

	healthHandler := NewHealthHandler(deps.DB, deps.Redis)
	loanHandler := NewLoanHandler(deps.Loans)
	reservationHandler := NewReservationHandler(deps.Reservations)
	fineHandler := NewFineHandler(deps.Fines)
	catalogHandler := NewCatalogHandler(deps.Catalog)

	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Public routes (no authentication required)
	public := r.Group("/api/v1")
	public.Use(rateLimiter.APILimit())
	{
		public.GET("/ping", healthHandler.Ping)
		public.GET("/health", healthHandler.Health)

		public.GET("/catalog/books", catalogHandler.ListBooks)
		public.GET("/catalog/books/:id", catalogHandler.GetBook)
		public.GET("/catalog/books/:id/availability", catalogHandler.GetAvailability)
	}

	// Protected routes (authentication required)
	protected := r.Group("/api/v1")
	protected.Use(deps.Auth.RequireAuth())
	protected.Use(rateLimiter.APILimit())
	protected.Use(middleware.NoCache())
	{
		if deps.Tokens != nil {
			authHandler := NewAuthHandler(deps.Tokens)
			protected.GET("/auth/me", authHandler.Me)
			protected.POST("/auth/logout", authHandler.Logout)
		}

		loans := protected.Group("/loans")
		{
			loans.POST("", loanHandler.IssueLoan)
			loans.POST("/:id/return", loanHandler.ReturnLoan)
			loans.POST("/:id/lost", loanHandler.MarkLost)
			loans.GET("/user/:userId", loanHandler.ListUserLoans)
		}

		reservations := protected.Group("/reservations")
		{
			reservations.POST("", reservationHandler.CreateReservation)
			reservations.GET("", reservationHandler.ListReservations)
			reservations.POST("/:id/cancel", reservationHandler.CancelReservation)
			reservations.POST("/:id/fulfill", reservationHandler.FulfillReservation)
			reservations.POST("/expire/run", rateLimiter.AdminLimit(), reservationHandler.ExpireDue)
		}

		fines := protected.Group("/fines")
		{
			fines.POST("", fineHandler.AssessFine)
			fines.GET("", fineHandler.ListFines)
			fines.GET("/:id", fineHandler.GetFine)
			fines.PATCH("/:id/pay", fineHandler.PayFine)
			fines.PATCH("/:id/waive", fineHandler.WaiveFine)
			fines.GET("/user/:userId", fineHandler.ListUserFines)
		}

		protected.GET("/members/:userId/reservations/history", reservationHandler.MemberHistory)

		catalog := protected.Group("/catalog/books")
		{
			catalog.POST("", catalogHandler.CreateBook)
			catalog.PUT("/:id", catalogHandler.UpdateBook)
			catalog.GET("/low-stock", catalogHandler.LowStock)
		}

		staff := protected.Group("")
		staff.Use(deps.Auth.RequireStaff())
		{
			if deps.Notifications != nil {
				notificationHandler := NewNotificationHandler(deps.Notifications)
				staff.GET("/notifications/pending", notificationHandler.Pending)
				staff.POST("/notifications/:id/sent", notificationHandler.MarkSent)
				staff.POST("/notifications/:id/failed", notificationHandler.MarkFailed)
			}

			if deps.Reports != nil {
				reportHandler := NewReportHandler(deps.Reports)
				reports := staff.Group("/reports")
				reports.Use(rateLimiter.AdminLimit())
				reports.GET("/popular-books", reportHandler.PopularBooks)
				reports.GET("/member-activity", reportHandler.MemberActivity)
				reports.GET("/fines-summary", reportHandler.FinesSummary)
			}
		}
	}

	return r
}
