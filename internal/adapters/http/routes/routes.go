package routes

import (
	"shelftrack/internal/adapters/http/handlers"
	"shelftrack/internal/adapters/http/middleware"
	"shelftrack/internal/adapters/persistence/repositories"
	"shelftrack/internal/config"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/core/services"
	"shelftrack/internal/pkg/clock"
	"shelftrack/internal/pkg/keymutex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application and returns the
// sweep service so main can manage its lifecycle.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.SweepService {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	policyRepo := repositories.NewLoanPolicyRepository(db)

	// One lock table shared by every service that touches copy
	// counters or queue positions
	bookLocks := keymutex.New()
	clk := clock.NewSystem()

	// Initialize services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := services.NewUserService(userRepo)
	policyService := services.NewPolicyService(policyRepo)
	bookService := services.NewBookService(bookRepo, loanRepo, policyRepo, bookLocks)

	notifyService := services.NewNotificationService(cfg.Circulation.WebhookURL)
	reservationService := services.NewReservationService(
		reservationRepo, userRepo, bookRepo, policyRepo, notifyService, bookLocks, clk)
	loanService := services.NewLoanService(
		loanRepo, userRepo, policyRepo, bookService, reservationService,
		bookLocks, clk, cfg.Circulation.AutoFulfill)

	sweepService := services.NewSweepService(reservationService, authService, cfg.Circulation.SweepSchedule)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, userService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	bookHandler := handlers.NewBookHandler(bookService)
	loanHandler := handlers.NewLoanHandler(loanService)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	policyHandler := handlers.NewPolicyHandler(policyService)
	dashboardHandler := handlers.NewDashboardHandler(bookService, userService, loanService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes (public + protected)
	authRoutes := apiV1.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	auth := middleware.AuthMiddleware(cfg)

	// Book routes
	bookRoutes := apiV1.Group("/books")
	bookRoutes.Use(auth)
	setupBookRoutes(bookRoutes, bookHandler, reservationHandler)

	// Loan routes
	loanRoutes := apiV1.Group("/loans")
	loanRoutes.Use(auth)
	setupLoanRoutes(loanRoutes, loanHandler)

	// Reservation routes
	reservationRoutes := apiV1.Group("/reservations")
	reservationRoutes.Use(auth)
	setupReservationRoutes(reservationRoutes, reservationHandler)

	// Policy routes
	policyRoutes := apiV1.Group("/policies")
	policyRoutes.Use(auth)
	setupPolicyRoutes(policyRoutes, policyHandler)

	// User management routes (staff)
	userRoutes := apiV1.Group("/users")
	userRoutes.Use(auth)
	setupUserRoutes(userRoutes, userHandler)

	// Profile routes (authenticated users)
	profileRoutes := apiV1.Group("/profile")
	profileRoutes.Use(auth)
	profileRoutes.Put("/password", userHandler.ChangePassword)

	// Dashboard routes (staff)
	dashboardRoutes := apiV1.Group("/dashboard")
	dashboardRoutes.Use(auth, middleware.StaffOnly())
	dashboardRoutes.Get("/summary", dashboardHandler.Summary)

	return sweepService
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes, rate limited against brute force
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	auth := middleware.AuthMiddleware(cfg)
	router.Get("/me", auth, handler.Me)
	router.Post("/logout-all", auth, handler.LogoutAll)
	router.Post("/register-staff", auth, middleware.RequireCapability(domain.OpMemberRegister), handler.RegisterStaff)
}

// setupBookRoutes configures catalog and inventory routes
func setupBookRoutes(router fiber.Router, handler *handlers.BookHandler, reservations *handlers.ReservationHandler) {
	router.Get("/", handler.ListBooks)
	router.Get("/count", handler.CountBooks)
	router.Get("/:id", handler.GetBook)
	router.Get("/:id/queue", middleware.RequireCapability(domain.OpReservationListAll), reservations.BookQueue)

	router.Post("/catalog", middleware.RequireCapability(domain.OpBookCreate), handler.CreateBook)
	router.Put("/:id", middleware.RequireCapability(domain.OpBookUpdate), handler.UpdateBook)
	router.Put("/:id/inventory", middleware.RequireCapability(domain.OpInventoryAdjust), handler.AdjustInventory)
}

// setupLoanRoutes configures loan lifecycle routes
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler) {
	router.Get("/my", handler.MyLoans)
	router.Get("/activeCount", middleware.RequireCapability(domain.OpLoanListAll), handler.ActiveCount)
	router.Get("/", middleware.RequireCapability(domain.OpLoanListAll), handler.ListLoans)
	router.Get("/user/:userId", middleware.RequireCapability(domain.OpLoanListAll), handler.LoansByUser)
	router.Get("/book/:bookId", middleware.RequireCapability(domain.OpLoanListAll), handler.LoansByBook)
	// Ownership for member reads is checked in the handler
	router.Get("/:id", handler.GetLoan)
	router.Get("/:id/history", handler.LoanHistory)

	router.Post("/checkout", middleware.RequireCapability(domain.OpLoanCheckout), handler.Checkout)
	router.Post("/:id/return", middleware.RequireCapability(domain.OpLoanReturn), handler.Return)
	// Ownership for member renewals is checked in the handler
	router.Post("/:id/renew", middleware.RequireCapability(domain.OpLoanRenewOwn), handler.Renew)
}

// setupReservationRoutes configures reservation queue routes
func setupReservationRoutes(router fiber.Router, handler *handlers.ReservationHandler) {
	router.Get("/my", handler.MyReservations)
	router.Get("/", middleware.RequireCapability(domain.OpReservationListAll), handler.ListReservations)
	router.Get("/user/:userId", middleware.RequireCapability(domain.OpReservationListAll), handler.ReservationsByUser)
	router.Get("/book/:bookId", middleware.RequireCapability(domain.OpReservationListAll), handler.ReservationsByBook)
	// Ownership for member reads is checked in the handler
	router.Get("/:id", handler.GetReservation)

	router.Post("/", middleware.RequireCapability(domain.OpReservationReserve), handler.Reserve)
	router.Post("/:id/fulfill", middleware.RequireCapability(domain.OpReservationFulfill), handler.Fulfill)
}

// setupPolicyRoutes configures loan policy routes
func setupPolicyRoutes(router fiber.Router, handler *handlers.PolicyHandler) {
	router.Get("/", middleware.PolicyCache(), handler.ListPolicies)
	router.Get("/:itemType", middleware.PolicyCache(), handler.GetPolicy)
	router.Put("/", middleware.AdminOnly(), handler.UpsertPolicy)
}

// setupUserRoutes configures user management routes
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", middleware.RequireCapability(domain.OpUserList), handler.ListUsers)
	router.Get("/members", middleware.RequireCapability(domain.OpUserList), handler.ListMembers)
	router.Get("/count", middleware.RequireCapability(domain.OpUserList), handler.CountUsers)
	router.Get("/:id", middleware.RequireCapability(domain.OpUserList), handler.GetUser)
	router.Put("/:id", middleware.RequireCapability(domain.OpUserUpdate), handler.UpdateUser)
}
