package handlers

import (
	"shelftrack/internal/core/services"
	"shelftrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler serves the staff dashboard summary
type DashboardHandler struct {
	bookService *services.BookService
	userService *services.UserService
	loanService *services.LoanService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	bookService *services.BookService,
	userService *services.UserService,
	loanService *services.LoanService,
) *DashboardHandler {
	return &DashboardHandler{
		bookService: bookService,
		userService: userService,
		loanService: loanService,
	}
}

// Summary handles the dashboard summary counts (staff only)
// @Summary Dashboard summary
// @Description Get catalog, user and active loan counts in one call
// @Tags Dashboard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	books, err := h.bookService.Count(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load dashboard")
	}
	users, err := h.userService.Count(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load dashboard")
	}
	activeLoans, err := h.loanService.ActiveCount(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load dashboard")
	}

	return response.Success(c, "Dashboard summary retrieved successfully", fiber.Map{
		"books":       books,
		"users":       users,
		"activeLoans": activeLoans,
	})
}
