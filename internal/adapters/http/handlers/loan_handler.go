package handlers

import (
	"errors"
	"strconv"
	"time"

	"shelftrack/internal/adapters/http/middleware"
	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/core/services"
	"shelftrack/internal/pkg/pagination"
	"shelftrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan lifecycle endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// Checkout handles opening a loan (staff only)
// @Summary Checkout a book
// @Description Open a loan for a borrower; claims one available copy
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bookId query int true "Book ID"
// @Param userId query int true "Borrower user ID"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/checkout [post]
func (h *LoanHandler) Checkout(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Query("bookId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	loan, err := h.loanService.Checkout(c.Context(), uint(bookID), uint(userID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, services.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		case errors.Is(err, domain.ErrUserIneligible):
			return response.UnprocessableEntity(c, domain.CodeUserIneligible, "User may not open new loans")
		case errors.Is(err, domain.ErrNoCopiesAvailable):
			return response.Conflict(c, domain.CodeNoCopiesAvailable, "No copies available")
		default:
			return response.InternalServerError(c, "Failed to checkout book")
		}
	}

	return response.Created(c, "Book checked out successfully", fiber.Map{
		"loan": loan.ToResponse(time.Now()),
	})
}

// Return handles closing a loan (staff only)
// @Summary Return a book
// @Description Close an open loan and release its copy
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{id}/return [post]
func (h *LoanHandler) Return(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.Return(c.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrAlreadyReturned):
			return response.Conflict(c, domain.CodeAlreadyReturned, "Loan already returned")
		default:
			return response.InternalServerError(c, "Failed to return book")
		}
	}

	return response.Success(c, "Book returned successfully", fiber.Map{
		"loan": loan.ToResponse(time.Now()),
	})
}

// Renew handles extending a loan
// @Summary Renew a loan
// @Description Extend the effective due date by one loan period
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param reason query string false "Renewal reason"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{id}/renew [post]
func (h *LoanHandler) Renew(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	actorID, _ := middleware.CurrentUserID(c)

	// Members may only renew their own loans; staff renew any
	if !domain.Authorize(middleware.CurrentRole(c), domain.OpLoanRenewAny) {
		loan, err := h.loanService.GetByID(c.Context(), uint(id))
		if err != nil {
			if errors.Is(err, services.ErrLoanNotFound) {
				return response.NotFound(c, "Loan not found")
			}
			return response.InternalServerError(c, "Failed to renew loan")
		}
		if loan.UserID != actorID {
			return response.Forbidden(c, "You may only renew your own loans")
		}
	}

	loan, err := h.loanService.Renew(c.Context(), uint(id), c.Query("reason"), actorID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLoanNotFound):
			return response.NotFound(c, "Loan not found")
		case errors.Is(err, domain.ErrAlreadyReturned):
			return response.Conflict(c, domain.CodeAlreadyReturned, "Loan already returned")
		case errors.Is(err, domain.ErrRenewalLimitExceeded):
			return response.Conflict(c, domain.CodeRenewalLimitExceeded, "Renewal limit exceeded")
		default:
			return response.InternalServerError(c, "Failed to renew loan")
		}
	}

	return response.Success(c, "Loan renewed successfully", fiber.Map{
		"loan": loan.ToResponse(time.Now()),
	})
}

// ListLoans handles listing all loans (staff only)
// @Summary List all loans
// @Description Get a paginated list of all loans
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	loans, total, err := h.loanService.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", pagination.NewResponse(loanResponses(loans), params, total))
}

// MyLoans handles listing the caller's loans
// @Summary List own loans
// @Description Get the current user's loans
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /loans/my [get]
func (h *LoanHandler) MyLoans(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	loans, err := h.loanService.ListByUser(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", fiber.Map{
		"loans": loanResponses(loans),
	})
}

// LoansByUser handles listing a borrower's loans (staff only)
// @Summary List loans by borrower
// @Description Get all loans held by one user
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans/user/{userId} [get]
func (h *LoanHandler) LoansByUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	loans, err := h.loanService.ListByUser(c.Context(), uint(userID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", fiber.Map{
		"loans": loanResponses(loans),
	})
}

// LoansByBook handles listing a book's loans (staff only)
// @Summary List loans by book
// @Description Get all loans of one book
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bookId path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans/book/{bookId} [get]
func (h *LoanHandler) LoansByBook(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("bookId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	loans, err := h.loanService.ListByBook(c.Context(), uint(bookID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", fiber.Map{
		"loans": loanResponses(loans),
	})
}

// GetLoan handles getting a loan by ID
// @Summary Get loan by ID
// @Description Get a specific loan; members see only their own
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrLoanNotFound) {
			return response.NotFound(c, "Loan not found")
		}
		return response.InternalServerError(c, "Failed to get loan")
	}

	if !domain.Authorize(middleware.CurrentRole(c), domain.OpLoanListAll) {
		actorID, _ := middleware.CurrentUserID(c)
		if loan.UserID != actorID {
			return response.Forbidden(c, "You may only view your own loans")
		}
	}

	return response.Success(c, "Loan retrieved successfully", fiber.Map{
		"loan": loan.ToResponse(time.Now()),
	})
}

// LoanHistory handles listing a loan's renewal history
// @Summary Get renewal history
// @Description Get a loan's renewal history in order
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/history [get]
func (h *LoanHandler) LoanHistory(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	loan, err := h.loanService.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrLoanNotFound) {
			return response.NotFound(c, "Loan not found")
		}
		return response.InternalServerError(c, "Failed to get renewal history")
	}

	if !domain.Authorize(middleware.CurrentRole(c), domain.OpLoanListAll) {
		actorID, _ := middleware.CurrentUserID(c)
		if loan.UserID != actorID {
			return response.Forbidden(c, "You may only view your own loans")
		}
	}

	renewals, err := h.loanService.History(c.Context(), loan.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to get renewal history")
	}

	return response.Success(c, "Renewal history retrieved successfully", fiber.Map{
		"renewals": renewals,
	})
}

// ActiveCount handles the open-loan count
// @Summary Count active loans
// @Description Get the number of open loans
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /loans/activeCount [get]
func (h *LoanHandler) ActiveCount(c *fiber.Ctx) error {
	count, err := h.loanService.ActiveCount(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to count active loans")
	}

	return response.Success(c, "Active loan count retrieved successfully", fiber.Map{
		"count": count,
	})
}

func loanResponses(loans []*models.Loan) []*models.LoanResponse {
	now := time.Now()
	responses := make([]*models.LoanResponse, len(loans))
	for i, loan := range loans {
		responses[i] = loan.ToResponse(now)
	}
	return responses
}
