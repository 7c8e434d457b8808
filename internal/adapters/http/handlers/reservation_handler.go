package handlers

import (
	"errors"
	"strconv"

	"shelftrack/internal/adapters/http/middleware"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/core/services"
	"shelftrack/internal/pkg/pagination"
	"shelftrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ReservationHandler handles reservation queue endpoints
type ReservationHandler struct {
	reservationService *services.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// Reserve handles placing a hold
// @Summary Reserve a book
// @Description Place a hold at the tail of the book's queue. Staff may reserve on behalf of a user.
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bookId query int true "Book ID"
// @Param userId query int false "Holder user ID (staff only; defaults to caller)"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /reservations [post]
func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Query("bookId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	holderID := actorID
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid user ID")
		}
		if uint(id) != actorID {
			if !domain.Authorize(middleware.CurrentRole(c), domain.OpReservationFulfill) {
				return response.Forbidden(c, "You may only reserve for yourself")
			}
			holderID = uint(id)
		}
	}

	reservation, err := h.reservationService.Reserve(c.Context(), uint(bookID), holderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, services.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		case errors.Is(err, domain.ErrUserIneligible):
			return response.UnprocessableEntity(c, domain.CodeUserIneligible, "User may not place reservations")
		case errors.Is(err, domain.ErrDuplicateReservation):
			return response.Conflict(c, domain.CodeDuplicateReservation, "User already has an active reservation for this book")
		default:
			return response.InternalServerError(c, "Failed to reserve book")
		}
	}

	return response.Created(c, "Reservation placed successfully", fiber.Map{
		"reservation": reservation,
	})
}

// Fulfill handles handing a held copy to its holder (staff only)
// @Summary Fulfill a reservation
// @Description Mark an active reservation fulfilled; the queue behind it moves up
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Reservation ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /reservations/{id}/fulfill [post]
func (h *ReservationHandler) Fulfill(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid reservation ID")
	}

	reservation, err := h.reservationService.Fulfill(c.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReservationNotFound):
			return response.NotFound(c, "Reservation not found")
		case errors.Is(err, domain.ErrNotActive):
			return response.Conflict(c, domain.CodeNotActive, "Reservation is not active")
		default:
			return response.InternalServerError(c, "Failed to fulfill reservation")
		}
	}

	return response.Success(c, "Reservation fulfilled successfully", fiber.Map{
		"reservation": reservation,
	})
}

// ListReservations handles listing all reservations (staff only)
// @Summary List all reservations
// @Description Get a paginated list of all reservations
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /reservations [get]
func (h *ReservationHandler) ListReservations(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	reservations, total, err := h.reservationService.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list reservations")
	}

	return response.Success(c, "Reservations retrieved successfully", pagination.NewResponse(reservations, params, total))
}

// MyReservations handles listing the caller's reservations
// @Summary List own reservations
// @Description Get the current user's reservations
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /reservations/my [get]
func (h *ReservationHandler) MyReservations(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	reservations, err := h.reservationService.ListByUser(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list reservations")
	}

	return response.Success(c, "Reservations retrieved successfully", fiber.Map{
		"reservations": reservations,
	})
}

// GetReservation handles getting a reservation by ID
// @Summary Get reservation by ID
// @Description Get a specific reservation; members see only their own
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Reservation ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetReservation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid reservation ID")
	}

	reservation, err := h.reservationService.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrReservationNotFound) {
			return response.NotFound(c, "Reservation not found")
		}
		return response.InternalServerError(c, "Failed to get reservation")
	}

	if !domain.Authorize(middleware.CurrentRole(c), domain.OpReservationListAll) {
		actorID, _ := middleware.CurrentUserID(c)
		if reservation.UserID != actorID {
			return response.Forbidden(c, "You may only view your own reservations")
		}
	}

	return response.Success(c, "Reservation retrieved successfully", fiber.Map{
		"reservation": reservation,
	})
}

// ReservationsByUser handles listing a holder's reservations (staff only)
// @Summary List reservations by holder
// @Description Get all reservations held by one user
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /reservations/user/{userId} [get]
func (h *ReservationHandler) ReservationsByUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	reservations, err := h.reservationService.ListByUser(c.Context(), uint(userID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list reservations")
	}

	return response.Success(c, "Reservations retrieved successfully", fiber.Map{
		"reservations": reservations,
	})
}

// ReservationsByBook handles listing a book's reservations (staff only)
// @Summary List reservations by book
// @Description Get all reservations of one book, terminal ones included
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bookId path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /reservations/book/{bookId} [get]
func (h *ReservationHandler) ReservationsByBook(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("bookId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	reservations, err := h.reservationService.ListByBook(c.Context(), uint(bookID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list reservations")
	}

	return response.Success(c, "Reservations retrieved successfully", fiber.Map{
		"reservations": reservations,
	})
}

// BookQueue handles listing a book's active queue (staff only)
// @Summary Get a book's reservation queue
// @Description Get the active reservations for a book in position order
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/queue [get]
func (h *ReservationHandler) BookQueue(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	queue, err := h.reservationService.Queue(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrBookNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to get reservation queue")
	}

	return response.Success(c, "Reservation queue retrieved successfully", fiber.Map{
		"queue": queue,
	})
}
