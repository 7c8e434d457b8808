package handlers

import (
	"errors"
	"strconv"

	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/core/services"
	"shelftrack/internal/pkg/pagination"
	"shelftrack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles catalog and inventory endpoints
type BookHandler struct {
	bookService *services.BookService
}

// NewBookHandler creates a new book handler
func NewBookHandler(bookService *services.BookService) *BookHandler {
	return &BookHandler{
		bookService: bookService,
	}
}

// ListBooks handles listing the catalog
// @Summary List books
// @Description Get a paginated list of books, optionally filtered by search query
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param q query string false "Search by title, author or ISBN"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /books [get]
func (h *BookHandler) ListBooks(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	var (
		books []*models.Book
		total int64
		err   error
	)
	if query := c.Query("q"); query != "" {
		books, total, err = h.bookService.Search(c.Context(), query, params.Offset, params.Limit)
	} else {
		books, total, err = h.bookService.List(c.Context(), params.Offset, params.Limit)
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}

	return response.Success(c, "Books retrieved successfully", pagination.NewResponse(books, params, total))
}

// GetBook handles getting a book by ID
// @Summary Get book by ID
// @Description Get a specific book by ID
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	book, err := h.bookService.GetByID(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrBookNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to get book")
	}

	return response.Success(c, "Book retrieved successfully", fiber.Map{
		"book": book,
	})
}

// CreateBook handles catalog ingestion (staff only)
// @Summary Add a book from a catalog payload
// @Description Create a book from external catalog metadata
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CatalogInput true "Catalog data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /books/catalog [post]
func (h *BookHandler) CreateBook(c *fiber.Ctx) error {
	var input services.CatalogInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.bookService.CreateFromCatalog(c.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingTitle):
			return response.BadRequest(c, "Title is required")
		case errors.Is(err, services.ErrNegativeCopies):
			return response.BadRequest(c, "Copies owned cannot be negative")
		case errors.Is(err, services.ErrUnknownPolicy):
			return response.BadRequest(c, "Unknown loan policy type")
		default:
			return response.InternalServerError(c, "Failed to create book")
		}
	}

	return response.Created(c, "Book created successfully", fiber.Map{
		"book": book,
	})
}

// UpdateBook handles metadata edits (staff only)
// @Summary Update book metadata
// @Description Update a book's metadata; copy counts change through inventory adjustment
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.UpdateBookInput true "Update data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [put]
func (h *BookHandler) UpdateBook(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	var input services.UpdateBookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.bookService.UpdateMetadata(c.Context(), uint(id), &input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, services.ErrUnknownPolicy):
			return response.BadRequest(c, "Unknown loan policy type")
		default:
			return response.InternalServerError(c, "Failed to update book")
		}
	}

	return response.Success(c, "Book updated successfully", fiber.Map{
		"book": book,
	})
}

// AdjustInventoryRequest represents an inventory adjustment
type AdjustInventoryRequest struct {
	CopiesOwned int `json:"copiesOwned"`
}

// AdjustInventory handles setting a book's owned copy count (staff only)
// @Summary Adjust inventory
// @Description Set the number of owned copies; cannot drop below copies on loan
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body AdjustInventoryRequest true "New owned count"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /books/{id}/inventory [put]
func (h *BookHandler) AdjustInventory(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	var req AdjustInventoryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.bookService.AdjustInventory(c.Context(), uint(id), req.CopiesOwned)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, services.ErrNegativeCopies):
			return response.BadRequest(c, "Copies owned cannot be negative")
		case errors.Is(err, domain.ErrInvalidInventory):
			return response.UnprocessableEntity(c, domain.CodeInvalidInventory, "Owned copies cannot drop below copies on loan")
		default:
			return response.InternalServerError(c, "Failed to adjust inventory")
		}
	}

	return response.Success(c, "Inventory adjusted successfully", fiber.Map{
		"book": book,
	})
}

// CountBooks handles the catalog size count
// @Summary Count books
// @Description Get the total number of books in the catalog
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /books/count [get]
func (h *BookHandler) CountBooks(c *fiber.Ctx) error {
	count, err := h.bookService.Count(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to count books")
	}

	return response.Success(c, "Book count retrieved successfully", fiber.Map{
		"count": count,
	})
}
