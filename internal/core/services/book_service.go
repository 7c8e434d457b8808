package services

import (
	"context"
	"errors"
	"log"

	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/adapters/persistence/repositories"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/pkg/keymutex"

	"gorm.io/gorm"
)

// Book errors
var (
	ErrBookNotFound   = errors.New("book not found")
	ErrUnknownPolicy  = errors.New("unknown loan policy type")
	ErrMissingTitle   = errors.New("book title is required")
	ErrNegativeCopies = errors.New("copies owned cannot be negative")
)

// BookService owns the catalog and the inventory ledger. Copy
// counters are mutated only here (inventory edits) and by the loan
// service (checkout/return), always under the per-book lock.
type BookService struct {
	bookRepo   repositories.BookRepository
	loanRepo   repositories.LoanRepository
	policyRepo repositories.LoanPolicyRepository
	bookLocks  *keymutex.KeyMutex
}

// NewBookService creates a new book service
func NewBookService(
	bookRepo repositories.BookRepository,
	loanRepo repositories.LoanRepository,
	policyRepo repositories.LoanPolicyRepository,
	bookLocks *keymutex.KeyMutex,
) *BookService {
	return &BookService{
		bookRepo:   bookRepo,
		loanRepo:   loanRepo,
		policyRepo: policyRepo,
		bookLocks:  bookLocks,
	}
}

// CatalogInput represents a book ingested from an external catalog
// payload (the client performs the catalog search itself).
type CatalogInput struct {
	ExternalID    string  `json:"external_id"`
	Title         string  `json:"title" validate:"required"`
	Authors       string  `json:"authors"`
	Publisher     string  `json:"publisher"`
	PublishedDate string  `json:"published_date"`
	Description   string  `json:"description"`
	ISBN          string  `json:"isbn"`
	ImageURL      string  `json:"image_url"`
	AverageRating float64 `json:"average_rating"`
	RatingsCount  int     `json:"ratings_count"`
	CopiesOwned   int     `json:"copies_owned"`
	PolicyType    string  `json:"policy_type"`
}

// UpdateBookInput represents metadata edits; copy counts are edited
// through AdjustInventory only.
type UpdateBookInput struct {
	Title         *string  `json:"title"`
	Authors       *string  `json:"authors"`
	Publisher     *string  `json:"publisher"`
	PublishedDate *string  `json:"published_date"`
	Description   *string  `json:"description"`
	ISBN          *string  `json:"isbn"`
	ImageURL      *string  `json:"image_url"`
	AverageRating *float64 `json:"average_rating"`
	RatingsCount  *int     `json:"ratings_count"`
	PolicyType    *string  `json:"policy_type"`
}

// CreateFromCatalog ingests a book from an external catalog payload
func (s *BookService) CreateFromCatalog(ctx context.Context, input *CatalogInput) (*models.Book, error) {
	if input.Title == "" {
		return nil, ErrMissingTitle
	}
	if input.CopiesOwned < 0 {
		return nil, ErrNegativeCopies
	}

	policyType := input.PolicyType
	if policyType == "" {
		policyType = "BOOK"
	}
	if _, err := s.policyRepo.GetByItemType(ctx, policyType); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownPolicy
		}
		return nil, err
	}

	book := &models.Book{
		ExternalID:      input.ExternalID,
		Title:           input.Title,
		Authors:         input.Authors,
		Publisher:       input.Publisher,
		PublishedDate:   input.PublishedDate,
		Description:     input.Description,
		ISBN:            input.ISBN,
		ImageURL:        input.ImageURL,
		AverageRating:   input.AverageRating,
		RatingsCount:    input.RatingsCount,
		CopiesOwned:     input.CopiesOwned,
		CopiesAvailable: input.CopiesOwned,
		PolicyType:      policyType,
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}

	log.Printf("✅ Book ingested: %q (%d copies)", book.Title, book.CopiesOwned)
	return book, nil
}

// GetByID returns a book by ID
func (s *BookService) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// List lists books with pagination
func (s *BookService) List(ctx context.Context, offset, limit int) ([]*models.Book, int64, error) {
	return s.bookRepo.List(ctx, offset, limit)
}

// Search searches books by text query
func (s *BookService) Search(ctx context.Context, query string, offset, limit int) ([]*models.Book, int64, error) {
	return s.bookRepo.Search(ctx, query, offset, limit)
}

// Count returns the catalog size
func (s *BookService) Count(ctx context.Context) (int64, error) {
	return s.bookRepo.Count(ctx)
}

// UpdateMetadata edits book metadata, leaving copy counters alone
func (s *BookService) UpdateMetadata(ctx context.Context, id uint, input *UpdateBookInput) (*models.Book, error) {
	book, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.PolicyType != nil {
		if _, err := s.policyRepo.GetByItemType(ctx, *input.PolicyType); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUnknownPolicy
			}
			return nil, err
		}
		book.PolicyType = *input.PolicyType
	}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, ErrMissingTitle
		}
		book.Title = *input.Title
	}
	if input.Authors != nil {
		book.Authors = *input.Authors
	}
	if input.Publisher != nil {
		book.Publisher = *input.Publisher
	}
	if input.PublishedDate != nil {
		book.PublishedDate = *input.PublishedDate
	}
	if input.Description != nil {
		book.Description = *input.Description
	}
	if input.ISBN != nil {
		book.ISBN = *input.ISBN
	}
	if input.ImageURL != nil {
		book.ImageURL = *input.ImageURL
	}
	if input.AverageRating != nil {
		book.AverageRating = *input.AverageRating
	}
	if input.RatingsCount != nil {
		book.RatingsCount = *input.RatingsCount
	}

	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// AdjustInventory sets copies owned for a book. The new count can
// never drop below the copies currently on loan; available copies
// are recomputed as owned minus on-loan. Setting owned to zero
// soft-retires the title.
func (s *BookService) AdjustInventory(ctx context.Context, bookID uint, newCopiesOwned int) (*models.Book, error) {
	if newCopiesOwned < 0 {
		return nil, ErrNegativeCopies
	}

	s.bookLocks.Lock(bookID)
	defer s.bookLocks.Unlock(bookID)

	book, err := s.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	onLoan, err := s.loanRepo.CountOpenByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if newCopiesOwned < int(onLoan) {
		return nil, domain.ErrInvalidInventory
	}

	book.CopiesOwned = newCopiesOwned
	book.CopiesAvailable = newCopiesOwned - int(onLoan)

	if err := s.bookRepo.UpdateCopies(ctx, bookID, book.CopiesOwned, book.CopiesAvailable); err != nil {
		return nil, err
	}

	log.Printf("✅ Inventory adjusted: book %d now owns %d (%d available)", bookID, book.CopiesOwned, book.CopiesAvailable)
	return book, nil
}

// reserveCopy decrements available copies; caller must hold the
// book lock. Fails when no copy is free.
func (s *BookService) reserveCopy(ctx context.Context, bookID uint) (*models.Book, error) {
	book, err := s.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.CopiesAvailable <= 0 {
		return nil, domain.ErrNoCopiesAvailable
	}

	book.CopiesAvailable--
	if err := s.bookRepo.UpdateCopies(ctx, bookID, book.CopiesOwned, book.CopiesAvailable); err != nil {
		return nil, err
	}
	return book, nil
}

// releaseCopy increments available copies; caller must hold the
// book lock.
func (s *BookService) releaseCopy(ctx context.Context, bookID uint) (*models.Book, error) {
	book, err := s.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book.CopiesAvailable++
	if err := s.bookRepo.UpdateCopies(ctx, bookID, book.CopiesOwned, book.CopiesAvailable); err != nil {
		return nil, err
	}
	return book, nil
}
