package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
)

// CatalogServiceProvider defines the interface for catalog services.
type CatalogServiceProvider interface {
	ListOwned(ctx context.Context, owner string) ([]models.Book, error)
	AddBook(ctx context.Context, owner, title string) (models.Book, error)
	DeleteBook(ctx context.Context, owner, title string) (int, error)
	DeleteBookByID(ctx context.Context, owner string, id int64) error
	GetBook(ctx context.Context, id int64) (models.Book, error)
	ListAll(ctx context.Context) ([]models.Book, error)
	Search(ctx context.Context, query string) ([]models.Book, error)
}

// CatalogService owns book records.
type CatalogService struct {
	db           *sqlx.DB
	eventService EventServiceProvider
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(db *sqlx.DB, eventService EventServiceProvider) *CatalogService {
	return &CatalogService{db: db, eventService: eventService}
}

var bookColumns = []interface{}{"id", "title", "owner", "created_at"}

// ListOwned returns every book owned by owner.
func (s *CatalogService) ListOwned(ctx context.Context, owner string) ([]models.Book, error) {
	query := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(goqu.Ex{"owner": owner}).
		Order(goqu.I("id").Asc())

	books := []models.Book{}
	if err := selectAll(ctx, s.db, &books, query); err != nil {
		return nil, apperrors.Internal("list owned books", err)
	}
	return books, nil
}

// AddBook creates a book owned by owner. Any title is accepted here;
// the HTTP layer is where empty titles are refused.
func (s *CatalogService) AddBook(ctx context.Context, owner, title string) (models.Book, error) {
	book := models.Book{
		Title:     title,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}

	insert := dialect.Insert("books").Prepared(true).Rows(goqu.Record{
		"title":      book.Title,
		"owner":      book.Owner,
		"created_at": book.CreatedAt,
	})
	id, err := execInsert(ctx, s.db, insert)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Book{}, apperrors.NotFoundf("user %s not found", owner)
		}
		return models.Book{}, apperrors.Internal("insert book", err)
	}
	book.ID = id

	log.Info().Int64("book_id", id).Str("owner", owner).Msg("Book added")
	return book, nil
}

// DeleteBook removes every book of owner titled exactly title and returns how many went.
func (s *CatalogService) DeleteBook(ctx context.Context, owner, title string) (int, error) {
	query := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(goqu.Ex{"owner": owner, "title": title})

	return s.deleteMatching(ctx, owner, query, func() error {
		return apperrors.NotFoundf("no book titled %q owned by %s", title, owner)
	})
}

// DeleteBookByID removes one book. Only its owner may do so.
func (s *CatalogService) DeleteBookByID(ctx context.Context, owner string, id int64) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrBookNotFound) {
			return apperrors.NotFoundf("book %d not found", id)
		}
		return err
	}
	if book.Owner != owner {
		return apperrors.Unauthorizedf("book %d is not owned by %s", id, owner)
	}

	query := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(goqu.Ex{"id": id, "owner": owner})

	_, err = s.deleteMatching(ctx, owner, query, func() error {
		return apperrors.NotFoundf("book %d not found", id)
	})
	return err
}

// deleteMatching deletes the books selected by query in one transaction,
// then tells every account that had a pending request on them.
func (s *CatalogService) deleteMatching(ctx context.Context, owner string, query *goqu.SelectDataset, notFound func() error) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperrors.Internal("begin delete", err)
	}
	defer tx.Rollback()

	var books []models.Book
	if err := selectAll(ctx, tx, &books, query); err != nil {
		return 0, apperrors.Internal("find books to delete", err)
	}
	if len(books) == 0 {
		return 0, notFound()
	}

	ids := make([]int64, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}

	pendingQuery := dialect.From("requests").Prepared(true).
		Select("id", "book_id", "requester", "created_at").
		Where(goqu.C("book_id").In(ids)).
		Order(goqu.I("id").Asc())
	var pending []models.BorrowRequest
	if err := selectAll(ctx, tx, &pending, pendingQuery); err != nil {
		return 0, apperrors.Internal("find pending requests", err)
	}

	del := dialect.Delete("books").Prepared(true).Where(goqu.C("id").In(ids))
	n, err := execAffected(ctx, tx, del)
	if err != nil {
		return 0, apperrors.Internal("delete books", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, apperrors.Internal("commit delete", err)
	}

	log.Info().Str("owner", owner).Ints64("book_ids", ids).Int("dropped_requests", len(pending)).Msg("Books deleted")
	s.notifyWithdrawn(ctx, owner, books, pending)
	return int(n), nil
}

func (s *CatalogService) notifyWithdrawn(ctx context.Context, owner string, books []models.Book, pending []models.BorrowRequest) {
	titles := make(map[int64]string, len(books))
	for _, b := range books {
		titles[b.ID] = b.Title
	}

	type key struct {
		bookID    int64
		requester string
	}
	seen := make(map[key]bool)
	for _, r := range pending {
		k := key{r.BookID, r.Requester}
		if seen[k] {
			continue
		}
		seen[k] = true

		bookID := r.BookID
		msg := fmt.Sprintf("%s removed '%s'; your request was dropped.", owner, titles[bookID])
		if err := s.eventService.CreateEvent(ctx, models.EventBookWithdrawn, r.Requester, owner, &bookID, msg); err != nil {
			log.Warn().Err(err).Int64("book_id", bookID).Str("requester", r.Requester).Msg("Failed to record withdrawal event")
		}
	}
}

// GetBook retrieves a single book.
func (s *CatalogService) GetBook(ctx context.Context, id int64) (models.Book, error) {
	return getBook(ctx, s.db, id)
}

func getBook(ctx context.Context, q querier, id int64) (models.Book, error) {
	query := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(goqu.Ex{"id": id})

	var book models.Book
	if err := getOne(ctx, q, &book, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Book{}, apperrors.BookNotFound(id)
		}
		return models.Book{}, apperrors.Internal("get book", err)
	}
	return book, nil
}

// ListAll returns every book in the catalog.
func (s *CatalogService) ListAll(ctx context.Context) ([]models.Book, error) {
	query := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Order(goqu.I("id").Asc())

	books := []models.Book{}
	if err := selectAll(ctx, s.db, &books, query); err != nil {
		return nil, apperrors.Internal("list books", err)
	}
	return books, nil
}

// Search filters ListAll by a case-insensitive substring of the title.
// An empty query matches every book.
func (s *CatalogService) Search(ctx context.Context, query string) ([]models.Book, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	fold := cases.Fold()
	needle := fold.String(query)
	matches := []models.Book{}
	for _, b := range all {
		if strings.Contains(fold.String(b.Title), needle) {
			matches = append(matches, b)
		}
	}
	return matches, nil
}

// isForeignKeyViolation reports whether err is SQLite rejecting a dangling reference.
func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
