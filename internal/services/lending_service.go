package services

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Resolution is how an owner resolves a pending request.
type Resolution string

const (
	ResolutionAccept Resolution = "accept"
	ResolutionReject Resolution = "reject"
)

// LendingServiceProvider defines the interface for the lending workflow.
type LendingServiceProvider interface {
	RequestBook(ctx context.Context, requester string, bookID int64) (models.BorrowRequest, error)
	ListRequestsForOwner(ctx context.Context, owner string) ([]models.BookRequests, error)
	ListOutgoing(ctx context.Context, requester string) ([]models.BorrowRequest, error)
	Accept(ctx context.Context, owner string, bookID int64, requester string) error
	Reject(ctx context.Context, owner string, bookID int64, requester string) error
	PendingByOwner(ctx context.Context) ([]models.OwnerPending, error)
}

// LendingService owns borrow requests and their accept/reject transitions.
type LendingService struct {
	db           *sqlx.DB
	eventService EventServiceProvider
}

// NewLendingService creates a new LendingService.
func NewLendingService(db *sqlx.DB, eventService EventServiceProvider) *LendingService {
	return &LendingService{db: db, eventService: eventService}
}

// RequestBook records a pending request by requester for bookID.
// Requesting one's own book is refused; repeated requests are allowed.
func (s *LendingService) RequestBook(ctx context.Context, requester string, bookID int64) (models.BorrowRequest, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.BorrowRequest{}, apperrors.Internal("begin request", err)
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, bookID)
	if err != nil {
		return models.BorrowRequest{}, err
	}
	if book.Owner == requester {
		return models.BorrowRequest{}, apperrors.ErrSelfRequest
	}

	req := models.BorrowRequest{
		BookID:    bookID,
		Requester: requester,
		CreatedAt: time.Now().UTC(),
		BookTitle: book.Title,
		BookOwner: book.Owner,
	}
	insert := dialect.Insert("requests").Prepared(true).Rows(goqu.Record{
		"book_id":    req.BookID,
		"requester":  req.Requester,
		"created_at": req.CreatedAt,
	})
	id, err := execInsert(ctx, tx, insert)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.BorrowRequest{}, apperrors.NotFoundf("user %s not found", requester)
		}
		return models.BorrowRequest{}, apperrors.Internal("insert request", err)
	}
	if err := tx.Commit(); err != nil {
		return models.BorrowRequest{}, apperrors.Internal("commit request", err)
	}
	req.ID = id

	log.Info().Int64("request_id", id).Int64("book_id", bookID).Str("requester", requester).Msg("Borrow request created")
	msg := fmt.Sprintf("%s requested '%s'.", requester, book.Title)
	if err := s.eventService.CreateEvent(ctx, models.EventRequestCreated, book.Owner, requester, &bookID, msg); err != nil {
		log.Warn().Err(err).Int64("request_id", id).Msg("Failed to record request event")
	}
	return req, nil
}

// pendingRow is one (book, requester) pair from the owner's pending requests.
type pendingRow struct {
	BookID    int64     `db:"book_id"`
	Title     string    `db:"title"`
	Owner     string    `db:"owner"`
	CreatedAt time.Time `db:"book_created_at"`
	Requester string    `db:"requester"`
}

// ListRequestsForOwner groups the pending requests on owner's books by book.
// Books without pending requests are left out; requesters keep request order.
func (s *LendingService) ListRequestsForOwner(ctx context.Context, owner string) ([]models.BookRequests, error) {
	query := dialect.From(goqu.T("requests").As("r")).Prepared(true).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.owner").As("owner"),
			goqu.I("b.created_at").As("book_created_at"),
			goqu.I("r.requester").As("requester"),
		).
		Where(goqu.I("b.owner").Eq(owner)).
		Order(goqu.I("b.id").Asc(), goqu.I("r.id").Asc())

	var rows []pendingRow
	if err := selectAll(ctx, s.db, &rows, query); err != nil {
		return nil, apperrors.Internal("list incoming requests", err)
	}

	grouped := []models.BookRequests{}
	for _, row := range rows {
		if n := len(grouped); n > 0 && grouped[n-1].Book.ID == row.BookID {
			grouped[n-1].Requesters = append(grouped[n-1].Requesters, row.Requester)
			continue
		}
		grouped = append(grouped, models.BookRequests{
			Book: models.Book{
				ID:        row.BookID,
				Title:     row.Title,
				Owner:     row.Owner,
				CreatedAt: row.CreatedAt,
			},
			Requesters: []string{row.Requester},
		})
	}
	return grouped, nil
}

// ListOutgoing returns the pending requests requester has issued, oldest first.
func (s *LendingService) ListOutgoing(ctx context.Context, requester string) ([]models.BorrowRequest, error) {
	query := dialect.From(goqu.T("requests").As("r")).Prepared(true).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("r.id").As("id"),
			goqu.I("r.book_id").As("book_id"),
			goqu.I("r.requester").As("requester"),
			goqu.I("r.created_at").As("created_at"),
			goqu.I("b.title").As("book_title"),
			goqu.I("b.owner").As("book_owner"),
		).
		Where(goqu.I("r.requester").Eq(requester)).
		Order(goqu.I("r.id").Asc())

	requests := []models.BorrowRequest{}
	if err := selectAll(ctx, s.db, &requests, query); err != nil {
		return nil, apperrors.Internal("list outgoing requests", err)
	}
	return requests, nil
}

// Accept resolves the pending request(s) of requester on bookID in their favour.
func (s *LendingService) Accept(ctx context.Context, owner string, bookID int64, requester string) error {
	return s.resolve(ctx, owner, bookID, requester, ResolutionAccept)
}

// Reject resolves the pending request(s) of requester on bookID against them.
func (s *LendingService) Reject(ctx context.Context, owner string, bookID int64, requester string) error {
	return s.resolve(ctx, owner, bookID, requester, ResolutionReject)
}

// resolve deletes the pending requests for (bookID, requester) after checking
// that owner owns the book. Accept and reject differ only in the event recorded.
func (s *LendingService) resolve(ctx context.Context, owner string, bookID int64, requester string, resolution Resolution) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Internal("begin resolve", err)
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, bookID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrBookNotFound) {
			return apperrors.NotFoundf("book %d not found", bookID)
		}
		return err
	}
	if book.Owner != owner {
		log.Warn().Str("caller", owner).Int64("book_id", bookID).Msg("Refused to resolve request on a book the caller does not own")
		return apperrors.Unauthorizedf("only the owner of book %d may %s its requests", bookID, resolution)
	}

	del := dialect.Delete("requests").Prepared(true).
		Where(goqu.Ex{"book_id": bookID, "requester": requester})
	n, err := execAffected(ctx, tx, del)
	if err != nil {
		return apperrors.Internal("delete request", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("no pending request by %s for book %d", requester, bookID)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("commit resolve", err)
	}

	eventType, verb := models.EventRequestAccepted, "accepted"
	if resolution == ResolutionReject {
		eventType, verb = models.EventRequestRejected, "rejected"
	}
	log.Info().Int64("book_id", bookID).Str("requester", requester).Str("resolution", string(resolution)).Msg("Borrow request resolved")

	msg := fmt.Sprintf("%s %s your request for '%s'.", owner, verb, book.Title)
	if err := s.eventService.CreateEvent(ctx, eventType, requester, owner, &bookID, msg); err != nil {
		log.Warn().Err(err).Int64("book_id", bookID).Msg("Failed to record resolution event")
	}
	return nil
}

// PendingByOwner counts pending requests and the books they target, per owner.
func (s *LendingService) PendingByOwner(ctx context.Context) ([]models.OwnerPending, error) {
	query := dialect.From(goqu.T("requests").As("r")).Prepared(true).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("b.owner").As("owner"),
			goqu.COUNT(goqu.DISTINCT(goqu.I("b.id"))).As("books"),
			goqu.COUNT(goqu.I("r.id")).As("requests"),
		).
		GroupBy(goqu.I("b.owner")).
		Order(goqu.I("b.owner").Asc())

	summary := []models.OwnerPending{}
	if err := selectAll(ctx, s.db, &summary, query); err != nil {
		return nil, apperrors.Internal("summarise pending requests", err)
	}
	return summary, nil
}
