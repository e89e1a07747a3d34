package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/untibullet/bug-bounty/internal/models"
)

// Коды ошибок PostgreSQL
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier общий интерфейс пула и транзакции pgx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres реализует Store поверх пула подключений pgx
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создает хранилище на основе пула подключений
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// InTx открывает транзакцию READ COMMITTED. Сериализацию операций над одним багом
// обеспечивает блокировка строки в LockBug.
func (r *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const bugSelect = `
	SELECT b.id, b.title, b.description, b.bounty_amount, b.status, b.creator_id, b.winner_id,
	       b.created_at, b.updated_at, c.username, c.email, w.username, w.email
	FROM bugs b
	JOIN users c ON c.id = b.creator_id
	LEFT JOIN users w ON w.id = b.winner_id
`

// scanBug читает строку bugSelect вместе с данными создателя и победителя
func scanBug(row pgx.Row) (*models.Bug, error) {
	var (
		bug                       models.Bug
		creatorName, creatorEmail string
		winnerName, winnerEmail   *string
	)
	err := row.Scan(
		&bug.ID, &bug.Title, &bug.Description, &bug.BountyAmount, &bug.Status, &bug.CreatorID, &bug.WinnerID,
		&bug.CreatedAt, &bug.UpdatedAt, &creatorName, &creatorEmail, &winnerName, &winnerEmail,
	)
	if err != nil {
		return nil, err
	}

	bug.Creator = &models.UserRef{ID: bug.CreatorID, Username: creatorName, Email: creatorEmail}
	if bug.WinnerID != nil && winnerName != nil && winnerEmail != nil {
		bug.Winner = &models.UserRef{ID: *bug.WinnerID, Username: *winnerName, Email: *winnerEmail}
	}
	return &bug, nil
}

func collectBugs(rows pgx.Rows) ([]models.Bug, error) {
	defer rows.Close()

	bugs := make([]models.Bug, 0)
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bug: %w", err)
		}
		bugs = append(bugs, *bug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bugs: %w", err)
	}
	return bugs, nil
}

// ListBugs возвращает страницу багов, новые первыми
func (r *Postgres) ListBugs(ctx context.Context, filter models.BugFilter) (*models.BugPage, error) {
	where := `
		WHERE ($1 = '' OR b.status = $1)
		  AND ($2 = '' OR b.title ILIKE '%' || $2 || '%')
	`

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bugs b`+where, string(filter.Status), filter.Search).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count bugs: %w", err)
	}

	rows, err := r.pool.Query(ctx, bugSelect+where+`ORDER BY b.created_at DESC LIMIT $3 OFFSET $4`,
		string(filter.Status), filter.Search, filter.Limit, max(filter.Offset(), 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	bugs, err := collectBugs(rows)
	if err != nil {
		return nil, err
	}

	return &models.BugPage{
		Total: total,
		Page:  filter.Page,
		Pages: pageCount(total, filter.Limit),
		Bugs:  bugs,
	}, nil
}

// GetBugDetails получает баг с создателем, победителем и всеми решениями
func (r *Postgres) GetBugDetails(ctx context.Context, bugID uuid.UUID) (*models.BugDetails, error) {
	bug, err := scanBug(r.pool.QueryRow(ctx, bugSelect+`WHERE b.id = $1`, bugID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bug: %w", err)
	}

	query := `
		SELECT s.id, s.bug_id, s.user_id, s.description, s.proof_link, s.status, s.created_at, s.updated_at,
		       u.username, u.email
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		WHERE s.bug_id = $1
		ORDER BY s.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, bugID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bug submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]models.Submission, 0)
	for rows.Next() {
		var s models.Submission
		var username, email string
		if err := rows.Scan(&s.ID, &s.BugID, &s.UserID, &s.Description, &s.ProofLink, &s.Status,
			&s.CreatedAt, &s.UpdatedAt, &username, &email); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		s.Submitter = &models.UserRef{ID: s.UserID, Username: username, Email: email}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	return &models.BugDetails{Bug: *bug, Submissions: submissions}, nil
}

// GetBugsByCreator получает баги пользователя, новые первыми
func (r *Postgres) GetBugsByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Bug, error) {
	rows, err := r.pool.Query(ctx, bugSelect+`WHERE b.creator_id = $1 ORDER BY b.created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bugs by creator: %w", err)
	}
	return collectBugs(rows)
}

// GetSubmissionsByUser получает решения пользователя с краткой информацией о багах
func (r *Postgres) GetSubmissionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Submission, error) {
	query := `
		SELECT s.id, s.bug_id, s.user_id, s.description, s.proof_link, s.status, s.created_at, s.updated_at,
		       b.title, b.bounty_amount, b.status
		FROM submissions s
		JOIN bugs b ON b.id = s.bug_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions by user: %w", err)
	}
	defer rows.Close()

	submissions := make([]models.Submission, 0)
	for rows.Next() {
		var s models.Submission
		var bug models.BugShort
		if err := rows.Scan(&s.ID, &s.BugID, &s.UserID, &s.Description, &s.ProofLink, &s.Status,
			&s.CreatedAt, &s.UpdatedAt, &bug.Title, &bug.BountyAmount, &bug.Status); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		bug.ID = s.BugID
		s.Bug = &bug
		submissions = append(submissions, s)
	}

	return submissions, rows.Err()
}

// pgTx реализует Tx поверх транзакции pgx
type pgTx struct {
	q querier
}

// CreateBug вставляет новый баг, ID задается вызывающей стороной
func (t *pgTx) CreateBug(ctx context.Context, bug *models.Bug) error {
	query := `
		INSERT INTO bugs (id, title, description, bounty_amount, status, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := t.q.QueryRow(ctx, query, bug.ID, bug.Title, bug.Description, bug.BountyAmount,
		string(bug.Status), bug.CreatorID).Scan(&bug.CreatedAt, &bug.UpdatedAt)
	if err != nil {
		return translateError("failed to create bug", err)
	}
	return nil
}

// LockBug получает баг с блокировкой строки FOR UPDATE
func (t *pgTx) LockBug(ctx context.Context, bugID uuid.UUID) (*models.Bug, error) {
	query := `
		SELECT id, title, description, bounty_amount, status, creator_id, winner_id, created_at, updated_at
		FROM bugs
		WHERE id = $1
		FOR UPDATE
	`
	var bug models.Bug
	err := t.q.QueryRow(ctx, query, bugID).Scan(
		&bug.ID, &bug.Title, &bug.Description, &bug.BountyAmount, &bug.Status,
		&bug.CreatorID, &bug.WinnerID, &bug.CreatedAt, &bug.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock bug: %w", err)
	}
	return &bug, nil
}

// UpdateBugStatus меняет статус бага, только если текущий статус равен from
func (t *pgTx) UpdateBugStatus(ctx context.Context, bugID uuid.UUID, from, to models.BugStatus) error {
	query := `UPDATE bugs SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	tag, err := t.q.Exec(ctx, query, string(to), bugID, string(from))
	if err != nil {
		return fmt.Errorf("failed to update bug status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CloseBug закрывает баг и фиксирует победителя. Закрытый баг повторно не закрывается.
func (t *pgTx) CloseBug(ctx context.Context, bugID, winnerID uuid.UUID) error {
	query := `
		UPDATE bugs SET status = $1, winner_id = $2, updated_at = NOW()
		WHERE id = $3 AND status <> $1
	`
	tag, err := t.q.Exec(ctx, query, string(models.BugStatusClosed), winnerID, bugID)
	if err != nil {
		return translateError("failed to close bug", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// DeleteBug удаляет решения и сам баг в рамках текущей транзакции
func (t *pgTx) DeleteBug(ctx context.Context, bugID uuid.UUID) (int64, error) {
	tag, err := t.q.Exec(ctx, `DELETE FROM submissions WHERE bug_id = $1`, bugID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bug submissions: %w", err)
	}
	removed := tag.RowsAffected()

	tag, err = t.q.Exec(ctx, `DELETE FROM bugs WHERE id = $1`, bugID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	return removed, nil
}

// CreateSubmission вставляет решение. Повтор пары (bug, user) дает ErrAlreadyExists.
func (t *pgTx) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	query := `
		INSERT INTO submissions (id, bug_id, user_id, description, proof_link, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := t.q.QueryRow(ctx, query, submission.ID, submission.BugID, submission.UserID,
		submission.Description, submission.ProofLink, string(submission.Status),
	).Scan(&submission.CreatedAt, &submission.UpdatedAt)
	if err != nil {
		return translateError("failed to create submission", err)
	}
	return nil
}

const submissionSelect = `
	SELECT id, bug_id, user_id, description, proof_link, status, created_at, updated_at
	FROM submissions
`

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.BugID, &s.UserID, &s.Description, &s.ProofLink, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubmission получает решение по ID
func (t *pgTx) GetSubmission(ctx context.Context, submissionID uuid.UUID) (*models.Submission, error) {
	s, err := scanSubmission(t.q.QueryRow(ctx, submissionSelect+`WHERE id = $1`, submissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// GetSubmissionsByBug получает все решения бага в порядке создания
func (t *pgTx) GetSubmissionsByBug(ctx context.Context, bugID uuid.UUID) ([]models.Submission, error) {
	rows, err := t.q.Query(ctx, submissionSelect+`WHERE bug_id = $1 ORDER BY created_at`, bugID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions by bug: %w", err)
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, *s)
	}

	return submissions, rows.Err()
}

// UpdateSubmissionStatus меняет статус решения, только если текущий статус равен from
func (t *pgTx) UpdateSubmissionStatus(ctx context.Context, submissionID uuid.UUID, from, to models.SubmissionStatus) error {
	query := `UPDATE submissions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	tag, err := t.q.Exec(ctx, query, string(to), submissionID, string(from))
	if err != nil {
		return translateError("failed to update submission status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CreditReward увеличивает счет наград пользователя на amount
func (t *pgTx) CreditReward(ctx context.Context, userID uuid.UUID, amount int64) error {
	query := `UPDATE users SET total_rewards = total_rewards + $1, updated_at = NOW() WHERE id = $2`
	tag, err := t.q.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// translateError переводит нарушения ограничений PostgreSQL в ошибки репозитория
func translateError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
