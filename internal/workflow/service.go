package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/untibullet/bug-bounty/internal/metrics"
	"github.com/untibullet/bug-bounty/internal/models"
	"github.com/untibullet/bug-bounty/internal/repository"
	"go.uber.org/zap"
)

// Параметры пагинации по умолчанию
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Service управляет жизненным циклом багов и одобрением решений
type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New создает сервис поверх хранилища
func New(store repository.Store, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// ListQuery параметры запроса списка багов в исходном виде
type ListQuery struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// SubmitResult созданное решение и статус бага после отправки
type SubmitResult struct {
	Submission models.Submission `json:"submission"`
	BugStatus  models.BugStatus  `json:"bug_status"`
}

// CreateBug создает баг в статусе OPEN
func (s *Service) CreateBug(ctx context.Context, creatorID uuid.UUID, in BugInput) (*models.Bug, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	bug := &models.Bug{
		ID:           uuid.New(),
		Title:        in.Title,
		Description:  in.Description,
		BountyAmount: in.BountyAmount,
		Status:       models.BugStatusOpen,
		CreatorID:    creatorID,
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateBug(ctx, bug)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bug: %w", err)
	}

	s.metrics.BugsCreated.Inc()
	return bug, nil
}

// DeleteBug удаляет незакрытый баг вместе со всеми решениями. Удалять может только создатель.
func (s *Service) DeleteBug(ctx context.Context, requesterID uuid.UUID, rawBugID string) error {
	bugID, err := parseID(rawBugID, "invalid bug ID")
	if err != nil {
		return err
	}

	var removed int64
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		bug, err := tx.LockBug(ctx, bugID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("bug not found")
		}
		if err != nil {
			return err
		}

		if bug.CreatorID != requesterID {
			return forbidden("you do not have permission to delete this bug")
		}
		if bug.Status == models.BugStatusClosed {
			return invalidState("cannot delete a closed bug with a declared winner")
		}

		removed, err = tx.DeleteBug(ctx, bugID)
		return err
	})
	if err != nil {
		return wrapUnexpected("failed to delete bug", err)
	}

	s.metrics.BugsDeleted.Inc()
	s.logger.Debug("bug deleted",
		zap.String("bug_id", bugID.String()),
		zap.Int64("submissions_removed", removed))
	return nil
}

// GetBug получает баг со всеми решениями
func (s *Service) GetBug(ctx context.Context, rawBugID string) (*models.BugDetails, error) {
	bugID, err := parseID(rawBugID, "invalid bug ID")
	if err != nil {
		return nil, err
	}

	details, err := s.store.GetBugDetails(ctx, bugID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("bug not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bug: %w", err)
	}
	return details, nil
}

// ListBugs возвращает страницу багов. Видны все баги независимо от статуса и автора.
func (s *Service) ListBugs(ctx context.Context, q ListQuery) (*models.BugPage, error) {
	filter := models.BugFilter{
		Page:   q.Page,
		Limit:  q.Limit,
		Search: q.Search,
	}
	if filter.Page < 1 {
		filter.Page = DefaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	// (Page-1)*Limit не должно переполнять int
	if maxPage := math.MaxInt / filter.Limit; filter.Page > maxPage {
		filter.Page = maxPage
	}
	if q.Status != "" {
		status, ok := models.ParseBugStatus(q.Status)
		if !ok {
			return nil, validationError("unknown bug status")
		}
		filter.Status = status
	}

	page, err := s.store.ListBugs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	return page, nil
}

// MyBugs возвращает баги, созданные пользователем
func (s *Service) MyBugs(ctx context.Context, userID uuid.UUID) ([]models.Bug, error) {
	bugs, err := s.store.GetBugsByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bugs: %w", err)
	}
	return bugs, nil
}

// SubmitSolution создает решение в статусе PENDING. Первое решение переводит баг из OPEN в IN_REVIEW.
func (s *Service) SubmitSolution(ctx context.Context, submitterID uuid.UUID, rawBugID string, in SolutionInput) (*SubmitResult, error) {
	result, err := s.submitSolution(ctx, submitterID, rawBugID, in)
	s.metrics.Submissions.WithLabelValues(outcome(err)).Inc()
	return result, err
}

func (s *Service) submitSolution(ctx context.Context, submitterID uuid.UUID, rawBugID string, in SolutionInput) (*SubmitResult, error) {
	bugID, err := parseID(rawBugID, "invalid bug ID")
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		bug, err := tx.LockBug(ctx, bugID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("bug not found")
		}
		if err != nil {
			return err
		}

		if bug.Status == models.BugStatusClosed {
			return invalidState("cannot submit solution to a closed bug")
		}
		if bug.CreatorID == submitterID {
			return forbidden("bug creators cannot submit solutions to their own bugs")
		}

		in, err := in.normalize()
		if err != nil {
			return err
		}

		submission := models.Submission{
			ID:          uuid.New(),
			BugID:       bug.ID,
			UserID:      submitterID,
			Description: in.Description,
			ProofLink:   in.ProofLink,
			Status:      models.SubmissionStatusPending,
		}
		err = tx.CreateSubmission(ctx, &submission)
		if errors.Is(err, repository.ErrAlreadyExists) {
			return conflict("you have already submitted a solution for this bug")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user not found")
		}
		if err != nil {
			return err
		}

		if bug.Status == models.BugStatusOpen {
			if err := tx.UpdateBugStatus(ctx, bug.ID, models.BugStatusOpen, models.BugStatusInReview); err != nil {
				return err
			}
			bug.Status = models.BugStatusInReview
		}

		result = SubmitResult{Submission: submission, BugStatus: bug.Status}
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected("failed to submit solution", err)
	}
	return &result, nil
}

// ApproveSubmission одобряет решение: закрывает баг, отклоняет остальные решения и начисляет
// награду победителю. Все изменения применяются в одной транзакции под блокировкой бага.
func (s *Service) ApproveSubmission(ctx context.Context, requesterID uuid.UUID, rawSubmissionID string) (*Approval, error) {
	approval, err := s.approveSubmission(ctx, requesterID, rawSubmissionID)
	s.metrics.Approvals.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.metrics.BountyAwarded.Add(float64(approval.Credit.Amount))
	s.logger.Info("submission approved",
		zap.String("bug_id", approval.Bug.ID.String()),
		zap.String("submission_id", approval.Winner.ID.String()),
		zap.String("winner_id", approval.Credit.UserID.String()),
		zap.Int64("bounty", approval.Credit.Amount),
		zap.Int("rejected", len(approval.Rejected)))
	return approval, nil
}

func (s *Service) approveSubmission(ctx context.Context, requesterID uuid.UUID, rawSubmissionID string) (*Approval, error) {
	submissionID, err := parseID(rawSubmissionID, "invalid submission ID")
	if err != nil {
		return nil, err
	}

	var approval *Approval
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		submission, err := tx.GetSubmission(ctx, submissionID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("submission not found")
		}
		if err != nil {
			return err
		}

		// После блокировки бага статусы его решений уже не могут измениться
		bug, err := tx.LockBug(ctx, submission.BugID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("bug not found")
		}
		if err != nil {
			return err
		}

		if bug.CreatorID != requesterID {
			return forbidden("only bug creator can approve submission")
		}
		if bug.Status == models.BugStatusClosed {
			return invalidState("bug is already closed")
		}

		submissions, err := tx.GetSubmissionsByBug(ctx, bug.ID)
		if err != nil {
			return err
		}

		approval, err = Approve(*bug, submissionID, submissions)
		if err != nil {
			return err
		}
		return apply(ctx, tx, approval)
	})
	if err != nil {
		return nil, wrapUnexpected("failed to approve submission", err)
	}
	return approval, nil
}

// apply записывает результат Approve. Любая ошибка откатывает транзакцию целиком.
func apply(ctx context.Context, tx repository.Tx, a *Approval) error {
	err := tx.UpdateSubmissionStatus(ctx, a.Winner.ID, models.SubmissionStatusPending, models.SubmissionStatusApproved)
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrAlreadyExists) {
		return invalidState("submission already approved")
	}
	if err != nil {
		return err
	}

	for _, rejected := range a.Rejected {
		err := tx.UpdateSubmissionStatus(ctx, rejected.ID, models.SubmissionStatusPending, models.SubmissionStatusRejected)
		if err != nil {
			return fmt.Errorf("failed to reject submission %s: %w", rejected.ID, err)
		}
	}

	err = tx.CloseBug(ctx, a.Bug.ID, a.Credit.UserID)
	if errors.Is(err, repository.ErrConflict) {
		return invalidState("bug is already closed")
	}
	if err != nil {
		return err
	}

	if err := tx.CreditReward(ctx, a.Credit.UserID, a.Credit.Amount); err != nil {
		return fmt.Errorf("failed to credit reward: %w", err)
	}
	return nil
}

// MySubmissions возвращает решения пользователя
func (s *Service) MySubmissions(ctx context.Context, userID uuid.UUID) ([]models.Submission, error) {
	submissions, err := s.store.GetSubmissionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user submissions: %w", err)
	}
	return submissions, nil
}

// wrapUnexpected оставляет доменные ошибки как есть, остальные оборачивает
func wrapUnexpected(msg string, err error) error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
