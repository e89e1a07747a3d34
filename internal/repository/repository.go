// repository/repository.go
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/untibullet/bug-bounty/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrConflict возвращается, когда условное обновление не нашло строку в ожидаемом состоянии
	ErrConflict = errors.New("state changed concurrently")
)

// Store объединяет операции чтения и транзакционный доступ к данным
type Store interface {
	UserRepository

	// InTx выполняет fn в одной транзакции: при ошибке не применяется ни одно изменение
	InTx(ctx context.Context, fn func(tx Tx) error) error

	ListBugs(ctx context.Context, filter models.BugFilter) (*models.BugPage, error)
	GetBugDetails(ctx context.Context, bugID uuid.UUID) (*models.BugDetails, error)
	GetBugsByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Bug, error)
	GetSubmissionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Submission, error)
}

// UserRepository хранит пользователей и их счет наград
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User, passwordHash string) error
	GetUserCredentials(ctx context.Context, email string) (*models.User, string, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Tx набор операций, доступных внутри транзакции
type Tx interface {
	CreateBug(ctx context.Context, bug *models.Bug) error
	// LockBug читает баг и блокирует его до конца транзакции
	LockBug(ctx context.Context, bugID uuid.UUID) (*models.Bug, error)
	UpdateBugStatus(ctx context.Context, bugID uuid.UUID, from, to models.BugStatus) error
	CloseBug(ctx context.Context, bugID, winnerID uuid.UUID) error
	// DeleteBug удаляет баг вместе со всеми решениями и возвращает число удаленных решений
	DeleteBug(ctx context.Context, bugID uuid.UUID) (int64, error)

	CreateSubmission(ctx context.Context, submission *models.Submission) error
	GetSubmission(ctx context.Context, submissionID uuid.UUID) (*models.Submission, error)
	GetSubmissionsByBug(ctx context.Context, bugID uuid.UUID) ([]models.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, submissionID uuid.UUID, from, to models.SubmissionStatus) error

	CreditReward(ctx context.Context, userID uuid.UUID, amount int64) error
}

func pageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
