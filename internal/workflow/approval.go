package workflow

import (
	"github.com/google/uuid"
	"github.com/untibullet/bug-bounty/internal/models"
)

// Approval результат одобрения: новое состояние бага, победившего решения,
// отклоненных решений и начисление на счет победителя
type Approval struct {
	Bug      models.Bug
	Winner   models.Submission
	Rejected []models.Submission
	Credit   Credit
}

// Credit начисление награды пользователю
type Credit struct {
	UserID uuid.UUID
	Amount int64
}

// Approve вычисляет переход при одобрении решения winnerID. Функция чистая: она
// ничего не пишет, а лишь проверяет допустимость переходов и возвращает новое состояние.
func Approve(bug models.Bug, winnerID uuid.UUID, submissions []models.Submission) (*Approval, error) {
	if !bug.Status.CanTransitionTo(models.BugStatusClosed) {
		return nil, invalidState("bug is already closed")
	}

	var (
		winner   *models.Submission
		rejected []models.Submission
	)
	for i := range submissions {
		s := submissions[i]
		if s.BugID != bug.ID {
			continue
		}
		if s.ID == winnerID {
			winner = &s
			continue
		}
		if s.Status == models.SubmissionStatusApproved {
			return nil, invalidState("bug already has an approved submission")
		}
		if s.Status == models.SubmissionStatusPending {
			s.Status = models.SubmissionStatusRejected
			rejected = append(rejected, s)
		}
	}

	if winner == nil {
		return nil, notFound("submission not found")
	}
	if winner.Status == models.SubmissionStatusApproved {
		return nil, invalidState("submission already approved")
	}
	if !winner.Status.CanTransitionTo(models.SubmissionStatusApproved) {
		return nil, invalidState("submission is no longer pending")
	}

	winner.Status = models.SubmissionStatusApproved
	winnerUser := winner.UserID
	bug.Status = models.BugStatusClosed
	bug.WinnerID = &winnerUser

	return &Approval{
		Bug:      bug,
		Winner:   *winner,
		Rejected: rejected,
		Credit:   Credit{UserID: winner.UserID, Amount: bug.BountyAmount},
	}, nil
}
