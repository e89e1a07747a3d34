package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/bug-bounty/internal/models"
)

func newSubmission(bugID uuid.UUID, status models.SubmissionStatus) models.Submission {
	return models.Submission{ID: uuid.New(), BugID: bugID, UserID: uuid.New(), Status: status}
}

func TestApprove(t *testing.T) {
	bug := models.Bug{ID: uuid.New(), BountyAmount: 250, Status: models.BugStatusInReview, CreatorID: uuid.New()}
	winner := newSubmission(bug.ID, models.SubmissionStatusPending)
	other := newSubmission(bug.ID, models.SubmissionStatusPending)
	foreign := newSubmission(uuid.New(), models.SubmissionStatusPending)

	a, err := Approve(bug, winner.ID, []models.Submission{other, winner, foreign})
	require.NoError(t, err)

	assert.Equal(t, models.BugStatusClosed, a.Bug.Status)
	require.NotNil(t, a.Bug.WinnerID)
	assert.Equal(t, winner.UserID, *a.Bug.WinnerID)
	assert.Equal(t, models.SubmissionStatusApproved, a.Winner.Status)
	require.Len(t, a.Rejected, 1)
	assert.Equal(t, other.ID, a.Rejected[0].ID)
	assert.Equal(t, models.SubmissionStatusRejected, a.Rejected[0].Status)
	assert.Equal(t, Credit{UserID: winner.UserID, Amount: 250}, a.Credit)

	// входные значения не изменяются
	assert.Equal(t, models.BugStatusInReview, bug.Status)
	assert.Nil(t, bug.WinnerID)
}

func TestApprove_FromOpen(t *testing.T) {
	bug := models.Bug{ID: uuid.New(), BountyAmount: 1, Status: models.BugStatusOpen}
	winner := newSubmission(bug.ID, models.SubmissionStatusPending)

	a, err := Approve(bug, winner.ID, []models.Submission{winner})
	require.NoError(t, err)
	assert.Empty(t, a.Rejected)
}

func TestApprove_IllegalTransitions(t *testing.T) {
	open := models.Bug{ID: uuid.New(), Status: models.BugStatusInReview}
	closed := open
	closed.Status = models.BugStatusClosed

	pending := newSubmission(open.ID, models.SubmissionStatusPending)
	approved := newSubmission(open.ID, models.SubmissionStatusApproved)
	rejected := newSubmission(open.ID, models.SubmissionStatusRejected)

	tests := []struct {
		name    string
		bug     models.Bug
		winner  uuid.UUID
		subs    []models.Submission
		wantErr error
	}{
		{"closed bug", closed, pending.ID, []models.Submission{pending}, ErrInvalidState},
		{"already approved", open, approved.ID, []models.Submission{approved}, ErrInvalidState},
		{"sibling approved", open, pending.ID, []models.Submission{pending, approved}, ErrInvalidState},
		{"rejected winner", open, rejected.ID, []models.Submission{rejected}, ErrInvalidState},
		{"unknown winner", open, uuid.New(), []models.Submission{pending}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Approve(tt.bug, tt.winner, tt.subs)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
