package repository

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/untibullet/bug-bounty/internal/models"
)

type memUser struct {
	user models.User
	hash string
}

type memState struct {
	users       map[uuid.UUID]memUser
	bugs        map[uuid.UUID]models.Bug
	submissions map[uuid.UUID]models.Submission
	lastTime    time.Time
}

func (s *memState) clone() *memState {
	return &memState{
		users:       maps.Clone(s.users),
		bugs:        maps.Clone(s.bugs),
		submissions: maps.Clone(s.submissions),
		lastTime:    s.lastTime,
	}
}

// now возвращает строго возрастающее время, чтобы сортировка по дате была детерминированной
func (s *memState) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = t
	return t
}

func (s *memState) userRef(id uuid.UUID) *models.UserRef {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return u.user.Ref()
}

func (s *memState) populateBug(bug models.Bug) models.Bug {
	bug.Creator = s.userRef(bug.CreatorID)
	if bug.WinnerID != nil {
		bug.Winner = s.userRef(*bug.WinnerID)
	}
	return bug
}

// Memory реализует Store в памяти процесса. Транзакции выполняются под общим мьютексом
// над копией состояния, которая подменяет исходное только при успешном завершении.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

// NewMemory создает пустое хранилище в памяти
func NewMemory() *Memory {
	return &Memory{
		state: &memState{
			users:       make(map[uuid.UUID]memUser),
			bugs:        make(map[uuid.UUID]models.Bug),
			submissions: make(map[uuid.UUID]models.Submission),
		},
	}
}

// InTx выполняет fn над копией состояния и применяет ее, если fn не вернула ошибку
func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := m.state.clone()
	if err := fn(&memTx{state: working}); err != nil {
		return err
	}

	m.state = working
	return nil
}

// ListBugs возвращает страницу багов, новые первыми
func (m *Memory) ListBugs(_ context.Context, filter models.BugFilter) (*models.BugPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(filter.Search)
	matched := make([]models.Bug, 0)
	for _, bug := range m.state.bugs {
		if filter.Status != "" && bug.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(bug.Title), search) {
			continue
		}
		matched = append(matched, m.state.populateBug(bug))
	}
	sortBugsNewestFirst(matched)

	total := len(matched)
	start := min(max(filter.Offset(), 0), total)
	end := min(start+filter.Limit, total)

	return &models.BugPage{
		Total: total,
		Page:  filter.Page,
		Pages: pageCount(total, filter.Limit),
		Bugs:  matched[start:end],
	}, nil
}

// GetBugDetails получает баг со всеми решениями
func (m *Memory) GetBugDetails(_ context.Context, bugID uuid.UUID) (*models.BugDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bug, ok := m.state.bugs[bugID]
	if !ok {
		return nil, ErrNotFound
	}

	submissions := make([]models.Submission, 0)
	for _, s := range m.state.submissions {
		if s.BugID == bugID {
			s.Submitter = m.state.userRef(s.UserID)
			submissions = append(submissions, s)
		}
	}
	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].CreatedAt.After(submissions[j].CreatedAt)
	})

	return &models.BugDetails{Bug: m.state.populateBug(bug), Submissions: submissions}, nil
}

// GetBugsByCreator получает баги пользователя, новые первыми
func (m *Memory) GetBugsByCreator(_ context.Context, creatorID uuid.UUID) ([]models.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bugs := make([]models.Bug, 0)
	for _, bug := range m.state.bugs {
		if bug.CreatorID == creatorID {
			bugs = append(bugs, m.state.populateBug(bug))
		}
	}
	sortBugsNewestFirst(bugs)
	return bugs, nil
}

// GetSubmissionsByUser получает решения пользователя, новые первыми
func (m *Memory) GetSubmissionsByUser(_ context.Context, userID uuid.UUID) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	submissions := make([]models.Submission, 0)
	for _, s := range m.state.submissions {
		if s.UserID != userID {
			continue
		}
		if bug, ok := m.state.bugs[s.BugID]; ok {
			s.Bug = &models.BugShort{ID: bug.ID, Title: bug.Title, BountyAmount: bug.BountyAmount, Status: bug.Status}
		}
		submissions = append(submissions, s)
	}
	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].CreatedAt.After(submissions[j].CreatedAt)
	})
	return submissions, nil
}

// CreateUser регистрирует пользователя с уникальными username и email
func (m *Memory) CreateUser(_ context.Context, user *models.User, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.state.users {
		if u.user.Username == user.Username || u.user.Email == user.Email {
			return ErrAlreadyExists
		}
	}
	if _, ok := m.state.users[user.ID]; ok {
		return ErrAlreadyExists
	}

	user.TotalRewards = 0
	user.CreatedAt = m.state.now()
	m.state.users[user.ID] = memUser{user: *user, hash: passwordHash}
	return nil
}

// GetUserCredentials получает пользователя и хеш пароля по email
func (m *Memory) GetUserCredentials(_ context.Context, email string) (*models.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.state.users {
		if u.user.Email == email {
			user := u.user
			return &user, u.hash, nil
		}
	}
	return nil, "", ErrNotFound
}

// GetUser получает пользователя по ID
func (m *Memory) GetUser(_ context.Context, userID uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.state.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	user := u.user
	return &user, nil
}

func sortBugsNewestFirst(bugs []models.Bug) {
	sort.Slice(bugs, func(i, j int) bool {
		return bugs[i].CreatedAt.After(bugs[j].CreatedAt)
	})
}

// memTx операции над рабочей копией состояния
type memTx struct {
	state *memState
}

func (t *memTx) CreateBug(_ context.Context, bug *models.Bug) error {
	if _, ok := t.state.users[bug.CreatorID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.state.bugs[bug.ID]; ok {
		return ErrAlreadyExists
	}

	bug.CreatedAt = t.state.now()
	bug.UpdatedAt = bug.CreatedAt
	t.state.bugs[bug.ID] = *bug
	return nil
}

func (t *memTx) LockBug(_ context.Context, bugID uuid.UUID) (*models.Bug, error) {
	bug, ok := t.state.bugs[bugID]
	if !ok {
		return nil, ErrNotFound
	}
	return &bug, nil
}

func (t *memTx) UpdateBugStatus(_ context.Context, bugID uuid.UUID, from, to models.BugStatus) error {
	bug, ok := t.state.bugs[bugID]
	if !ok || bug.Status != from {
		return ErrConflict
	}
	bug.Status = to
	bug.UpdatedAt = t.state.now()
	t.state.bugs[bugID] = bug
	return nil
}

func (t *memTx) CloseBug(_ context.Context, bugID, winnerID uuid.UUID) error {
	bug, ok := t.state.bugs[bugID]
	if !ok || bug.Status == models.BugStatusClosed {
		return ErrConflict
	}
	if _, ok := t.state.users[winnerID]; !ok {
		return ErrNotFound
	}

	winner := winnerID
	bug.Status = models.BugStatusClosed
	bug.WinnerID = &winner
	bug.UpdatedAt = t.state.now()
	t.state.bugs[bugID] = bug
	return nil
}

func (t *memTx) DeleteBug(_ context.Context, bugID uuid.UUID) (int64, error) {
	if _, ok := t.state.bugs[bugID]; !ok {
		return 0, ErrNotFound
	}

	var removed int64
	for id, s := range t.state.submissions {
		if s.BugID == bugID {
			delete(t.state.submissions, id)
			removed++
		}
	}
	delete(t.state.bugs, bugID)
	return removed, nil
}

func (t *memTx) CreateSubmission(_ context.Context, submission *models.Submission) error {
	if _, ok := t.state.bugs[submission.BugID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.state.users[submission.UserID]; !ok {
		return ErrNotFound
	}
	for _, s := range t.state.submissions {
		if s.ID == submission.ID || (s.BugID == submission.BugID && s.UserID == submission.UserID) {
			return ErrAlreadyExists
		}
	}

	submission.CreatedAt = t.state.now()
	submission.UpdatedAt = submission.CreatedAt
	t.state.submissions[submission.ID] = *submission
	return nil
}

func (t *memTx) GetSubmission(_ context.Context, submissionID uuid.UUID) (*models.Submission, error) {
	s, ok := t.state.submissions[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memTx) GetSubmissionsByBug(_ context.Context, bugID uuid.UUID) ([]models.Submission, error) {
	var submissions []models.Submission
	for _, s := range t.state.submissions {
		if s.BugID == bugID {
			submissions = append(submissions, s)
		}
	}
	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].CreatedAt.Before(submissions[j].CreatedAt)
	})
	return submissions, nil
}

func (t *memTx) UpdateSubmissionStatus(_ context.Context, submissionID uuid.UUID, from, to models.SubmissionStatus) error {
	s, ok := t.state.submissions[submissionID]
	if !ok || s.Status != from {
		return ErrConflict
	}
	if to == models.SubmissionStatusApproved {
		for _, other := range t.state.submissions {
			if other.BugID == s.BugID && other.Status == models.SubmissionStatusApproved {
				return ErrAlreadyExists
			}
		}
	}

	s.Status = to
	s.UpdatedAt = t.state.now()
	t.state.submissions[submissionID] = s
	return nil
}

func (t *memTx) CreditReward(_ context.Context, userID uuid.UUID, amount int64) error {
	u, ok := t.state.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.user.TotalRewards += amount
	t.state.users[userID] = u
	return nil
}
