// models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRef представляет публичные данные пользователя, подставляемые в баги и решения
type UserRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// User представляет пользователя вместе с накопленной суммой наград
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	TotalRewards int64     `json:"total_rewards" db:"total_rewards"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Ref возвращает публичное представление пользователя
func (u User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Bug представляет баг с назначенной наградой
type Bug struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description" db:"description"`
	BountyAmount int64      `json:"bounty_amount" db:"bounty_amount"`
	Status       BugStatus  `json:"status" db:"status"`
	CreatorID    uuid.UUID  `json:"creator_id" db:"creator_id"`
	WinnerID     *uuid.UUID `json:"winner_id,omitempty" db:"winner_id"`
	Creator      *UserRef   `json:"creator,omitempty" db:"-"`
	Winner       *UserRef   `json:"winner,omitempty" db:"-"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// BugShort представляет краткую информацию о баге
type BugShort struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	BountyAmount int64     `json:"bounty_amount" db:"bounty_amount"`
	Status       BugStatus `json:"status" db:"status"`
}

// Submission представляет решение, отправленное пользователем к багу
type Submission struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	BugID       uuid.UUID        `json:"bug_id" db:"bug_id"`
	UserID      uuid.UUID        `json:"user_id" db:"user_id"`
	Description string           `json:"description" db:"description"`
	ProofLink   string           `json:"proof_link" db:"proof_link"`
	Status      SubmissionStatus `json:"status" db:"status"`
	Submitter   *UserRef         `json:"user,omitempty" db:"-"`
	Bug         *BugShort        `json:"bug,omitempty" db:"-"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// BugDetails представляет баг со всеми решениями
type BugDetails struct {
	Bug         Bug          `json:"bug"`
	Submissions []Submission `json:"submissions"`
}

// BugFilter описывает параметры выборки списка багов
type BugFilter struct {
	Status BugStatus
	Search string
	Page   int
	Limit  int
}

// Offset возвращает смещение для текущей страницы
func (f BugFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// BugPage представляет страницу списка багов
type BugPage struct {
	Total int   `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Bugs  []Bug `json:"bugs"`
}
