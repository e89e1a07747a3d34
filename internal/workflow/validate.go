package workflow

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var proofLinkPattern = regexp.MustCompile(`^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w .-]*)*/?$`)

// BugInput данные для создания бага
type BugInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	BountyAmount int64  `json:"bounty_amount"`
}

// SolutionInput данные решения
type SolutionInput struct {
	Description string `json:"description"`
	ProofLink   string `json:"proof_link"`
}

func parseID(raw, message string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, validationError(message)
	}
	return id, nil
}

// normalize обрезает пробелы и проверяет обязательные поля
func (in BugInput) normalize() (BugInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" || in.Description == "" {
		return in, validationError("all fields are required")
	}
	if in.BountyAmount <= 0 {
		return in, validationError("bounty must be greater than 0")
	}
	return in, nil
}

func (in SolutionInput) normalize() (SolutionInput, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.ProofLink = strings.TrimSpace(in.ProofLink)

	if in.Description == "" || in.ProofLink == "" {
		return in, validationError("description and a valid proof link are required")
	}
	if !proofLinkPattern.MatchString(in.ProofLink) {
		return in, validationError("please provide a valid URL for the proof link")
	}
	return in, nil
}
