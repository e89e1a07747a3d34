package models

import "strings"

// BugStatus статус жизненного цикла бага
type BugStatus string

// Константы статусов бага
const (
	BugStatusOpen     BugStatus = "OPEN"
	BugStatusInReview BugStatus = "IN_REVIEW"
	BugStatusClosed   BugStatus = "CLOSED"
)

// CLOSED терминален: из него переходов нет
var bugTransitions = map[BugStatus][]BugStatus{
	BugStatusOpen:     {BugStatusInReview, BugStatusClosed},
	BugStatusInReview: {BugStatusClosed},
}

// ParseBugStatus разбирает статус без учета регистра
func ParseBugStatus(s string) (BugStatus, bool) {
	status := BugStatus(strings.ToUpper(strings.TrimSpace(s)))
	return status, status.Valid()
}

// Valid сообщает, является ли статус допустимым
func (s BugStatus) Valid() bool {
	switch s {
	case BugStatusOpen, BugStatusInReview, BugStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода в статус next
func (s BugStatus) CanTransitionTo(next BugStatus) bool {
	for _, allowed := range bugTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SubmissionStatus статус решения
type SubmissionStatus string

// Константы статусов решения
const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusPending: {SubmissionStatusApproved, SubmissionStatusRejected},
}

// Valid сообщает, является ли статус допустимым
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusApproved, SubmissionStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода в статус next
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
