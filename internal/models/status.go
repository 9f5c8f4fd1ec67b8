package models

import (
	"fmt"
	"strings"
)

// JobStatus единственный канонический статус заказа. В базе хранятся только эти значения.
type JobStatus string

const (
	JobStatusDraft         JobStatus = "draft"
	JobStatusOpen          JobStatus = "open"
	JobStatusBidAccepted   JobStatus = "bid_accepted"
	JobStatusFunded        JobStatus = "funded"
	JobStatusInProgress    JobStatus = "in_progress"
	JobStatusWorkSubmitted JobStatus = "work_submitted"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusDisputed      JobStatus = "disputed"
	JobStatusCancelled     JobStatus = "cancelled"
	JobStatusUnbid         JobStatus = "unbid"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusDraft:         {JobStatusOpen, JobStatusCancelled},
	JobStatusOpen:          {JobStatusBidAccepted, JobStatusUnbid, JobStatusCancelled},
	JobStatusBidAccepted:   {JobStatusFunded, JobStatusOpen, JobStatusCancelled},
	JobStatusFunded:        {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress:    {JobStatusWorkSubmitted, JobStatusDisputed, JobStatusCancelled},
	JobStatusWorkSubmitted: {JobStatusCompleted, JobStatusInProgress, JobStatusDisputed},
	JobStatusCompleted:     {JobStatusDisputed},
	JobStatusDisputed:      {JobStatusInProgress, JobStatusCompleted, JobStatusCancelled},
	JobStatusUnbid:         {JobStatusOpen},
	JobStatusCancelled:     {},
}

func (s JobStatus) IsValid() bool {
	_, ok := jobTransitions[s]
	return ok
}

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal: из cancelled выхода нет, completed допускает только спор.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCancelled || s == JobStatusCompleted
}

// legacyJobStatuses сопоставляет старые отображаемые значения каноническим.
// Используется только при разборе входных данных и миграции старых записей.
var legacyJobStatuses = map[string]JobStatus{
	"Open for Bidding":      JobStatusOpen,
	"Bidding Closed":        JobStatusOpen,
	"Awarded":               JobStatusBidAccepted,
	"Pending Funding":       JobStatusBidAccepted,
	"In Progress":           JobStatusInProgress,
	"Pending Confirmation":  JobStatusWorkSubmitted,
	"Completed":             JobStatusCompleted,
	"Cancelled":             JobStatusCancelled,
	"Unbid":                 JobStatusUnbid,
	"Disputed":              JobStatusDisputed,
	"Needs Assistance":      JobStatusDisputed,
	"Cancellation Proposed": JobStatusInProgress,
}

// ParseJobStatus принимает как канонические, так и устаревшие значения статуса.
func ParseJobStatus(raw string) (JobStatus, error) {
	raw = strings.TrimSpace(raw)
	if s := JobStatus(raw); s.IsValid() {
		return s, nil
	}
	if s, ok := legacyJobStatuses[raw]; ok {
		return s, nil
	}
	return "", fmt.Errorf("неизвестный статус заказа %q", raw)
}

var jobStatusDisplay = map[JobStatus]string{
	JobStatusDraft:         "Draft",
	JobStatusOpen:          "Open for Bidding",
	JobStatusBidAccepted:   "Pending Funding",
	JobStatusFunded:        "Funded",
	JobStatusInProgress:    "In Progress",
	JobStatusWorkSubmitted: "Pending Confirmation",
	JobStatusCompleted:     "Completed",
	JobStatusDisputed:      "Disputed",
	JobStatusCancelled:     "Cancelled",
	JobStatusUnbid:         "Unbid",
}

// DisplayName возвращает подпись статуса для клиента.
func (s JobStatus) DisplayName() string {
	if name, ok := jobStatusDisplay[s]; ok {
		return name
	}
	return string(s)
}

type BidStatus string

const (
	BidStatusBidded    BidStatus = "bidded"
	BidStatusAwarded   BidStatus = "awarded"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusFunded    TransactionStatus = "funded"
	TransactionStatusReleased  TransactionStatus = "released"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusDisputed  TransactionStatus = "disputed"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusInitiated: {TransactionStatusFunded, TransactionStatusFailed, TransactionStatusRefunded},
	TransactionStatusFunded:    {TransactionStatusReleased, TransactionStatusRefunded, TransactionStatusDisputed},
	TransactionStatusDisputed:  {TransactionStatusReleased, TransactionStatusRefunded},
	TransactionStatusReleased:  {},
	TransactionStatusRefunded:  {},
	TransactionStatusFailed:    {},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TransactionType string

const (
	TransactionTypeJob   TransactionType = "JOB"
	TransactionTypeAddOn TransactionType = "ADD_ON"
)

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
)

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	switch s {
	case DisputeStatusOpen:
		return next == DisputeStatusUnderReview || next == DisputeStatusResolved
	case DisputeStatusUnderReview:
		return next == DisputeStatusResolved
	}
	return false
}

func (s DisputeStatus) DisplayName() string {
	switch s {
	case DisputeStatusOpen:
		return "Open"
	case DisputeStatusUnderReview:
		return "Under Review"
	case DisputeStatusResolved:
		return "Resolved"
	}
	return string(s)
}

type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusSuspended   UserStatus = "suspended"
	UserStatusDeactivated UserStatus = "deactivated"
)
