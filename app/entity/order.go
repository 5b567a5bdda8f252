package entity

import "time"

const (
	SubmissionPending   = "pending_submission"
	SubmissionSubmitted = "submitted"
	SubmissionFailed    = "submission_failed"
)

type Order struct {
	ID string

	SchoolID  string
	TrusteeID string

	StudentName  string
	StudentID    string
	StudentEmail string
	StudentPhone *string

	GatewayName string

	SubmissionState string
	SubmissionError *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
