package model

import (
	"time"

	"bookstore-payments/internal/domain"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// PaymentSubmission is the evidence artifact for an out-of-band payment: one
// or more stored receipt paths tied to a purchase. Rows are never deleted,
// only status-transitioned, so the review trail survives.
type PaymentSubmission struct {
	ID            string
	PurchaseID    string
	UserID        string
	ReceiptPaths  []string
	ClaimedAmount *int64 // optional, as claimed by the user
	Status        SubmissionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPaymentSubmission(purchaseID, userID string, receiptPaths []string, claimedAmount *int64) (*PaymentSubmission, error) {
	if purchaseID == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(receiptPaths) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if claimedAmount != nil && *claimedAmount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentSubmission{
		ID:            uuid.NewString(),
		PurchaseID:    purchaseID,
		UserID:        userID,
		ReceiptPaths:  receiptPaths,
		ClaimedAmount: claimedAmount,
		Status:        SubmissionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
