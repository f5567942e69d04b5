package model

import (
	"time"

	"bookstore-payments/internal/domain"

	"github.com/google/uuid"
)

type PaymentRequestStatus string

const (
	PaymentRequestStatusPending   PaymentRequestStatus = "pending"
	PaymentRequestStatusContacted PaymentRequestStatus = "contacted"
	PaymentRequestStatusApproved  PaymentRequestStatus = "approved"
	PaymentRequestStatusRejected  PaymentRequestStatus = "rejected"
	PaymentRequestStatusCompleted PaymentRequestStatus = "completed"
	PaymentRequestStatusCancelled PaymentRequestStatus = "cancelled"
)

func (s PaymentRequestStatus) IsTerminal() bool {
	switch s {
	case PaymentRequestStatusRejected, PaymentRequestStatusCompleted, PaymentRequestStatusCancelled:
		return true
	}
	return false
}

// CanTransition encodes the contact-based request lifecycle. An admin walks a
// request through contacted/approved before completing it; the owner may
// cancel while it is still pending or contacted.
func (s PaymentRequestStatus) CanTransition(to PaymentRequestStatus) bool {
	switch s {
	case PaymentRequestStatusPending:
		return to == PaymentRequestStatusContacted || to == PaymentRequestStatusApproved ||
			to == PaymentRequestStatusRejected || to == PaymentRequestStatusCancelled
	case PaymentRequestStatusContacted:
		return to == PaymentRequestStatusApproved || to == PaymentRequestStatusRejected ||
			to == PaymentRequestStatusCancelled
	case PaymentRequestStatusApproved:
		return to == PaymentRequestStatusCompleted || to == PaymentRequestStatusRejected
	default:
		return false
	}
}

// PaymentRequest is the lower-trust alternate purchase path: the user asks an
// admin to process a sale manually (e.g. over the phone). Completion goes
// through the same fulfillment dispatcher as a verified Purchase.
type PaymentRequest struct {
	ID        string
	UserID    string
	ItemType  ItemType
	ItemID    string
	Contact   string // how the admin should reach the user
	Note      *string
	Status    PaymentRequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPaymentRequest(userID string, itemType ItemType, itemID, contact string, note *string) (*PaymentRequest, error) {
	if userID == "" || itemID == "" || contact == "" {
		return nil, domain.ErrInvalidArgument
	}
	if itemType != ItemTypeBook && itemType != ItemTypeBundle {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		ItemType:  itemType,
		ItemID:    itemID,
		Contact:   contact,
		Note:      note,
		Status:    PaymentRequestStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
