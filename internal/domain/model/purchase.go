package model

import (
	"strings"
	"time"

	"bookstore-payments/internal/domain"

	"github.com/google/uuid"
)

type PurchaseStatus string

const (
	PurchaseStatusPendingInitiation   PurchaseStatus = "pending_initiation"   // created; waiting for the user to start paying
	PurchaseStatusAwaitingPayment     PurchaseStatus = "awaiting_payment"     // user has the reference; payment happens out-of-band
	PurchaseStatusPendingVerification PurchaseStatus = "pending_verification" // proof submitted; waiting for admin/bot review
	PurchaseStatusCompleted           PurchaseStatus = "completed"            // verified; library access granted
	PurchaseStatusRejected            PurchaseStatus = "rejected"             // verification failed or cancelled
)

// IsTerminal reports whether the status is a permanent marker.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusRejected
}

// CanTransition encodes the purchase state machine. All writes go through a
// conditional update keyed on the current status, so this table is the single
// place that defines which transitions exist at all.
func (s PurchaseStatus) CanTransition(to PurchaseStatus) bool {
	switch s {
	case PurchaseStatusPendingInitiation:
		return to == PurchaseStatusAwaitingPayment || to == PurchaseStatusRejected
	case PurchaseStatusAwaitingPayment:
		return to == PurchaseStatusPendingVerification || to == PurchaseStatusRejected
	case PurchaseStatusPendingVerification:
		return to == PurchaseStatusCompleted || to == PurchaseStatusRejected
	default:
		return false
	}
}

type ItemType string

const (
	ItemTypeBook   ItemType = "book"
	ItemTypeBundle ItemType = "bundle"
)

func ParseItemType(s string) (ItemType, error) {
	switch ItemType(strings.ToLower(strings.TrimSpace(s))) {
	case ItemTypeBook:
		return ItemTypeBook, nil
	case ItemTypeBundle:
		return ItemTypeBundle, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// Purchase records one paid-item acquisition attempt and its verification
// lifecycle. Amount is snapshotted at creation and never re-derived from the
// live catalog price.
type Purchase struct {
	ID       string // UUID
	UserID   string // UUID (owner)
	ItemType ItemType
	ItemID   string

	Amount   int64  // minor units (cents) to avoid float errors
	Currency string // ISO code, fixed per deployment (e.g. "ETB")

	// TransactionRef is the human-shareable handle between user, admin and
	// bot. Immutable once set.
	TransactionRef string
	// InitiationToken is the opaque secondary lookup key for bot flows that
	// cannot address a purchase by primary id.
	InitiationToken string

	Status PurchaseStatus

	// Gateway/bot linkage, set after initiation.
	ProviderRef    *string
	TelegramChatID *int64
	TelegramUserID *int64

	CreatedAt     time.Time
	UpdatedAt     time.Time
	ReviewerNotes *string
	ReviewedAt    *time.Time
}

func NewPurchase(id, userID string, itemType ItemType, itemID string, amount int64, currency string) (*Purchase, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if userID == "" || itemID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if itemType != ItemTypeBook && itemType != ItemTypeBundle {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Purchase{
		ID:        id,
		UserID:    userID,
		ItemType:  itemType,
		ItemID:    itemID,
		Amount:    amount,
		Currency:  currency,
		Status:    PurchaseStatusPendingInitiation,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Purchase) IsZero() bool { return p == nil || p.ID == "" }
