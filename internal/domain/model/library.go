package model

import (
	"time"

	"bookstore-payments/internal/domain"

	"github.com/google/uuid"
)

type LibraryStatus string

const (
	LibraryStatusOwned     LibraryStatus = "owned"
	LibraryStatusPending   LibraryStatus = "pending"
	LibraryStatusCompleted LibraryStatus = "completed" // user finished reading
)

// LibraryEntry grants a user access to one book. At most one entry exists per
// (user, book) pair; a second creation attempt is rejected, not duplicated.
type LibraryEntry struct {
	ID        string
	UserID    string
	BookID    string
	Status    LibraryStatus
	Progress  float64 // 0–100
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewLibraryEntry(userID, bookID string) (*LibraryEntry, error) {
	if userID == "" || bookID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &LibraryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		Status:    LibraryStatusOwned,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
