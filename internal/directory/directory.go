// Package directory reads loan and borrower records owned by the wider loan
// platform. This service never writes them.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pockett/agreementflow/internal/models"
)

// Directory resolves the data the agreement renderer needs.
type Directory interface {
	GetLoan(ctx context.Context, loanID string) (*models.Loan, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// MemoryDirectory is a map-backed Directory for tests and local development.
type MemoryDirectory struct {
	mu    sync.RWMutex
	loans map[string]models.Loan
	users map[string]models.User
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		loans: make(map[string]models.Loan),
		users: make(map[string]models.User),
	}
}

// PutLoan stores or replaces a loan.
func (d *MemoryDirectory) PutLoan(loan models.Loan) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loans[loan.ID] = loan
}

// PutUser stores or replaces a user.
func (d *MemoryDirectory) PutUser(user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *MemoryDirectory) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	loan, ok := d.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", loanID, models.ErrNotFound)
	}
	return &loan, nil
}

func (d *MemoryDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return &user, nil
}
