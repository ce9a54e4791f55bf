package booking

import (
	"context"
	"errors"
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/apperror"
)

// Store is the narrow persistence contract the engine relies on.
// Implementations return ErrNotFound for missing rows and ErrSlotConflict when the
// backing store itself rejects an overlapping ACTIVE booking.
type Store interface {
	Insert(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	Delete(ctx context.Context, id string) error
	// UpdateStatus moves an ACTIVE booking to status. It returns ErrNotFound when the
	// booking is missing or has already left ACTIVE.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// QueryByRoomAndOverlap returns bookings of any status whose [start_time, end_time) overlaps [start, end).
	QueryByRoomAndOverlap(ctx context.Context, roomID string, start, end time.Time) ([]*Booking, error)
	QueryByStudentAndStatus(ctx context.Context, studentID string, status Status) ([]*Booking, error)
	QueryAll(ctx context.Context) ([]*Booking, error)
}

// Tx is a Store bound to one atomic unit of work.
type Tx interface {
	Store

	// Lock serializes units of work that touch the same keys until commit or rollback.
	Lock(ctx context.Context, keys ...string) error
}

// UnitOfWork runs fn atomically: everything fn does through tx commits together,
// or nothing does when fn returns an error.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Repository is a Store that can also open units of work.
type Repository interface {
	Store
	UnitOfWork
}

// storeErr passes domain errors through and reports everything else as StoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(ErrStoreUnavailable, err)
}
