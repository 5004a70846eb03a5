package repository

import (
	"context"

	"wellness-payments/internal/domain/model"
)

// -----------------------------
// Bookings & chat channels
// -----------------------------

type BookingRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Booking, error)
	// MarkPaid sets status=paid and stamps the payment reference. Returns domain.ErrBookingNotFound
	// when the booking does not exist.
	MarkPaid(ctx context.Context, tx Tx, id, paymentRef string) (*model.Booking, error)
}

type ChatChannelRepository interface {
	// UpsertForPair atomically creates the channel for (user, professional) or attaches
	// bookingID to the existing one. Backed by a unique constraint on the pair.
	UpsertForPair(ctx context.Context, tx Tx, userID, professionalID string, bookingID *string) (*model.ChatChannel, error)
	FindByPair(ctx context.Context, tx Tx, userID, professionalID string) (*model.ChatChannel, error)
}
