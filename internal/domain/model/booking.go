package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a scheduled session with a professional. It is created during checkout;
// reconciliation only flips its status and stamps the payment reference.
type Booking struct {
	ID             string
	UserID         string
	ProfessionalID string
	Status         BookingStatus
	PaymentRef     *string
	ScheduledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChatChannel is a messaging thread between a user and a professional. There is at most one
// channel per (user, professional); BookingID is nil for instant-chat channels.
type ChatChannel struct {
	ID             string
	UserID         string
	ProfessionalID string
	BookingID      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
