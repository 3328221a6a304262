package models

import (
	"encoding/json"
	"strings"
	"time"
)

type BookingMetadata struct {
	CustomerID   any    `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

type Booking struct {
	ID          string          `json:"id"`
	ResourceID  string          `json:"resource_id"`
	ServiceID   string          `json:"service_id"`
	LocationID  string          `json:"location_id"`
	Price       *float64        `json:"price"`
	StartsAt    string          `json:"starts_at"`
	EndsAt      string          `json:"ends_at"`
	IsTemporary bool            `json:"is_temporary"`
	IsCanceled  bool            `json:"is_canceled"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// BookingRequest is the inbound creation body; it is forwarded to the upstream as-is.
type BookingRequest struct {
	ResourceID   string   `json:"resource_id"`
	ServiceID    string   `json:"service_id"`
	LocationID   string   `json:"location_id"`
	Price        *float64 `json:"price,omitempty"`
	CustomerID   any      `json:"customer_id,omitempty"`
	CustomerName string   `json:"customer_name,omitempty"`
	StartsAt     string   `json:"starts_at"`
	EndsAt       string   `json:"ends_at"`
	IsTemporary  *bool    `json:"is_temporary,omitempty"`
}

// BookingPayload is the upstream body for POST /bookings.
type BookingPayload struct {
	ResourceID  string          `json:"resource_id"`
	ServiceID   string          `json:"service_id"`
	LocationID  string          `json:"location_id"`
	Price       *float64        `json:"price,omitempty"`
	StartsAt    string          `json:"starts_at"`
	EndsAt      string          `json:"ends_at"`
	IsTemporary *bool           `json:"is_temporary,omitempty"`
	Metadata    BookingMetadata `json:"metadata"`
}

// Payload maps the request onto the upstream body without touching any value.
func (r BookingRequest) Payload() BookingPayload {
	return BookingPayload{
		ResourceID:  r.ResourceID,
		ServiceID:   r.ServiceID,
		LocationID:  r.LocationID,
		Price:       r.Price,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
		IsTemporary: r.IsTemporary,
		Metadata: BookingMetadata{
			CustomerID:   r.CustomerID,
			CustomerName: r.CustomerName,
		},
	}
}

// BookingUpdate fields left nil are taken from the existing booking.
type BookingUpdate struct {
	StartsAt    *string  `json:"starts_at,omitempty"`
	EndsAt      *string  `json:"ends_at,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	IsTemporary *bool    `json:"is_temporary,omitempty"`
	IsCanceled  *bool    `json:"is_canceled,omitempty"`
}

// IsEmpty reports whether none of the updatable fields were supplied.
func (u BookingUpdate) IsEmpty() bool {
	return (u.StartsAt == nil || *u.StartsAt == "") &&
		(u.EndsAt == nil || *u.EndsAt == "") &&
		u.Price == nil && u.IsTemporary == nil && u.IsCanceled == nil
}

// Cancels reports whether the update explicitly cancels the booking.
func (u BookingUpdate) Cancels() bool {
	return u.IsCanceled != nil && *u.IsCanceled
}

// BookingPatch is always sent in full; the ignore_* overrides stay false.
type BookingPatch struct {
	StartsAt                   string   `json:"starts_at"`
	EndsAt                     string   `json:"ends_at"`
	Price                      *float64 `json:"price"`
	IsTemporary                bool     `json:"is_temporary"`
	IsCanceled                 bool     `json:"is_canceled"`
	IgnoreSchedule             bool     `json:"ignore_schedule"`
	IgnoreFullyBooked          bool     `json:"ignore_fully_booked"`
	IgnoreBookableSlots        bool     `json:"ignore_bookable_slots"`
	IgnoreBookingWindow        bool     `json:"ignore_booking_window"`
	IgnoreCancelationThreshold bool     `json:"ignore_cancelation_threshold"`
}

// Merge builds the full patch body, defaulting missing fields from the existing booking.
func (u BookingUpdate) Merge(existing Booking) BookingPatch {
	patch := BookingPatch{
		StartsAt:    existing.StartsAt,
		EndsAt:      existing.EndsAt,
		Price:       existing.Price,
		IsTemporary: existing.IsTemporary,
		IsCanceled:  existing.IsCanceled,
	}
	if u.StartsAt != nil && *u.StartsAt != "" {
		patch.StartsAt = *u.StartsAt
	}
	if u.EndsAt != nil && *u.EndsAt != "" {
		patch.EndsAt = *u.EndsAt
	}
	if u.Price != nil {
		patch.Price = u.Price
	}
	if u.IsTemporary != nil {
		patch.IsTemporary = *u.IsTemporary
	}
	if u.IsCanceled != nil {
		patch.IsCanceled = *u.IsCanceled
	}
	return patch
}

type BookingFilter struct {
	ResourceID string
	ServiceID  string
	LocationID string
}

// IsEmpty reports whether no filter is set.
func (f BookingFilter) IsEmpty() bool {
	return f.ResourceID == "" && f.ServiceID == "" && f.LocationID == ""
}

var bookingTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseBookingTime reads an upstream or client timestamp. Date-time values without an offset
// are interpreted in the process-local zone; a bare date is midnight UTC.
func ParseBookingTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range bookingTimeLayouts {
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
