package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"bookinggate/internal/domain"
	"bookinggate/internal/events"
	"bookinggate/internal/models"
	"bookinggate/internal/upstream"

	"github.com/rs/zerolog"
)

const (
	msgBookingStarted  = "Cannot update booking after it has started or ended."
	msgBookingNoFields = "Please provide at least one of 'starts_at', 'ends_at', 'price', 'is_temporary', or 'is_canceled' to update."
	msgBookingNoFilter = "At least one of resource_id, service_id, or location_id is required."
	msgBookingMissing  = "resource_id, starts_at, and ends_at are required"
	blockTimeLayout    = "15:04:05"
	displayTimeLayout  = "2006-01-02 15:04:05 MST"
)

type BookingOptions struct {
	// ConformanceCheck rejects bookings that do not fit an open schedule block.
	ConformanceCheck bool
	// Display is the zone used for logs and for the conformance check. Defaults to UTC.
	Display *time.Location
}

type BookingService struct {
	api         domain.UpstreamAPI
	eventBus    domain.EventPublisher
	conformance bool
	display     *time.Location
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewBookingService(api domain.UpstreamAPI, eventBus domain.EventPublisher, opts BookingOptions, logger *zerolog.Logger) *BookingService {
	display := opts.Display
	if display == nil {
		display = time.UTC
	}
	return &BookingService{
		api:         api,
		eventBus:    eventBus,
		conformance: opts.ConformanceCheck,
		display:     display,
		now:         time.Now,
		logger:      logger,
	}
}

// CreateBooking rejects bookings that start before now and posts the rest unchanged.
// The comparison is between raw instants; no zone conversion is applied.
func (s *BookingService) CreateBooking(ctx context.Context, req models.BookingRequest) (json.RawMessage, error) {
	if strings.TrimSpace(req.ResourceID) == "" || strings.TrimSpace(req.StartsAt) == "" || strings.TrimSpace(req.EndsAt) == "" {
		return nil, domain.NewValidationError(msgBookingMissing)
	}

	startsAt, err := models.ParseBookingTime(req.StartsAt)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("Invalid starts_at: %s", req.StartsAt))
	}
	endsAt, err := models.ParseBookingTime(req.EndsAt)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("Invalid ends_at: %s", req.EndsAt))
	}

	if startsAt.Before(s.now()) {
		s.logger.Warn().Str("starts_at", req.StartsAt).Str("display", s.displayTime(startsAt)).Msg("Rejected booking in the past")
		return nil, domain.NewUnprocessableError(fmt.Sprintf("Cannot create booking for a past date/time: %s", req.StartsAt))
	}

	if s.conformance {
		if err := s.checkConformance(ctx, req.ResourceID, startsAt, endsAt); err != nil {
			return nil, err
		}
	}

	raw, err := s.api.Post(ctx, "bookings", req.Payload())
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	payload := events.BookingEventPayload{ResourceID: req.ResourceID, StartsAt: req.StartsAt, EndsAt: req.EndsAt, Display: s.displayTime(startsAt)}
	if created, err := upstream.DecodeFirst[models.Booking](raw); err == nil && created != nil {
		payload.BookingID = created.ID
	}
	publishEvent(s.eventBus, s.logger, events.EventBookingCreated, payload)
	s.logger.Info().Str("resource_id", req.ResourceID).Str("booking_id", payload.BookingID).Str("starts_at", payload.Display).Msg("Booking created")
	return raw, nil
}

// checkConformance requires the booking to lie inside an open block of its weekday, with the
// weekday and wall-clock times taken in the display zone.
func (s *BookingService) checkConformance(ctx context.Context, resourceID string, startsAt, endsAt time.Time) error {
	blocks, err := s.resourceBlocks(ctx, resourceID)
	if err != nil {
		return err
	}

	local := startsAt.In(s.display)
	day := models.Weekday(strings.ToLower(local.Weekday().String()))
	start := local.Format(blockTimeLayout)
	end := endsAt.In(s.display).Format(blockTimeLayout)

	for _, b := range blocks {
		if b.Covers(day, start, end) {
			return nil
		}
	}
	return domain.NewUnprocessableError(fmt.Sprintf("Booking time %s–%s on %s does not match any open schedule block.", start, end, day))
}

// resourceBlocks gathers the blocks of every recurring schedule of the resource.
func (s *BookingService) resourceBlocks(ctx context.Context, resourceID string) ([]models.ScheduleBlock, error) {
	raw, err := s.api.Get(ctx, upstream.Path("resources", resourceID, "recurring-schedules"), nil)
	if err != nil {
		return nil, fmt.Errorf("load schedules for conformance check: %w", err)
	}
	schedules, err := upstream.DecodeList[models.RecurringSchedule](raw)
	if err != nil {
		return nil, err
	}

	var blocks []models.ScheduleBlock
	for _, sch := range schedules {
		raw, err := s.api.Get(ctx, blocksPath(resourceID, sch.ID), nil)
		if err != nil {
			return nil, fmt.Errorf("load blocks for conformance check: %w", err)
		}
		list, err := upstream.DecodeList[models.ScheduleBlock](raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, list...)
	}
	return blocks, nil
}

// UpdateBooking merges upd over the stored booking and sends the full payload. A booking that
// already started can only be cancelled.
func (s *BookingService) UpdateBooking(ctx context.Context, bookingID string, upd models.BookingUpdate) (json.RawMessage, error) {
	if upd.IsEmpty() {
		return nil, domain.NewValidationError(msgBookingNoFields)
	}

	existing, err := s.fetchBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !upd.Cancels() {
		startsAt, err := models.ParseBookingTime(existing.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("booking %s has unreadable starts_at %q: %w", bookingID, existing.StartsAt, err)
		}
		if startsAt.Before(s.now()) {
			return nil, domain.NewUnprocessableError(msgBookingStarted)
		}
	}

	patch := upd.Merge(*existing)
	raw, err := s.api.Patch(ctx, upstream.Path("bookings", bookingID), patch)
	if err != nil {
		return nil, fmt.Errorf("update booking %s: %w", bookingID, err)
	}

	eventType := events.EventBookingUpdated
	if upd.Cancels() {
		eventType = events.EventBookingCanceled
	}
	publishEvent(s.eventBus, s.logger, eventType, events.BookingEventPayload{
		BookingID:  bookingID,
		ResourceID: existing.ResourceID,
		StartsAt:   patch.StartsAt,
		EndsAt:     patch.EndsAt,
	})
	return raw, nil
}

func (s *BookingService) fetchBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	raw, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	booking, err := upstream.DecodeFirst[models.Booking](raw)
	if err != nil {
		return nil, fmt.Errorf("decode booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Booking %s not found", bookingID))
	}
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (json.RawMessage, error) {
	raw, err := s.api.Get(ctx, upstream.Path("bookings", bookingID), nil)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	return raw, nil
}

func (s *BookingService) ListBookings(ctx context.Context) (json.RawMessage, error) {
	return s.api.Get(ctx, "bookings", nil)
}

func (s *BookingService) FilterBookings(ctx context.Context, filter models.BookingFilter) (json.RawMessage, error) {
	if filter.IsEmpty() {
		return nil, domain.NewValidationError(msgBookingNoFilter)
	}
	return s.api.Get(ctx, "bookings", filterQuery(filter))
}

func (s *BookingService) DeleteBooking(ctx context.Context, bookingID string) (json.RawMessage, error) {
	raw, err := s.api.Delete(ctx, upstream.Path("bookings", bookingID))
	if err != nil {
		return nil, fmt.Errorf("delete booking %s: %w", bookingID, err)
	}
	return raw, nil
}

// ExportBookings lists bookings, filtered when any filter field is set.
func (s *BookingService) ExportBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	raw, err := s.api.Get(ctx, "bookings", filterQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return upstream.DecodeList[models.Booking](raw)
}

func (s *BookingService) displayTime(t time.Time) string {
	return t.In(s.display).Format(displayTimeLayout)
}

func filterQuery(f models.BookingFilter) url.Values {
	q := url.Values{}
	if f.ResourceID != "" {
		q.Set("resource_id", f.ResourceID)
	}
	if f.ServiceID != "" {
		q.Set("service_id", f.ServiceID)
	}
	if f.LocationID != "" {
		q.Set("location_id", f.LocationID)
	}
	return q
}
