package domain

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"bookinggate/internal/models"
)

// UpstreamAPI is the REST surface of the upstream booking API.
type UpstreamAPI interface {
	Do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error)
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Patch(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// Cache stores raw lookup payloads. A miss returns (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type LookupService interface {
	ListResources(ctx context.Context) (json.RawMessage, error)
	FindResourceByName(ctx context.Context, name string) (*models.Resource, error)
	RefreshResourceByName(ctx context.Context, name string) (*models.Resource, error)
	GetRecurringSchedule(ctx context.Context, resourceID string) (*models.RecurringSchedule, error)
	GetBlocksForWeekday(ctx context.Context, resourceID, scheduleID string, weekday models.Weekday) ([]models.ScheduleBlock, error)
	GetAllBlocks(ctx context.Context, resourceID, scheduleID string) ([]models.ScheduleBlock, error)
	ResourceScheduleInfo(ctx context.Context, name, weekday string) (*models.ResourceScheduleInfo, error)
	WeeklySchedule(ctx context.Context, name string) (*models.WeeklySchedule, error)
	BlockIDsByResourceName(ctx context.Context, name string, weekday models.Weekday) (*models.BlockIDs, error)
	ServiceIDByResource(ctx context.Context, resourceID string) (string, error)
	GetService(ctx context.Context, serviceID string) (json.RawMessage, error)
	UpdateService(ctx context.Context, serviceID string, upd models.ServiceUpdate) (json.RawMessage, error)
	DeleteResource(ctx context.Context, resourceID string) (json.RawMessage, error)
	Invalidate(ctx context.Context, resourceName string)
}

type ScheduleService interface {
	CreateBlocks(ctx context.Context, resourceID, scheduleID string, blocks []models.BlockInput) (*models.BlockBatchResult, error)
	ReplaceWeekdayBlocks(ctx context.Context, resourceID, scheduleID string, op models.Replace) (*models.ReplaceResult, error)
	BulkUpdate(ctx context.Context, resourceID, scheduleID string, items []models.BulkUpdateItem) (*models.BulkUpdateResult, error)
	DeleteBlock(ctx context.Context, resourceID, scheduleID, blockID string) (json.RawMessage, error)
}

type ProvisioningService interface {
	Provision(ctx context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error)
	CreateRecurringSchedule(ctx context.Context, resourceID, locationID, startDate string) (*models.RecurringSchedule, error)
	UpdateResource(ctx context.Context, resourceID string, upd models.ResourceUpdate) (*models.ResourceUpdateResult, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (json.RawMessage, error)
	UpdateBooking(ctx context.Context, bookingID string, upd models.BookingUpdate) (json.RawMessage, error)
	GetBooking(ctx context.Context, bookingID string) (json.RawMessage, error)
	ListBookings(ctx context.Context) (json.RawMessage, error)
	FilterBookings(ctx context.Context, filter models.BookingFilter) (json.RawMessage, error)
	DeleteBooking(ctx context.Context, bookingID string) (json.RawMessage, error)
	ExportBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}
