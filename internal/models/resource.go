package models

import (
	"sort"
	"time"
)

type Resource struct {
	ID                      string         `json:"id"`
	Name                    string         `json:"name"`
	Metadata                map[string]any `json:"metadata,omitempty"`
	Enabled                 bool           `json:"enabled"`
	MaxSimultaneousBookings int            `json:"max_simultaneous_bookings"`
	CreatedAt               string         `json:"created_at,omitempty"`
	UpdatedAt               string         `json:"updated_at,omitempty"`
}

// CreatedTime parses CreatedAt; unparsable values sort as the zero time.
func (r Resource) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NewestResource returns the most recently created resource, or nil for an empty slice.
func NewestResource(resources []Resource) *Resource {
	if len(resources) == 0 {
		return nil
	}
	sorted := append([]Resource(nil), resources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedTime().After(sorted[j].CreatedTime())
	})
	return &sorted[0]
}

type Service struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MinDuration  string `json:"min_duration,omitempty"`
	MaxDuration  string `json:"max_duration,omitempty"`
	DurationStep string `json:"duration_step,omitempty"`
}

// ResourceService is one entry of GET /resources/{id}/services.
type ResourceService struct {
	ID        string `json:"id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
}

// ResourceUpdate describes a partial update of a resource and everything hanging off it.
type ResourceUpdate struct {
	Name             string         `json:"name,omitempty"`
	Capacity         any            `json:"capacity,omitempty"`
	MaxDuration      string         `json:"max_duration,omitempty"`
	MinDuration      string         `json:"min_duration,omitempty"`
	DurationInterval string         `json:"duration_interval,omitempty"`
	DefinedTimings   []BlockInput   `json:"defined_timings,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u ResourceUpdate) IsEmpty() bool {
	return u.Name == "" && u.Capacity == nil && u.MaxDuration == "" && u.MinDuration == "" &&
		u.DurationInterval == "" && len(u.DefinedTimings) == 0 && len(u.Metadata) == 0
}

// HasDurations reports whether the linked service must be patched.
func (u ResourceUpdate) HasDurations() bool {
	return u.MaxDuration != "" || u.MinDuration != "" || u.DurationInterval != ""
}

type ResourceUpdateResult struct {
	Message        string                     `json:"message"`
	ResourceID     string                     `json:"resource_id"`
	ServiceUpdated bool                       `json:"service_updated"`
	Weekdays       map[Weekday]*ReplaceResult `json:"weekdays,omitempty"`
}

type ServiceUpdate struct {
	Name         string `json:"name,omitempty"`
	MinDuration  string `json:"min_duration,omitempty"`
	MaxDuration  string `json:"max_duration,omitempty"`
	DurationStep string `json:"duration_step,omitempty"`
}
