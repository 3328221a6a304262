package models

// Rate is one priced plan attached to a resource.
type Rate struct {
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Currency string  `json:"currency,omitempty" yaml:"currency"`
	Unit     string  `json:"unit,omitempty" yaml:"unit"`
}

// ProvisionRequest carries everything needed to set up a bookable resource in one call.
type ProvisionRequest struct {
	ResourceName     string         `json:"resource_name" yaml:"resource_name"`
	LocationID       string         `json:"location_id" yaml:"location_id"`
	StartDate        string         `json:"start_date" yaml:"start_date"`
	DefinedTimings   []BlockInput   `json:"defined_timings" yaml:"defined_timings"`
	MaxDuration      string         `json:"max_duration" yaml:"max_duration"`
	MinDuration      string         `json:"min_duration" yaml:"min_duration"`
	DurationInterval string         `json:"duration_interval" yaml:"duration_interval"`
	PhotoURL         any            `json:"photo_url" yaml:"photo_url"`
	Capacity         any            `json:"capacity" yaml:"capacity"`
	ResourceDetails  any            `json:"resource_details" yaml:"resource_details"`
	EmailConfirm     any            `json:"email_confirmation" yaml:"email_confirmation"`
	ResourcePlans    any            `json:"resource_plans" yaml:"resource_plans"`
	Category         any            `json:"category" yaml:"category"`
	Metadata         map[string]any `json:"metadata" yaml:"metadata"`
	Rates            []Rate         `json:"rates" yaml:"rates"`
}

// FlatMetadata merges the provisioning attributes over the caller metadata. Absent attributes
// are left out; rates are always present.
func (r ProvisionRequest) FlatMetadata(rates []Rate) map[string]any {
	out := make(map[string]any, len(r.Metadata)+7)
	for k, v := range r.Metadata {
		out[k] = v
	}
	attrs := map[string]any{
		"capacity":           r.Capacity,
		"resource_plans":     r.ResourcePlans,
		"category":           r.Category,
		"email_confirmation": r.EmailConfirm,
		"resource_details":   r.ResourceDetails,
		"photo_url":          r.PhotoURL,
	}
	for k, v := range attrs {
		if v != nil {
			out[k] = v
		}
	}
	if rates == nil {
		rates = []Rate{}
	}
	out["rates"] = rates
	return out
}

type ProvisionResult struct {
	AlreadyExists       bool              `json:"already_exists"`
	Message             string            `json:"message"`
	ResourceID          string            `json:"resource_id"`
	RecurringScheduleID string            `json:"recurring_schedule_id,omitempty"`
	ServiceID           string            `json:"service_id,omitempty"`
	Resource            *Resource         `json:"data,omitempty"`
	Blocks              *BlockBatchResult `json:"schedule_blocks,omitempty"`
}
