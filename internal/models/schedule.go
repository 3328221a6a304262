package models

import (
	"fmt"
	"strings"
)

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the days in calendar order starting on Monday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday accepts any letter case and surrounding spaces.
func ParseWeekday(s string) (Weekday, error) {
	day := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range Weekdays {
		if d == day {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", s)
}

// Matches compares against a raw upstream weekday value case-insensitively.
func (d Weekday) Matches(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), string(d))
}

type RecurringSchedule struct {
	ID         string  `json:"id"`
	ResourceID string  `json:"resource_id,omitempty"`
	LocationID string  `json:"location_id,omitempty"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	CreatedAt  string  `json:"created_at,omitempty"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}

// ScheduleBlock times are zone-naive "HH:MM:SS" strings.
type ScheduleBlock struct {
	ID                  string `json:"id"`
	RecurringScheduleID string `json:"recurring_schedule_id,omitempty"`
	Weekday             string `json:"weekday"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
}

// Covers reports whether [start, end] lies inside the block. Times compare lexicographically.
func (b ScheduleBlock) Covers(weekday Weekday, start, end string) bool {
	if !weekday.Matches(b.Weekday) {
		return false
	}
	return start >= b.StartTime && end <= b.EndTime
}

// BlockInput is a block creation request item.
type BlockInput struct {
	Weekday   string `json:"weekday" yaml:"weekday"`
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
}

// Complete reports whether all three fields are set.
func (b BlockInput) Complete() bool {
	return strings.TrimSpace(b.Weekday) != "" && strings.TrimSpace(b.StartTime) != "" && strings.TrimSpace(b.EndTime) != ""
}

// BlockTimes is one block of a weekday replacement; the weekday comes from the replace target.
type BlockTimes struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Replace swaps the whole block set of one weekday: every existing block of Weekday is deleted,
// then Blocks are created. The two phases are separate upstream calls and are not atomic.
type Replace struct {
	Weekday Weekday
	Blocks  []BlockTimes
}

// Inputs expands the replacement into creation requests for its weekday.
func (r Replace) Inputs() []BlockInput {
	out := make([]BlockInput, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		out = append(out, BlockInput{Weekday: string(r.Weekday), StartTime: b.StartTime, EndTime: b.EndTime})
	}
	return out
}

type BlockFailure struct {
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Error     string `json:"error"`
	Status    int    `json:"status,omitempty"`

	Err error `json:"-"`
}

// BlockBatchResult partitions a creation batch. Every input lands in exactly one of Data or Failed.
type BlockBatchResult struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    []ScheduleBlock `json:"data"`
	Failed  []BlockFailure  `json:"failed"`
}

type ReplaceResult struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    []ScheduleBlock `json:"data"`
	Deleted []string        `json:"deleted"`
}

type BulkUpdateItem struct {
	ScheduleBlockID string       `json:"schedule_block_id"`
	Weekday         string       `json:"weekday"`
	NewBlocks       []BlockTimes `json:"newBlocks"`
}

type BulkItemResult struct {
	Success         bool            `json:"success"`
	ScheduleBlockID string          `json:"schedule_block_id,omitempty"`
	Weekday         string          `json:"weekday,omitempty"`
	Skipped         bool            `json:"skipped,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Error           string          `json:"error,omitempty"`
	Message         string          `json:"message,omitempty"`
	Result          []ScheduleBlock `json:"result,omitempty"`
	Block           *BulkUpdateItem `json:"block,omitempty"`
}

type BulkUpdateResult struct {
	Message string           `json:"message"`
	Results []BulkItemResult `json:"results"`
}

// ResourceScheduleInfo is the combined resource/schedule/blocks view.
type ResourceScheduleInfo struct {
	Resource          ResourceSummary   `json:"resource"`
	RecurringSchedule RecurringSchedule `json:"recurring_schedule"`
	Weekday           string            `json:"weekday"`
	ScheduleBlocks    []ScheduleBlock   `json:"schedule_blocks"`
}

type ResourceSummary struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

type WeeklySchedule struct {
	Resource                ResourceSummary   `json:"resource"`
	RecurringSchedule       RecurringSchedule `json:"recurring_schedule"`
	ScheduleBlocksByWeekday []ScheduleBlock   `json:"schedule_blocks_by_weekday"`
}

type BlockTimesWithID struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type BlockIDs struct {
	ResourceName   string             `json:"resource_name"`
	Weekday        string             `json:"weekday"`
	TotalBlocks    int                `json:"total_blocks"`
	ScheduleBlocks []BlockTimesWithID `json:"schedule_blocks"`
}
