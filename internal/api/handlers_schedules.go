package api

import (
	"errors"
	"net/http"

	"bookinggate/internal/domain"
	"bookinggate/internal/models"
	"bookinggate/internal/service"
	"bookinggate/internal/upstream"
)

func (s *HTTPServer) handleGetRecurringSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.svc.Lookup.GetRecurringSchedule(r.Context(), r.PathValue("resource_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *HTTPServer) handleCreateRecurringSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LocationID string `json:"location_id"`
		StartDate  string `json:"start_date"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	schedule, err := s.svc.Provisioning.CreateRecurringSchedule(r.Context(), r.PathValue("resource_id"), body.LocationID, body.StartDate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

func (s *HTTPServer) handleBlocksForWeekday(w http.ResponseWriter, r *http.Request) {
	day, err := models.ParseWeekday(r.PathValue("weekday"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	blocks, err := s.svc.Lookup.GetBlocksForWeekday(r.Context(), r.PathValue("resource_id"), r.PathValue("recurring_schedule_id"), day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *HTTPServer) handleResourceScheduleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Lookup.ResourceScheduleInfo(r.Context(), r.PathValue("resource_name"), r.URL.Query().Get("weekday"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *HTTPServer) handleWeeklySchedule(w http.ResponseWriter, r *http.Request) {
	weekly, err := s.svc.Lookup.WeeklySchedule(r.Context(), r.PathValue("resource_name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (s *HTTPServer) handleBlockIDs(w http.ResponseWriter, r *http.Request) {
	day, err := models.ParseWeekday(r.PathValue("weekday"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids, err := s.svc.Lookup.BlockIDsByResourceName(r.Context(), r.PathValue("resource_name"), day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *HTTPServer) handleCreateBlocks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Blocks []models.BlockInput `json:"blocks"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len(body.Blocks) == 0 {
		writeError(w, http.StatusBadRequest, "Array 'blocks' is required in the request body.")
		return
	}
	result, err := s.svc.Schedules.CreateBlocks(r.Context(), r.PathValue("resource_id"), r.PathValue("recurring_schedule_id"), body.Blocks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Status, map[string]any{"message": "Schedule blocks created successfully", "data": result})
}

func (s *HTTPServer) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduleBlocks []models.BulkUpdateItem `json:"scheduleBlocks"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len(body.ScheduleBlocks) == 0 {
		writeError(w, http.StatusBadRequest, "scheduleBlocks array is required in the request body.")
		return
	}
	result, err := s.svc.Schedules.BulkUpdate(r.Context(), r.PathValue("resource_id"), r.PathValue("recurring_schedule_id"), body.ScheduleBlocks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": result.Message, "data": result})
}

// handleReplaceBlocks replaces every block of the weekday; schedule_block_id in the path is
// informational only.
func (s *HTTPServer) handleReplaceBlocks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Weekday   string              `json:"weekday"`
		NewBlocks []models.BlockTimes `json:"newBlocks"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if body.Weekday == "" || body.NewBlocks == nil {
		writeError(w, http.StatusBadRequest, "Both 'weekday' and 'newBlocks' array are required in the request body.")
		return
	}

	result, err := s.svc.Schedules.ReplaceWeekdayBlocks(r.Context(), r.PathValue("resource_id"), r.PathValue("recurring_schedule_id"),
		models.Replace{Weekday: models.Weekday(body.Weekday), Blocks: body.NewBlocks})
	var partial *service.ReplaceError
	if errors.As(err, &partial) {
		status := http.StatusBadGateway
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			status = ve.Status
		} else if code, ok := upstream.StatusOf(err); ok {
			status = code
		}
		writeJSON(w, status, map[string]any{"error": upstream.ErrorMessage(err), "data": result})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Status, map[string]any{"message": result.Message, "data": result.Data})
}

func (s *HTTPServer) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Schedules.DeleteBlock(r.Context(), r.PathValue("resource_id"), r.PathValue("recurring_schedule_id"), r.PathValue("schedule_block_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Schedule block deleted successfully", "data": raw})
}
