package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bookinggate/internal/export"
	"bookinggate/internal/models"
)

func bookingFilter(r *http.Request) models.BookingFilter {
	q := r.URL.Query()
	return models.BookingFilter{
		ResourceID: q.Get("resource_id"),
		ServiceID:  q.Get("service_id"),
		LocationID: q.Get("location_id"),
	}
}

// writeRaw relays an upstream payload; an empty payload becomes null.
func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	writeJSON(w, status, raw)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Bookings.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *HTTPServer) handleFilterBookings(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Bookings.FilterBookings(r.Context(), bookingFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Bookings.GetBooking(r.Context(), r.PathValue("booking_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	raw, err := s.svc.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var upd models.BookingUpdate
	if err := decodeBody(r, &upd); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	raw, err := s.svc.Bookings.UpdateBooking(r.Context(), r.PathValue("booking_id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Booking updated successfully", "data": raw})
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Bookings.DeleteBooking(r.Context(), r.PathValue("booking_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Booking deleted successfully", "data": raw})
}

// handleExportBookings streams an XLSX workbook; filter query parameters are optional.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ExportBookings(r.Context(), bookingFilter(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, bookings, s.svc.Display); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now().In(s.svc.Display))+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
