package api

import (
	"net/http"
	"strings"

	"bookinggate/internal/models"
)

func (s *HTTPServer) handleListResources(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Lookup.ListResources(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *HTTPServer) handleGetResourceByName(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Lookup.FindResourceByName(r.Context(), r.PathValue("resource_name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req models.ProvisionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.svc.Provisioning.Provision(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if result.AlreadyExists {
		writeJSON(w, http.StatusOK, map[string]any{"message": result.Message, "resource_details": result})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":          "Resource created and fully configured successfully.",
		"resource_details": result,
	})
}

func (s *HTTPServer) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var upd models.ResourceUpdate
	if err := decodeBody(r, &upd); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.svc.Provisioning.UpdateResource(r.Context(), r.PathValue("resource_id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Resource updated successfully", "data": result})
}

func (s *HTTPServer) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Lookup.DeleteResource(r.Context(), r.PathValue("resource_id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Resource deleted successfully"})
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Lookup.GetService(r.Context(), r.PathValue("service_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var upd models.ServiceUpdate
	if err := decodeBody(r, &upd); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	raw, err := s.svc.Lookup.UpdateService(r.Context(), r.PathValue("service_id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Service updated successfully", "data": raw})
}

func (s *HTTPServer) handleServiceIDByResource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResourceID string `json:"resource_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(body.ResourceID) == "" {
		writeError(w, http.StatusBadRequest, "resource_id is required")
		return
	}
	id, err := s.svc.Lookup.ServiceIDByResource(r.Context(), body.ResourceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"resource_id": body.ResourceID, "service_id": id})
}
