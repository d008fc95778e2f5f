package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/koas-web/koasbackend/models"
	"github.com/koas-web/koasbackend/repository"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

type TeamMemberHandler struct {
	Repo repository.TeamMemberRepository
}

type memberPayload struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Department   string `json:"department"`
	PhotoPath    string `json:"photo_path"`
	Summary      string `json:"summary"`
	DisplayOrder int    `json:"display_order"`
}

func (p memberPayload) fields() repository.TeamMemberFields {
	return repository.TeamMemberFields{
		Name:         p.Name,
		Role:         p.Role,
		Department:   p.Department,
		PhotoPath:    p.PhotoPath,
		Summary:      p.Summary,
		DisplayOrder: p.DisplayOrder,
	}
}

func memberID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	return uint(id), err
}

// List returns the public roster: active members only, ordered by
// display_order then name.
func (h *TeamMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.Repo.ListActive()
	if err != nil {
		log.Printf("Error listing team members: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve team members"})
		return
	}
	if members == nil {
		members = []models.TeamMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Get fetches a single member by id, deleted rows included.
func (h *TeamMemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid member ID format"})
		return
	}

	member, err := h.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Team member not found"})
		} else {
			log.Printf("Error getting team member %d: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve team member"})
		}
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *TeamMemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload memberPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: name"})
		return
	}

	member, err := h.Repo.Create(payload.fields())
	if err != nil {
		log.Printf("Error creating team member '%s': %v", payload.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create team member"})
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// Update replaces all mutable fields of a member. an unknown id is a 404.
func (h *TeamMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid member ID format"})
		return
	}

	var payload memberPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: name"})
		return
	}

	member, err := h.Repo.Update(id, payload.fields())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Team member not found"})
		} else {
			log.Printf("Error updating team member %d: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update team member"})
		}
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// Delete soft-deletes a member. repeating the call is a no-op success.
func (h *TeamMemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid member ID format"})
		return
	}

	if err := h.Repo.SoftDelete(id); err != nil {
		log.Printf("Error deleting team member %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete team member"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
