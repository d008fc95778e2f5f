package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/koas-web/koasbackend/auth"
	"github.com/koas-web/koasbackend/repository"
	"github.com/koas-web/koasbackend/sessions"
)

type AuthHandler struct {
	AdminRepo repository.AdminUserRepository
	Sessions  *sessions.Manager
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and establishes a session. unknown username and
// wrong password produce the exact same response, so the two cases cannot be
// told apart from the outside.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if payload.Username == "" || payload.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password required"})
		return
	}

	user, err := h.AdminRepo.GetByUsername(payload.Username)
	if err != nil || !user.CheckPassword(payload.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	if err := h.Sessions.Establish(w, r, user.ID, user.Username); err != nil {
		log.Printf("Error saving session for %s: %v", user.Username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    map[string]string{"username": user.Username},
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Clear(w, r); err != nil {
		log.Printf("Error destroying session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to logout"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Status reports whether the caller holds a valid session. open to everyone.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if ident, ok := h.Sessions.Current(r); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "user": ident})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

type changePasswordPayload struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload changePasswordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if payload.CurrentPassword == "" || payload.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Current and new password required"})
		return
	}

	ident, ok := identityFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	user, err := h.AdminRepo.GetByUsername(ident.Username)
	if err != nil {
		log.Printf("Error loading admin %s for password change: %v", ident.Username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	if !user.CheckPassword(payload.CurrentPassword) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Current password is incorrect"})
		return
	}

	newHash, err := auth.HashPassword(payload.NewPassword)
	if err != nil {
		log.Printf("Error hashing new password for %s: %v", ident.Username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	if err := h.AdminRepo.UpdatePassword(ident.Username, newHash); err != nil {
		log.Printf("Error storing new password for %s: %v", ident.Username, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Password changed successfully"})
}
