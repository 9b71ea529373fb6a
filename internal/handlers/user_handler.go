package handlers

import (
	"encoding/json"
	"net/http"

	"calibra/internal/middleware"
	"calibra/internal/repository"
	"calibra/pkg/validator"
)

// UserHandler handles user management requests
type UserHandler struct {
	userRepo *repository.UserRepository
	roleRepo *repository.RoleRepository
}

// NewUserHandler creates a new user handler
func NewUserHandler(userRepo *repository.UserRepository, roleRepo *repository.RoleRepository) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
		roleRepo: roleRepo,
	}
}

// GetProfile gets the current user's profile
// @Summary Get user profile
// @Description Get authenticated user's profile information
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "User profile with roles"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	user, err := h.userRepo.GetByID(userID, accountID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	roles, _ := h.userRepo.GetUserRoles(userID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":         user.ID,
		"account_id": user.AccountID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"is_active":  user.IsActive,
		"created_at": user.CreatedAt,
		"roles":      roles,
	})
}

// UpdateProfile updates the current user's profile
// @Summary Update user profile
// @Description Update authenticated user's name
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "Profile update (first_name, last_name)"
// @Success 200 {object} map[string]string "Profile updated"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /users/profile [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	user, err := h.userRepo.GetByID(userID, accountID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	if req.FirstName != "" {
		user.FirstName = validator.SanitizeString(req.FirstName)
	}
	if req.LastName != "" {
		user.LastName = validator.SanitizeString(req.LastName)
	}

	if err := h.userRepo.Update(user); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})
}

// ListUsers lists the account's users
// @Summary List account users
// @Description List all users of the caller's account, for participant selection
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User "Users"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	users, err := h.userRepo.GetByAccount(accountID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, users)
}

// ListRoles lists the platform roles
// @Summary List roles
// @Description List all roles available for assignment (hr_admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Role "Roles"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /admin/roles [get]
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleRepo.GetAll()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, roles)
}
