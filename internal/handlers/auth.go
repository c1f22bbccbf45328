package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/auth"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/middleware"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler serves sign-in, account self-service and user administration.
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login exchanges credentials for an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		log.WithError(err).Error("Failed to look up user")
	}
	// user is nil on any lookup failure; VerifyLogin turns that into
	// invalid credentials.
	switch err := h.authService.VerifyLogin(user, req.Password); {
	case errors.Is(err, auth.ErrUserInactive):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Account is deactivated")
		return
	case err != nil:
		log.WithField("username", req.Username).Warn("Failed sign-in")
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		log.WithError(err).Error("Failed to sign token")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to generate token")
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to generate refresh token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}

// validateRegistration checks the credentials of a new account.
func (h *AuthHandler) validateRegistration(req *models.RegisterRequest) error {
	if err := h.authService.ValidateUsername(req.Username); err != nil {
		return err
	}
	if err := h.authService.ValidateEmail(req.Email); err != nil {
		return err
	}
	return h.authService.ValidatePassword(req.Password)
}

// Register creates an account on behalf of an owner or admin. Only owners
// may create further owners.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := h.validateRegistration(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleDriver
	}
	if !models.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid role")
		return
	}
	if req.Role == models.RoleOwner && claims.Role != models.RoleOwner {
		writeError(w, http.StatusForbidden, codeForbidden, "Only owners can create owner accounts")
		return
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, codeConflict, "Username already exists")
		return
	}
	if _, err := h.userCollection.FindUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, codeConflict, "Email already exists")
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to hash password")
		return
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, http.StatusConflict, codeConflict, "Username or email already exists")
			return
		}
		log.WithError(err).Error("Failed to create user")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to create user")
		return
	}

	log.WithFields(log.Fields{
		"user_id":    user.ID.Hex(),
		"role":       user.Role,
		"created_by": claims.UserID,
	}).Info("User registered")
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeLookupError(w, err, "User", "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the caller's name or email and returns the stored
// profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	var update models.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if update.Empty() {
		writeError(w, http.StatusBadRequest, codeValidation, "Nothing to update")
		return
	}
	if update.Email != "" {
		if err := h.authService.ValidateEmail(update.Email); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		if other, err := h.userCollection.FindUserByEmail(r.Context(), update.Email); err == nil && other.ID.Hex() != claims.UserID {
			writeError(w, http.StatusConflict, codeConflict, "Email already exists")
			return
		}
	}

	if err := h.userCollection.UpdateProfile(r.Context(), claims.UserID, update); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, http.StatusConflict, codeConflict, "Email already exists")
			return
		}
		writeLookupError(w, err, "User", "Failed to update user")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeLookupError(w, err, "User", "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	var req models.PasswordChange
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "Current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeLookupError(w, err, "User", "Failed to load profile")
		return
	}
	if !h.authService.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Current password is incorrect")
		return
	}

	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to hash password")
		return
	}
	if err := h.userCollection.SetPassword(r.Context(), claims.UserID, hash); err != nil {
		writeLookupError(w, err, "User", "Failed to update password")
		return
	}

	log.WithField("user_id", claims.UserID).Info("Password changed")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// ListUsers lists active users, optionally by role (?role=driver feeds the
// driver picker on incident forms).
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !models.IsValidRole(role) {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid role")
		return
	}

	users, err := h.userCollection.FindUsers(r.Context(), role)
	if err != nil {
		log.WithError(err).Error("Failed to list users")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// SetActive enables or disables another user's account. Deactivated users
// cannot sign in; tokens already issued stay valid until they expire.
func (h *AuthHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	id := r.PathValue("id")
	if id == claims.UserID {
		writeError(w, http.StatusBadRequest, codeValidation, "You cannot change your own account status")
		return
	}
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, codeValidation, "is_active is required")
		return
	}

	target, err := h.userCollection.FindUserByID(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "User", "Failed to load user")
		return
	}
	if target.Role == models.RoleOwner && claims.Role != models.RoleOwner {
		writeError(w, http.StatusForbidden, codeForbidden, "Only owners can change owner accounts")
		return
	}

	if err := h.userCollection.SetActive(r.Context(), id, *req.IsActive); err != nil {
		writeLookupError(w, err, "User", "Failed to update user")
		return
	}
	target.IsActive = *req.IsActive

	log.WithFields(log.Fields{
		"user_id":    id,
		"is_active":  *req.IsActive,
		"changed_by": claims.UserID,
	}).Info("User status changed")
	writeJSON(w, http.StatusOK, target)
}
