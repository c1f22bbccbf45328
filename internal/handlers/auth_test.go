package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/auth"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/middleware"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService("handlers-test-secret-key", time.Hour)
	require.NoError(t, err)
	return svc
}

// asUser attaches claims to req the way Authenticate does.
func asUser(req *http.Request, userID string, role models.Role) *http.Request {
	claims := &models.Claims{UserID: userID, Username: string(role) + "-user", Role: role}
	return req.WithContext(middleware.WithUser(req.Context(), claims))
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, db.UserCollection(mockUserCollection))

		passwordHash, err := authService.HashPassword("password123")
		require.NoError(t, err)
		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "testuser",
			Email:        "test@example.com",
			PasswordHash: passwordHash,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}

		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(nil)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "testuser",
			Password: "password123",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Equal(t, user.Username, response.User.Username)
		assert.NotContains(t, w.Body.String(), passwordHash)

		mockUserCollection.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(nil, db.ErrNotFound)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "testuser",
			Password: "wrongpassword",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decodeError(t, w).Message)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		passwordHash, err := authService.HashPassword("password123")
		require.NoError(t, err)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(&models.User{
			ID:           primitive.NewObjectID(),
			Username:     "testuser",
			PasswordHash: passwordHash,
			IsActive:     true,
		}, nil)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "testuser",
			Password: "not-the-password",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
	})

	t.Run("inactive user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		passwordHash, err := authService.HashPassword("password123")
		require.NoError(t, err)
		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "testuser",
			PasswordHash: passwordHash,
			IsActive:     false,
		}

		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "testuser",
			Password: "password123",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Account is deactivated", decodeError(t, w).Message)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{Username: "testuser"}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUserCollection.AssertNotCalled(t, "FindUserByUsername", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	authService := newAuthService(t)
	adminID := primitive.NewObjectID().Hex()

	register := func(handler *AuthHandler, caller models.Role, body models.RegisterRequest) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest("POST", "/api/auth/register", jsonBody(t, body)), adminID, caller)
		w := httptest.NewRecorder()
		handler.Register(w, req)
		return w
	}

	t.Run("defaults to driver", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		users.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, db.ErrNotFound)
		users.On("FindUserByEmail", mock.Anything, "newuser@example.com").Return(nil, db.ErrNotFound)
		users.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Username == "newuser" && u.Role == models.RoleDriver && u.IsActive &&
				authService.CheckPassword("password123", u.PasswordHash)
		})).Return(nil)

		w := register(handler, models.RoleAdmin, models.RegisterRequest{
			Username:  "newuser",
			Email:     "newuser@example.com",
			Password:  "password123",
			FirstName: "New",
			LastName:  "User",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		var response models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "newuser", response.Username)
		assert.Equal(t, models.RoleDriver, response.Role)
		assert.NotContains(t, w.Body.String(), "password_hash")
		users.AssertExpectations(t)
	})

	t.Run("owner creates owner", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		users.On("FindUserByUsername", mock.Anything, "partner").Return(nil, db.ErrNotFound)
		users.On("FindUserByEmail", mock.Anything, "partner@example.com").Return(nil, db.ErrNotFound)
		users.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleOwner
		})).Return(nil)

		w := register(handler, models.RoleOwner, models.RegisterRequest{
			Username: "partner", Email: "partner@example.com", Password: "password123", Role: models.RoleOwner,
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("admin cannot create owner", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		w := register(handler, models.RoleAdmin, models.RegisterRequest{
			Username: "partner", Email: "partner@example.com", Password: "password123", Role: models.RoleOwner,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, codeForbidden, decodeError(t, w).Error)
		users.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("username already exists", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		users.On("FindUserByUsername", mock.Anything, "existinguser").Return(&models.User{Username: "existinguser"}, nil)

		w := register(handler, models.RoleAdmin, models.RegisterRequest{
			Username: "existinguser", Email: "newuser@example.com", Password: "password123", Role: models.RoleDispatcher,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		users.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("insert race", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		users.On("FindUserByUsername", mock.Anything, "racer").Return(nil, db.ErrNotFound)
		users.On("FindUserByEmail", mock.Anything, "racer@example.com").Return(nil, db.ErrNotFound)
		users.On("InsertUser", mock.Anything, mock.Anything).Return(db.ErrDuplicate)

		w := register(handler, models.RoleAdmin, models.RegisterRequest{
			Username: "racer", Email: "racer@example.com", Password: "password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	invalid := []struct {
		name string
		body models.RegisterRequest
		msg  string
	}{
		{"invalid role", models.RegisterRequest{Username: "newuser", Email: "newuser@example.com", Password: "password123", Role: "viewer"}, "Invalid role"},
		{"short password", models.RegisterRequest{Username: "newuser", Email: "newuser@example.com", Password: "short"}, "at least 8 characters"},
		{"bad email", models.RegisterRequest{Username: "newuser", Email: "newuser", Password: "password123"}, "invalid email format"},
		{"short username", models.RegisterRequest{Username: "nu", Email: "newuser@example.com", Password: "password123"}, "at least 3 characters"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserCollection)
			w := register(NewAuthHandler(authService, users), models.RoleAdmin, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, codeValidation, resp.Error)
			assert.Contains(t, resp.Message, tt.msg)
			users.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
		})
	}

	t.Run("no caller", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewAuthHandler(authService, new(MockUserCollection)).Register(w, httptest.NewRequest("POST", "/api/auth/register", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful profile retrieval", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		userID := primitive.NewObjectID()
		user := &models.User{
			ID:        userID,
			Username:  "testuser",
			Email:     "test@example.com",
			FirstName: "Test",
			LastName:  "User",
			Role:      models.RoleAdmin,
		}
		users.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)

		req := asUser(httptest.NewRequest("GET", "/api/auth/profile", nil), userID.Hex(), models.RoleAdmin)
		w := httptest.NewRecorder()
		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, user.Username, response.Username)
		assert.Equal(t, user.Email, response.Email)
		users.AssertExpectations(t)
	})

	t.Run("user not found", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		userID := primitive.NewObjectID()
		users.On("FindUserByID", mock.Anything, userID.Hex()).Return(nil, db.ErrNotFound)

		req := asUser(httptest.NewRequest("GET", "/api/auth/profile", nil), userID.Hex(), models.RoleAdmin)
		w := httptest.NewRecorder()
		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no user context", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewAuthHandler(authService, new(MockUserCollection)).GetProfile(w, httptest.NewRequest("GET", "/api/auth/profile", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	authService := newAuthService(t)
	userID := primitive.NewObjectID()

	update := func(users *MockUserCollection, body map[string]string) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest("PUT", "/api/auth/profile", jsonBody(t, body)), userID.Hex(), models.RoleDispatcher)
		w := httptest.NewRecorder()
		NewAuthHandler(authService, users).UpdateProfile(w, req)
		return w
	}

	t.Run("names only", func(t *testing.T) {
		users := new(MockUserCollection)
		users.On("UpdateProfile", mock.Anything, userID.Hex(), models.ProfileUpdate{FirstName: "Updated", LastName: "Name"}).Return(nil)
		users.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, FirstName: "Updated", LastName: "Name"}, nil)

		w := update(users, map[string]string{"first_name": "Updated", "last_name": "Name"})

		assert.Equal(t, http.StatusOK, w.Code)
		var got models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "Updated", got.FirstName)
		users.AssertExpectations(t)
	})

	t.Run("email taken by someone else", func(t *testing.T) {
		users := new(MockUserCollection)
		users.On("FindUserByEmail", mock.Anything, "taken@example.com").Return(&models.User{ID: primitive.NewObjectID()}, nil)

		w := update(users, map[string]string{"email": "taken@example.com"})

		assert.Equal(t, http.StatusConflict, w.Code)
		users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("own email is fine", func(t *testing.T) {
		users := new(MockUserCollection)
		users.On("FindUserByEmail", mock.Anything, "me@example.com").Return(&models.User{ID: userID}, nil)
		users.On("UpdateProfile", mock.Anything, userID.Hex(), models.ProfileUpdate{Email: "me@example.com"}).Return(nil)
		users.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, Email: "me@example.com"}, nil)

		assert.Equal(t, http.StatusOK, update(users, map[string]string{"email": "me@example.com"}).Code)
	})

	t.Run("unique index race", func(t *testing.T) {
		users := new(MockUserCollection)
		users.On("FindUserByEmail", mock.Anything, "new@example.com").Return(nil, db.ErrNotFound)
		users.On("UpdateProfile", mock.Anything, userID.Hex(), mock.Anything).Return(db.ErrDuplicate)

		assert.Equal(t, http.StatusConflict, update(users, map[string]string{"email": "new@example.com"}).Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		w := update(new(MockUserCollection), map[string]string{"email": "nope"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty update", func(t *testing.T) {
		w := update(new(MockUserCollection), map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Nothing to update", decodeError(t, w).Message)
	})
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	authService := newAuthService(t)
	passwordHash, err := authService.HashPassword("oldpassword")
	require.NoError(t, err)

	change := func(users *MockUserCollection, userID string, current, next string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/auth/change-password", jsonBody(t, models.PasswordChange{
			CurrentPassword: current,
			NewPassword:     next,
		}))
		w := httptest.NewRecorder()
		NewAuthHandler(authService, users).ChangePassword(w, asUser(req, userID, models.RoleDriver))
		return w
	}

	t.Run("successful password change", func(t *testing.T) {
		userID := primitive.NewObjectID()
		users := new(MockUserCollection)
		users.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, PasswordHash: passwordHash}, nil)
		users.On("SetPassword", mock.Anything, userID.Hex(), mock.MatchedBy(func(hash string) bool {
			return authService.CheckPassword("newpassword123", hash)
		})).Return(nil)

		assert.Equal(t, http.StatusOK, change(users, userID.Hex(), "oldpassword", "newpassword123").Code)
		users.AssertExpectations(t)
	})

	t.Run("incorrect current password", func(t *testing.T) {
		userID := primitive.NewObjectID()
		users := new(MockUserCollection)
		users.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, PasswordHash: passwordHash}, nil)

		w := change(users, userID.Hex(), "wrongpassword", "newpassword123")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		users.AssertNotCalled(t, "SetPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("weak new password", func(t *testing.T) {
		users := new(MockUserCollection)
		w := change(users, primitive.NewObjectID().Hex(), "oldpassword", "short")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		users.AssertNotCalled(t, "FindUserByID", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_ListUsers(t *testing.T) {
	authService := newAuthService(t)

	t.Run("filters by role", func(t *testing.T) {
		users := new(MockUserCollection)
		handler := NewAuthHandler(authService, users)

		drivers := []models.User{{ID: primitive.NewObjectID(), Username: "dana", Role: models.RoleDriver, IsActive: true}}
		users.On("FindUsers", mock.Anything, models.RoleDriver).Return(drivers, nil)

		w := httptest.NewRecorder()
		handler.ListUsers(w, httptest.NewRequest("GET", "/api/users?role=driver", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var got []models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "dana", got[0].Username)
	})

	t.Run("unknown role", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewAuthHandler(authService, new(MockUserCollection)).ListUsers(w, httptest.NewRequest("GET", "/api/users?role=viewer", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_SetActive(t *testing.T) {
	authService := newAuthService(t)
	callerID := primitive.NewObjectID().Hex()

	setActive := func(users *MockUserCollection, caller models.Role, id string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PATCH", "/api/users/"+id+"/active", bytes.NewBufferString(body))
		req.SetPathValue("id", id)
		w := httptest.NewRecorder()
		NewAuthHandler(authService, users).SetActive(w, asUser(req, callerID, caller))
		return w
	}

	t.Run("deactivate driver", func(t *testing.T) {
		driverID := primitive.NewObjectID()
		users := new(MockUserCollection)
		users.On("FindUserByID", mock.Anything, driverID.Hex()).Return(&models.User{ID: driverID, Role: models.RoleDriver, IsActive: true}, nil)
		users.On("SetActive", mock.Anything, driverID.Hex(), false).Return(nil)

		w := setActive(users, models.RoleAdmin, driverID.Hex(), `{"is_active":false}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var got models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.False(t, got.IsActive)
		users.AssertExpectations(t)
	})

	t.Run("admin cannot touch owner", func(t *testing.T) {
		ownerID := primitive.NewObjectID()
		users := new(MockUserCollection)
		users.On("FindUserByID", mock.Anything, ownerID.Hex()).Return(&models.User{ID: ownerID, Role: models.RoleOwner, IsActive: true}, nil)

		w := setActive(users, models.RoleAdmin, ownerID.Hex(), `{"is_active":false}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
		users.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("self", func(t *testing.T) {
		w := setActive(new(MockUserCollection), models.RoleOwner, callerID, `{"is_active":false}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing flag", func(t *testing.T) {
		w := setActive(new(MockUserCollection), models.RoleAdmin, primitive.NewObjectID().Hex(), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "is_active is required", decodeError(t, w).Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		id := primitive.NewObjectID().Hex()
		users := new(MockUserCollection)
		users.On("FindUserByID", mock.Anything, id).Return(nil, db.ErrNotFound)

		assert.Equal(t, http.StatusNotFound, setActive(users, models.RoleAdmin, id, `{"is_active":true}`).Code)
	})
}
