package mockapi

import (
	"net/http"

	"github.com/codigos/codigos/internal/common/apperrors"
)

var (
	ErrMockAPI            apperrors.Error = apperrors.New("mock backend error").SetStatusCode(http.StatusInternalServerError)
	ErrInvalidCredentials apperrors.Error = ErrMockAPI.New("invalid credentials").SetStatusCode(http.StatusUnauthorized)
	ErrInactiveUser       apperrors.Error = ErrMockAPI.New("user is not active").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidToken       apperrors.Error = ErrMockAPI.New("invalid token").SetStatusCode(http.StatusUnauthorized)
	ErrTokenGeneration    apperrors.Error = ErrMockAPI.New("unable to generate token").SetStatusCode(http.StatusInternalServerError)
	ErrUserNotFound       apperrors.Error = ErrMockAPI.New("user not found").SetStatusCode(http.StatusNotFound)
	ErrUserExists         apperrors.Error = ErrMockAPI.New("a user with this email already exists").SetStatusCode(http.StatusConflict)
	ErrUnknownPermission  apperrors.Error = ErrMockAPI.New("unknown permission").SetStatusCode(http.StatusBadRequest)
	ErrUnknownRole        apperrors.Error = ErrMockAPI.New("unknown role").SetStatusCode(http.StatusBadRequest)
	ErrMissingPermission  apperrors.Error = ErrMockAPI.New("insufficient permissions").SetStatusCode(http.StatusForbidden)
	ErrInvalidID          apperrors.Error = ErrMockAPI.New("invalid id").SetStatusCode(http.StatusBadRequest)
)
