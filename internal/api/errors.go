package api

import (
	"net/http"

	"github.com/codigos/codigos/internal/common/apperrors"
)

var (
	ErrAPI                 apperrors.Error = apperrors.New("api error").SetStatusCode(http.StatusBadGateway)
	ErrMalformedResponse   apperrors.Error = ErrAPI.New("malformed server response")
	ErrMissingToken        apperrors.Error = ErrAPI.New("login response carries no token")
	ErrIncompatibleVersion apperrors.Error = ErrAPI.New("incompatible server version").SetStatusCode(http.StatusPreconditionFailed)
	ErrInvalidArgument     apperrors.Error = ErrAPI.New("invalid argument").SetStatusCode(http.StatusBadRequest)
)
