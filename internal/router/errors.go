package router

import (
	"net/http"

	"github.com/codigos/codigos/internal/common/apperrors"
)

var (
	ErrRouter            apperrors.Error = apperrors.New("router error").SetStatusCode(http.StatusBadRequest)
	ErrRouteNotFound     apperrors.Error = ErrRouter.New("route not found").SetStatusCode(http.StatusNotFound)
	ErrNavigationDenied  apperrors.Error = ErrRouter.New("navigation denied").SetStatusCode(http.StatusForbidden)
	ErrTooManyRedirects  apperrors.Error = ErrRouter.New("too many redirects").SetStatusCode(http.StatusLoopDetected)
	ErrInvalidRouteTable apperrors.Error = ErrRouter.New("invalid route table").SetStatusCode(http.StatusInternalServerError)
)
