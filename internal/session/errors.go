package session

import (
	"net/http"

	"github.com/codigos/codigos/internal/common/apperrors"
)

var (
	ErrSession         apperrors.Error = apperrors.New("session error").SetStatusCode(http.StatusInternalServerError)
	ErrNoActiveSession apperrors.Error = ErrSession.New("no active session").SetStatusCode(http.StatusUnauthorized)
	ErrUnableToPersist apperrors.Error = ErrSession.New("unable to persist session")
	ErrUnableToRestore apperrors.Error = ErrSession.New("unable to restore session")
)
