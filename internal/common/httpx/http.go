// Package httpx provides HTTP request/response handling utilities for the
// mock backend. It includes JSON responses, error responses in the shape the
// client expects, and request parsing with struct validation.
package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/apperrors"
	"github.com/codigos/codigos/internal/common/logtrace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validator.New(validator.WithRequiredStructEnabled())

// GetRequestData parses the JSON request body into data and validates it
// against its `validate` struct tags. Only POST, PUT and PATCH carry a body.
func GetRequestData(r *http.Request, data any) error {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	if err := validate.Struct(data); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
			}
			return ErrInvalidRequest(msgs...)
		}
		return ErrInvalidRequest()
	}
	return nil
}

// Response represents an HTTP response with configurable status code and
// content type.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp wraps a RequestHandler to provide standardized HTTP response handling,
// including error handling and content type management.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				SendError(w, appErr)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}

		if rsp.Location != "" {
			w.Header().Set("Location", rsp.Location)
		}
		if rsp.StatusCode == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		switch rsp.ContentType {
		case "", "application/json":
			SendJSON(r.Context(), w, rsp.StatusCode, rsp.Response)
		case "text/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(rsp.StatusCode)
			fmt.Fprint(w, rsp.Response)
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

// SendJSON writes v as a JSON body. Valid JSON passed as []byte or
// jsoniter.RawMessage is written as is; any other value, strings included,
// is encoded.
func SendJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	var body []byte
	switch m := v.(type) {
	case jsoniter.RawMessage:
		body = m
	case []byte:
		body = m
	}
	if body == nil || !json.Valid(body) {
		var err error
		if body, err = json.Marshal(v); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("request_id", logtrace.RequestIdFromContext(ctx)).Msg("unable to encode response")
			ErrApplicationError("unable to encode response").Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
