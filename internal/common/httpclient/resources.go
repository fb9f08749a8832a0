package httpclient

import (
	"context"
	"net/http"
	"strings"
)

// HTTPClientInterface defines the interface for HTTP client implementations.
// It provides a common set of methods for making HTTP requests and managing resources.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request with the given options.
	// Returns the response body, Location header (if present), and any error that occurred.
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, string, error)

	// CreateResource POSTs data to resourcePath.
	// Returns the response body, Location header, and any error that occurred.
	CreateResource(ctx context.Context, resourcePath string, data []byte, queryParams map[string]string) ([]byte, string, error)

	// GetResource retrieves resourcePath/resourceName.
	GetResource(ctx context.Context, resourcePath string, resourceName string, queryParams map[string]string) ([]byte, error)

	// ListResources retrieves the collection at resourcePath.
	ListResources(ctx context.Context, resourcePath string, queryParams map[string]string) ([]byte, error)

	// UpdateResource PATCHes resourcePath/resourceName with a partial document.
	UpdateResource(ctx context.Context, resourcePath string, resourceName string, data []byte) ([]byte, error)

	// DeleteResource deletes resourcePath/resourceName.
	DeleteResource(ctx context.Context, resourcePath string, resourceName string) error
}

// Verify that the HTTPClient and TestHTTPClient implement the HTTPClientInterface.
var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}

type doFunc func(ctx context.Context, opts RequestOptions) ([]byte, string, error)

// resources implements the resource helpers on top of a DoRequest.
type resources struct {
	do doFunc
}

func joinResource(collection, resourceName string) (string, error) {
	collection = strings.Trim(collection, "/")
	resourceName = strings.Trim(resourceName, "/")
	if resourceName == "" {
		return "", ErrMissingName
	}
	return collection + "/" + resourceName, nil
}

func (r resources) CreateResource(ctx context.Context, collection string, data []byte, queryParams map[string]string) ([]byte, string, error) {
	return r.do(ctx, RequestOptions{
		Method:      http.MethodPost,
		Path:        collection,
		QueryParams: queryParams,
		Body:        data,
	})
}

func (r resources) GetResource(ctx context.Context, collection string, resourceName string, queryParams map[string]string) ([]byte, error) {
	p, err := joinResource(collection, resourceName)
	if err != nil {
		return nil, err
	}
	body, _, err := r.do(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        p,
		QueryParams: queryParams,
	})
	return body, err
}

func (r resources) ListResources(ctx context.Context, collection string, queryParams map[string]string) ([]byte, error) {
	body, _, err := r.do(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        collection,
		QueryParams: queryParams,
	})
	return body, err
}

func (r resources) UpdateResource(ctx context.Context, collection string, resourceName string, data []byte) ([]byte, error) {
	p, err := joinResource(collection, resourceName)
	if err != nil {
		return nil, err
	}
	body, _, err := r.do(ctx, RequestOptions{
		Method: http.MethodPatch,
		Path:   p,
		Body:   data,
	})
	return body, err
}

func (r resources) DeleteResource(ctx context.Context, collection string, resourceName string) error {
	p, err := joinResource(collection, resourceName)
	if err != nil {
		return err
	}
	_, _, err = r.do(ctx, RequestOptions{
		Method: http.MethodDelete,
		Path:   p,
	})
	return err
}
