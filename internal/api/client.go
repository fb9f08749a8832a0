// Package api is the typed client of the Codigos REST backend. DTOs are
// passed through as the server sends them; session handling lives in the
// HTTP client underneath.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Masterminds/semver/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/codigos/codigos/internal/common/httpclient"
	"github.com/codigos/codigos/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Endpoint paths.
const (
	LoginPath       = "/auth/login"
	MePath          = "/auth/me"
	CompaniesPath   = "/companies"
	PermissionsPath = "/permissions"
	UsersPath       = "/users"
	VersionPath     = "/version"
)

// APIVersion is the REST surface this client is written against.
const APIVersion = "0.1.0"

// Client wraps an HTTP client with typed calls.
type Client struct {
	http httpclient.HTTPClientInterface
}

// New creates a typed client on top of c.
func New(c httpclient.HTTPClientInterface) *Client {
	return &Client{http: c}
}

func decode[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, ErrMalformedResponse.Err(err)
	}
	return v, nil
}

// Login exchanges credentials for an access token. The token is read from
// "access_token", with "token" accepted for older backends.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, ErrAPI.Err(err)
	}
	body, _, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		token = gjson.GetBytes(body, "token").String()
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	return &LoginResult{
		Token: token,
		Role:  gjson.GetBytes(body, "role").String(),
	}, nil
}

// Me fetches the profile of the current user.
func (c *Client) Me(ctx context.Context) (*session.Identity, error) {
	body, err := c.http.ListResources(ctx, MePath, nil)
	if err != nil {
		return nil, err
	}
	return decode[*session.Identity](body)
}

// Companies lists the companies visible to the current user.
func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	body, err := c.http.ListResources(ctx, CompaniesPath, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]Company](body)
}

// Permissions returns the permission catalogue.
func (c *Client) Permissions(ctx context.Context) ([]Permission, error) {
	body, err := c.http.ListResources(ctx, PermissionsPath, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]Permission](body)
}

func userPath(id int64) string {
	return UsersPath + "/" + strconv.FormatInt(id, 10)
}

// UserPermissions returns the permission keys granted to a user.
func (c *Client) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	body, err := c.http.GetResource(ctx, userPath(userID), "permissions", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]string](body)
}

// SetUserPermissions replaces the user's grants.
func (c *Client) SetUserPermissions(ctx context.Context, userID int64, ids []int64) ([]string, error) {
	return c.mutatePermissions(ctx, userID, "set", ids)
}

// AddUserPermissions grants additional permissions.
func (c *Client) AddUserPermissions(ctx context.Context, userID int64, ids []int64) ([]string, error) {
	return c.mutatePermissions(ctx, userID, "add", ids)
}

// RemoveUserPermissions revokes permissions.
func (c *Client) RemoveUserPermissions(ctx context.Context, userID int64, ids []int64) ([]string, error) {
	return c.mutatePermissions(ctx, userID, "remove", ids)
}

func (c *Client) mutatePermissions(ctx context.Context, userID int64, op string, ids []int64) ([]string, error) {
	if ids == nil {
		ids = []int64{}
	}
	payload, err := sjson.SetBytes([]byte(`{}`), "permissionIds", ids)
	if err != nil {
		return nil, ErrAPI.Err(err)
	}
	body, _, err := c.http.CreateResource(ctx, userPath(userID)+"/permissions/"+op, payload, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]string](body)
}

// Users lists users, scoped to the active company when one is selected.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	body, err := c.http.ListResources(ctx, UsersPath, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]User](body)
}

// CreateUser creates a user and returns it as stored by the server.
func (c *Client) CreateUser(ctx context.Context, u *NewUser) (*User, error) {
	if u == nil {
		return nil, ErrInvalidArgument.Msg("user is required")
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return nil, ErrAPI.Err(err)
	}
	body, location, err := c.http.CreateResource(ctx, UsersPath, payload, nil)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Str("location", location).Msg("user created")
	return decode[*User](body)
}

// UpdateUser sends only the fields set in patch.
func (c *Client) UpdateUser(ctx context.Context, id int64, patch UserPatch) (*User, error) {
	payload := []byte(`{}`)
	fields := []struct {
		key   string
		value *string
	}{
		{"email", patch.Email},
		{"password", patch.Password},
		{"nombre", patch.Nombre},
		{"phone", patch.Phone},
		{"status", patch.Status},
		{"baseRole", patch.BaseRole},
	}
	var err error
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if payload, err = sjson.SetBytes(payload, f.key, *f.value); err != nil {
			return nil, ErrAPI.Err(err)
		}
	}
	body, err := c.http.UpdateResource(ctx, UsersPath, strconv.FormatInt(id, 10), payload)
	if err != nil {
		return nil, err
	}
	return decode[*User](body)
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.http.DeleteResource(ctx, UsersPath, strconv.FormatInt(id, 10))
}

// Version fetches the server version.
func (c *Client) Version(ctx context.Context) (*ServerVersion, error) {
	body, err := c.http.ListResources(ctx, VersionPath, nil)
	if err != nil {
		return nil, err
	}
	return decode[*ServerVersion](body)
}

// CheckVersion reports ErrIncompatibleVersion unless the server speaks the
// same major and minor API version as this client.
func CheckVersion(v *ServerVersion) error {
	if v == nil {
		return ErrMalformedResponse
	}
	constraint, err := semver.NewConstraint("~" + APIVersion)
	if err != nil {
		return ErrAPI.Err(err)
	}
	sv, err := semver.NewVersion(v.ApiVersion)
	if err != nil {
		return ErrIncompatibleVersion.Msg("server reports an invalid api version " + strconv.Quote(v.ApiVersion))
	}
	if !constraint.Check(sv) {
		return ErrIncompatibleVersion.Msg("server api " + v.ApiVersion + " is not compatible with client api " + APIVersion)
	}
	return nil
}
