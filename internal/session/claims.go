package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Claims is the decoded, unverified payload of a bearer token. The client
// cannot check the signature; it only needs the expiry and the hints the
// backend puts next to it.
type Claims struct {
	ExpiresAt   time.Time
	IssuedAt    time.Time
	Subject     string
	Email       string
	Role        Role
	Permissions []string
}

type optionalClaims struct {
	Subject     string   `mapstructure:"sub"`
	Email       string   `mapstructure:"email"`
	Role        string   `mapstructure:"role"`
	Permissions []string `mapstructure:"permissions"`
}

const tokenSegments = 3

var (
	segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())
	alphabetFixer = strings.NewReplacer("+", "-", "/", "_")
	errNoClaims   = ErrSession.New("token carries no usable claims")
)

// DecodeClaims extracts the claims from a compact token. The payload segment
// may use either base64 alphabet, with or without padding. Any failure,
// including a missing exp claim, yields ok == false.
func DecodeClaims(token string) (*Claims, bool) {
	c, err := decodeClaims(token)
	if err != nil {
		return nil, false
	}
	return c, true
}

func decodeClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != tokenSegments || parts[1] == "" {
		return nil, errNoClaims
	}

	payload, err := segmentParser.DecodeSegment(alphabetFixer.Replace(parts[1]))
	if err != nil {
		return nil, errNoClaims.Err(err)
	}

	var raw jwt.MapClaims
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errNoClaims.Err(err)
	}
	if raw == nil {
		return nil, errNoClaims
	}

	exp, err := raw.GetExpirationTime()
	if err != nil {
		return nil, errNoClaims.Err(err)
	}
	if exp == nil {
		return nil, errNoClaims.Msg("missing exp claim")
	}

	c := &Claims{ExpiresAt: exp.Time}
	if iat, err := raw.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}

	// optional claims are best effort; a malformed hint never invalidates
	// an otherwise usable expiry
	var opt optionalClaims
	if err := mapstructure.WeakDecode(map[string]any(raw), &opt); err == nil {
		c.Subject = opt.Subject
		c.Email = opt.Email
		c.Role = Role(opt.Role)
		c.Permissions = opt.Permissions
	}
	return c, nil
}

// ExpiredAt reports whether the claims are expired at now. The expiry
// instant itself counts as expired.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c == nil {
		return true
	}
	return !now.Before(c.ExpiresAt)
}
