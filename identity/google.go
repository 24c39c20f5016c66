package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTokenInfoURL is Google's access token introspection endpoint.
	DefaultTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"

	// DefaultTimeout bounds one verification round trip.
	DefaultTimeout = 5 * time.Second

	// MinRemaining is the shortest remaining token lifetime accepted.
	MinRemaining = 60 * time.Second
)

// Ensure Google implements Verifier.
var _ Verifier = (*Google)(nil)

// Google verifies Google OAuth access tokens against the tokeninfo endpoint.
// Any failure to reach or parse the endpoint rejects the token.
type Google struct {
	clientID string
	endpoint string
	allowed  map[string]bool
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// GoogleOption configures a Google verifier.
type GoogleOption func(*Google)

// WithEndpoint overrides the tokeninfo URL.
func WithEndpoint(u string) GoogleOption {
	return func(g *Google) { g.endpoint = u }
}

// WithTimeout sets the per-verification timeout.
func WithTimeout(d time.Duration) GoogleOption {
	return func(g *Google) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithAllowedExtensions restricts callers to the given extension ids. An
// empty list accepts any id.
func WithAllowedExtensions(ids ...string) GoogleOption {
	return func(g *Google) {
		g.allowed = make(map[string]bool, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				g.allowed[id] = true
			}
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.client = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GoogleOption {
	return func(g *Google) { g.logger = logger }
}

// NewGoogle creates a verifier that accepts tokens issued to clientID.
func NewGoogle(clientID string, opts ...GoogleOption) *Google {
	g := &Google{
		clientID: clientID,
		endpoint: DefaultTokenInfoURL,
		timeout:  DefaultTimeout,
		client:   &http.Client{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// tokenInfo is the tokeninfo response. Google encodes numbers and booleans
// as strings.
type tokenInfo struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Aud           string   `json:"aud"`
	ExpiresIn     flexInt  `json:"expires_in"`
}

// Verify implements Verifier.
func (g *Google) Verify(ctx context.Context, token, extensionID string) (*Identity, error) {
	if extensionID = strings.TrimSpace(extensionID); extensionID != "" && len(g.allowed) > 0 && !g.allowed[extensionID] {
		g.logger.Warn("identity: extension not allowed", "extension_id", extensionID)
		return nil, ErrClientNotAllowed
	}
	if token == "" {
		return nil, ErrInvalidToken
	}

	info, err := g.fetch(ctx, token)
	if err != nil {
		return nil, err
	}

	if info.Sub == "" {
		return nil, ErrInvalidToken
	}
	if g.clientID != "" && info.Aud != g.clientID {
		g.logger.Warn("identity: audience mismatch", "aud", info.Aud)
		return nil, ErrAudienceMismatch
	}
	if !bool(info.EmailVerified) {
		return nil, ErrUnverifiedEmail
	}

	id := &Identity{SubjectID: info.Sub, Email: info.Email}
	// An unparseable lifetime is tolerated; the other checks already passed.
	if info.ExpiresIn.ok {
		id.ExpiresIn = time.Duration(info.ExpiresIn.v) * time.Second
		if id.ExpiresIn < MinRemaining {
			return nil, ErrTokenExpiring
		}
	}
	return id, nil
}

func (g *Google) fetch(ctx context.Context, token string) (*tokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	u := g.endpoint + "?" + url.Values{"access_token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("identity: tokeninfo timeout", "timeout", g.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: read tokeninfo: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: tokeninfo returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		g.logger.Debug("identity: token rejected", "status", resp.StatusCode)
		return nil, ErrInvalidToken
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: parse tokeninfo: %v", ErrUnavailable, err)
	}
	return &info, nil
}

// flexBool decodes a JSON boolean or its string form.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseBool(s)
	if err != nil {
		*b = false
		return nil
	}
	*b = flexBool(v)
	return nil
}

// flexInt decodes a JSON number or its string form, remembering whether it
// parsed.
type flexInt struct {
	v  int64
	ok bool
}

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*n = flexInt{}
		return nil
	}
	*n = flexInt{v: v, ok: true}
	return nil
}
