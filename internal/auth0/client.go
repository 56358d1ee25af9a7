package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

var ErrProfileUnavailable = errors.New("auth0: profile unavailable")

// Profile is the subset of the /userinfo response used to prefill the
// passenger list of a booking.
type Profile struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Picture  string `json:"picture"`
}

// DisplayName is the name shown in booking labels.
func (p Profile) DisplayName() string {
	switch {
	case p.Nickname != "":
		return p.Nickname
	case p.Name != "":
		return p.Name
	default:
		return p.Sub
	}
}

type Client interface {
	Profile(ctx context.Context, accessToken string) (Profile, error)
}

// HTTPClient calls the tenant's /userinfo endpoint with the caller's token.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(domain string) *HTTPClient {
	return &HTTPClient{
		baseURL:    "https://" + domain,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Profile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: status %d", ErrProfileUnavailable, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	return p, nil
}
