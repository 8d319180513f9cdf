// Package oauth talks to the external identity provider: it builds the
// authorization redirect, exchanges codes for tokens and fetches the profile.
package oauth

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/pi-kari/animal-share-back/internal/config"
)

var Module = fx.Provide(NewClient)

const scope = "openid email profile"

type (
	Token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		IDToken     string `json:"id_token"`
	}

	UserInfo struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Name       string `json:"name"`
		Picture    string `json:"picture"`
	}

	providerError struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
)

type Client struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	authURL      string
	tokenURL     string
	userInfoURL  string
	redirectURL  string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
		clientID:     cfg.OAuthClientID,
		clientSecret: cfg.OAuthClientSecret,
		authURL:      cfg.OAuthAuthURL,
		tokenURL:     cfg.OAuthTokenURL,
		userInfoURL:  cfg.OAuthUserInfoURL,
		redirectURL:  cfg.OAuthRedirectURL,
	}
}

// AuthCodeURL is where the browser is sent to log in.
func (c *Client) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", scope)
	q.Set("state", state)

	u, err := url.Parse(c.authURL)
	if err != nil {
		return c.authURL + "?" + q.Encode()
	}
	existing := u.Query()
	for k, v := range q {
		existing[k] = v
	}
	u.RawQuery = existing.Encode()
	return u.String()
}

func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, errors.New("empty authorization code")
	}

	pe := providerError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  c.redirectURL,
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
		}).
		SetResult(&Token{}).
		SetError(&pe).
		Post(c.tokenURL)
	if err != nil {
		return nil, errors.Wrap(err, "call token endpoint")
	}
	if resp.IsError() {
		return nil, errors.Errorf("token endpoint returned %d: %s %s", resp.StatusCode(), pe.Error, pe.ErrorDescription)
	}

	tok, ok := resp.Result().(*Token)
	if !ok || tok.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}
	return tok, nil
}

func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&UserInfo{}).
		Get(c.userInfoURL)
	if err != nil {
		return nil, errors.Wrap(err, "call userinfo endpoint")
	}
	if resp.IsError() {
		return nil, errors.Errorf("userinfo endpoint returned %d", resp.StatusCode())
	}

	info, ok := resp.Result().(*UserInfo)
	if !ok || info.Sub == "" {
		return nil, errors.New("userinfo has no subject")
	}
	return info, nil
}
