package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/writewave/user-service/internal/config"
	"github.com/writewave/user-service/internal/logger"
	"github.com/writewave/user-service/internal/model"
	"github.com/writewave/user-service/internal/response"
	"github.com/writewave/user-service/internal/service"
	"github.com/writewave/user-service/internal/utils"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
	userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleOAuthHandler serves the /v1/auth/google endpoints. The
// authorization-code flow runs against Google; the asserted identity is
// handed to the auth service, which owns account matching and linking.
type GoogleOAuthHandler struct {
	svc         *service.AuthService
	oauth       *oauth2.Config
	frontendURL string
}

func NewGoogleOAuthHandler(svc *service.AuthService, cfg config.GoogleOAuthConfig, frontendURL string) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		svc: svc,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Start handles GET /v1/auth/google: mints a state nonce, stores it in a
// short-lived cookie and redirects to Google's consent screen.
func (h *GoogleOAuthHandler) Start(c echo.Context) error {
	state, err := utils.NewOpaqueToken()
	if err != nil {
		return response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "internal server error")
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/v1/auth/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// googleUser is the subset of Google's userinfo payload the service needs.
type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Callback handles GET /v1/auth/google/callback: verifies the state nonce,
// exchanges the code, fetches the profile and redirects to the frontend
// with a fresh token pair. Errors redirect to the frontend error page so
// the browser never dead-ends on a JSON body.
func (h *GoogleOAuthHandler) Callback(c echo.Context) error {
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		logger.Warn().Msg("oauth callback: state mismatch")
		return h.redirectError(c, "invalid oauth state")
	}
	code := c.QueryParam("code")
	if code == "" {
		return h.redirectError(c, "authorization was denied")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		logger.Error().Err(err).Msg("oauth callback: code exchange failed")
		return h.redirectError(c, "authentication failed")
	}
	gu, err := h.fetchUser(ctx, tok)
	if err != nil {
		logger.Error().Err(err).Msg("oauth callback: userinfo fetch failed")
		return h.redirectError(c, "authentication failed")
	}

	in := service.OAuthInput{
		Provider:   model.ProviderGoogle,
		ProviderID: gu.ID,
		Email:      gu.Email,
	}
	if gu.GivenName != "" {
		in.FirstName = &gu.GivenName
	}
	if gu.FamilyName != "" {
		in.LastName = &gu.FamilyName
	}
	result, err := h.svc.OAuthLogin(c.Request().Context(), in, device(c))
	if err != nil {
		logger.Error().Err(err).Msg("oauth callback: login failed")
		return h.redirectError(c, "authentication failed")
	}

	q := url.Values{}
	q.Set("accessToken", result.Tokens.AccessToken)
	q.Set("refreshToken", result.Tokens.RefreshToken)
	if result.IsNewUser {
		q.Set("isNewUser", "true")
	}
	return c.Redirect(http.StatusTemporaryRedirect,
		fmt.Sprintf("%s/auth/callback?%s", h.frontendURL, q.Encode()))
}

func (h *GoogleOAuthHandler) fetchUser(ctx context.Context, tok *oauth2.Token) (googleUser, error) {
	client := h.oauth.Client(ctx, tok)
	resp, err := client.Get(userinfoEndpoint)
	if err != nil {
		return googleUser{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleUser{}, fmt.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}
	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return googleUser{}, err
	}
	if gu.ID == "" || gu.Email == "" {
		return googleUser{}, fmt.Errorf("userinfo: incomplete profile")
	}
	return gu, nil
}

func (h *GoogleOAuthHandler) redirectError(c echo.Context, msg string) error {
	q := url.Values{}
	q.Set("error", msg)
	return c.Redirect(http.StatusTemporaryRedirect,
		fmt.Sprintf("%s/auth/callback?%s", h.frontendURL, q.Encode()))
}
