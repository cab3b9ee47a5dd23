package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/questboard/questboard/internal/config"
	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

// oauthIdentity is what a provider tells us about the signed-in account.
type oauthIdentity struct {
	Email string
	Name  string
}

type oauthProvider struct {
	config   *oauth2.Config
	identity func(ctx context.Context, client *http.Client) (*oauthIdentity, error)
}

type authResponse struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile,omitempty"`
	Token   string         `json:"token"`
}

type authHandler struct {
	authService    *service.AuthService
	profileService *service.ProfileService
	appURL         string
	providers      map[string]*oauthProvider
}

func NewAuthHandler(authService *service.AuthService, profileService *service.ProfileService, cfg *config.Config) *authHandler {
	h := &authHandler{
		authService:    authService,
		profileService: profileService,
		appURL:         cfg.AppURL,
		providers:      map[string]*oauthProvider{},
	}

	if cfg.GoogleClientID != "" {
		h.providers["google"] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.AppURL + "/api/auth/google/callback",
				Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
				Endpoint:     google.Endpoint,
			},
			identity: googleIdentity,
		}
	}
	if cfg.GitHubClientID != "" {
		h.providers["github"] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				RedirectURL:  cfg.AppURL + "/api/auth/github/callback",
				Scopes:       []string{"user:email"},
				Endpoint:     github.Endpoint,
			},
			identity: githubIdentity,
		}
	}

	return h
}

func (h *authHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input service.SignupInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.authService.Signup(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, "failed to sign up", err)
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.authService.Login(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, "failed to log in", err)
		return
	}

	slog.Info("user logged in with password", "user_id", user.ID)
	h.startSession(w, r, user, http.StatusOK)
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	render.OK(w)
}

// OAuthStart redirects to the provider's consent screen.
func (h *authHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[r.PathValue("provider")]
	if !ok {
		render.Error(w, http.StatusNotFound, "unknown auth provider")
		return
	}

	state := generateOAuthState()

	cfg := ctxkeys.Config(r.Context())
	isProduction := cfg != nil && cfg.IsProduction()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	http.Redirect(w, r, provider.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// OAuthCallback finishes the provider flow, signs the account in and sends
// the browser back to the app.
func (h *authHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	provider, ok := h.providers[name]
	if !ok {
		render.Error(w, http.StatusNotFound, "unknown auth provider")
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		slog.Warn("oauth state validation failed", "provider", name, "error", err)
		render.Error(w, http.StatusForbidden, "oauth state mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		render.Error(w, http.StatusBadRequest, "missing oauth code")
		return
	}

	token, err := provider.config.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth token exchange failed", "provider", name, "error", err)
		render.Error(w, http.StatusUnauthorized, "oauth authentication failed")
		return
	}

	identity, err := provider.identity(r.Context(), provider.config.Client(r.Context(), token))
	if err != nil {
		slog.Error("failed to fetch oauth identity", "provider", name, "error", err)
		render.Error(w, http.StatusUnauthorized, "oauth authentication failed")
		return
	}

	user, err := h.authService.AuthenticateOAuth(r.Context(), identity.Email, identity.Name, name)
	if err != nil {
		writeServiceError(w, r, "oauth authentication failed", err)
		return
	}

	jwtToken, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		render.ServerError(w, r, "failed to create session", err)
		return
	}
	h.authService.SetJWTCookie(w, jwtToken, expiry)

	slog.Info("user logged in with oauth", "user_id", user.ID, "provider", name)
	http.Redirect(w, r, h.appURL+"/dashboard", http.StatusSeeOther)
}

func (h *authHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	token, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		render.ServerError(w, r, "failed to create session", err)
		return
	}
	h.authService.SetJWTCookie(w, token, expiry)

	profile, err := h.profileService.ByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Warn("failed to load profile after login", "error", err, "user_id", user.ID)
	}

	render.JSON(w, status, authResponse{User: user, Profile: profile, Token: token})
}

func googleIdentity(ctx context.Context, client *http.Client) (*oauthIdentity, error) {
	var info struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
	}
	err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &info)
	if err != nil {
		return nil, err
	}
	if info.Email == "" || !info.VerifiedEmail {
		return nil, fmt.Errorf("google account has no verified email")
	}
	return &oauthIdentity{Email: info.Email, Name: info.Name}, nil
}

func githubIdentity(ctx context.Context, client *http.Client) (*oauthIdentity, error) {
	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	err := getJSON(ctx, client, "https://api.github.com/user", &info)
	if err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}
	if info.Email != "" {
		return &oauthIdentity{Email: info.Email, Name: name}, nil
	}

	// Private addresses only show up on /user/emails.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	err = getJSON(ctx, client, "https://api.github.com/user/emails", &emails)
	if err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return &oauthIdentity{Email: e.Email, Name: name}, nil
		}
	}

	return nil, fmt.Errorf("github account has no verified primary email")
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func generateOAuthState() string {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.URLEncoding.EncodeToString(b)
}
