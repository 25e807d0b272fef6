// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package account talks to the hosted identity backend and keeps the local
// sign-in state. The pipeline itself only ever reads one bit out of it:
// whether the current account is premium.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/models"
)

// Config configures the backend client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	SessionFile  string
	DeviceIDFile string
}

// Client is the identity backend client. It is safe for concurrent use;
// the cached session is guarded by a readers-writer lock and mirrored to
// the session file on every change.
type Client struct {
	http         *resty.Client
	sessionFile  string
	deviceIDFile string
	logger       *logger.Logger

	mu      sync.RWMutex
	session *models.Session
}

// NewClient constructs a [Client] and restores any persisted session. A
// damaged or missing session file just starts the client signed out.
func NewClient(cfg Config, logger *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	c := &Client{
		http:         cli,
		sessionFile:  cfg.SessionFile,
		deviceIDFile: cfg.DeviceIDFile,
		logger:       logger,
	}

	session, err := loadSession(cfg.SessionFile)
	if err != nil {
		logger.Warn().Err(err).Msg("session restore failed, starting signed out")
	} else if session != nil {
		c.session = session
		logger.Info().Str("email", session.Email).Msg("session restored")
	}

	return c
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (models.Session, error) {
	return c.authenticate(ctx, "/api/auth/signup", credentialsRequest{
		Email:    email,
		Password: password,
		Name:     name,
		DeviceID: c.deviceID(),
	})
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	return c.authenticate(ctx, "/api/auth/login", credentialsRequest{
		Email:    email,
		Password: password,
		DeviceID: c.deviceID(),
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body credentialsRequest) (models.Session, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return models.Session{}, fmt.Errorf("auth request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Session{}, err
	}

	token, err := parseBearerToken(resp.Header().Get("Authorization"))
	if err != nil {
		return models.Session{}, fmt.Errorf("auth parse bearer token: %w", err)
	}

	var profile models.UserProfile
	if err = json.Unmarshal(resp.Body(), &profile); err != nil {
		return models.Session{}, fmt.Errorf("decode auth response: %w", err)
	}

	session := models.Session{
		AccessToken: token,
		UserID:      profile.UserID,
		Email:       profile.Email,
		IsPremium:   profile.IsPremium,
		SavedAt:     time.Now(),
	}
	c.setSession(&session)

	c.logger.Info().Str("email", session.Email).Bool("is_premium", session.IsPremium).Msg("signed in")
	return session, nil
}

// SignOut notifies the backend and drops the local session. The local
// state is cleared even when the backend call fails: signing out must
// always work offline.
func (c *Client) SignOut(ctx context.Context) error {
	if token := c.token(); token != "" {
		resp, err := c.authedRequest(ctx).Post("/api/auth/logout")
		if err != nil {
			c.logger.Warn().Err(err).Msg("logout request failed, clearing local session anyway")
		} else if err = mapHTTPError(resp); err != nil {
			c.logger.Warn().Err(err).Msg("backend rejected logout, clearing local session anyway")
		}
	}

	c.setSession(nil)
	c.logger.Info().Msg("signed out")
	return nil
}

// Profile fetches the account profile from the backend.
func (c *Client) Profile(ctx context.Context) (models.UserProfile, error) {
	if c.token() == "" {
		return models.UserProfile{}, ErrNotSignedIn
	}

	resp, err := c.authedRequest(ctx).Get("/api/user/profile")
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("profile request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.UserProfile{}, err
	}

	var profile models.UserProfile
	if err = json.Unmarshal(resp.Body(), &profile); err != nil {
		return models.UserProfile{}, fmt.Errorf("decode profile response: %w", err)
	}

	return profile, nil
}

// RefreshPremium re-reads the premium flag from the backend and folds it
// into the cached session. Returns the fresh flag.
func (c *Client) RefreshPremium(ctx context.Context) (bool, error) {
	profile, err := c.Profile(ctx)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.session != nil && c.session.IsPremium != profile.IsPremium {
		c.session.IsPremium = profile.IsPremium
		c.persistLocked()
	}
	c.mu.Unlock()

	return profile.IsPremium, nil
}

// Current returns the active session, if any. A session whose token has
// expired counts as signed out.
func (c *Client) Current() (models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil || tokenExpired(c.session.AccessToken) {
		return models.Session{}, false
	}
	return *c.session, true
}

// IsPremium reports the cached premium flag; false when signed out.
func (c *Client) IsPremium() bool {
	session, ok := c.Current()
	return ok && session.IsPremium
}

func (c *Client) token() string {
	session, ok := c.Current()
	if !ok {
		return ""
	}
	return session.AccessToken
}

func (c *Client) authedRequest(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token := c.token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func (c *Client) setSession(session *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.persistLocked()
}

// persistLocked mirrors the cached session to disk. Callers hold c.mu.
func (c *Client) persistLocked() {
	var err error
	if c.session == nil {
		err = clearSession(c.sessionFile)
	} else {
		err = saveSession(c.sessionFile, *c.session)
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("session persistence failed")
	}
}

func (c *Client) deviceID() string {
	if c.deviceIDFile == "" {
		return ""
	}
	id, err := loadOrCreateDeviceID(c.deviceIDFile)
	if err != nil {
		c.logger.Warn().Err(err).Msg("device id unavailable")
		return ""
	}
	return id
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	}
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
}

func parseBearerToken(value string) (string, error) {
	parts := strings.Split(strings.TrimSpace(value), " ")
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
