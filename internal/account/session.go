package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dianalab/diana/models"
)

// loadSession reads the persisted sign-in state. A missing file means no
// session; a corrupt file is treated the same way so a damaged session can
// always be recovered from by signing in again.
func loadSession(path string) (*models.Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, nil
	}
	if session.AccessToken == "" {
		return nil, nil
	}

	return &session, nil
}

// saveSession durably replaces the sign-in state. Write-new-then-replace,
// same as the quota file: a crash mid-save never truncates the document.
func saveSession(path string, session models.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}

	return nil
}

// clearSession removes the persisted sign-in state. A missing file is not
// an error.
func clearSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification is the backend's job, the client only needs to
// know whether presenting the token is pointless. Tokens without an exp
// claim or that fail to parse are treated as expired.
func tokenExpired(tokenString string) bool {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return true
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return exp.Before(time.Now())
}
