package session

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/interfaces"
)

const (
	loginRoute          = "/Public/Login"
	usernamePlaceholder = "Username"
	passwordPlaceholder = "Password"
	loginButtonText     = "Login"
)

// dashboardPattern matches the landing URL of an authenticated session
var dashboardPattern = regexp.MustCompile(`/Dashboard`)

// Credentials identify the account used for the run
type Credentials struct {
	Username string
	Password string
}

// Establisher logs in through the UI and saves the resulting session
type Establisher struct {
	launcher    interfaces.PageLauncher
	store       *Store
	credentials Credentials
	logger      arbor.ILogger
}

// NewEstablisher creates a session establisher
func NewEstablisher(launcher interfaces.PageLauncher, store *Store, credentials Credentials, logger arbor.ILogger) *Establisher {
	return &Establisher{
		launcher:    launcher,
		store:       store,
		credentials: credentials,
		logger:      logger,
	}
}

// Login opens a fresh browser, signs in and writes the session artifact.
// Nothing is written unless the dashboard is reached. The browser is always closed.
func (e *Establisher) Login(ctx context.Context) error {
	startTime := time.Now()
	e.logger.Info().Str("username", e.credentials.Username).Msg("Logging in")

	page, err := e.launcher.Launch(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to launch browser for login: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			e.logger.Warn().Err(closeErr).Msg("Failed to close login browser")
		}
	}()

	if err := page.Navigate(ctx, loginRoute); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := page.FillPlaceholder(ctx, usernamePlaceholder, e.credentials.Username); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := page.FillPlaceholder(ctx, passwordPlaceholder, e.credentials.Password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := page.ClickText(ctx, loginButtonText); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := page.WaitURL(ctx, dashboardPattern); err != nil {
		return fmt.Errorf("login failed, dashboard not reached: %w", err)
	}

	state, err := page.StorageState(ctx)
	if err != nil {
		return fmt.Errorf("login succeeded but session could not be captured: %w", err)
	}
	if err := e.store.Save(state); err != nil {
		return err
	}

	e.logger.Info().
		Str("path", e.store.Path()).
		Int("cookies", len(state.Cookies)).
		Dur("duration", time.Since(startTime)).
		Msg("Session saved")

	return nil
}
