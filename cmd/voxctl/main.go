package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxlane/voxlane-backend/internal/pkg/envutil"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/services"
)

// voxctl is a small API client: it discovers an existing session (env token,
// stored credentials, or email/password login) and lists the account's
// projects. Discovery runs through the session bootstrapper so a hung path
// can never wedge the tool.
func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "production"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	baseURL := strings.TrimRight(envutil.String("VOXLANE_API_URL", "http://localhost:8080"), "/")
	httpClient := &http.Client{Timeout: 15 * time.Second}

	// Source order follows the discovery priority: an already-exchanged token
	// (env) beats stored credentials, which beat interactive login. These are
	// the CLI's equivalents of a code exchange, a stored refresh token, and
	// the legacy cookie fallback.
	sources := []services.SessionSource{
		{Name: "env", Discover: discoverFromEnv},
		{Name: "credentials-file", Discover: discoverFromCredentialsFile},
		{Name: "login", Discover: loginSource(httpClient, baseURL)},
	}

	bootstrapper := services.NewSessionBootstrapper(log, sources, services.BootstrapOptions{
		StorageRestricted: envutil.Bool("VOXLANE_NO_CREDENTIAL_STORE", false),
	})
	defer bootstrapper.Close()

	session, err := bootstrapper.Resolve(context.Background())
	if err != nil {
		fmt.Printf("Session discovery failed: %v\n", err)
		os.Exit(1)
	}
	if session == nil {
		fmt.Println("No session. Set VOXLANE_ACCESS_TOKEN or VOXLANE_EMAIL/VOXLANE_PASSWORD.")
		os.Exit(1)
	}

	if err := listProjects(httpClient, baseURL, session.AccessToken); err != nil {
		fmt.Printf("Failed to list projects: %v\n", err)
		os.Exit(1)
	}
}

func discoverFromEnv(ctx context.Context) (*services.Session, error) {
	access := strings.TrimSpace(os.Getenv("VOXLANE_ACCESS_TOKEN"))
	if access == "" {
		return nil, nil
	}
	return &services.Session{
		AccessToken:  access,
		RefreshToken: strings.TrimSpace(os.Getenv("VOXLANE_REFRESH_TOKEN")),
	}, nil
}

type storedCredentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func credentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".voxlane", "credentials.json"), nil
}

func discoverFromCredentialsFile(ctx context.Context) (*services.Session, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds storedCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("malformed credentials file: %w", err)
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return nil, nil
	}
	return &services.Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}, nil
}

func loginSource(httpClient *http.Client, baseURL string) func(ctx context.Context) (*services.Session, error) {
	return func(ctx context.Context) (*services.Session, error) {
		email := strings.TrimSpace(os.Getenv("VOXLANE_EMAIL"))
		password := os.Getenv("VOXLANE_PASSWORD")
		if email == "" || password == "" {
			return nil, nil
		}

		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/login", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("login returned %d: %s", resp.StatusCode, string(b))
		}

		var out struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}
		session := &services.Session{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
		saveCredentials(session)
		return session, nil
	}
}

// saveCredentials is best-effort; a read-only home directory just means the
// next run logs in again.
func saveCredentials(s *services.Session) {
	path, err := credentialsPath()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	raw, _ := json.Marshal(storedCredentials{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken})
	_ = os.WriteFile(path, raw, 0o600)
}

func listProjects(httpClient *http.Client, baseURL string, accessToken string) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/projects", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("projects returned %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Projects []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"projects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if len(out.Projects) == 0 {
		fmt.Println("No projects.")
		return nil
	}
	for _, p := range out.Projects {
		fmt.Printf("%s  %-30s %s\n", p.ID, p.Name, p.Status)
	}
	return nil
}
