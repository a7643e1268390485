package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Client handles UniFi controller API communication
type Client struct {
	baseURL    string
	httpClient *http.Client
	site       string
	apiVersion string // "legacy" or "network-app"
}

// loginRequest represents the login credentials
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// clientsResponse is the controller's station list envelope
type clientsResponse struct {
	Meta struct {
		RC string `json:"rc"`
	} `json:"meta"`
	Data []Station `json:"data"`
}

// Station is a client associated with the controller
type Station struct {
	MAC      string `json:"mac"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Name     string `json:"name"`
	LastSeen int64  `json:"last_seen"`
}

// NewClient creates a controller client. No request is made until Login.
func NewClient(baseURL, site string, verifySSL bool, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if site == "" {
		site = "default"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !verifySSL,
				},
			},
		},
		site:       site,
		apiVersion: "unknown",
	}, nil
}

// Login authenticates and detects the controller generation by trying
// the newer endpoint first
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}

	endpoints := []struct {
		path    string
		version string
	}{
		{"/api/auth/login", "network-app"},
		{"/api/login", "legacy"},
	}

	var lastErr error
	for _, endpoint := range endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint.path, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			c.apiVersion = endpoint.version
			return nil
		}
		lastErr = fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return fmt.Errorf("all login attempts failed: %w", lastErr)
}

// Stations lists the clients currently known to the controller
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	paths := []string{
		fmt.Sprintf("/api/s/%s/stat/sta", c.site),
		fmt.Sprintf("/proxy/network/api/s/%s/stat/sta", c.site),
	}
	if c.apiVersion == "network-app" {
		paths[0], paths[1] = paths[1], paths[0]
	}

	var lastErr error
	for _, path := range paths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("GET %s failed with status %d", path, resp.StatusCode)
			continue
		}

		var out clientsResponse
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			lastErr = fmt.Errorf("failed to parse response from %s: %w", path, err)
			continue
		}
		if out.Meta.RC != "" && out.Meta.RC != "ok" {
			lastErr = fmt.Errorf("API returned error: %s", out.Meta.RC)
			continue
		}
		return out.Data, nil
	}

	return nil, fmt.Errorf("list stations: %w", lastErr)
}

// Logout ends the controller session
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
