package unifi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/darkermage/esplink/internal/discovery"
)

// Credentials for the controller
type Credentials struct {
	Username string
	Password string
	Site     string
}

// Provider implements discovery.ClientLister for a UniFi controller
type Provider struct {
	controllerURL string
	verifySSL     bool
	creds         Credentials
	client        *Client
}

// NewProvider creates a new UniFi provider; it logs in on first use
func NewProvider(controllerURL string, verifySSL bool, creds Credentials) *Provider {
	return &Provider{
		controllerURL: controllerURL,
		verifySSL:     verifySSL,
		creds:         creds,
	}
}

func (p *Provider) authenticate(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	if p.creds.Username == "" || p.creds.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	client, err := NewClient(p.controllerURL, p.creds.Site, p.verifySSL, 0)
	if err != nil {
		return err
	}
	if err := client.Login(ctx, p.creds.Username, p.creds.Password); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	p.client = client
	return nil
}

// ListClients returns stations whose hostname matches filterPattern
func (p *Provider) ListClients(ctx context.Context, filterPattern string) ([]discovery.Candidate, error) {
	if err := p.authenticate(ctx); err != nil {
		return nil, err
	}

	stations, err := p.client.Stations(ctx)
	if err != nil {
		// Session may have expired; log in again on the next pass
		p.client = nil
		return nil, err
	}

	var out []discovery.Candidate
	for _, st := range stations {
		if st.IP == "" {
			continue
		}
		hostname := st.Hostname
		if hostname == "" {
			hostname = st.Name
		}
		if !matchesPattern(hostname, filterPattern) {
			continue
		}
		out = append(out, discovery.Candidate{
			MACAddress: st.MAC,
			IPAddress:  st.IP,
			Hostname:   hostname,
			LastSeen:   time.Unix(st.LastSeen, 0),
		})
	}
	return out, nil
}

// Close ends the controller session, if any
func (p *Provider) Close(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	err := p.client.Logout(ctx)
	p.client = nil
	return err
}

// matchesPattern checks if hostname matches the filter pattern.
// "esp32*" matches "ESP32-sysmon"; anything else is a case-insensitive exact match.
func matchesPattern(hostname, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(strings.ToLower(hostname), strings.ToLower(prefix))
	}
	return strings.EqualFold(hostname, pattern)
}
