package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type realmRepresentation struct {
	Realm                  string `json:"realm"`
	DisplayName            string `json:"displayName,omitempty"`
	Enabled                bool   `json:"enabled"`
	RegistrationAllowed    bool   `json:"registrationAllowed"`
	LoginWithEmailAllowed  bool   `json:"loginWithEmailAllowed"`
	DuplicateEmailsAllowed bool   `json:"duplicateEmailsAllowed"`
}

type clientRepresentation struct {
	ClientID                  string `json:"clientId"`
	Enabled                   bool   `json:"enabled"`
	PublicClient              bool   `json:"publicClient"`
	Secret                    string `json:"secret,omitempty"`
	DirectAccessGrantsEnabled bool   `json:"directAccessGrantsEnabled"`
	ServiceAccountsEnabled    bool   `json:"serviceAccountsEnabled"`
}

type roleRepresentation struct {
	Name string `json:"name"`
}

// EnsureRealm creates the customer realm, the gateway client and the
// default roles when they do not exist yet. Startup bootstrap only; every
// failure is logged and swallowed so a missing admin permission never
// prevents the gateway from serving.
func (c *Client) EnsureRealm(ctx context.Context, displayName string, roles []string) {
	if err := c.createRealm(ctx, displayName); err != nil {
		slog.Warn("Keycloak realm bootstrap skipped", "realm", c.config.Realm, "error", err)
		return
	}
	if err := c.createClient(ctx); err != nil {
		slog.Warn("Keycloak client bootstrap skipped", "clientID", c.config.ClientID, "error", err)
	}
	for _, role := range roles {
		if err := c.createRole(ctx, role); err != nil {
			slog.Warn("Keycloak role bootstrap skipped", "role", role, "error", err)
		}
	}
}

func (c *Client) createRealm(ctx context.Context, displayName string) error {
	rep := realmRepresentation{
		Realm:                  c.config.Realm,
		DisplayName:            displayName,
		Enabled:                true,
		RegistrationAllowed:    false, // registration goes through the gateway only
		LoginWithEmailAllowed:  true,
		DuplicateEmailsAllowed: false,
	}
	return c.postAdmin(ctx, c.adminURL(), rep)
}

func (c *Client) createClient(ctx context.Context) error {
	rep := clientRepresentation{
		ClientID:                  c.config.ClientID,
		Enabled:                   true,
		PublicClient:              false,
		Secret:                    c.config.ClientSecret,
		DirectAccessGrantsEnabled: true,
		ServiceAccountsEnabled:    true,
	}
	return c.postAdmin(ctx, c.adminURL(c.config.Realm, "clients"), rep)
}

func (c *Client) createRole(ctx context.Context, name string) error {
	return c.postAdmin(ctx, c.adminURL(c.config.Realm, "roles"), roleRepresentation{Name: name})
}

func (c *Client) postAdmin(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.admin.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 409 means the resource already exists, which is the desired state.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return statusError(resp)
	}
	return nil
}
