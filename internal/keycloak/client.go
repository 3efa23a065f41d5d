package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nomcebo/bankauth/params"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrUserExists = fmt.Errorf("user already exists in identity provider")

type Config struct {
	BaseURL      string // e.g. http://keycloak:8080
	Realm        string // realm holding the bank's customers
	ClientID     string // confidential client used for credential checks
	ClientSecret string
	AdminRealm   string // realm of the service account, usually "master"
	AdminID      string // service account client id with realm-admin role
	AdminSecret  string
}

// Client talks to the Keycloak admin REST API. Admin calls carry a
// client-credentials token that is refreshed automatically.
type Client struct {
	config     Config
	httpClient *http.Client
	admin      *http.Client
}

func NewClient(config Config) *Client {
	httpClient := &http.Client{Timeout: params.CollaboratorTimeout}
	adminTokens := clientcredentials.Config{
		ClientID:     config.AdminID,
		ClientSecret: config.AdminSecret,
		TokenURL:     tokenURL(config.BaseURL, config.AdminRealm),
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return &Client{
		config:     config,
		httpClient: httpClient,
		admin:      adminTokens.Client(ctx),
	}
}

func tokenURL(baseURL, realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(baseURL, "/"), realm)
}

func (c *Client) adminURL(parts ...string) string {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/admin/realms"
	if len(parts) > 0 {
		url += "/" + strings.Join(parts, "/")
	}
	return url
}

type userRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       bool                `json:"enabled"`
	EmailVerified bool                `json:"emailVerified"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
	Credentials   []credential        `json:"credentials,omitempty"`
}

type credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (c *Client) CreateUser(ctx context.Context, input CreateUserInput) error {
	rep := userRepresentation{
		Username:      input.Username,
		Email:         input.Email,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Enabled:       true,
		EmailVerified: false,
		Attributes: map[string][]string{
			"nationalId": {input.NationalID},
		},
		Credentials: []credential{{
			Type:      "password",
			Value:     input.Password,
			Temporary: false,
		}},
	}
	body, err := json.Marshal(rep)
	if err != nil {
		return &DependencyError{Op: "create user", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL(c.config.Realm, "users"), bytes.NewReader(body))
	if err != nil {
		return &DependencyError{Op: "create user", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.admin.Do(req)
	if err != nil {
		return &DependencyError{Op: "create user", Err: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrUserExists
	default:
		return &DependencyError{Op: "create user", Err: statusError(resp)}
	}
}

// VerifyCredentials performs a resource-owner password grant against the
// customer realm. An invalid_grant response means wrong credentials; any
// other failure is a dependency error.
func (c *Client) VerifyCredentials(ctx context.Context, username, password string) error {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"username":      {username},
		"password":      {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		tokenURL(c.config.BaseURL, c.config.Realm), strings.NewReader(form.Encode()))
	if err != nil {
		return &DependencyError{Op: "verify credentials", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DependencyError{Op: "verify credentials", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	// Only an invalid_grant response means the credentials were wrong.
	// Other 400/401 errors (invalid_client, unauthorized_client...) are
	// gateway misconfiguration and must not count against the user.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		var oauthErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error == "invalid_grant" {
			return ErrInvalidCredentials
		}
	}
	return &DependencyError{Op: "verify credentials",
		Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
}

// Ping checks that the customer realm is reachable. The realm endpoint is
// public, so this needs no admin token and works before bootstrap.
func (c *Client) Ping(ctx context.Context) error {
	realmURL := strings.TrimRight(c.config.BaseURL, "/") + "/realms/" + c.config.Realm
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, realmURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) InvalidateSessions(ctx context.Context, username string) error {
	user, err := c.findUser(ctx, username)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.adminURL(c.config.Realm, "users", user.ID, "logout"), nil)
	if err != nil {
		return &DependencyError{Op: "invalidate sessions", Err: err}
	}
	resp, err := c.admin.Do(req)
	if err != nil {
		return &DependencyError{Op: "invalidate sessions", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return &DependencyError{Op: "invalidate sessions", Err: statusError(resp)}
	}
	return nil
}

func (c *Client) ListUsers(ctx context.Context, search string) ([]ProviderUser, error) {
	query := url.Values{"search": {search}}
	reps, err := c.queryUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	result := make([]ProviderUser, 0, len(reps))
	for _, rep := range reps {
		result = append(result, ProviderUser{
			ID:       rep.ID,
			Username: rep.Username,
			Email:    rep.Email,
			Enabled:  rep.Enabled,
		})
	}
	return result, nil
}

func (c *Client) findUser(ctx context.Context, username string) (*userRepresentation, error) {
	query := url.Values{"username": {username}, "exact": {"true"}}
	reps, err := c.queryUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, ErrUserNotFound
	}
	return &reps[0], nil
}

func (c *Client) queryUsers(ctx context.Context, query url.Values) ([]userRepresentation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.adminURL(c.config.Realm, "users")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &DependencyError{Op: "list users", Err: err}
	}
	resp, err := c.admin.Do(req)
	if err != nil {
		return nil, &DependencyError{Op: "list users", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &DependencyError{Op: "list users", Err: statusError(resp)}
	}
	var reps []userRepresentation
	if err := json.NewDecoder(resp.Body).Decode(&reps); err != nil {
		return nil, &DependencyError{Op: "list users", Err: err}
	}
	return reps, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
