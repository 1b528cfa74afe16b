package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/goccy/go-json"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type LoginResult struct {
	Token   string `json:"token"`
	OwnerID string `json:"owner_id"`
}

// Register creates an account on the sync server. Account calls bypass the
// circuit breaker and need no token.
func (c *Client) Register(ctx context.Context, email, password string) (*Account, error) {
	var account Account
	if err := c.postAuth(ctx, "register", credentials{Email: email, Password: password}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	if err := c.postAuth(ctx, "login", credentials{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) postAuth(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "failure").Inc()
		return fmt.Errorf("remote %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		metrics.RemoteRequests.WithLabelValues(op, "failure").Inc()
		return statusError(op, resp)
	}
	metrics.RemoteRequests.WithLabelValues(op, "success").Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("remote %s: read body: %w", op, err)
	}
	return json.Unmarshal(data, out)
}
