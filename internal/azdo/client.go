// Package azdo is a minimal client for the task-queue service's pool and
// agent APIs, used to verify that a bootstrapped host actually registered.
package azdo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentforge/internal/logging"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const apiVersion = "7.1"

// Client talks to an organization's distributed task API using PAT basic auth
type Client struct {
	http            *retryablehttp.Client
	organizationURL string
	accessToken     string
}

// NewClient creates a Client for the given organization URL
func NewClient(organizationURL, accessToken string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.HTTPClient.Timeout = 30 * time.Second
	httpClient.Logger = nil

	return &Client{
		http:            httpClient,
		organizationURL: strings.TrimRight(organizationURL, "/"),
		accessToken:     accessToken,
	}
}

// Pools lists all agent pools in the organization
func (c *Client) Pools(ctx context.Context) ([]Pool, error) {
	var envelope poolResponseEnvelope
	if err := c.get(ctx, "/_apis/distributedtask/pools", &envelope); err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	return envelope.Pools, nil
}

// PoolByName finds a pool by its exact name
func (c *Client) PoolByName(ctx context.Context, name string) (*Pool, error) {
	pools, err := c.Pools(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("pool %q not found", name)
}

// Agents lists the agents registered in a pool
func (c *Client) Agents(ctx context.Context, poolID int) ([]Agent, error) {
	path := "/_apis/distributedtask/pools/" + strconv.Itoa(poolID) + "/agents"
	var envelope agentResponseEnvelope
	if err := c.get(ctx, path, &envelope); err != nil {
		return nil, fmt.Errorf("failed to list agents in pool %d: %w", poolID, err)
	}
	return envelope.Agents, nil
}

// WaitForAgentOnline polls the pool until the named agent reports online or
// attempts are exhausted
func (c *Client) WaitForAgentOnline(ctx context.Context, poolName, agentName string, attempts int, interval time.Duration) (*Agent, error) {
	pool, err := c.PoolByName(ctx, poolName)
	if err != nil {
		return nil, err
	}

	for i := 0; i < attempts; i++ {
		agents, err := c.Agents(ctx, pool.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range agents {
			if a.Name == agentName {
				if a.Online() {
					return &a, nil
				}
				logging.Logger().Info("Agent registered but not yet online",
					zap.String("agent", agentName),
					zap.String("status", a.Status))
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, fmt.Errorf("agent %q did not come online in pool %q after %d attempts", agentName, poolName, attempts)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	url := c.organizationURL + path + "?api-version=" + apiVersion

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not build request for %s: %w", url, err)
	}
	req.SetBasicAuth("", c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, logging.Truncate(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}
