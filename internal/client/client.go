// Package client talks to the ledger API over HTTP. A Client satisfies
// editor.Ledger, so a Coordinator can persist through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erdstudio/engine/internal/api/types"
	"github.com/erdstudio/engine/internal/editor"
	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
	"github.com/erdstudio/engine/pkg/logger"
)

var _ editor.Ledger = (*Client)(nil)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken starts the client already authenticated.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.Named("client"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns the bearer token in use, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*types.UserResponse, error) {
	var out types.UserResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", types.RegisterRequest{Email: email, Password: password, Name: name}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and keeps the issued token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	var out types.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", types.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = out.AccessToken
	c.mu.Unlock()
	return &out, nil
}

// Me returns the authenticated user's id.
func (c *Client) Me(ctx context.Context) (uuid.UUID, error) {
	var out types.UserResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(out.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode user id: %w", err)
	}
	return id, nil
}

func (c *Client) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodPost, "/projects", types.ProjectCreateRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := c.do(ctx, http.MethodGet, "/projects?page_size=100", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveProjectData(ctx context.Context, projectID uuid.UUID, data string, members []uuid.UUID) (*models.Project, *models.Changelog, error) {
	req := types.SaveDataRequest{Data: data, Members: make([]string, 0, len(members))}
	for _, m := range members {
		req.Members = append(req.Members, m.String())
	}
	var out types.SaveResponse
	if err := c.do(ctx, http.MethodPut, "/projects/"+projectID.String()+"/data", req, &out); err != nil {
		return nil, nil, err
	}
	if out.Project == nil || out.Changelog == nil {
		return nil, nil, appErr.New(appErr.CodeInternal, "incomplete save response")
	}
	return out.Project, out.Changelog, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+projectID.String(), nil, nil)
}

func (c *Client) AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.Role) error {
	req := types.MemberRequest{UserID: userID.String(), Role: string(role)}
	return c.do(ctx, http.MethodPost, "/projects/"+projectID.String()+"/members", req, nil)
}

func (c *Client) ListChangelogs(ctx context.Context, projectID uuid.UUID) ([]models.Changelog, error) {
	var out []models.Changelog
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID.String()+"/changelogs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends body as JSON and decodes the envelope's data into out. Error
// envelopes come back as application errors carrying the server's code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return appErr.Wrap(err, appErr.CodeUnavailable, "ledger unreachable")
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *types.APIError `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&env); err != nil {
		c.log.Warn("undecodable response", zap.String("method", method), zap.String("path", redact(path)), zap.Int("status", resp.StatusCode), zap.Error(err))
		return appErr.Newf(appErr.CodeUnavailable, "unexpected response with status %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return types.ToAppError(env.Error, resp.StatusCode)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, redact(path), err)
	}
	return nil
}

func redact(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
