// Package supabase talks to the profiles table through Supabase's PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/store"
)

const uniqueViolation = "23505"

// Store is a store.Backend backed by a Supabase project.
type Store struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// New builds a client for the project at baseURL using an anon or service key.
func New(baseURL, apiKey string, opts ...Option) *Store {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	s := &Store{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Name() string { return "supabase" }

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postgrest: status %d", e.Status)
	}
	return fmt.Sprintf("postgrest: status %d: %s (%s)", e.Status, e.Message, e.Code)
}

type insertRow struct {
	Username  string              `json:"username"`
	UserID    string              `json:"user_id"`
	Links     []domain.LinkRecord `json:"links"`
	Theme     domain.Theme        `json:"theme"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
}

type updateRow struct {
	Links *[]domain.LinkRecord `json:"links,omitempty"`
	Theme *domain.Theme        `json:"theme,omitempty"`
}

func (s *Store) SelectByUsername(ctx context.Context, username string) ([]store.Row, error) {
	q := url.Values{}
	q.Set("username", "eq."+username)
	q.Set("select", "*")
	q.Set("limit", "1")
	return s.selectRows(ctx, q)
}

func (s *Store) SelectByUserID(ctx context.Context, userID string) ([]store.Row, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	return s.selectRows(ctx, q)
}

func (s *Store) Insert(ctx context.Context, row store.Row) error {
	payload := insertRow{
		Username: row.Username,
		UserID:   row.UserID,
		Links:    row.Links,
		Theme:    row.Theme,
	}
	if payload.Links == nil {
		payload.Links = []domain.LinkRecord{}
	}
	if !row.CreatedAt.IsZero() {
		ts := row.CreatedAt.UTC()
		payload.CreatedAt = &ts
	}

	_, err := s.do(ctx, http.MethodPost, nil, payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == uniqueViolation || apiErr.Status == http.StatusConflict) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert profile %s: %w", row.Username, err)
	}
	return nil
}

// UpdateByUsername filters on both username and user_id, so a PATCH from
// a non-owner matches nothing and comes back as an empty representation.
func (s *Store) UpdateByUsername(ctx context.Context, username, userID string, patch store.Patch) error {
	if patch.Empty() {
		return nil
	}

	q := url.Values{}
	q.Set("username", "eq."+username)
	q.Set("user_id", "eq."+userID)

	body, err := s.do(ctx, http.MethodPatch, q, updateRow{Links: patch.Links, Theme: patch.Theme})
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", username, err)
	}

	var rows []store.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to decode update response: %w", err)
	}
	if len(rows) == 0 {
		return store.ErrNoRows
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "username")
	q.Set("limit", "1")
	_, err := s.do(ctx, http.MethodGet, q, nil)
	return err
}

func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *Store) selectRows(ctx context.Context, q url.Values) ([]store.Row, error) {
	body, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	rows := make([]store.Row, 0, 1)
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	for i := range rows {
		if rows[i].Links == nil {
			rows[i].Links = []domain.LinkRecord{}
		}
	}
	return rows, nil
}

func (s *Store) do(ctx context.Context, method string, q url.Values, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := s.baseURL + "/rest/v1/" + store.Table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}
	return respBody, nil
}
