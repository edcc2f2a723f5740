package webservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"user-profile/internal/domain"
)

const maxUserPayload = 1 << 20

// HTTPService fetches users from a REST endpoint at {BaseURL}/users/{id}.
type HTTPService struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPService(baseURL string, client *http.Client, timeout time.Duration) *HTTPService {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
	}
}

func (s *HTTPService) GetUser(userID string) Call {
	return NewCall(func(ctx context.Context) (*domain.User, error) {
		return s.fetch(ctx, userID)
	})
}

func (s *HTTPService) fetch(ctx context.Context, userID string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/users/%s", s.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("get user %s: %w", userID, ErrUserNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get user %s: unexpected status %d: %s", userID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodeUser(io.LimitReader(resp.Body, maxUserPayload), userID)
}

func decodeUser(r io.Reader, userID string) (*domain.User, error) {
	var user domain.User
	if err := json.NewDecoder(r).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	if user.ID == "" {
		user.ID = userID
	}
	if user.ID != userID {
		return nil, fmt.Errorf("decode user %s: payload id %q does not match", userID, user.ID)
	}
	return &user, nil
}

var _ Service = (*HTTPService)(nil)
