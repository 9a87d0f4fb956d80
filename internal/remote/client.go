// Package remote is the client for the upstream mock REST API (dummyjson
// shape): paginated collections under {<name>: [...], total, skip, limit},
// plus /auth/login. The gateway never writes upstream except to log in.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/resilience"
)

const (
	// PageSize is the fixed page size used for bulk collection fetches.
	PageSize = 100

	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

// ProductPage is one page of the catalog listing.
type ProductPage struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
}

// Client talks to the upstream API with retries; catalog reads additionally
// sit behind a circuit breaker so a broken upstream fails fast.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *zap.Logger
	catalogCB *resilience.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		catalogCB: resilience.NewCircuitBreaker(3, 10*time.Second, logger),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	domain.Identity
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

// Login authenticates against the upstream /auth/login and returns the
// identity with its session token.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.Identity, error) {
	var resp loginResponse
	if err := c.postJSON(ctx, "/auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("upstream login failed: %w", err)
	}

	identity := resp.Identity
	identity.SessionID = resp.AccessToken
	if identity.SessionID == "" {
		identity.SessionID = resp.Token
	}
	return &identity, nil
}

// User fetches the full upstream user record, used to seed the profile view.
func (c *Client) User(ctx context.Context, id int) (*domain.Profile, error) {
	var profile domain.Profile
	if err := c.getJSON(ctx, fmt.Sprintf("/users/%d", id), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Products returns one catalog page.
func (c *Client) Products(ctx context.Context, limit, skip int) (*ProductPage, error) {
	var page ProductPage
	err := c.catalogCB.Execute(func() error {
		return c.getJSON(ctx, fmt.Sprintf("/products?limit=%d&skip=%d", limit, skip), &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Product returns a single catalog record with its embedded reviews.
func (c *Client) Product(ctx context.Context, id int) (*domain.Product, error) {
	var product domain.Product
	err := c.catalogCB.Execute(func() error {
		return c.getJSON(ctx, fmt.Sprintf("/products/%d", id), &product)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Categories lists the catalog category names.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := c.catalogCB.Execute(func() error {
		return c.getJSON(ctx, "/products/categories", &categories)
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// AllUsers pages through /users until the reported total is collected.
func (c *Client) AllUsers(ctx context.Context) ([]domain.FeedUser, error) {
	var all []domain.FeedUser
	err := c.fetchAll(ctx, func(skip int) (int, int, error) {
		var page struct {
			Users []domain.FeedUser `json:"users"`
			Total int               `json:"total"`
		}
		if err := c.getJSON(ctx, fmt.Sprintf("/users?limit=%d&skip=%d", PageSize, skip), &page); err != nil {
			return 0, 0, err
		}
		all = append(all, page.Users...)
		return len(page.Users), page.Total, nil
	})
	return all, err
}

// AllPosts pages through /posts.
func (c *Client) AllPosts(ctx context.Context) ([]domain.Post, error) {
	var all []domain.Post
	err := c.fetchAll(ctx, func(skip int) (int, int, error) {
		var page struct {
			Posts []domain.Post `json:"posts"`
			Total int           `json:"total"`
		}
		if err := c.getJSON(ctx, fmt.Sprintf("/posts?limit=%d&skip=%d", PageSize, skip), &page); err != nil {
			return 0, 0, err
		}
		all = append(all, page.Posts...)
		return len(page.Posts), page.Total, nil
	})
	return all, err
}

// AllComments pages through /comments.
func (c *Client) AllComments(ctx context.Context) ([]domain.Comment, error) {
	var all []domain.Comment
	err := c.fetchAll(ctx, func(skip int) (int, int, error) {
		var page struct {
			Comments []domain.Comment `json:"comments"`
			Total    int              `json:"total"`
		}
		if err := c.getJSON(ctx, fmt.Sprintf("/comments?limit=%d&skip=%d", PageSize, skip), &page); err != nil {
			return 0, 0, err
		}
		all = append(all, page.Comments...)
		return len(page.Comments), page.Total, nil
	})
	return all, err
}

// PostsByUser lists one user's posts.
func (c *Client) PostsByUser(ctx context.Context, userID int) ([]domain.Post, error) {
	var page struct {
		Posts []domain.Post `json:"posts"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/posts/user/%d", userID), &page); err != nil {
		return nil, err
	}
	return page.Posts, nil
}

// fetchAll drives limit/skip pagination. The collection total comes from the
// first page, so nothing is hardcoded about upstream sizes.
func (c *Client) fetchAll(ctx context.Context, page func(skip int) (count, total int, err error)) error {
	skip := 0
	for {
		count, total, err := page(skip)
		if err != nil {
			return err
		}
		skip += count
		if skip >= total || count == 0 {
			return nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	return resilience.Retry(ctx, retryAttempts, retryDelay, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		return c.do(req, target)
	})
}

func (c *Client) postJSON(ctx context.Context, path string, body, target any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return resilience.Retry(ctx, retryAttempts, retryDelay, c.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, target)
	})
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
