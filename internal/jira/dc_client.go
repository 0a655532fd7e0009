package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const maxAttempts = 3

type dcClient struct {
	cfg         Config
	httpClient  *http.Client
	lastRequest time.Time
	throttleMu  sync.Mutex

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value      any
	Expiration time.Time
}

// NewDataCenterClient creates a client for Jira Data Center / Server REST API v2.
func NewDataCenterClient(cfg Config) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *dcClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")
	return entry.Value, true
}

func (c *dcClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:      value,
		Expiration: time.Now().Add(ttl),
	}
}

func (c *dcClient) throttle(ctx context.Context) error {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling Jira request")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. Prioritize Personal Access Token (PAT)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}

	// 2. Basic auth
	if c.cfg.Username != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		return
	}

	// 3. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
		{"GCILB", c.cfg.GCILB},
		{"GCLB", c.cfg.GCLB},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http drops GCLB values containing double quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

func (c *dcClient) SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error) {
	cacheKey := fmt.Sprintf("search:%s:%d:%d", jql, startAt, maxResults)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*SearchResponse), nil
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", "*all")
	params.Set("expand", "changelog")

	searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", strings.TrimRight(c.cfg.BaseURL, "/"), params.Encode())
	log.Debug().Str("jql", jql).Int("startAt", startAt).Msg("Requesting issues from Jira")

	var result SearchResponse
	if err := c.getJSON(ctx, searchURL, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &result, 10*time.Minute)
	return &result, nil
}

func (c *dcClient) GetFields(ctx context.Context) ([]FieldDTO, error) {
	const cacheKey = "fields"
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]FieldDTO), nil
	}

	fieldsURL := fmt.Sprintf("%s/rest/api/2/field", strings.TrimRight(c.cfg.BaseURL, "/"))
	var fields []FieldDTO
	if err := c.getJSON(ctx, fieldsURL, &fields); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, fields, 30*time.Minute)
	return fields, nil
}

// getJSON performs a GET with throttling and retries 429/5xx responses with exponential backoff.
func (c *dcClient) getJSON(ctx context.Context, target string, out any) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("jira base URL is not configured")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(300*(1<<attempt)) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.throttle(ctx); err != nil {
			return err
		}

		retry, err := c.doGet(ctx, target, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Retrying Jira request")
	}
	return lastErr
}

func (c *dcClient) doGet(ctx context.Context, target string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return false, fmt.Errorf("jira authentication failed (%d), check token or session cookies", resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests:
			return true, fmt.Errorf("jira rate limit exceeded (429), retry after %q", resp.Header.Get("Retry-After"))
		case resp.StatusCode >= 500:
			return true, fmt.Errorf("jira API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		default:
			return false, fmt.Errorf("jira API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return false, nil
}
