package jira

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is the interface for interacting with Jira.
type Client interface {
	// SearchIssues runs a JQL query and returns one page of issues with their changelog expanded.
	SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error)
	// GetFields lists every system and custom field known to the instance.
	GetFields(ctx context.Context) ([]FieldDTO, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string

	// Personal Access Token (preferred)
	Token string

	// Basic authentication
	Username string
	Password string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Load Balancer Cookies
	GCILB string
	GCLB  string

	// Performance Settings
	RequestDelay time.Duration
	Timeout      time.Duration
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}

// FindIssues pages through a JQL query until the result set is exhausted.
func FindIssues(ctx context.Context, client Client, jql string, pageSize int) ([]IssueDTO, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var issues []IssueDTO
	for {
		resp, err := client.SearchIssues(ctx, jql, len(issues), pageSize)
		if err != nil {
			return nil, fmt.Errorf("search failed at offset %d: %w", len(issues), err)
		}
		issues = append(issues, resp.Issues...)

		log.Debug().Str("jql", jql).Int("fetched", len(issues)).Int("total", resp.Total).Msg("Fetched issue page")

		if len(resp.Issues) == 0 || len(resp.Issues) < pageSize || len(issues) >= resp.Total {
			break
		}
	}
	return issues, nil
}
