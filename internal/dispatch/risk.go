package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/ironsheep/occupancy-counter/internal/httputil"
)

// RiskResult is the risk service's verdict for one room.
type RiskResult struct {
	RoomID        string  `json:"room_id"`
	Found         bool    `json:"found"`
	RiskScore     float64 `json:"risk_score"`
	RiskThreshold float64 `json:"risk_threshold"`
	IsHighRisk    bool    `json:"is_high_risk"`
}

// RiskChecker asks whether a room is currently high risk.
type RiskChecker interface {
	CheckRoom(ctx context.Context, roomID string) (*RiskResult, error)
}

// RiskPath is the room risk endpoint relative to the API base URL.
const RiskPath = "/api/cv/room-risk"

// APIKeyHeader carries the shared API key on every service call.
const APIKeyHeader = "x-cv-api-key"

// RiskClient queries the room risk endpoint over HTTP.
type RiskClient struct {
	client  httputil.HTTPClient
	url     string
	headers map[string]string
}

// NewRiskClient returns a client for the risk endpoint under baseURL.
func NewRiskClient(client httputil.HTTPClient, baseURL, apiKey string) *RiskClient {
	return &RiskClient{
		client:  client,
		url:     strings.TrimRight(baseURL, "/") + RiskPath,
		headers: map[string]string{APIKeyHeader: apiKey},
	}
}

// CheckRoom posts {"room_id": roomID} and decodes the verdict. The request is
// bounded by ctx; it is never retried.
func (c *RiskClient) CheckRoom(ctx context.Context, roomID string) (*RiskResult, error) {
	var out RiskResult
	if err := httputil.PostJSON(ctx, c.client, c.url, c.headers, map[string]string{"room_id": roomID}, &out); err != nil {
		return nil, fmt.Errorf("room risk check for %s: %w", roomID, err)
	}
	return &out, nil
}
