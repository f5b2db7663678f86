package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Areopagus/internal/domain/models"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/services/analytics"
)

const remoteVotePath = "/vote"

var _ domsvc.Agent = (*RemoteAgent)(nil)

// RemoteAgent delegates the vote to an external model service over HTTP.
// The service receives the candle as JSON and answers with a vote, or with
// an empty body to abstain.
type RemoteAgent struct {
	name    string
	service *analytics.HTTPServiceBase
}

type remoteRequest struct {
	Agent  string        `json:"agent"`
	Candle models.Candle `json:"candle"`
}

type remoteResponse struct {
	Vote       models.Outcome `json:"vote"`
	Confidence float64        `json:"confidence"`
	Strategy   string         `json:"strategy,omitempty"`
	Reasoning  any            `json:"reasoning,omitempty"`
}

func NewRemoteAgent(name, baseURL string, timeout time.Duration, opts ...analytics.ServiceOption) *RemoteAgent {
	opts = append([]analytics.ServiceOption{analytics.WithServiceTimeout(timeout)}, opts...)
	return &RemoteAgent{
		name:    name,
		service: analytics.NewHTTPServiceBase(name, baseURL, opts...),
	}
}

func (a *RemoteAgent) Name() string { return a.name }

func (a *RemoteAgent) OnCandle(ctx context.Context, c models.Candle) (*models.Vote, error) {
	body, err := a.service.PostJSON(ctx, remoteVotePath, remoteRequest{Agent: a.name, Candle: c})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var resp remoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode vote from %s: %w", a.name, err)
	}
	if resp.Vote == "" {
		return nil, nil
	}
	return &models.Vote{
		Vote:       resp.Vote,
		Confidence: resp.Confidence,
		Strategy:   resp.Strategy,
		Price:      c.Close,
		Reasoning:  resp.Reasoning,
	}, nil
}
