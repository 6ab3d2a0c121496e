// Package recommend asks a chat-completion model to pick, from the
// public events a user can see, the ones matching their tags.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrDisabled     = errors.New("recommendations are not configured")
	ErrUnavailable  = errors.New("recommendation service unavailable")
	ErrUserNotFound = errors.New("user not found")
)

const toolName = "returnFilteredEvents"

const systemPrompt = "You are a helpful assistant that filters event data based on user interests. " +
	"You must only return events that are semantically related to the user's tags. " +
	"If no events match, return an empty array."

var toolParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"events": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "number"},
					"title": {"type": "string"}
				},
				"required": ["id"]
			}
		}
	},
	"required": ["events"]
}`)

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type EventQuerier interface {
	Query(ctx context.Context, q repository.EventQuery) ([]models.EventCard, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Tags(ctx context.Context, userID int64) ([]string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Recommender struct {
	client  completer
	breaker *gobreaker.CircuitBreaker
	model   string
	events  EventQuerier
	users   UserLookup
	logger  *zap.Logger
}

// New returns a Recommender. With no API key every call fails with
// ErrDisabled.
func New(cfg Config, events EventQuerier, users UserLookup, logger *zap.Logger) *Recommender {
	r := &Recommender{
		model:  cfg.Model,
		events: events,
		users:  users,
		logger: logger,
	}
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		r.client = openai.NewClientWithConfig(oc)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// A caller that went away says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return r
}

// pick is the tool call payload. Ids are decoded as float64 since the
// schema only promises a JSON number.
type pick struct {
	Events []struct {
		ID float64 `json:"id"`
	} `json:"events"`
}

// Recommend returns the candidate events the model selected, excluding
// those the user has already marked interested. Only the ids in the
// model's answer are used; the rows come from the database.
func (r *Recommender) Recommend(ctx context.Context, userID int64) ([]models.EventCard, error) {
	if r.client == nil {
		return nil, ErrDisabled
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	tags, err := r.users.Tags(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := r.events.Query(ctx, repository.EventQuery{Audience: models.AudiencePublic, UserID: userID})
	if err != nil {
		return nil, err
	}
	yes := true
	interested, err := r.events.Query(ctx, repository.EventQuery{Audience: models.AudiencePublic, UserID: userID, Interested: &yes})
	if err != nil {
		return nil, err
	}

	result := make([]models.EventCard, 0)
	if len(candidates) == 0 {
		return result, nil
	}

	req, err := r.buildRequest(tags, interested, candidates)
	if err != nil {
		return nil, err
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	selected, err := selectedIDs(out.(openai.ChatCompletionResponse))
	if err != nil {
		return nil, err
	}

	skip := make(map[int64]bool, len(interested))
	for _, e := range interested {
		skip[e.ID] = true
	}
	for _, e := range candidates {
		if selected[e.ID] && !skip[e.ID] {
			result = append(result, e)
		}
	}

	r.logger.Debug("recommendations computed",
		zap.Int64("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)),
		zap.Int("returned", len(result)),
	)
	return result, nil
}

func (r *Recommender) buildRequest(tags []string, interested, candidates []models.EventCard) (openai.ChatCompletionRequest, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("encode tags: %w", err)
	}
	interestedJSON, err := json.Marshal(interested)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("encode interested events: %w", err)
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("encode events: %w", err)
	}

	prompt := fmt.Sprintf(`The user has the following interests (tags): %s
The user is also interested in going to the following events: %s

You are given a list of events. Each event contains details like title, description, and location.

Your task is to:
- Analyze which events are thematically relevant to the user's tags and interested events.
- Return ONLY the matching events using the function %s.
- DO NOT include unrelated events.
- You MUST use the title and description fields to determine relevance.

Events:
%s`, tagsJSON, interestedJSON, toolName, candidatesJSON)

	return openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolName,
				Description: "Return only events relevant to the user's interests",
				Parameters:  toolParameters,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: toolName},
		},
	}, nil
}

func selectedIDs(resp openai.ChatCompletionResponse) (map[int64]bool, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("completion has no choices")
	}
	var args string
	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == toolName {
			args = call.Function.Arguments
			break
		}
	}
	if args == "" {
		return nil, errors.New("completion did not call " + toolName)
	}

	var p pick
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}

	ids := make(map[int64]bool, len(p.Events))
	for _, e := range p.Events {
		ids[int64(e.ID)] = true
	}
	return ids, nil
}
