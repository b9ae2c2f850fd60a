package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"leadhandler_backend/platform/ai/moonshot"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	runnerInstruction  = "Follow the instructions in each message exactly. When asked for JSON, answer with a single JSON object and nothing else."
)

// RunnerGenerator drives any ADK model.LLM through a tool-less llmagent.
// Each call runs in its own throwaway in-memory session.
type RunnerGenerator struct {
	provider       string
	runner         *runner.Runner
	sessionService session.Service
	appName        string
}

// NewRunnerGenerator wraps llm in an agent runner.
func NewRunnerGenerator(provider string, llm model.LLM) (*RunnerGenerator, error) {
	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "LeadQualifier",
		Model:       llm,
		Description: "Replies to real-estate leads over SMS and extracts qualification details.",
		Instruction: runnerInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", provider, err)
	}

	appName := "lead-qualifier-" + provider
	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runner: %w", provider, err)
	}

	return &RunnerGenerator{
		provider:       provider,
		runner:         r,
		sessionService: sessionService,
		appName:        appName,
	}, nil
}

// NewGemini builds a Gemini-backed generator.
func NewGemini(ctx context.Context, apiKey, modelName string) (*RunnerGenerator, error) {
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return NewRunnerGenerator(ProviderGemini, llm)
}

// NewMoonshot builds a Moonshot (Kimi) backed generator.
func NewMoonshot(apiKey, modelName string) (*RunnerGenerator, error) {
	return NewRunnerGenerator(ProviderMoonshot, moonshot.NewModel(moonshot.Config{
		APIKey: apiKey,
		Model:  modelName,
	}))
}

// Name implements TextGenerator.
func (g *RunnerGenerator) Name() string { return g.provider }

// Generate implements TextGenerator. The system prompt travels in the user
// turn because the agent instruction is fixed at construction.
func (g *RunnerGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	sessionID := uuid.NewString()
	userID := "lead-pipeline"

	_, err := g.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   g.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("%s: create session: %w", g.provider, err)
	}
	defer func() {
		_ = g.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   g.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	text := prompt.User
	if prompt.System != "" {
		text = prompt.System + "\n\n" + prompt.User
	}
	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: text}},
	}

	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	var output strings.Builder
	for event, err := range g.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return "", fmt.Errorf("%s: run failed: %w", g.provider, err)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			output.WriteString(part.Text)
		}
	}

	return strings.TrimSpace(output.String()), nil
}
