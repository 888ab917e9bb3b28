package gen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIGenerator generates section content through the OpenAI chat API.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIGenerator reads the API key from OPENAI_API_KEY.
func NewOpenAIGenerator(model string, maxTokens int) *OpenAIGenerator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &OpenAIGenerator{
		client:    openai.NewClient(os.Getenv("OPENAI_API_KEY")),
		model:     model,
		maxTokens: maxTokens,
	}
}

const systemPrompt = `You write one section of a sales playbook for selling education products to a US school district.
Be specific to the district facts provided. Use short paragraphs and bullet points. Do not invent data.`

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	completion, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("completion returned empty content")
	}
	return content, nil
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Section: %s\n", req.SectionType)
	if req.Prompt != "" {
		fmt.Fprintf(&b, "Instruction: %s\n", req.Prompt)
	}
	fmt.Fprintf(&b, "\nDistrict: %s", req.District.Name)
	if req.District.State != "" {
		fmt.Fprintf(&b, " (%s)", req.District.State)
	}
	b.WriteString("\n")
	if req.District.Enrollment > 0 {
		fmt.Fprintf(&b, "Enrollment: %d students\n", req.District.Enrollment)
	}
	if req.District.BudgetJSON != "" {
		fmt.Fprintf(&b, "Budget: %s\n", req.District.BudgetJSON)
	}
	if req.District.PrioritiesJSON != "" {
		fmt.Fprintf(&b, "Stated priorities: %s\n", req.District.PrioritiesJSON)
	}
	b.WriteString("\nProducts offered:\n")
	for _, p := range req.Products {
		fmt.Fprintf(&b, "- %s", p.Name)
		if p.Category != "" {
			fmt.Fprintf(&b, " [%s]", p.Category)
		}
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
