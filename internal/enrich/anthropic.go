package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const personalizationTemperature = 0.3

// AnthropicPersonalizer implements Personalizer against the Anthropic
// Messages API. The model must return a strict JSON object; a malformed or
// empty reply counts as a failed attempt and is retried.
type AnthropicPersonalizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// NewAnthropicPersonalizer creates a personalizer backed by the given client.
// A zero retry config falls back to the default policy.
func NewAnthropicPersonalizer(client anthropic.Client, modelID string, maxTokens int64, retry resilience.RetryConfig) *AnthropicPersonalizer {
	if retry.Attempts == 0 {
		retry = resilience.DefaultRetryConfig()
	}
	return &AnthropicPersonalizer{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		retry:     retry,
	}
}

// personalizationReply is the JSON contract the model must honor.
type personalizationReply struct {
	PersonalizedSentence string            `json:"personalized_sentence"`
	CustomVariables      map[string]string `json:"custom_variables"`
}

func (p *AnthropicPersonalizer) Personalize(ctx context.Context, req PersonalizationRequest) (PersonalizationResult, error) {
	cfg := p.retry
	cfg.ShouldRetry = resilience.LogRetries("anthropic", "personalize", resilience.RetryAll)

	temp := personalizationTemperature
	msgReq := anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(buildPersonalizationSystemPrompt(req.Config)),
		Messages:    []anthropic.Message{{Role: "user", Content: buildPersonalizationUserPrompt(req.Lead, req.Research)}},
		Temperature: &temp,
	}

	reply, err := resilience.Do(ctx, cfg, func(ctx context.Context) (personalizationReply, error) {
		resp, err := p.client.CreateMessage(ctx, msgReq)
		if err != nil {
			return personalizationReply{}, err
		}
		resp.Usage.LogCost(p.model, "personalization")
		return parsePersonalizationReply(resp.Text())
	})
	if err != nil {
		return PersonalizationResult{}, eris.Wrap(err, "enrich: personalization request")
	}

	if len(req.Config.CustomVariables) > 0 && len(reply.CustomVariables) == 0 {
		zap.L().Warn("custom variables requested but not returned",
			zap.String("email", req.Lead.NormalizedEmail()),
		)
	}

	return PersonalizationResult{
		Message:         reply.PersonalizedSentence,
		CustomVariables: reply.CustomVariables,
	}, nil
}

func parsePersonalizationReply(text string) (personalizationReply, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var reply personalizationReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return personalizationReply{}, eris.Wrap(err, "enrich: parse personalization reply")
	}
	if strings.TrimSpace(reply.PersonalizedSentence) == "" {
		return personalizationReply{}, eris.New("enrich: reply missing personalized_sentence")
	}
	return reply, nil
}

func buildPersonalizationSystemPrompt(cfg model.PersonalizationConfig) string {
	var b strings.Builder
	b.WriteString(cfg.PersonalizationPrompt)
	b.WriteString("\n\nTask: ")
	b.WriteString(cfg.Task)
	b.WriteString("\n\nGuidelines:\n")
	b.WriteString(cfg.Guidelines)
	b.WriteString("\n\nExample Output:\n")
	b.WriteString(cfg.Example)
	b.WriteString("\n\nIMPORTANT: You must return ONLY valid JSON in this exact format:\n{\n  \"personalized_sentence\": \"your personalized message here\"")
	if len(cfg.CustomVariables) > 0 {
		b.WriteString(",\n  \"custom_variables\": {\n")
		for i, cv := range cfg.CustomVariables {
			fmt.Fprintf(&b, "    %q: \"value for this variable\"", cv.Name)
			if i < len(cfg.CustomVariables)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString("  }")
	}
	b.WriteString("\n}\n")
	if len(cfg.CustomVariables) > 0 {
		b.WriteString("\nCustom Variables:\n")
		for _, cv := range cfg.CustomVariables {
			fmt.Fprintf(&b, "- %s: %s\n", cv.Name, cv.Prompt)
		}
	}
	b.WriteString(`
Constraints:
- Maximum 25 words
- Grade 6 reading level
- Conversational tone
- No questions or meeting requests
- Only use information provided in the research
- Be specific and relevant to their company/industry
`)
	return b.String()
}

func buildPersonalizationUserPrompt(lead model.Lead, research string) string {
	return fmt.Sprintf(`Lead Information:
- Name: %s %s
- Job Title: %s
- Company: %s
- Industry: %s
- Location: %s
- Company Size: %s

Research Findings:
%s

Based on the research findings above, create a highly personalized opening sentence for a cold outreach message. The sentence should:
1. Reference specific, recent information about their company
2. Be conversational and natural
3. Create curiosity without asking questions
4. Stay within 25 words
5. Be relevant to their industry/role

Return ONLY the JSON response with the personalized_sentence field.`,
		lead.FirstName, lead.LastName,
		orNotSpecified(lead.JobTitle),
		lead.Company,
		orNotSpecified(lead.CompanyIndustry),
		orNotSpecified(lead.Location),
		orNotSpecified(lead.CompanyHeadcount),
		research,
	)
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}
