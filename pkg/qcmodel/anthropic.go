package qcmodel

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const systemPrompt = "You are an expert marketing email QC assistant. Compare Braze previews with approved copy documents and compliance rules. Always return only a JSON object with summary_pass (boolean), model_version (string), and checks (array of {type, name, pass, details}). Check types must be one of content_mismatch, subject_preheader, disclaimer, keyword_disclaimer. If any requirement cannot be verified, mark the related check as failed and explain why."

const userInstructions = `Use the Braze preview HTML and parsed summary together; the HTML is the source of truth when there is disagreement.
Compare all content, subject, preheader, CTAs, disclaimers, and keywords against the copy document and compliance rules.
Give each check a clear pass/fail. When failing, cite concise evidence pulled from either the email or the copy doc.
If required information is missing or ambiguous, treat the check as failed and explain the gap.
Use descriptive names for checks so humans understand the issues quickly.`

// AnthropicClient implements Client using the official anthropic-sdk-go.
type AnthropicClient struct {
	client    sdk.Client
	modelName string
	maxTokens int64
}

// NewAnthropic creates a model client for the given API key and model name.
func NewAnthropic(apiKey, modelName string) *AnthropicClient {
	return &AnthropicClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		maxTokens: 2048,
	}
}

// Review sends the run context to the model and strictly decodes its JSON
// verdict.
func (c *AnthropicClient) Review(ctx context.Context, input Input) (*Output, error) {
	payload, err := json.Marshal(map[string]any{
		"instructions": userInstructions,
		"context": map[string]any{
			"braze_preview_url": input.BrazePreviewURL,
			"silo":              input.Silo,
			"entity":            input.Entity,
			"email_type":        input.EmailType,
			"risk_rules":        input.RiskRules,
			"disclaimer_rules":  input.DisclaimerRules,
			"keyword_rules":     input.KeywordRules,
			"additional_rules":  input.AdditionalRules,
		},
		"email_sources": map[string]any{
			"parsed_summary": input.ParsedEmail,
			"raw_html":       input.RawHTML,
		},
		"copy_document_text": input.CopyDocumentText,
	})
	if err != nil {
		return nil, eris.Wrap(err, "qcmodel: marshal input")
	}

	temperature := 0.1
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.modelName),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(temperature),
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(string(payload))),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "qcmodel: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, eris.New("qcmodel: response did not include content")
	}

	var output Output
	if err := json.Unmarshal([]byte(cleanJSON(text.String())), &output); err != nil {
		return nil, eris.Wrap(err, "qcmodel: parse model output")
	}
	if err := output.Validate(); err != nil {
		return nil, err
	}

	zap.L().Info("qcmodel: review complete",
		zap.String("model", c.modelName),
		zap.Bool("summary_pass", output.SummaryPass),
		zap.Int("checks", len(output.Checks)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return &output, nil
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
