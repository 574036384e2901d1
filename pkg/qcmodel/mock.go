package qcmodel

import (
	"context"
	"fmt"

	"github.com/tradu/emailqc/internal/model"
)

// MockVersion tags results synthesized without calling the real model.
const MockVersion = "mock-v1"

// MockClient produces a deterministic stand-in verdict for local and offline
// operation. Selected when no API key is configured or mock mode is forced.
type MockClient struct{}

// NewMock creates a MockClient.
func NewMock() *MockClient {
	return &MockClient{}
}

// Review synthesizes a passing verdict with one check per model concern so
// downstream rendering paths are exercised end to end.
func (m *MockClient) Review(_ context.Context, input Input) (*Output, error) {
	out := &Output{
		SummaryPass:  true,
		ModelVersion: MockVersion,
		Checks: []OutputCheck{
			{
				Type:    model.CheckTypeContentMismatch,
				Name:    "Copy comparison",
				Pass:    true,
				Details: fmt.Sprintf("Mock mode: %d preview paragraphs assumed to match the copy document.", len(input.ParsedEmail.BodyParagraphs)),
			},
			{
				Type:    model.CheckTypeSubjectPreheader,
				Name:    "Subject and preheader",
				Pass:    true,
				Details: fmt.Sprintf("Mock mode: subject %q accepted without review.", input.ParsedEmail.Subject),
			},
			{
				Type:    model.CheckTypeDisclaimer,
				Name:    "Disclaimers collected",
				Pass:    len(input.DisclaimerRules) > 0,
				Details: fmt.Sprintf("Disclaimers provided: %d", len(input.DisclaimerRules)),
			},
		},
	}
	return out, out.Validate()
}
