package analysts

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// MockClient is a deterministic LLMClient for offline runs and tests. Replies
// are scripted per prompt keyword; unmatched prompts get a neutral stance
// derived from a hash of the prompt so repeated runs agree.
type MockClient struct {
	// Scripts maps a substring of the user prompt to a canned reply.
	Scripts map[string]string
	// Delay is applied before answering, to exercise timeout paths.
	Delay time.Duration
	// Err, when set, fails every call.
	Err error
}

// NewMockClient creates a mock with no scripts: every reply is neutral.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CompleteWithSystem returns the scripted or derived reply.
func (c *MockClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.Err != nil {
		return "", c.Err
	}

	for key, reply := range c.Scripts {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))
	stance := float64(int32(h.Sum32()%201)-100) / 500 // [-0.2, 0.2]

	return fmt.Sprintf("STANCE: %.2f\nCONFIDENCE: 0.50\nRATIONALE: mock analysis", stance), nil
}

// ScriptedReply formats a canned reply in the expected line protocol.
func ScriptedReply(stance, confidence float64, rationale string) string {
	return fmt.Sprintf("STANCE: %.2f\nCONFIDENCE: %.2f\nRATIONALE: %s", stance, confidence, rationale)
}
