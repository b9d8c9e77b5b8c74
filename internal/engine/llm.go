package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// ErrLLMDisabled is returned when no LLM client is configured.
var ErrLLMDisabled = errors.New("llm not configured (set LLM_API_KEY)")

// currentDate returns today's date in ISO 8601 format (UTC).
func currentDate() string {
	return time.Now().UTC().Format("2006-01-02")
}

// TranscriptSummary is the structured LLM summary of one video.
type TranscriptSummary struct {
	Answer    string   `json:"answer"`
	KeyPoints []string `json:"key_points,omitempty"`
	Coverage  string   `json:"coverage,omitempty"`
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a prompt using the configured max_tokens and temperature.
func CallLLM(ctx context.Context, prompt string) (string, error) {
	if cfg.LLMClient == nil {
		return "", ErrLLMDisabled
	}
	metrics.LLMCalls.Add(1)
	resp, err := cfg.LLMClient.Complete(ctx, "", prompt,
		llm.WithChatTemperature(cfg.LLMTemperature),
		llm.WithChatMaxTokens(cfg.LLMMaxTokens),
	)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// SummarizeTranscript asks the LLM for a study summary of a transcript.
// The transcript is cut to MaxContentChars at a word boundary.
func SummarizeTranscript(ctx context.Context, topic, title, transcript string) (*TranscriptSummary, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.New("empty transcript")
	}
	text := TruncateAtWord(transcript, cfg.MaxContentChars)

	var prompt string
	if strings.TrimSpace(topic) == "" {
		prompt = fmt.Sprintf(promptTranscriptSummaryNoTopic, currentDate(), title, text)
	} else {
		prompt = fmt.Sprintf(promptTranscriptSummary, currentDate(), topic, title, text)
	}

	raw, err := CallLLM(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize transcript: %w", err)
	}
	return parseSummary(raw), nil
}

// parseSummary decodes the LLM reply, degrading to the bare answer or the
// raw text when the JSON is malformed.
func parseSummary(raw string) *TranscriptSummary {
	var out TranscriptSummary
	if err := json.Unmarshal([]byte(raw), &out); err == nil && out.Answer != "" {
		return &out
	}
	if answer := ExtractJSONAnswer(raw); answer != "" {
		return &TranscriptSummary{Answer: answer}
	}
	return &TranscriptSummary{Answer: raw}
}

// ExtractJSONAnswer extracts the "answer" field from malformed JSON
// where the value may contain unescaped newlines or special characters.
func ExtractJSONAnswer(raw string) string {
	prefix := `"answer"`
	idx := strings.Index(raw, prefix)
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len(prefix):]
	rest = strings.TrimSpace(rest)
	if len(rest) == 0 || rest[0] != ':' {
		return ""
	}
	rest = strings.TrimSpace(rest[1:])
	if len(rest) == 0 || rest[0] != '"' {
		return ""
	}
	rest = rest[1:] // skip opening quote

	var sb strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '\\' && i+1 < len(rest) {
			switch rest[i+1] {
			case '"':
				sb.WriteByte('"')
				i++
				continue
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			}
			sb.WriteByte(rest[i])
			continue
		}
		if rest[i] == '"' {
			return sb.String()
		}
		sb.WriteByte(rest[i])
	}
	return sb.String()
}
