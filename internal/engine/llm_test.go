package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/tidwall/gjson"
)

func TestExtractJSONAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "valid json",
			raw:  `{"answer": "hello world"}`,
			want: "hello world",
		},
		{
			name: "escaped quotes",
			raw:  `{"answer": "the \"light\" reactions"}`,
			want: `the "light" reactions`,
		},
		{
			name: "escaped newlines",
			raw:  `{"answer": "line1\nline2"}`,
			want: "line1\nline2",
		},
		{
			name: "no answer field",
			raw:  `{"result": "something"}`,
			want: "",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
		{
			name: "malformed - no closing quote",
			raw:  `{"answer": "unclosed`,
			want: "unclosed",
		},
		{
			name: "extra whitespace",
			raw:  `{  "answer" :  "spaced out"  }`,
			want: "spaced out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONAnswer(tt.raw)
			if got != tt.want {
				t.Errorf("ExtractJSONAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\nplain\n```":         "plain",
		"  no fences  ":           "no fences",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSummary(t *testing.T) {
	t.Run("structured", func(t *testing.T) {
		got := parseSummary(`{"answer": "Plants make sugar.", "key_points": ["Light", "Water"], "coverage": "Good."}`)
		if got.Answer != "Plants make sugar." {
			t.Errorf("answer = %q", got.Answer)
		}
		if len(got.KeyPoints) != 2 {
			t.Errorf("key points = %v", got.KeyPoints)
		}
	})

	t.Run("malformed json keeps answer", func(t *testing.T) {
		got := parseSummary(`{"answer": "partial", "key_points": [`)
		if got.Answer != "partial" {
			t.Errorf("answer = %q", got.Answer)
		}
	})

	t.Run("plain text", func(t *testing.T) {
		got := parseSummary("just prose")
		if got.Answer != "just prose" {
			t.Errorf("answer = %q", got.Answer)
		}
	})
}

func TestSummarizeTranscriptDisabled(t *testing.T) {
	Init(Config{})
	_, err := SummarizeTranscript(context.Background(), "topic", "title", "some words")
	if !errors.Is(err, ErrLLMDisabled) {
		t.Errorf("err = %v, want ErrLLMDisabled", err)
	}

	if _, err := SummarizeTranscript(context.Background(), "topic", "title", "  "); err == nil {
		t.Error("expected error on empty transcript")
	}
}

func TestCallLLMUsesConfiguredTemperature(t *testing.T) {
	var temperature atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		temperature.Store(gjson.GetBytes(body, "temperature").Float())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "m",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"answer\": \"cells divide\"}"}}]}`))
	}))
	defer srv.Close()

	Init(Config{LLMClient: llm.NewClient(srv.URL, "k", "m"), LLMTemperature: 0.7})
	defer Init(Config{})

	sum, err := SummarizeTranscript(context.Background(), "mitosis", "title", "cells divide by mitosis")
	if err != nil {
		t.Fatalf("SummarizeTranscript: %v", err)
	}
	if sum.Answer != "cells divide" {
		t.Errorf("answer = %q", sum.Answer)
	}
	if got, _ := temperature.Load().(float64); got != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got)
	}
}
