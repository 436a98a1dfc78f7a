// Package answer implements the Answerer: assembling retrieved chunks
// into a context block and delegating to a ChatPort for a natural-language
// reply.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/searchgrep/searchgrep/internal/errs"
	"github.com/searchgrep/searchgrep/internal/retrieve"
)

const (
	systemPrompt   = "concise code assistant"
	maxTokens      = 1000
	fallbackPrefix = 1024
	emptyFallback  = "I couldn't find a useful answer in the indexed code."
)

// ChatPort is the chat-completion collaborator the Answerer delegates to.
type ChatPort interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Answer builds a context block from results and asks chat to answer
// query against it. Fails with NotConfigured if chat is nil.
func Answer(ctx context.Context, chat ChatPort, query string, results []retrieve.Result) (string, error) {
	if chat == nil {
		return "", errs.New(errs.NotConfigured, "no chat collaborator configured")
	}

	user := buildPrompt(query, results)
	text, err := chat.Complete(ctx, systemPrompt, user, maxTokens)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return emptyFallback, nil
	}
	return text, nil
}

// buildPrompt renders one "File: {path} (lines {s}-{e})" header plus a
// fenced code block per result, followed by the question, per section 4.9.
func buildPrompt(query string, results []retrieve.Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(contextBlock(r))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

func contextBlock(r retrieve.Result) string {
	content := r.Chunk.Content
	lineStart, lineEnd := r.Chunk.LineStart, r.Chunk.LineEnd

	if content == "" {
		content = r.DocumentContent
		if len(content) > fallbackPrefix {
			content = content[:fallbackPrefix]
		}
		lineStart, lineEnd = 1, 1
	}

	header := fmt.Sprintf("File: %s (lines %d-%d)", r.Path, lineStart, lineEnd)
	return header + "\n```\n" + content + "\n```"
}
