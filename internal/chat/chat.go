// Package chat is the downstream consumer of the retrieval surface: it turns
// search results into a grounded prompt and asks a chat model to answer.
// The knowledge base core knows nothing about it beyond Search.
package chat

import (
	"fmt"
	"log/slog"
	"strings"

	"cryptokb/internal/domain"
)

// Retriever is the slice of the knowledge base the chat needs.
type Retriever interface {
	Search(query string, k int) []domain.SearchResult
}

// Model generates a completion for a prompt.
type Model interface {
	Complete(prompt string) (string, error)
}

const (
	// contextResults is how many snippets ground an answer; wider than the
	// search default so the model sees more context.
	contextResults = 5
	// snippetChars caps each snippet so the prompt stays inside model limits.
	snippetChars = 1200

	noContextReply = "Sorry, I could not find anything relevant in the knowledge base. Try another question."
	failureReply   = "Sorry, something went wrong while answering. Please try again later."
)

type Chat struct {
	retriever Retriever
	model     Model
	log       *slog.Logger
}

func New(retriever Retriever, model Model, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{retriever: retriever, model: model, log: logger}
}

// Answer retrieves context for the question and asks the model. It never
// returns an error: retrieval and generation failures degrade to fixed
// replies, matching the best-effort contract of the read path.
func (c *Chat) Answer(question string) string {
	results := c.retriever.Search(question, contextResults)
	if len(results) == 0 {
		return noContextReply
	}
	reply, err := c.model.Complete(BuildPrompt(question, results))
	if err != nil {
		c.log.Error("chat completion failed", "error", err)
		return failureReply
	}
	return reply
}

// BuildPrompt assembles the grounded prompt: instructions, the retrieved
// snippets, then the question.
func BuildPrompt(question string, results []domain.SearchResult) string {
	var ctx strings.Builder
	for _, r := range results {
		ctx.WriteString(snippet(r.Content))
		ctx.WriteString("\n")
	}
	return fmt.Sprintf(`You are a cryptocurrency trading assistant. Answer using only the background information below.

Rules:
1. Stick to the definitions given in the background; do not paraphrase them away.
2. Do not invent or speculate about anything the background does not mention.
3. If an earlier answer of yours contradicts the background, acknowledge and correct it.
4. Keep answers consistent; never contradict yourself.

Background:
%s
Question: %s`, ctx.String(), question)
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetChars {
		return content
	}
	return string(runes[:snippetChars])
}
