// Package ai implements the retrieval-augmented query collaborator: an
// attribute-filtered vector search followed by a chat completion over
// the retrieved excerpts. Every excerpt handed to the model comes back
// as a raw citation; the citation filter downstream decides what a user
// may actually see.
package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"workdocs-ai/internal/vectorindex"
)

// Citation source types as reported by the retrieval backend.
const (
	SourceFileSearch = "file_search"
	SourceWebSearch  = "web_search"
)

// RawCitation is an unverified retrieval reference. FileID carries no
// proof of ownership; callers must filter before surfacing it.
type RawCitation struct {
	Source  string `json:"source"`
	FileID  string `json:"file_id,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryInput scopes a retrieval query. SessionIndexID is the session's
// own index, searched with both owner and session attribute filters;
// PrivateIndexIDs hold the caller's shared indices, searched with the
// owner filter; PublicIndexIDs are searched unfiltered.
type QueryInput struct {
	OwnerID         uint
	SessionID       uint
	Question        string
	History         []ChatTurn
	SessionIndexID  string
	PrivateIndexIDs []string
	PublicIndexIDs  []string
}

type QueryResult struct {
	Answer    string
	Citations []RawCitation
}

// FileSearcher is the slice of the vector index the collaborator needs.
type FileSearcher interface {
	Search(ctx context.Context, indexIDs []string, query string, filters map[string]string) ([]vectorindex.SearchHit, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	TopK    int
}

type RAGClient struct {
	llm      *openai.Client
	searcher FileSearcher
	model    string
	topK     int
}

func NewRAGClient(cfg Config, searcher FileSearcher) *RAGClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &RAGClient{
		llm:      openai.NewClientWithConfig(clientCfg),
		searcher: searcher,
		model:    cfg.Model,
		topK:     topK,
	}
}

const systemPrompt = "You are an assistant for questions about the user's employment documents " +
	"and labor regulations. Answer only from the provided context passages. " +
	"If the context does not cover the question, say so instead of guessing."

func (c *RAGClient) Query(ctx context.Context, in QueryInput) (*QueryResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	hits, err := c.retrieve(ctx, in, question)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(in.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range in.History {
		role := turn.Role
		if role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildUserPrompt(question, hits),
	})

	resp, err := c.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	citations := make([]RawCitation, 0, len(hits))
	for _, hit := range hits {
		citations = append(citations, RawCitation{
			Source:  SourceFileSearch,
			FileID:  hit.FileID,
			Excerpt: hit.Excerpt,
			Title:   hit.Filename,
		})
	}

	return &QueryResult{
		Answer:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Citations: citations,
	}, nil
}

// retrieve searches the caller's private indices with owner/session
// attribute filters, then the public ones unfiltered, and keeps the
// topK best hits overall. The attribute filter is the retrieval-time
// isolation layer; the citation filter is the second.
func (c *RAGClient) retrieve(ctx context.Context, in QueryInput, question string) ([]vectorindex.SearchHit, error) {
	ownerFilter := map[string]string{"owner_id": strconv.FormatUint(uint64(in.OwnerID), 10)}

	var hits []vectorindex.SearchHit
	if in.SessionIndexID != "" {
		// Session documents carry both attributes; filtering on both
		// keeps the session index isolated even if it were ever shared.
		sessionFilter := map[string]string{
			"owner_id":   ownerFilter["owner_id"],
			"session_id": strconv.FormatUint(uint64(in.SessionID), 10),
		}
		sessionHits, err := c.searcher.Search(ctx, []string{in.SessionIndexID}, question, sessionFilter)
		if err != nil {
			return nil, fmt.Errorf("search session index failed: %w", err)
		}
		hits = append(hits, sessionHits...)
	}

	privateHits, err := c.searcher.Search(ctx, in.PrivateIndexIDs, question, ownerFilter)
	if err != nil {
		return nil, fmt.Errorf("search private indices failed: %w", err)
	}
	hits = append(hits, privateHits...)

	publicHits, err := c.searcher.Search(ctx, in.PublicIndexIDs, question, nil)
	if err != nil {
		return nil, fmt.Errorf("search public indices failed: %w", err)
	}
	hits = append(hits, publicHits...)

	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].Score > hits[i].Score {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if len(hits) > c.topK {
		hits = hits[:c.topK]
	}
	return hits, nil
}

func buildUserPrompt(question string, hits []vectorindex.SearchHit) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	if len(hits) == 0 {
		b.WriteString("(no matching passages found)\n")
	}
	for _, hit := range hits {
		b.WriteString("---\n")
		if hit.Filename != "" {
			b.WriteString(hit.Filename)
			b.WriteString(":\n")
		}
		b.WriteString(hit.Excerpt)
		b.WriteString("\n")
	}
	b.WriteString("---\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
