// Package advisor answers free-form finance questions with Gemini, either
// as a chat with a financial-advisor persona or as a web search grounded
// with Google Search results.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/gastosmart/internal/logger"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// DefaultModelName is used for chat when no model is configured.
	DefaultModelName = "gemini-2.5-flash"
	// SearchModelName is the model the search tool is called with.
	SearchModelName = "gemini-2.5-flash"

	systemInstruction = "Eres un asesor financiero experto y amigable. Ayudas a los usuarios a optimizar sus gastos, " +
		"entender sus finanzas y ahorrar dinero. Responde de manera concisa y útil."

	fallbackChatReply   = "Lo siento, no pude generar una respuesta."
	fallbackSearchReply = "No se encontraron resultados."
)

// ErrEmptyMessage is returned for a blank question.
var ErrEmptyMessage = errors.New("empty message")

// Role is who wrote a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of a conversation as the client keeps it.
// IsSearch marks model turns that answered a web search; they are shown to
// the user but never replayed to the chat model.
type Message struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	IsSearch bool   `json:"isSearch,omitempty"`
}

// Source is a web page a search answer is grounded on.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Reply is a plain-text answer with optional citations.
type Reply struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// Conversation is the subset of *genai.Chat the advisor uses.
type Conversation interface {
	Send(ctx context.Context, parts ...*genai.Part) (*genai.GenerateContentResponse, error)
}

// ChatFactory starts a conversation seeded with history.
type ChatFactory func(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (Conversation, error)

// ContentGenerator is the subset of *genai.Models the search uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Advisor talks to Gemini, throttled to a fixed request rate shared by
// chat and search.
type Advisor struct {
	newChat ChatFactory
	models  ContentGenerator
	model   string
	limiter *rate.Limiter
}

// New creates a genai client. requestsPerMinute <= 0 disables throttling.
func New(ctx context.Context, model string, requestsPerMinute int) (*Advisor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("New: create genai client: %w", err)
	}

	newChat := func(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (Conversation, error) {
		return client.Chats.Create(ctx, model, config, history)
	}
	return NewWithBackends(newChat, client.Models, model, requestsPerMinute), nil
}

// NewWithBackends builds an advisor over explicit backends.
func NewWithBackends(newChat ChatFactory, models ContentGenerator, model string, requestsPerMinute int) *Advisor {
	if model == "" {
		model = DefaultModelName
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Advisor{
		newChat: newChat,
		models:  models,
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Chat sends message after replaying history to a fresh advisor chat.
func (a *Advisor) Chat(ctx context.Context, history []Message, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Reply{}, fmt.Errorf("Chat: waiting for rate limit: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	}
	chat, err := a.newChat(ctx, a.model, config, chatHistory(history))
	if err != nil {
		return Reply{}, fmt.Errorf("Chat: create chat: %w", err)
	}

	resp, err := chat.Send(ctx, &genai.Part{Text: message})
	if err != nil {
		return Reply{}, fmt.Errorf("Chat: send: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		log := logger.FromContext(ctx)
		log.Warn().Msg("Advisor returned an empty answer")
		text = fallbackChatReply
	}
	return Reply{Text: text}, nil
}

// chatHistory converts client turns to genai contents, dropping search
// answers and blank turns.
func chatHistory(history []Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range history {
		if m.Role == RoleModel && m.IsSearch {
			continue
		}
		if m.Role != RoleUser && m.Role != RoleModel {
			continue
		}
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, &genai.Content{
			Role:  string(m.Role),
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	return out
}

// Search answers query with the Google Search tool and returns the pages
// the answer is grounded on.
func (a *Advisor) Search(ctx context.Context, query string) (Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, ErrEmptyMessage
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Reply{}, fmt.Errorf("Search: waiting for rate limit: %w", err)
	}

	contents := []*genai.Content{{Role: string(RoleUser), Parts: []*genai.Part{{Text: query}}}}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := a.models.GenerateContent(ctx, SearchModelName, contents, config)
	if err != nil {
		return Reply{}, fmt.Errorf("Search: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		text = fallbackSearchReply
	}
	return Reply{Text: text, Sources: sources(resp)}, nil
}

// sources collects the distinct web grounding chunks of the first candidate.
func sources(resp *genai.GenerateContentResponse) []Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var out []Source
	seen := make(map[string]bool)
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		out = append(out, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}
