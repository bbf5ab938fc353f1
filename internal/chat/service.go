package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"finapp-server/internal/model"
)

// Sentinel is the literal marker the system prompt tells the model to
// append after a tool has run. Its presence ends the conversation: the
// marker is stripped from the reply and the stored history is cleared so
// the next turn starts fresh.
const Sentinel = "TOOL_RAN"

// maxToolRounds caps the execute-and-recall loop for one turn so a model
// stuck on tool calls cannot spin forever.
const maxToolRounds = 8

// ErrEmptyCompletion is returned when the backend produces no usable
// text for a turn. Handlers surface it as an internal error.
var ErrEmptyCompletion = errors.New("empty completion")

// CompletionClient is the slice of the OpenAI client the orchestrator
// uses; *openai.Client satisfies it.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service drives one assistant turn: history + category snapshot in, a
// tool-calling completion loop against the backend, sentinel handling,
// and the bounded history update on the way out.
type Service struct {
	client     CompletionClient
	model      string
	cache      *HistoryCache
	categories CategorySource
	toolbox    *Toolbox
	loc        *time.Location
	locale     string
}

func NewService(client CompletionClient, modelName string, cache *HistoryCache, categories CategorySource, toolbox *Toolbox, loc *time.Location, locale string) *Service {
	return &Service{
		client:     client,
		model:      modelName,
		cache:      cache,
		categories: categories,
		toolbox:    toolbox,
		loc:        loc,
		locale:     locale,
	}
}

// Turn runs one conversation turn for the user and returns the
// assistant's reply text, sentinel stripped when present.
func (s *Service) Turn(ctx context.Context, user model.User, text string) (string, error) {
	history := s.cache.GetOrCreate(user.ID)

	categories, loaded := history.Categories()
	if !loaded {
		fresh, err := s.categories.ListByOwner(ctx, user.ID, true)
		if err != nil {
			return "", fmt.Errorf("loading categories: %w", err)
		}
		history.SetCategories(fresh)
		categories = fresh
	}

	prior := history.Messages()
	messages := make([]openai.ChatCompletionMessage, 0, len(prior)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.systemPrompt(user, categories),
	})
	for _, m := range prior {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	reply, err := s.complete(ctx, user.ID, messages)
	if err != nil {
		return "", err
	}

	if strings.Contains(reply, Sentinel) {
		reply = strings.TrimSpace(strings.ReplaceAll(reply, Sentinel, ""))
		history.ClearMessages()
		return reply, nil
	}

	history.Append(
		Message{Role: RoleUser, Content: text},
		Message{Role: RoleAssistant, Content: reply},
	)
	return reply, nil
}

// complete runs the completion loop, executing tool calls and feeding
// their results back until the model answers with text.
func (s *Service) complete(ctx context.Context, userID uint64, messages []openai.ChatCompletionMessage) (string, error) {
	tools := s.toolbox.Definitions()

	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyCompletion
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(msg.Content) == "" {
				return "", ErrEmptyCompletion
			}
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			log.Printf("chat: executing tool %s for user %d", call.Function.Name, userID)
			result := s.toolbox.Execute(ctx, userID, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
	return "", fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

// Reset clears the user's stored conversation.
func (s *Service) Reset(userID uint64) {
	s.cache.Clear(userID)
}

// HistoryFor returns the stored window for the fetch endpoint.
func (s *Service) HistoryFor(userID uint64) []Message {
	return s.cache.GetOrCreate(userID).Messages()
}

// MarkCategoriesDirty flags the user's snapshot for reload. Category
// CRUD calls this so the assistant sees changes on the next turn.
func (s *Service) MarkCategoriesDirty(userID uint64) {
	s.cache.MarkCategoriesDirty(userID)
}

func (s *Service) systemPrompt(user model.User, categories []model.Category) string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, fmt.Sprintf("(ID: %d, Label: %s, Type: %s)", c.ID, c.Label, c.Type))
	}
	now := time.Now().In(s.loc)

	return fmt.Sprintf(`You are a helpful financial assistant named Alfred, assisting the user %s (locale: %s).
Today is %s and the current year is %d. If the user does not specify a year for a financial entry, you MUST use the current year: %d.

The user has the following available categories: [%s].
You can only use categories from this list when registering financial entries and MUST use all categories applicable for an entry.

If the list of categories is empty, explain that the user must create categories before continuing.

IMPORTANT: Do NOT send JSON content directly to the user, only to TOOL INPUTS. Use MARKDOWN for responses to the user.

IMPORTANT: Before calling any tool or registering any financial entry (like an expense or income),
ALWAYS clearly summarize what will be registered, and ask the user for explicit confirmation (e.g., "Do you want to proceed?").

Only call the tool AFTER the user responds positively (e.g., "yes", "go ahead", "confirm", etc.).
If the user does not confirm or says something ambiguous, do NOT proceed.

If you detect derived entries such as taxes or extra charges, include them in the summary before asking for confirmation.
Your goal is to ensure the user always understands and approves what will be saved.

If a tool has been executed, always add this EXACT SAME string to the END of your response: "%s"`,
		user.Username, s.locale, now.Format("2006-01-02"), now.Year(), now.Year(),
		strings.Join(parts, ", "), Sentinel)
}
