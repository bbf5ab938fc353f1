package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"finapp-server/internal/model"
	"finapp-server/internal/queue"
)

// Collaborators the tools reach into. Declared here so tests can swap
// fakes in; the repositories satisfy them directly.
type (
	CategorySource interface {
		ListByOwner(ctx context.Context, ownerID uint64, activeOnly bool) ([]model.Category, error)
		GetByIDs(ctx context.Context, ownerID uint64, ids []uint64) ([]model.Category, error)
	}
	EntrySink interface {
		CreateBatch(ctx context.Context, entries []model.Entry) ([]model.Entry, error)
	}
	Notifier interface {
		Notify(userID uint64, name string, data any)
	}
	EventPublisher interface {
		PublishEntriesCreated(ctx context.Context, event queue.EntriesCreatedEvent) error
	}
)

const (
	toolRegisterEntry     = "RegisterFinancialEntry"
	toolRefreshCategories = "RefreshCategories"
	toolGetToday          = "GetToday"
	toolGetCurrentYear    = "GetCurrentYear"
)

// Toolbox executes the assistant's tool calls. Errors inside a tool are
// logged and swallowed: the model-facing result never carries a failure,
// so a broken registration does not abort the chat turn.
type Toolbox struct {
	categories CategorySource
	entries    EntrySink
	notifier   Notifier
	publisher  EventPublisher // optional
	cache      *HistoryCache
	loc        *time.Location
	eventName  string
}

func NewToolbox(categories CategorySource, entries EntrySink, notifier Notifier, publisher EventPublisher, cache *HistoryCache, loc *time.Location, eventName string) *Toolbox {
	return &Toolbox{
		categories: categories,
		entries:    entries,
		notifier:   notifier,
		publisher:  publisher,
		cache:      cache,
		loc:        loc,
		eventName:  eventName,
	}
}

// Definitions lists the tool set declared to the model on every turn.
func (t *Toolbox) Definitions() []openai.Tool {
	entrySchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entries": map[string]any{
				"type":        "array",
				"description": "Financial entries to register",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value":      map[string]any{"type": "number", "description": "Numeric value of the entry"},
						"label":      map[string]any{"type": "string", "description": "Short description of the entry"},
						"date":       map[string]any{"type": "string", "description": "Date in YYYY-MM-DD format"},
						"categories": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "description": "Category ids applicable to the entry"},
					},
					"required": []string{"value", "label", "date"},
				},
			},
		},
		"required": []string{"entries"},
	}
	empty := map[string]any{"type": "object", "properties": map[string]any{}}

	return []openai.Tool{
		{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{
			Name:        toolRegisterEntry,
			Description: "Register one or more expense or income financial entries given the necessary inputs",
			Parameters:  entrySchema,
		}},
		{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{
			Name:        toolRefreshCategories,
			Description: "Re-loads the categories used for registering entries. Use it if the user created a new category during the conversation",
			Parameters:  empty,
		}},
		{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{
			Name:        toolGetToday,
			Description: "Returns the current date in the application timezone",
			Parameters:  empty,
		}},
		{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{
			Name:        toolGetCurrentYear,
			Description: "Returns the current year in the application timezone",
			Parameters:  empty,
		}},
	}
}

// Execute runs one tool call for the user and returns the string result
// handed back to the model. Unknown tools report themselves as such;
// everything else always reports success (see Toolbox doc).
func (t *Toolbox) Execute(ctx context.Context, userID uint64, name, arguments string) string {
	switch name {
	case toolGetToday:
		return time.Now().In(t.loc).Format("2006-01-02")
	case toolGetCurrentYear:
		return fmt.Sprintf("%d", time.Now().In(t.loc).Year())
	case toolRefreshCategories:
		t.refreshCategories(ctx, userID)
		return "categories reloaded"
	case toolRegisterEntry:
		t.registerEntries(ctx, userID, arguments)
		return "done"
	default:
		log.Printf("chat: model requested unknown tool %q", name)
		return "unknown tool"
	}
}

func (t *Toolbox) refreshCategories(ctx context.Context, userID uint64) {
	categories, err := t.categories.ListByOwner(ctx, userID, true)
	if err != nil {
		log.Printf("chat: refreshing categories for user %d failed: %v", userID, err)
		return
	}
	t.cache.GetOrCreate(userID).SetCategories(categories)
}

type entryArg struct {
	Value      json.Number `json:"value"`
	Label      string      `json:"label"`
	Date       string      `json:"date"`
	Categories []uint64    `json:"categories"`
}

func (t *Toolbox) registerEntries(ctx context.Context, userID uint64, arguments string) {
	var args struct {
		Entries []entryArg `json:"entries"`
	}
	if err := json.Unmarshal([]byte(arguments), &args.Entries); err != nil {
		// Object form {"entries": [...]} is what the schema declares; the
		// bare-array form shows up with some backends.
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			log.Printf("chat: bad tool arguments for user %d: %v", userID, err)
			return
		}
	}
	if len(args.Entries) == 0 {
		return
	}

	entries := make([]model.Entry, 0, len(args.Entries))
	for _, a := range args.Entries {
		date, err := time.ParseInLocation("2006-01-02", a.Date, t.loc)
		if err != nil {
			log.Printf("chat: tool sent bad date %q for user %d: %v", a.Date, userID, err)
			return
		}
		categories, err := t.categories.GetByIDs(ctx, userID, a.Categories)
		if err != nil {
			log.Printf("chat: resolving categories for user %d failed: %v", userID, err)
			return
		}
		entries = append(entries, model.Entry{
			OwnerID:    userID,
			Value:      a.Value.String(),
			Label:      a.Label,
			Date:       date,
			Categories: categories,
		})
	}

	created, err := t.entries.CreateBatch(ctx, entries)
	if err != nil {
		log.Printf("chat: creating entries for user %d failed: %v", userID, err)
		return
	}
	log.Printf("chat: assistant registered %d entries for user %d", len(created), userID)

	event := queue.EntriesCreatedEvent{
		UserID:    userID,
		Source:    "assistant",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range created {
		ids := make([]uint64, 0, len(e.Categories))
		for _, c := range e.Categories {
			ids = append(ids, c.ID)
		}
		event.Entries = append(event.Entries, queue.EntryEvent{
			EntryID:    e.ID,
			Value:      e.Value,
			Label:      e.Label,
			Date:       e.Date.Format("2006-01-02"),
			Categories: ids,
		})
	}

	// Push delivery and broker publish are both fire-and-forget; the tool
	// result does not wait on either.
	t.notifier.Notify(userID, t.eventName, event.Entries)
	if t.publisher != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = t.publisher.PublishEntriesCreated(ctx, event)
		}()
	}
}
