package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"finapp-server/internal/model"
)

// fakeClient replays a scripted sequence of completion responses and
// records the requests it received.
type fakeClient struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	if i >= len(f.responses) {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response")
	}
	return f.responses[i], nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}
}

type fakeCategories struct {
	categories []model.Category
	listCalls  int
}

func (f *fakeCategories) ListByOwner(context.Context, uint64, bool) ([]model.Category, error) {
	f.listCalls++
	return f.categories, nil
}

func (f *fakeCategories) GetByIDs(_ context.Context, _ uint64, ids []uint64) ([]model.Category, error) {
	var out []model.Category
	for _, id := range ids {
		for _, c := range f.categories {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type fakeSink struct{ batches [][]model.Entry }

func (f *fakeSink) CreateBatch(_ context.Context, entries []model.Entry) ([]model.Entry, error) {
	f.batches = append(f.batches, entries)
	for i := range entries {
		entries[i].ID = uint64(i + 1)
	}
	return entries, nil
}

type fakeNotifier struct{ events []string }

func (f *fakeNotifier) Notify(_ uint64, name string, _ any) { f.events = append(f.events, name) }

func newTestService(client CompletionClient, cats *fakeCategories) (*Service, *fakeSink, *fakeNotifier) {
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	cache := NewHistoryCache()
	toolbox := NewToolbox(cats, sink, notifier, nil, cache, time.UTC, "entries_created")
	svc := NewService(client, "test-model", cache, cats, toolbox, time.UTC, "pt-BR")
	return svc, sink, notifier
}

func testUser() model.User {
	return model.User{ID: 9, Username: "alice", Email: "alice@example.com"}
}

func TestTurn_PlainReplyStoresHistory(t *testing.T) {
	t.Parallel()
	client := &fakeClient{responses: []openai.ChatCompletionResponse{textResponse("hello there")}}
	svc, _, _ := newTestService(client, &fakeCategories{})

	reply, err := svc.Turn(context.Background(), testUser(), "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)

	msgs := svc.HistoryFor(9)
	require.Len(t, msgs, 2)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, "hi", msgs[0].Content)
	require.Equal(t, RoleAssistant, msgs[1].Role)
}

// A reply containing the clear marker comes back stripped and wipes the
// stored conversation so the next turn starts clean.
func TestTurn_MarkerStripsAndClears(t *testing.T) {
	t.Parallel()
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		textResponse("all done"),
		textResponse("Saved your entries! " + Sentinel),
	}}
	svc, _, _ := newTestService(client, &fakeCategories{})

	_, err := svc.Turn(context.Background(), testUser(), "hi")
	require.NoError(t, err)
	require.Len(t, svc.HistoryFor(9), 2)

	reply, err := svc.Turn(context.Background(), testUser(), "register 20 groceries")
	require.NoError(t, err)
	require.Equal(t, "Saved your entries!", reply)
	require.Empty(t, svc.HistoryFor(9))
}

func TestTurn_EmptyCompletionIsError(t *testing.T) {
	t.Parallel()
	client := &fakeClient{responses: []openai.ChatCompletionResponse{textResponse("   ")}}
	svc, _, _ := newTestService(client, &fakeCategories{})

	_, err := svc.Turn(context.Background(), testUser(), "hi")
	require.ErrorIs(t, err, ErrEmptyCompletion)
	require.Empty(t, svc.HistoryFor(9))
}

func TestTurn_ToolCallLoop(t *testing.T) {
	t.Parallel()
	cats := &fakeCategories{categories: []model.Category{{ID: 3, Label: "Food", Type: model.CategoryOut, Active: true}}}

	toolCall := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call-1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      toolRegisterEntry,
						Arguments: `{"entries":[{"value":"-20.00","label":"groceries","date":"2026-08-30","categories":[3]}]}`,
					},
				}},
			},
		}},
	}

	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		toolCall,
		textResponse("Registered! " + Sentinel),
	}}
	svc, sink, notifier := newTestService(client, cats)

	reply, err := svc.Turn(context.Background(), testUser(), "spent 20 on groceries yesterday")
	require.NoError(t, err)
	require.Equal(t, "Registered!", reply)

	require.Len(t, sink.batches, 1)
	require.Equal(t, "-20.00", sink.batches[0][0].Value)
	require.Equal(t, []string{"entries_created"}, notifier.events)

	// second request must carry the tool result back to the model
	require.Len(t, client.requests, 2)
	last := client.requests[1].Messages[len(client.requests[1].Messages)-1]
	require.Equal(t, openai.ChatMessageRoleTool, last.Role)
	require.Equal(t, "call-1", last.ToolCallID)
}

// Category snapshots are loaded once and reused until flagged dirty.
func TestTurn_CategoryReloadOnDirty(t *testing.T) {
	t.Parallel()
	cats := &fakeCategories{categories: []model.Category{{ID: 1, Label: "Rent", Type: model.CategoryOut}}}
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		textResponse("a"), textResponse("b"), textResponse("c"),
	}}
	svc, _, _ := newTestService(client, cats)

	_, err := svc.Turn(context.Background(), testUser(), "one")
	require.NoError(t, err)
	_, err = svc.Turn(context.Background(), testUser(), "two")
	require.NoError(t, err)
	require.Equal(t, 1, cats.listCalls)

	svc.MarkCategoriesDirty(9)
	_, err = svc.Turn(context.Background(), testUser(), "three")
	require.NoError(t, err)
	require.Equal(t, 2, cats.listCalls)
}
