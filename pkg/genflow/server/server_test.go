package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowmarket/genflow/pkg/genflow"
	"github.com/flowmarket/genflow/pkg/genflow/conversation"
	"github.com/flowmarket/genflow/pkg/genflow/credit"
	gferrors "github.com/flowmarket/genflow/pkg/genflow/errors"
	"github.com/flowmarket/genflow/pkg/genflow/llm"
	"github.com/flowmarket/genflow/pkg/genflow/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns a fixed completion, or an error if set.
type fakeClient struct {
	content string
	err     error
	calls   int
}

func (c *fakeClient) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: c.content}, nil
}

func validWorkflowJSON(t *testing.T, n int) string {
	t.Helper()
	nodes := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		nodes[i] = map[string]any{
			"id":       fmt.Sprintf("n%d", i),
			"name":     fmt.Sprintf("Node %d", i),
			"type":     "n8n-nodes-base.set",
			"position": []any{i * 300, 0},
		}
	}
	data, err := json.Marshal(map[string]any{"nodes": nodes, "connections": map[string]any{}})
	require.NoError(t, err)
	return string(data)
}

type testEnv struct {
	handler http.Handler
	store   *conversation.MemoryStore
	ledger  *credit.MemoryLedger
}

// newTestEnv wires the full stack behind an HTTP handler with a funded
// user and a generous rate limit.
func newTestEnv(t *testing.T, client llm.Client, opts ...server.ServerOption) *testEnv {
	t.Helper()

	store := conversation.NewMemoryStore()
	ledger := credit.NewMemoryLedger()
	t.Cleanup(func() {
		store.Close()
		ledger.Close()
	})
	_, err := ledger.Add(context.Background(), "user-1", 100)
	require.NoError(t, err)

	gen := genflow.New(client, store, ledger)
	opts = append([]server.ServerOption{server.WithRateLimit(rate.Inf, 1)}, opts...)
	srv := server.NewServer(":0", gen, store, ledger, opts...)

	return &testEnv{handler: srv.Handler(), store: store, ledger: ledger}
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(server.DefaultUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestChat_Success(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build a workflow"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["isValid"])
	assert.Equal(t, "Workflow generated successfully", body["message"])
	assert.NotEmpty(t, body["conversationId"])
	assert.Equal(t, float64(5), body["creditsUsed"])
	assert.Equal(t, float64(95), body["creditsRemaining"])
	assert.NotNil(t, body["workflow"])
}

func TestChat_RequiresUserHeader(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "",
		map[string]string{"message": "build a workflow"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChat_EmptyMessage(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Message is required", body["error"])
}

func TestChat_MessageTooLong(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	long := bytes.Repeat([]byte("x"), 2001)
	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": string(long)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Message is too long (max 2000 characters)", body["error"])
}

func TestChat_MalformedBody(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", bytes.NewBufferString("{not json"))
	req.Header.Set(server.DefaultUserHeader, "user-1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_InsufficientCredits(t *testing.T) {
	client := &fakeClient{content: validWorkflowJSON(t, 6)}
	env := newTestEnv(t, client)

	// Drain the account below the generation cost.
	_, err := env.ledger.Debit(context.Background(), "user-1", 97)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build a workflow"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Insufficient credits", body["error"])

	// The pre-check fired before any provider call.
	assert.Equal(t, 0, client.calls)
}

func TestChat_UnknownUserHasNoCredits(t *testing.T) {
	client := &fakeClient{content: validWorkflowJSON(t, 6)}
	env := newTestEnv(t, client)

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-without-account",
		map[string]string{"message": "build a workflow"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Insufficient credits", body["error"])
}

func TestChat_UnknownConversation(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it", "conversationId": "no-such-id"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Conversation not found", body["error"])
}

func TestChat_InvalidAfterRetriesIsSoft(t *testing.T) {
	// Every attempt comes back under the node minimum; the endpoint
	// still answers 200 with the validation detail.
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 2)})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, false, body["isValid"])
	assert.Equal(t, "Workflow validation failed after retries", body["message"])
	assert.Equal(t, float64(0), body["creditsUsed"])
	assert.NotEmpty(t, body["validationErrors"])
}

func TestChat_ProviderAuthFailure(t *testing.T) {
	env := newTestEnv(t, &fakeClient{
		err: &gferrors.ProviderError{StatusCode: http.StatusUnauthorized, Message: "bad key"},
	})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "AI service temporarily unavailable", body["error"])
}

func TestChat_ProviderRateLimited(t *testing.T) {
	env := newTestEnv(t, &fakeClient{
		err: &gferrors.ProviderError{StatusCode: http.StatusTooManyRequests, Message: "slow down"},
	})

	rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestChat_PerUserRateLimit(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)},
		server.WithRateLimit(rate.Every(time.Hour), 1))

	first := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it"})
	require.Equal(t, http.StatusOK, first.Code)

	second := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it again"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Other users have their own budget.
	_, err := env.ledger.Add(context.Background(), "user-2", 50)
	require.NoError(t, err)
	third := env.do(t, http.MethodPost, "/api/ai/chat", "user-2",
		map[string]string{"message": "me too"})
	assert.Equal(t, http.StatusOK, third.Code)
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
			map[string]string{"message": fmt.Sprintf("workflow %d", i)})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/ai/conversations", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string][]map[string]any](t, rec)
	assert.Len(t, body["conversations"], 2)
}

func TestListConversations_Empty(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	rec := env.do(t, http.MethodGet, "/api/ai/conversations", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string][]map[string]any](t, rec)
	assert.NotNil(t, body["conversations"])
	assert.Empty(t, body["conversations"])
}

func TestRegenerate(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	chat := env.do(t, http.MethodPost, "/api/ai/chat", "user-1",
		map[string]string{"message": "build it"})
	require.Equal(t, http.StatusOK, chat.Code)
	conversationID := decodeBody[map[string]any](t, chat)["conversationId"].(string)

	rec := env.do(t, http.MethodPost,
		"/api/ai/conversations/"+conversationID+"/regenerate", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["isValid"])
	assert.Equal(t, conversationID, body["conversationId"])
	assert.Equal(t, float64(90), body["creditsRemaining"])
}

func TestRegenerate_UnknownConversation(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	rec := env.do(t, http.MethodPost, "/api/ai/conversations/no-such-id/regenerate", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegenerate_NoUserMessage(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	conv := &conversation.Conversation{
		UserID:   "user-1",
		Messages: []conversation.Message{{Role: conversation.RoleAssistant, Content: "only me"}},
	}
	require.NoError(t, env.store.Save(context.Background(), conv))

	rec := env.do(t, http.MethodPost, "/api/ai/conversations/"+conv.ID+"/regenerate", "user-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "no user message found", body["error"])
}

func TestDeleteConversation(t *testing.T) {
	env := newTestEnv(t, &fakeClient{content: validWorkflowJSON(t, 6)})

	conv := &conversation.Conversation{UserID: "user-1"}
	require.NoError(t, env.store.Save(context.Background(), conv))

	rec := env.do(t, http.MethodDelete, "/api/ai/conversations/"+conv.ID, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.store.Load(context.Background(), conv.ID, "user-1")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestDeleteConversation_ForeignOwner(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	conv := &conversation.Conversation{UserID: "user-2"}
	require.NoError(t, env.store.Save(context.Background(), conv))

	rec := env.do(t, http.MethodDelete, "/api/ai/conversations/"+conv.ID, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}
