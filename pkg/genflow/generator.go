package genflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowmarket/genflow/pkg/genflow/conversation"
	"github.com/flowmarket/genflow/pkg/genflow/credit"
	gferrors "github.com/flowmarket/genflow/pkg/genflow/errors"
	"github.com/flowmarket/genflow/pkg/genflow/llm"
	"github.com/flowmarket/genflow/pkg/genflow/observability"
	"github.com/flowmarket/genflow/pkg/genflow/workflow"
)

// Generator drives the workflow generation pipeline.
//
// A Generator is safe for concurrent use: each call's working message
// sequence is call-local, and the credit ledger serializes balance
// updates at the storage layer.
type Generator struct {
	client llm.Client
	store  conversation.Store
	ledger credit.Ledger
	cfg    genConfig
}

// New creates a Generator backed by the given provider client,
// conversation store, and credit ledger.
func New(client llm.Client, store conversation.Store, ledger credit.Ledger, opts ...Option) *Generator {
	cfg := defaultGenConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Generator{
		client: client,
		store:  store,
		ledger: ledger,
		cfg:    cfg,
	}
}

// Cost returns the credit amount charged per successful generation.
// The HTTP boundary's pre-check reads the cost from here so the
// pre-check and the debit can never disagree.
func (g *Generator) Cost() int {
	return g.cfg.cost
}

// Generate produces a workflow document from a user prompt.
//
// If conversationID is non-empty the prior message history is replayed
// to the model; the conversation must belong to userID or the call
// fails with ErrConversationNotFound. An empty conversationID starts a
// new conversation, created on first success.
//
// Returns a Result with Valid=false (and a nil error) when the model's
// output still violates the schema after all retries: nothing is
// persisted and no credits are charged. Hard failures return an error
// wrapping ErrGenerationFailed, except unknown conversations
// (ErrConversationNotFound) and empty prompts (ErrEmptyPrompt).
func (g *Generator) Generate(ctx context.Context, userID, prompt, conversationID string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, span := g.cfg.spans.StartGenerationSpan(ctx, userID, conversationID)
	done := observability.TimedOperation()

	result, attempts, err := g.run(ctx, userID, prompt, conversationID)

	durationMs := done()
	duration := time.Duration(durationMs * float64(time.Millisecond))

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failed"
		observability.LogGenerationError(g.cfg.logger, userID, err, attempts, durationMs)
	case !result.Valid:
		outcome = "invalid"
	default:
		observability.LogGenerationSuccess(g.cfg.logger, result.ConversationID,
			attempts, result.Workflow.NodeCount(), result.CreditsRemaining, durationMs)
	}
	g.cfg.metrics.RecordGeneration(ctx, outcome, attempts, duration)
	g.cfg.spans.EndSpanWithError(span, err)

	return result, err
}

// Regenerate re-runs generation seeded from the last user-role message
// in an existing conversation.
//
// Fails with ErrConversationNotFound for unknown or foreign
// conversations, ErrEmptyConversation when the message sequence is
// empty, and ErrNoUserMessage when no user turn exists to replay.
func (g *Generator) Regenerate(ctx context.Context, userID, conversationID string) (*Result, error) {
	conv, err := g.store.Load(ctx, conversationID, userID)
	if err != nil {
		if stderrors.Is(err, conversation.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	if len(conv.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	last, ok := conv.LastUserMessage()
	if !ok {
		return nil, ErrNoUserMessage
	}

	return g.Generate(ctx, userID, last.Content, conversationID)
}

// run executes the retry loop. It returns the number of provider
// attempts made alongside the result.
func (g *Generator) run(ctx context.Context, userID, prompt, conversationID string) (*Result, int, error) {
	var conv *conversation.Conversation
	if conversationID != "" {
		loaded, err := g.store.Load(ctx, conversationID, userID)
		if err != nil {
			if stderrors.Is(err, conversation.ErrNotFound) {
				return nil, 0, ErrConversationNotFound
			}
			return nil, 0, fmt.Errorf("load conversation: %w", err)
		}
		conv = loaded
	}

	// The working sequence is call-local; nothing is persisted until
	// the single commit on the terminal successful attempt.
	var messages []conversation.Message
	if conv != nil {
		messages = append(messages, conv.Messages...)
	}
	messages = append(messages, conversation.Message{Role: conversation.RoleUser, Content: prompt})

	observability.LogGenerationStart(g.cfg.logger, userID, len(messages)-1)

	maxAttempts := g.cfg.maxRetries + 1
	var lastErr error
	var usage llm.TokenUsage

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, attemptSpan := g.cfg.spans.StartAttemptSpan(ctx, attempt)

		raw, doc, attemptUsage, err := g.attempt(attemptCtx, messages)
		usage.Add(attemptUsage)
		if err != nil {
			g.cfg.spans.EndSpanWithError(attemptSpan, err)
			if !gferrors.IsRetryable(err) {
				return nil, attempt, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
			}
			// Transient: retry with the unchanged working sequence.
			lastErr = err
			continue
		}

		validation := workflow.Validate(doc)
		if validation.Valid {
			g.cfg.spans.EndSpanWithError(attemptSpan, nil)
			result, err := g.commit(ctx, userID, conv, messages, raw, doc)
			if err != nil {
				return nil, attempt, err
			}
			result.Attempts = attempt
			result.Usage = usage
			return result, attempt, nil
		}

		vErr := &gferrors.SchemaValidationError{Errors: validation.Errors}
		g.cfg.spans.EndSpanWithError(attemptSpan, vErr)
		g.cfg.metrics.RecordValidationFailure(ctx, len(validation.Errors))

		if attempt == maxAttempts {
			// Soft failure: the caller gets the best-effort document
			// and the violated rules. No persistence, no debit.
			result := &Result{
				Workflow:         doc,
				Valid:            false,
				Message:          "Workflow validation failed after retries",
				ValidationErrors: validation.Errors,
				Attempts:         attempt,
				Usage:            usage,
			}
			if conv != nil {
				result.ConversationID = conv.ID
			}
			observability.LogGenerationInvalid(g.cfg.logger, userID, attempt, validation.Errors)
			return result, attempt, nil
		}

		// Feed the rejected output and its mistakes back so the next
		// attempt sees them.
		messages = append(messages,
			conversation.Message{Role: conversation.RoleAssistant, Content: raw},
			conversation.Message{Role: conversation.RoleUser, Content: correctionPrompt(validation.Errors)},
		)
	}

	if lastErr == nil {
		lastErr = stderrors.New("no attempts made")
	}
	return nil, maxAttempts, fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
}

// attempt makes one provider call and parses the response into a
// document. The raw response text is returned for the message log,
// and token usage is reported even when parsing fails so the caller
// can aggregate consumption across retries.
func (g *Generator) attempt(ctx context.Context, messages []conversation.Message) (string, *workflow.Document, llm.TokenUsage, error) {
	callCtx := ctx
	if g.cfg.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.timeout)
		defer cancel()
	}

	req := llm.CompletionRequest{
		SystemPrompt: g.cfg.systemPrompt,
		Messages:     toLLMMessages(messages),
		Model:        g.cfg.model,
		MaxTokens:    g.cfg.maxTokens,
		Temperature:  g.cfg.temperature,
	}

	start := time.Now()
	resp, err := g.client.Complete(callCtx, req)
	elapsed := time.Since(start)

	g.cfg.metrics.RecordProviderCall(ctx, g.cfg.model, elapsed, err)
	observability.LogProviderCall(g.cfg.logger, g.cfg.model, len(messages)+1,
		float64(elapsed.Milliseconds()), err)

	if err != nil {
		return "", nil, llm.TokenUsage{}, err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", nil, resp.Usage, &gferrors.EmptyResponseError{}
	}

	text, err := workflow.ExtractJSON(content)
	if err != nil {
		return "", nil, resp.Usage, &gferrors.JSONParseError{Input: content, Message: err.Error()}
	}
	doc, err := workflow.Parse([]byte(text))
	if err != nil {
		return "", nil, resp.Usage, &gferrors.JSONParseError{Input: text, Message: err.Error()}
	}

	return resp.Content, doc, resp.Usage, nil
}

// commit persists the successful attempt and debits the generation
// cost, strictly in that order. The debit happens exactly once per
// call, on the terminal successful attempt only.
func (g *Generator) commit(ctx context.Context, userID string, conv *conversation.Conversation, messages []conversation.Message, raw string, doc *workflow.Document) (*Result, error) {
	messages = append(messages, conversation.Message{Role: conversation.RoleAssistant, Content: raw})

	if conv == nil {
		conv = &conversation.Conversation{UserID: userID}
	}
	conv.Messages = messages
	conv.Workflow = doc

	if err := g.store.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	remaining, err := g.ledger.Debit(ctx, userID, g.cfg.cost)
	if err != nil {
		// The conversation stays persisted; surface the debit failure.
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	observability.LogDebit(g.cfg.logger, userID, g.cfg.cost, remaining)
	g.cfg.metrics.RecordCreditsDebited(ctx, g.cfg.cost)

	return &Result{
		ConversationID:   conv.ID,
		Workflow:         doc,
		Valid:            true,
		Message:          "Workflow generated successfully",
		CreditsUsed:      g.cfg.cost,
		CreditsRemaining: remaining,
	}, nil
}

// toLLMMessages converts stored messages into provider turns.
func toLLMMessages(messages []conversation.Message) []llm.Message {
	result := make([]llm.Message, len(messages))
	for i, m := range messages {
		result[i] = llm.Message{
			Role:    llm.Role(m.Role),
			Content: m.Content,
		}
	}
	return result
}
