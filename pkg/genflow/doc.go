/*
Package genflow generates n8n-style automation workflows from natural
language prompts.

# Overview

genflow is the AI generation core of a workflow-template marketplace.
Given a user prompt (and optionally an existing conversation), it drives
a bounded retry loop against a chat-completion provider, validates the
model's JSON output against the workflow schema, and on success persists
the conversation and debits the user's credit balance.

The pipeline per call:

 1. Load the prior message history if a conversation id was supplied
 2. Append the new user turn to the working sequence
 3. Call the provider with a fixed system prompt plus the full sequence
 4. Extract the first balanced JSON object from the response and parse it
 5. Validate the document against the workflow schema
 6. On violations, feed the validator's error list back to the model as
    a corrective user turn and retry; on transient provider failures,
    retry with the unchanged sequence
 7. On success, persist the conversation and workflow, then debit the
    generation cost, strictly in that order and exactly once per call

A generation that exhausts its retries on invalid output is a soft
failure: the caller receives the model's best-effort document and the
violated rules, and no credits are charged. Credits are debited if and
only if a valid document was persisted.

# Basic Usage

	store := conversation.NewMemoryStore()
	ledger := credit.NewMemoryLedger()
	client := llm.NewAzureClient(endpoint, apiKey, "gpt-4o")

	gen := genflow.New(client, store, ledger)

	result, err := gen.Generate(ctx, userID, "Sync new Stripe payments to a Google Sheet", "")
	if err != nil {
	    log.Fatal(err)
	}
	if !result.Valid {
	    // best-effort document, no charge
	    fmt.Println(result.ValidationErrors)
	}

Concurrent calls are independent: the working message sequence is
call-local, and the only shared mutable state is the credit balance,
which the ledger serializes with an atomic conditional decrement.
Concurrent generations against the same conversation are not
coordinated; the last save wins.
*/
package genflow
