// Package solace runs one turn of a supportive conversation.
//
// An Agent receives a user message (text or recorded speech), routes it to a
// reply branch, recalls relevant facts from long-term memory, generates the
// reply, stores new facts, summarizes the history once it grows long and
// finally appends a checkpoint to the session history. The steps form a graph
// built with package graph:
//
//	router ─(audio)─> transcribe ─> context
//	   └────(text)────────────────> context
//	context ─(kind)─> conversation | image | audio
//	conversation | image | audio ─> extract ─> [summarize] ─> persist ─> END
//
// Capabilities are split into hard and soft dependencies. Generation, speech
// recognition and image rendering are hard: when they fail the turn fails with
// a *WorkflowError and nothing is persisted. Long-term memory, speech synthesis
// and summarization are soft: failures are logged and the turn continues.
//
// Basic usage:
//
//	agent, err := solace.NewAgent(generator, checkpoint.NewMemoryStore(),
//	    solace.WithLongTermMemory(memory.NewMemoryStore(), memory.NewHashingEmbedder(0)),
//	)
//	if err != nil {
//	    return err
//	}
//	reply, err := agent.RunTurn(ctx, "session-1", solace.UserMessage{Text: "Hello"}, solace.RunConfig{})
//
// Every call returns exactly one of a *Reply or a *WorkflowError. Turns for
// the same session are queued; turns for different sessions run in parallel.
package solace
