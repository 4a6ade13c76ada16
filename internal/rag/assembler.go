// Package rag folds documents retrieved from the store into the turn
// sequence sent to the language model.
package rag

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

const (
	AssemblerInline   = "inline"
	AssemblerExchange = "exchange"
)

// exchangeAck is the synthetic assistant reply that closes an injected
// document exchange.
const exchangeAck = "Understood. I will use these documents when answering."

// Assembler combines history, retrieved documents and the new input into the
// dispatch sequence. Implementations must not modify their arguments.
type Assembler interface {
	Assemble(input string, history []provider.Message, retrieved []store.Result) []provider.Message
}

// NewAssembler returns the assembler registered under name.
func NewAssembler(name string) (Assembler, error) {
	switch strings.ToLower(name) {
	case "", AssemblerInline:
		return InlineAssembler{}, nil
	case AssemblerExchange:
		return ExchangeAssembler{}, nil
	default:
		return nil, fmt.Errorf("unknown assembler %q (want %s or %s)", name, AssemblerInline, AssemblerExchange)
	}
}

// InlineAssembler places the documents in the new user turn, ahead of the question.
type InlineAssembler struct{}

func (InlineAssembler) Assemble(input string, history []provider.Message, retrieved []store.Result) []provider.Message {
	turns := cloneHistory(history, 1)
	if len(retrieved) == 0 {
		return append(turns, provider.Message{Role: provider.RoleUser, Content: input})
	}

	var sb strings.Builder
	sb.WriteString("Use the following documents to answer the question.\n\n")
	writeDocuments(&sb, retrieved)
	sb.WriteString("Question: ")
	sb.WriteString(input)
	return append(turns, provider.Message{Role: provider.RoleUser, Content: sb.String()})
}

// ExchangeAssembler appends a synthetic user/assistant exchange carrying the
// documents after the history, then the unmodified user turn.
type ExchangeAssembler struct{}

func (ExchangeAssembler) Assemble(input string, history []provider.Message, retrieved []store.Result) []provider.Message {
	turns := cloneHistory(history, 3)
	if len(retrieved) > 0 {
		var sb strings.Builder
		sb.WriteString("Here are documents relevant to our conversation.\n\n")
		writeDocuments(&sb, retrieved)
		turns = append(turns,
			provider.Message{Role: provider.RoleUser, Content: strings.TrimRight(sb.String(), "\n")},
			provider.Message{Role: provider.RoleAssistant, Content: exchangeAck},
		)
	}
	return append(turns, provider.Message{Role: provider.RoleUser, Content: input})
}

func writeDocuments(sb *strings.Builder, retrieved []store.Result) {
	for _, r := range retrieved {
		fmt.Fprintf(sb, "[Document %s]\n%s\n\n", r.ID, r.Content)
	}
}

func cloneHistory(history []provider.Message, extra int) []provider.Message {
	turns := make([]provider.Message, len(history), len(history)+extra)
	copy(turns, history)
	return turns
}
