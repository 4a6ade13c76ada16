package rag

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/provider"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

// Retriever is the read side of the document store.
type Retriever interface {
	Query(ctx context.Context, text string, topN int) ([]store.Result, error)
}

// Strategy derives the persisted user turn and the dispatch sequence for one
// chat turn. It reads top_n from the session on every call.
type Strategy struct {
	retriever Retriever
	session   *config.Session
	assembler Assembler
}

func NewStrategy(r Retriever, session *config.Session, a Assembler) *Strategy {
	if a == nil {
		a = InlineAssembler{}
	}
	return &Strategy{retriever: r, session: session, assembler: a}
}

// UserTurn returns the turn stored in history. It never carries retrieved content.
func (s *Strategy) UserTurn(input string, history []provider.Message) provider.Message {
	return provider.Message{Role: provider.RoleUser, Content: input}
}

// ChatTurns issues exactly one store query and assembles the dispatch
// sequence. The retrieved documents are returned for display.
func (s *Strategy) ChatTurns(ctx context.Context, input string, history []provider.Message) ([]provider.Message, []store.Result, error) {
	retrieved, err := s.retriever.Query(ctx, input, s.session.TopN)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve documents: %w", err)
	}
	return s.assembler.Assemble(input, history, retrieved), retrieved, nil
}
