package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

// Querier runs read-only SQL.
type Querier interface {
	Query(ctx context.Context, query string, maxRows int) (*store.Result, error)
}

// Pipeline is question to SQL to rows to grounded answer. Multistep is nil
// when the model client cannot call tools.
type Pipeline struct {
	Generator *SQLGenerator
	DB        Querier
	Assistant *Assistant
	Multistep *Orchestrator
}

func NewPipeline(c llm.Completer, s *store.Store) *Pipeline {
	p := &Pipeline{
		Generator: &SQLGenerator{LLM: c, Driver: s.Driver()},
		DB:        s,
		Assistant: &Assistant{LLM: c, Texts: s},
	}
	if tc, err := llm.ToolsOf(c); err == nil {
		p.Multistep = NewOrchestrator(tc, c, s)
	} else {
		slog.Info("multistep answering disabled", "reason", err)
	}
	return p
}

type AskResult struct {
	SQL     string        `json:"sql"`
	Results *store.Result `json:"results"`
	Answer
}

// Ask answers question. A generated statement that is not read-only is
// returned wrapped in store.ErrQueryNotAllowed with the SQL still set.
func (p *Pipeline) Ask(ctx context.Context, question string) (AskResult, error) {
	var out AskResult

	sql, err := p.Generator.GenerateSQL(ctx, question)
	if err != nil {
		return out, err
	}
	out.SQL = sql

	res, err := p.DB.Query(ctx, sql, store.MaxRows)
	if err != nil {
		return out, fmt.Errorf("failed to execute generated sql: %w", err)
	}
	out.Results = res

	ans, err := p.Assistant.Answer(ctx, res, question, sql)
	if err != nil {
		return out, err
	}
	out.Answer = ans
	return out, nil
}
