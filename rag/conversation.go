package rag

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carlohamalainen/un-ga-documents-go/llm"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

const (
	RAGSimple    = "simple"
	RAGMultistep = "multistep"

	DefaultConversationMaxAge = 24 * time.Hour
)

var (
	ErrUnknownRAGType       = errors.New("rag type must be simple or multistep")
	ErrNotMultistep         = errors.New("conversation is not multistep")
	ErrConversationNotFound = errors.New("conversation not found")
)

// SimpleTurn is one question and answer in a conversation.
type SimpleTurn struct {
	TurnNumber int            `json:"turn_number"`
	Timestamp  time.Time      `json:"timestamp"`
	Question   string         `json:"question"`
	SQL        string         `json:"sql_query,omitempty"`
	Results    *store.Result  `json:"query_results,omitempty"`
	Answer     string         `json:"answer"`
	Evidence   []EvidenceItem `json:"evidence"`
	Sources    []string       `json:"sources"`
}

type Conversation struct {
	ID           string    `json:"conversation_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	RAGType      string    `json:"rag_type"`

	SimpleTurns []SimpleTurn `json:"simple_turns"`

	// MultistepInput is the tool-calling transcript carried into the next turn.
	MultistepInput      []llm.Turn       `json:"multistep_input_list,omitempty"`
	AccumulatedEvidence map[string][]any `json:"accumulated_evidence,omitempty"`

	ActiveSymbols []string `json:"active_symbols"`
	TotalTurns    int      `json:"total_turns"`

	symbols map[string]bool
}

func (c *Conversation) addSymbols(symbols []string) {
	for _, s := range symbols {
		if s != "" && !c.symbols[s] {
			c.symbols[s] = true
			c.ActiveSymbols = append(c.ActiveSymbols, s)
		}
	}
}

// snapshot copies c so callers can read it without holding the lock.
func (c *Conversation) snapshot() Conversation {
	out := *c
	out.SimpleTurns = slices.Clone(c.SimpleTurns)
	out.MultistepInput = slices.Clone(c.MultistepInput)
	out.AccumulatedEvidence = maps.Clone(c.AccumulatedEvidence)
	out.ActiveSymbols = slices.Clone(c.ActiveSymbols)
	out.symbols = nil
	return out
}

// ConversationStore keeps conversations in memory behind a single lock.
type ConversationStore struct {
	mu    sync.Mutex
	convs map[string]*Conversation
	now   func() time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		convs: map[string]*Conversation{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func newConversationID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *ConversationStore) Create(ragType string) (Conversation, error) {
	if ragType != RAGSimple && ragType != RAGMultistep {
		return Conversation{}, fmt.Errorf("%w: %q", ErrUnknownRAGType, ragType)
	}

	now := s.now()
	c := &Conversation{
		ID:           newConversationID(),
		CreatedAt:    now,
		LastAccessed: now,
		RAGType:      ragType,
		SimpleTurns:  []SimpleTurn{},
		symbols:      map[string]bool{},
	}

	s.mu.Lock()
	s.convs[c.ID] = c
	s.mu.Unlock()

	slog.Info("created conversation", "conversation_id", c.ID, "rag_type", ragType)
	return c.snapshot(), nil
}

// get returns the conversation and marks it accessed. s.mu must be held.
func (s *ConversationStore) get(id string) (*Conversation, error) {
	c, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	c.LastAccessed = s.now()
	return c, nil
}

// Get returns a copy of the conversation and updates its last access time.
func (s *ConversationStore) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(id)
	if err != nil {
		slog.Warn("conversation not found", "conversation_id", id)
		return Conversation{}, err
	}
	return c.snapshot(), nil
}

// SaveSimpleTurn appends a turn. Multistep conversations accept simple
// turns as well.
func (s *ConversationStore) SaveSimpleTurn(id string, turn SimpleTurn, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(id)
	if err != nil {
		return err
	}
	if turn.TurnNumber == 0 {
		turn.TurnNumber = c.TotalTurns + 1
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	c.SimpleTurns = append(c.SimpleTurns, turn)
	c.addSymbols(symbols)
	c.TotalTurns++

	slog.Info("saved turn", "conversation_id", id, "turn", turn.TurnNumber, "sources", len(turn.Sources), "new_symbols", len(symbols))
	return nil
}

// SaveMultistepState replaces the agent state of a multistep conversation.
func (s *ConversationStore) SaveMultistepState(id string, input []llm.Turn, evidence map[string][]any, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(id)
	if err != nil {
		return err
	}
	if c.RAGType != RAGMultistep {
		return fmt.Errorf("%w: %s is %s", ErrNotMultistep, id, c.RAGType)
	}
	c.MultistepInput = input
	c.AccumulatedEvidence = evidence
	c.addSymbols(symbols)
	c.TotalTurns++

	slog.Info("saved multistep state", "conversation_id", id, "input_length", len(input), "new_symbols", len(symbols))
	return nil
}

// Cleanup removes conversations not accessed within maxAge and returns how
// many were removed.
func (s *ConversationStore) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultConversationMaxAge
	}
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	n := 0
	for id, c := range s.convs {
		if c.LastAccessed.Before(cutoff) {
			delete(s.convs, id)
			n++
		}
	}
	s.mu.Unlock()

	if n > 0 {
		slog.Info("cleaned up conversations", "removed", n, "max_age", maxAge.String())
	} else {
		slog.Debug("no conversations to clean up", "max_age", maxAge.String())
	}
	return n
}

type ConversationStats struct {
	Total        int        `json:"total_conversations"`
	Simple       int        `json:"simple_rag_conversations"`
	Multistep    int        `json:"multistep_conversations"`
	AverageTurns float64    `json:"average_turns_per_conversation"`
	Oldest       *time.Time `json:"oldest_conversation"`
	Newest       *time.Time `json:"newest_conversation"`
}

func (s *ConversationStore) Stats() ConversationStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		st    ConversationStats
		turns int
	)
	for _, c := range s.convs {
		st.Total++
		turns += c.TotalTurns
		switch c.RAGType {
		case RAGSimple:
			st.Simple++
		case RAGMultistep:
			st.Multistep++
		}
		if st.Oldest == nil || c.CreatedAt.Before(*st.Oldest) {
			t := c.CreatedAt
			st.Oldest = &t
		}
		if st.Newest == nil || c.CreatedAt.After(*st.Newest) {
			t := c.CreatedAt
			st.Newest = &t
		}
	}
	if st.Total > 0 {
		st.AverageTurns = float64(turns) / float64(st.Total)
	}
	return st
}

// ClearAll drops every conversation and returns how many there were.
func (s *ConversationStore) ClearAll() int {
	s.mu.Lock()
	n := len(s.convs)
	clear(s.convs)
	s.mu.Unlock()

	slog.Warn("cleared all conversations", "count", n)
	return n
}
