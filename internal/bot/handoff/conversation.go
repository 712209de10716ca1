// Package handoff orchestrates the transfer of a conversation from the
// automated dialogue to a live human agent and back: agent selection, the
// accept/decline negotiation, bidirectional relay, timeout fallback, and
// teardown.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecordTTL bounds how long an unresolved or live conversation record
// survives; an abandoned handoff cleans itself up.
const RecordTTL = time.Hour

// ErrConversationNotFound is returned when a conversation record is missing
// or has expired.
var ErrConversationNotFound = errors.New("conversation not found")

// Conversation is the shared record describing one customer–agent handoff.
type Conversation struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Agent    string `json:"agent"`
	// Active is false while the agent's accept/decline decision is pending.
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationStore persists conversation records together with the
// per-customer and per-agent assignment indexes that enforce the single
// conversation invariant.
type ConversationStore interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	Put(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, conv *Conversation) error
	// List returns the IDs of all live records. Administrative only.
	List(ctx context.Context) ([]string, error)
	// ByAgent returns the conversation currently assigned to an agent, or
	// ErrConversationNotFound.
	ByAgent(ctx context.Context, agent string) (*Conversation, error)
	// ByCustomer returns the customer's in-flight conversation, or
	// ErrConversationNotFound.
	ByCustomer(ctx context.Context, customer string) (*Conversation, error)
}

const (
	convKeyPrefix     = "conversation:"
	agentIdxPrefix    = "handoff:agent:"
	customerIdxPrefix = "handoff:customer:"
)

// RedisConversations implements ConversationStore on Redis.  The record and
// both index keys share the same TTL and are written together.
type RedisConversations struct {
	client *redis.Client
}

// NewRedisConversations wraps an existing Redis client.
func NewRedisConversations(client *redis.Client) *RedisConversations {
	return &RedisConversations{client: client}
}

func (s *RedisConversations) Get(ctx context.Context, id string) (*Conversation, error) {
	raw, err := s.client.Get(ctx, convKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation get %s: %w", id, err)
	}
	var conv Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return nil, fmt.Errorf("conversation decode %s: %w", id, err)
	}
	return &conv, nil
}

func (s *RedisConversations) Put(ctx context.Context, conv *Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("conversation marshal %s: %w", conv.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, convKeyPrefix+conv.ID, raw, RecordTTL)
	pipe.Set(ctx, agentIdxPrefix+conv.Agent, conv.ID, RecordTTL)
	pipe.Set(ctx, customerIdxPrefix+conv.Customer, conv.ID, RecordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conversation put %s: %w", conv.ID, err)
	}
	return nil
}

func (s *RedisConversations) Delete(ctx context.Context, conv *Conversation) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, convKeyPrefix+conv.ID)
	pipe.Del(ctx, agentIdxPrefix+conv.Agent)
	pipe.Del(ctx, customerIdxPrefix+conv.Customer)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conversation delete %s: %w", conv.ID, err)
	}
	return nil
}

func (s *RedisConversations) List(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.client.Scan(ctx, 0, convKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(convKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("conversation list: %w", err)
	}
	return out, nil
}

func (s *RedisConversations) ByAgent(ctx context.Context, agent string) (*Conversation, error) {
	return s.byIndex(ctx, agentIdxPrefix+agent)
}

func (s *RedisConversations) ByCustomer(ctx context.Context, customer string) (*Conversation, error) {
	return s.byIndex(ctx, customerIdxPrefix+customer)
}

func (s *RedisConversations) byIndex(ctx context.Context, key string) (*Conversation, error) {
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation index %s: %w", key, err)
	}
	return s.Get(ctx, id)
}

// MemoryConversations is the in-process ConversationStore used by tests.
type MemoryConversations struct {
	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewMemoryConversations creates an empty in-memory store.
func NewMemoryConversations() *MemoryConversations {
	return &MemoryConversations{convs: make(map[string]*Conversation)}
}

func (s *MemoryConversations) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := *conv
	return &copied, nil
}

func (s *MemoryConversations) Put(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *conv
	s.convs[conv.ID] = &copied
	return nil
}

func (s *MemoryConversations) Delete(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, conv.ID)
	return nil
}

func (s *MemoryConversations) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryConversations) ByAgent(_ context.Context, agent string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.Agent == agent {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, ErrConversationNotFound
}

func (s *MemoryConversations) ByCustomer(_ context.Context, customer string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.Customer == customer {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, ErrConversationNotFound
}
