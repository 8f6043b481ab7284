// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/llm"
	"github.com/ragforge/mcprag/pkg/utils"
)

const rewritePromptFormat = `Given the conversation history, rewrite the query to be standalone:

History:
%s

Query: %s

Rewritten query:`

// TokenUsage is the cost of one exchange.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Response is one completed chat exchange.
type Response struct {
	Answer      string     `json:"answer"`
	Model       string     `json:"model"`
	ContextUsed []string   `json:"context_used"`
	SessionID   string     `json:"session_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Tokens      TokenUsage `json:"tokens"`
}

// Engine answers queries with retrieved context and conversation
// memory.
type Engine struct {
	provider llm.Provider
	cfg      *config.ChatConfig
	sessions *Sessions
}

func NewEngine(provider llm.Provider, cfg *config.ChatConfig) *Engine {
	return &Engine{provider: provider, cfg: cfg, sessions: NewSessions()}
}

// Chat builds a prompt from history, context, and the query, invokes
// the LLM, and records the exchange in the session.
//
// With a session id, history comes from the session and the caller's
// history argument is ignored; the session lock is held across the
// LLM call so concurrent chats on one session serialize. Without a
// session id the exchange is stateless. On LLM failure no turns are
// recorded and the error propagates.
func (e *Engine) Chat(ctx context.Context, query string, contextTexts []string, history []Turn, sessionID, template string) (*Response, error) {
	var sess *session
	if sessionID != "" {
		sess = e.sessions.get(sessionID)
		sess.mu.Lock()
		defer sess.mu.Unlock()
		history = sess.turns
	}

	prompt := e.buildPrompt(query, contextTexts, history, template)

	resp, err := e.provider.Generate(ctx, llm.Request{
		System: e.cfg.SystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}

	now := time.Now().UTC()
	if sess != nil {
		sess.turns = append(sess.turns,
			Turn{Role: RoleUser, Content: query, Timestamp: now},
			Turn{Role: RoleAssistant, Content: resp.Text, Timestamp: now},
		)
		sess.turns = trimTurns(sess.turns, e.cfg.MemoryTokenLimit)
		slog.Debug("session updated",
			"session", sessionID, "turns", len(sess.turns))
	}

	tokens := TokenUsage{
		Input:  resp.Usage.InputTokens,
		Output: resp.Usage.OutputTokens,
		Total:  resp.Usage.TotalTokens,
	}
	// Some providers omit usage; fall back to the length estimate so
	// callers always see a cost.
	if tokens.Total == 0 {
		tokens.Input = utils.EstimateTokens(prompt)
		tokens.Output = utils.EstimateTokens(resp.Text)
		tokens.Total = tokens.Input + tokens.Output
	}

	slog.Info("generated answer",
		"chars", len(resp.Text), "model", resp.Model, "tokens", tokens.Total)

	if contextTexts == nil {
		contextTexts = []string{}
	}
	return &Response{
		Answer:      resp.Text,
		Model:       resp.Model,
		ContextUsed: contextTexts,
		SessionID:   sessionID,
		Timestamp:   now,
		Tokens:      tokens,
	}, nil
}

// RewriteQuery resolves pronouns and references against recent
// history so the query stands alone for retrieval. Failures and
// trivial rewrites fall back to the original query.
func (e *Engine) RewriteQuery(ctx context.Context, query string, history []Turn) string {
	if len(history) == 0 {
		return query
	}
	if len(history) > 5 {
		history = history[len(history)-5:]
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, turn.Role+": "+turn.Content)
	}
	prompt := fmt.Sprintf(rewritePromptFormat, strings.Join(lines, "\n"), query)

	resp, err := e.provider.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: 100})
	if err != nil {
		slog.Warn("query rewrite failed", "error", err)
		return query
	}

	rewritten := strings.TrimSpace(resp.Text)
	if utf8.RuneCountInString(rewritten) <= 5 {
		return query
	}
	slog.Info("rewrote query", "from", clip(query, 50), "to", clip(rewritten, 50))
	return rewritten
}

// History returns a copy of a session's turns.
func (e *Engine) History(sessionID string) []Turn {
	return e.sessions.History(sessionID)
}

// ClearHistory forgets a session and reports whether it existed.
func (e *Engine) ClearHistory(sessionID string) bool {
	return e.sessions.Clear(sessionID)
}

// ListSessions returns active session ids.
func (e *Engine) ListSessions() []string {
	return e.sessions.List()
}

// buildPrompt concatenates the recent history window, the context
// block, and the question. The system prompt travels separately in
// the request's system slot.
func (e *Engine) buildPrompt(query string, contextTexts []string, history []Turn, template string) string {
	var parts []string

	window := e.cfg.HistoryWindow
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	for _, turn := range history {
		if turn.Role == RoleUser {
			parts = append(parts, "User: "+turn.Content)
		} else {
			parts = append(parts, "Assistant: "+turn.Content)
		}
	}

	if len(contextTexts) > 0 {
		contextText := strings.Join(contextTexts, "\n\n")
		if template != "" {
			qa := strings.ReplaceAll(template, "{context}", contextText)
			qa = strings.ReplaceAll(qa, "{query}", query)
			parts = append(parts, qa)
		} else {
			parts = append(parts, "Context:\n"+contextText)
			parts = append(parts, "Question: "+query+"\n\nAnswer:")
		}
	} else {
		parts = append(parts, "Question: "+query+"\n\nAnswer:")
	}

	return strings.Join(parts, "\n\n")
}

// trimTurns drops oldest turns while the 4-chars-per-token estimate
// of the history exceeds the limit, never below two turns so the
// latest exchange survives.
func trimTurns(turns []Turn, limit int) []Turn {
	for len(turns) > 2 && historyChars(turns) > limit*4 {
		turns = turns[1:]
	}
	return turns
}

func historyChars(turns []Turn) int {
	chars := 0
	for _, turn := range turns {
		chars += len(turn.Content)
	}
	return chars
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
