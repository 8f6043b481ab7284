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

package service

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ragforge/mcprag/pkg/chat"
	"github.com/ragforge/mcprag/pkg/vector"
)

// sourcePreviewChars bounds the excerpt length in chat source
// attributions.
const sourcePreviewChars = 200

// ChatRequest is one retrieval-augmented question. With an empty
// KBName and UseRouting set, the router picks the target KB from the
// master index.
type ChatRequest struct {
	Query        string
	KBName       string
	SessionID    string
	TopK         int
	UseRouting   bool
	UseReranking bool
}

// ChatSource attributes part of an answer to a stored chunk.
type ChatSource struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Filename string  `json:"filename"`
	Page     int     `json:"page"`
}

// ChatResult is a generated answer with its supporting sources.
// AutoRouted is set by the dispatcher when the KB was chosen for the
// caller.
type ChatResult struct {
	Status
	Answer     string          `json:"answer"`
	KBName     string          `json:"kb_name,omitempty"`
	Sources    []ChatSource    `json:"sources"`
	SessionID  string          `json:"session_id,omitempty"`
	Model      string          `json:"model,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Tokens     chat.TokenUsage `json:"tokens"`
	AutoRouted bool            `json:"auto_routed,omitempty"`
}

// Chat answers a query with retrieved context and session memory.
// A failed retrieval is not fatal: the model still answers, just
// without context. Routing failures are fatal because the caller gave
// us no KB to fall back to.
func (s *Service) Chat(ctx context.Context, req ChatRequest) *ChatResult {
	res := &ChatResult{Sources: []ChatSource{}}

	kbName := req.KBName
	if kbName == "" {
		if !req.UseRouting {
			res.Status = failuref("kb_name is required for chat")
			return res
		}
		candidates, err := s.router.Route(ctx, req.Query, nil, 1)
		if err != nil {
			res.Status = failure(err)
			return res
		}
		if len(candidates) == 0 {
			res.Status = failuref("No knowledge base matched the query; create one or pass kb_name explicitly")
			return res
		}
		kbName = candidates[0].KBName
		slog.Info("routed query to kb",
			"kb", kbName, "score", candidates[0].Score)
	}

	search := s.Search(ctx, SearchRequest{
		Query:           req.Query,
		KBName:          kbName,
		TopK:            req.TopK,
		UseReranking:    req.UseReranking,
		IncludeMetadata: true,
		Deduplicate:     true,
	})

	var contextTexts []string
	if search.Success {
		contextTexts = make([]string, 0, len(search.Results))
		for _, hit := range search.Results {
			contextTexts = append(contextTexts, hit.Content)
		}
	} else {
		slog.Warn("chat proceeding without context",
			"kb", kbName, "reason", search.Message)
	}

	resp, err := s.chat.Chat(ctx, req.Query, contextTexts, nil, req.SessionID, "")
	if err != nil {
		res.Status = failure(err)
		return res
	}

	if search.Success {
		for _, hit := range search.Results {
			res.Sources = append(res.Sources, ChatSource{
				Text:     previewText(hit.Content, sourcePreviewChars),
				Score:    hit.Score,
				Filename: vector.PayloadString(hit.Metadata, "source_file"),
				Page:     vector.PayloadInt(hit.Metadata, "page"),
			})
		}
	}

	res.Status = Status{Success: true}
	res.Answer = resp.Answer
	res.KBName = kbName
	res.SessionID = resp.SessionID
	res.Model = resp.Model
	res.Timestamp = resp.Timestamp
	res.Tokens = resp.Tokens
	return res
}

// ClearChatHistory forgets one session. Success is only reported when
// the session actually existed.
func (s *Service) ClearChatHistory(sessionID string) *Status {
	if !s.chat.ClearHistory(sessionID) {
		st := failuref("Session not found")
		return &st
	}
	slog.Info("cleared chat history", "session", sessionID)
	st := ok("History cleared for session: %s", sessionID)
	return &st
}

func previewText(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
