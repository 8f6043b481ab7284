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

package transport

import (
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateKBStatusCodes(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)

	status, body := call(t, ts, http.MethodPost, "/tools/create_kb", map[string]any{
		"kb_name":     "permits",
		"description": "Permit and licence regulations",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "permits", body["kb_name"])

	// Same name again is a service-level failure, not a dispatch error:
	// the result body survives with a 400.
	status, body = call(t, ts, http.MethodPost, "/tools/create_kb", map[string]any{
		"kb_name":     "permits",
		"description": "Permit and licence regulations",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "already exists")
}

func TestDocumentLifecycle(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")
	seedDocument(t, ts, "permits", "rules.txt", "Permit renewal requires form B-2.")

	status, body := call(t, ts, http.MethodGet, "/tools/kb/permits/documents", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
	docs, ok := body["documents"].([]any)
	require.True(t, ok, "documents: %v", body["documents"])
	require.Len(t, docs, 1)
	assert.Equal(t, "rules.txt", docs[0].(map[string]any)["filename"])

	status, body = call(t, ts, http.MethodGet, "/tools/kb/permits/documents/rules.txt?include_chunks=true", nil)
	require.Equal(t, http.StatusOK, status)
	doc, ok := body["document"].(map[string]any)
	require.True(t, ok, "document: %v", body)
	assert.Equal(t, "rules.txt", doc["filename"])
	chunks, ok := body["chunks"].([]any)
	require.True(t, ok, "chunks: %v", body)
	assert.NotEmpty(t, chunks)

	status, body = call(t, ts, http.MethodPut, "/tools/kb/permits/documents/rules.txt", map[string]any{
		"file_content": base64.StdEncoding.EncodeToString([]byte("Permit renewal now requires form C-9.")),
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "updated")

	status, body = call(t, ts, http.MethodDelete, "/tools/kb/permits/documents/rules.txt", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["message"], "deleted")

	// Gone now, so a second delete fails.
	status, body = call(t, ts, http.MethodDelete, "/tools/kb/permits/documents/rules.txt", nil)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "not found")

	status, _ = call(t, ts, http.MethodDelete, "/tools/kb/permits", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, ts, http.MethodGet, "/tools/list_kbs", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
}

func TestListDocumentsPaginationQuery(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		seedDocument(t, ts, "permits", name, "Permit notes for "+name)
	}

	status, body := call(t, ts, http.MethodGet, "/tools/kb/permits/documents?limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["limit"])
	assert.EqualValues(t, 2, body["offset"])
	docs, ok := body["documents"].([]any)
	require.True(t, ok)
	assert.Len(t, docs, 1)
}

func TestSearchRequiresKBName(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")
	seedDocument(t, ts, "permits", "rules.txt", "Permit renewal requires form B-2.")

	status, body := call(t, ts, http.MethodPost, "/tools/search", map[string]any{
		"query": "permit renewal",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "auto_routing_chat")

	status, body = call(t, ts, http.MethodPost, "/tools/search", map[string]any{
		"query":   "permit renewal",
		"kb_name": "permits",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	results, ok := body["results"].([]any)
	require.True(t, ok, "results: %v", body)
	require.NotEmpty(t, results)
	hit := results[0].(map[string]any)
	assert.Contains(t, hit["content"], "Permit renewal")
	assert.Contains(t, body["formatted_context"], "rules.txt")
}

func TestChatAndClearHistory(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")
	seedDocument(t, ts, "permits", "rules.txt", "Permit renewal requires form B-2.")

	status, body := call(t, ts, http.MethodPost, "/tools/chat", map[string]any{
		"query":      "How do I renew a permit?",
		"kb_name":    "permits",
		"session_id": "s1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "scripted answer", body["answer"])
	assert.Equal(t, "s1", body["session_id"])

	status, body = call(t, ts, http.MethodPost, "/tools/clear_history", map[string]any{
		"session_id": "s1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	// Clearing an unknown session is reported in the body, never as an
	// HTTP error.
	status, body = call(t, ts, http.MethodPost, "/tools/clear_history", map[string]any{
		"session_id": "ghost",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
}

func TestAutoRoutingChat(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")
	seedKB(t, ts, "billing", "Invoice and billing questions")
	seedDocument(t, ts, "billing", "invoices.txt", "Invoice disputes go to the billing desk.")

	status, body := call(t, ts, http.MethodPost, "/tools/auto_routing_chat", map[string]any{
		"query": "Where do I send an invoice dispute?",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "billing", body["kb_name"])
	assert.Equal(t, true, body["auto_routed"])
	assert.NotEmpty(t, body["session_id"])
}

func TestUploadRejectsInvalidBase64(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")

	status, body := call(t, ts, http.MethodPost, "/tools/upload_document", map[string]any{
		"kb_name":      "permits",
		"filename":     "rules.txt",
		"file_content": "!!!not-base64!!!",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "base64")
	assert.EqualValues(t, http.StatusBadRequest, body["status_code"])
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)

	resp, err := ts.Client().Post(ts.URL+"/tools/search", "application/json", strings.NewReader(`{"query":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)

	status, body := call(t, ts, http.MethodGet, "/tools/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["healthy"])
	components, ok := body["components"].(map[string]any)
	require.True(t, ok, "components: %v", body)
	store, ok := components["vector_store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", store["status"])
}

func TestHealthReportsOutage(t *testing.T) {
	ts := newTestServer(t, offlineEmbedder{}, nil)

	status, body := call(t, ts, http.MethodGet, "/tools/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, false, body["healthy"])
	components, ok := body["components"].(map[string]any)
	require.True(t, ok)
	embeddings, ok := components["embeddings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", embeddings["status"])
}

func TestStatsAccumulate(t *testing.T) {
	ts := newTestServer(t, defaultEmbedder(), nil)
	seedKB(t, ts, "permits", "Permit and licence regulations")
	status, _ := call(t, ts, http.MethodPost, "/tools/create_kb", map[string]any{
		"kb_name":     "permits",
		"description": "duplicate",
	})
	require.Equal(t, http.StatusBadRequest, status)

	status, body := call(t, ts, http.MethodGet, "/tools/stats", nil)
	require.Equal(t, http.StatusOK, status)
	tools, ok := body["tools"].(map[string]any)
	require.True(t, ok, "tools: %v", body)
	created, ok := tools["create_kb"].(map[string]any)
	require.True(t, ok, "create_kb stats missing: %v", tools)
	assert.EqualValues(t, 2, created["total_calls"])
	assert.EqualValues(t, 1, created["success_count"])
	assert.EqualValues(t, 1, created["error_count"])
	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, summary["total_calls"])
}
