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

// Package kb enforces the naming and descriptor discipline for knowledge
// base collections. Every KB lives in a collection named kb_<name> and
// carries exactly one descriptor point; the descriptor travels with the
// collection, so deleting a KB needs no second bookkeeping store.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/vector"
)

const (
	// Prefix marks collections managed by this service.
	Prefix = "kb_"
	// MasterIndex is the reserved routing collection. It is not
	// prefixed: it never appears in KB listings.
	MasterIndex = "master_index"
)

// Payload discriminator. Every point carries FieldType; searches that
// must exclude descriptors filter on TypeDocument.
const (
	FieldType              = "_type"
	TypeDocument           = "document"
	TypeCollectionMetadata = "collection_metadata"
	TypeKBIndex            = "kb_index"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks a user-supplied KB name.
func ValidateName(name string) error {
	if name == "" {
		return errs.Ef(errs.InvalidArgument, "kb.validate", "kb_name must not be empty")
	}
	if !namePattern.MatchString(name) {
		return errs.Ef(errs.InvalidArgument, "kb.validate",
			"kb_name %q is invalid: only letters, digits, underscore and hyphen are allowed", name)
	}
	return nil
}

// CollectionName maps a KB name to its collection name.
func CollectionName(kbName string) string {
	return Prefix + kbName
}

// KBName recovers the KB name from a collection name. The second return
// is false for collections outside the managed prefix.
func KBName(collection string) (string, bool) {
	if len(collection) <= len(Prefix) || collection[:len(Prefix)] != Prefix {
		return "", false
	}
	return collection[len(Prefix):], true
}

// Info describes one knowledge base: descriptor fields merged with the
// live point count.
type Info struct {
	Name          string `json:"kb_name"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	DocumentCount int    `json:"document_count"`
	PointCount    uint64 `json:"point_count"`
}

// Manager wraps a vector store with KB naming and descriptor upkeep.
type Manager struct {
	store vector.Store
}

func NewManager(store vector.Store) *Manager {
	return &Manager{store: store}
}

// Exists reports whether the KB's collection is present.
func (m *Manager) Exists(ctx context.Context, kbName string) (bool, error) {
	if err := ValidateName(kbName); err != nil {
		return false, err
	}
	return m.store.CollectionExists(ctx, CollectionName(kbName))
}

// CreateCollection creates kb_<name> with the hybrid vector layout and
// seeds the descriptor point. The dense dimension is fixed here for the
// collection's lifetime.
func (m *Manager) CreateCollection(ctx context.Context, kbName, description string, denseDim int) error {
	if err := ValidateName(kbName); err != nil {
		return err
	}
	if denseDim <= 0 {
		return errs.Ef(errs.InvalidArgument, "kb.create", "dense dimension must be positive, got %d", denseDim)
	}

	collection := CollectionName(kbName)
	exists, err := m.store.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return errs.Ef(errs.AlreadyExists, "kb.create", "knowledge base '%s' already exists", kbName)
	}

	if err := m.store.EnsureCollection(ctx, collection, denseDim); err != nil {
		return err
	}

	// The descriptor occupies the dense slot with a zero vector so it
	// never ranks in similarity searches.
	descriptor := vector.Point{
		ID:    uuid.NewString(),
		Dense: make([]float32, denseDim),
		Payload: map[string]any{
			FieldType:        TypeCollectionMetadata,
			"kb_name":        kbName,
			"description":    description,
			"created_at":     time.Now().UTC().Format(time.RFC3339),
			"document_count": 0,
		},
	}
	if err := m.store.Upsert(ctx, collection, []vector.Point{descriptor}); err != nil {
		return fmt.Errorf("failed to store descriptor for %s: %w", kbName, err)
	}

	slog.Info("created knowledge base", "kb", kbName, "dimension", denseDim)
	return nil
}

// Info returns descriptor fields merged with the collection point count.
func (m *Manager) Info(ctx context.Context, kbName string) (*Info, error) {
	if err := ValidateName(kbName); err != nil {
		return nil, err
	}

	collection := CollectionName(kbName)
	exists, err := m.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.Ef(errs.NotFound, "kb.info", "knowledge base '%s' not found", kbName)
	}

	count, err := m.store.CollectionPointCount(ctx, collection)
	if err != nil {
		return nil, err
	}

	info := &Info{Name: kbName, PointCount: count}
	records, err := m.store.Scroll(ctx, collection,
		vector.Filter{FieldType: TypeCollectionMetadata}, 1)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		payload := records[0].Payload
		info.Description = vector.PayloadString(payload, "description")
		info.CreatedAt = vector.PayloadString(payload, "created_at")
		info.DocumentCount = vector.PayloadInt(payload, "document_count")
	}
	return info, nil
}

// DeleteCollection removes the KB and everything in it, descriptor
// included.
func (m *Manager) DeleteCollection(ctx context.Context, kbName string) error {
	if err := ValidateName(kbName); err != nil {
		return err
	}

	collection := CollectionName(kbName)
	exists, err := m.store.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return errs.Ef(errs.NotFound, "kb.delete", "knowledge base '%s' not found", kbName)
	}

	if err := m.store.DeleteCollection(ctx, collection); err != nil {
		return err
	}
	slog.Info("deleted knowledge base", "kb", kbName)
	return nil
}

// ListCollections enumerates managed KBs, each enriched with its
// descriptor. Collections outside the kb_ prefix (the master index
// among them) are skipped.
func (m *Manager) ListCollections(ctx context.Context) ([]Info, error) {
	names, err := m.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(names))
	for _, collection := range names {
		kbName, ok := KBName(collection)
		if !ok {
			continue
		}
		info, err := m.Info(ctx, kbName)
		if err != nil {
			slog.Warn("skipping unreadable knowledge base", "collection", collection, "error", err)
			continue
		}
		infos = append(infos, *info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
