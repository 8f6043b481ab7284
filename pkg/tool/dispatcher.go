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

package tool

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/service"
)

// Dispatcher decodes tool arguments and routes calls into the service.
// Every call runs under a trace, including failed ones.
type Dispatcher struct {
	svc    *service.Service
	tracer *Tracer
}

// NewDispatcher wires a dispatcher to a service and a tracer. A nil
// tracer gets a silent one.
func NewDispatcher(svc *service.Service, tracer *Tracer) *Dispatcher {
	if tracer == nil {
		tracer = NewTracer(NopSink{}, nil, "")
	}
	return &Dispatcher{svc: svc, tracer: tracer}
}

// Tracer exposes the dispatcher's tracer for the stats endpoint.
func (d *Dispatcher) Tracer() *Tracer { return d.tracer }

// Dispatch runs one tool call. The result is a service result struct
// ready for JSON encoding; the error is non-nil only for unknown tools
// and malformed arguments. Service-level failures come back inside the
// result with success=false.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	tr := d.tracer.Start(name, args)
	result, err := d.call(ctx, name, args)
	tr.End(result, err)
	return result, err
}

func (d *Dispatcher) call(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case NameCreateKB:
		var a CreateKBArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		if a.Category == "" {
			a.Category = "general"
		}
		return d.svc.CreateKB(ctx, a.KBName, a.Description, a.Category), nil

	case NameDeleteKB:
		var a DeleteKBArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.DeleteKB(ctx, a.KBName), nil

	case NameListKBs:
		return d.svc.ListKBs(ctx), nil

	case NameUploadDocument:
		var a UploadDocumentArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		content, err := decodeFileContent(name, a.FileContent)
		if err != nil {
			return nil, err
		}
		return d.svc.UploadDocument(ctx, service.UploadRequest{
			KBName:   a.KBName,
			Filename: a.Filename,
			Content:  content,
		}), nil

	case NameListDocuments:
		var a ListDocumentsArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.ListDocuments(ctx, a.KBName, a.Limit, a.Offset), nil

	case NameGetDocument:
		var a GetDocumentArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.GetDocument(ctx, a.KBName, a.Filename, a.IncludeChunks), nil

	case NameDeleteDocument:
		var a DeleteDocumentArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.DeleteDocument(ctx, a.KBName, a.Filename), nil

	case NameUpdateDocument:
		var a UpdateDocumentArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		content, err := decodeFileContent(name, a.FileContent)
		if err != nil {
			return nil, err
		}
		return d.svc.UpdateDocument(ctx, service.UploadRequest{
			KBName:   a.KBName,
			Filename: a.Filename,
			Content:  content,
		}), nil

	case NameSearch:
		var a SearchArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.Search(ctx, service.SearchRequest{
			Query:           a.Query,
			KBName:          a.KBName,
			TopK:            a.TopK,
			UseReranking:    config.BoolValue(a.UseReranking, true),
			IncludeMetadata: config.BoolValue(a.IncludeMetadata, true),
			Deduplicate:     config.BoolValue(a.Deduplicate, true),
		}), nil

	case NameChat:
		var a ChatArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.Chat(ctx, service.ChatRequest{
			Query:        a.Query,
			KBName:       a.KBName,
			SessionID:    a.SessionID,
			TopK:         a.TopK,
			UseRouting:   a.KBName == "",
			UseReranking: true,
		}), nil

	case NameAutoRoutingChat:
		var a AutoRoutingChatArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		sessionID := a.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		res := d.svc.Chat(ctx, service.ChatRequest{
			Query:        a.Query,
			SessionID:    sessionID,
			TopK:         a.TopK,
			UseRouting:   true,
			UseReranking: true,
		})
		res.AutoRouted = true
		res.SessionID = sessionID
		return res, nil

	case NameClearHistory:
		var a ClearHistoryArgs
		if err := decodeArgs(name, args, &a); err != nil {
			return nil, err
		}
		return d.svc.ClearChatHistory(a.SessionID), nil

	case NameHealth:
		return d.svc.HealthCheck(ctx), nil

	default:
		return nil, errs.Ef(errs.NotFound, "tool.dispatch", "Unknown tool: %s", name)
	}
}

// decodeArgs maps a loosely typed argument map onto a typed argument
// struct. WeaklyTypedInput forgives the usual JSON sloppiness, like
// numbers arriving as strings.
func decodeArgs(name string, args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errs.E(errs.Internal, "tool."+name, "failed to build argument decoder", err)
	}
	if err := decoder.Decode(args); err != nil {
		return errs.E(errs.InvalidArgument, "tool."+name, "invalid arguments", err)
	}
	return nil
}

func decodeFileContent(name, encoded string) ([]byte, error) {
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errs.E(errs.InvalidArgument, "tool."+name, "file_content is not valid base64", err)
	}
	return content, nil
}
