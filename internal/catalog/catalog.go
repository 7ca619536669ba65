// Package catalog supplies the per-kind starting configuration for steps the
// user drops onto the canvas.
package catalog

import (
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/flowgraph/pkg/schema"
)

// DefaultConfig returns a fresh config map for a new step of the given kind.
// Callers may mutate the result. Unknown kinds get an empty map.
func DefaultConfig(kind schema.ActionKind) map[string]any {
	switch kind {
	case schema.ActionHTTPRequest:
		return map[string]any{"method": "GET", "url": "", "headers": map[string]any{}, "body": ""}
	case schema.ActionDatabaseQuery:
		return map[string]any{"connection": "", "query": "", "params": []any{}}
	case schema.ActionKafkaProduce:
		return map[string]any{"brokers": []any{"localhost:9092"}, "topic": "", "key": "", "value": ""}
	case schema.ActionKafkaConsume:
		return map[string]any{
			"brokers": []any{"localhost:9092"}, "topic": "", "group_id": "",
			"from_beginning": false, "count": 1, "timeout": "30s",
		}
	case schema.ActionGRPC:
		return map[string]any{
			"address": "localhost:50051", "service": "", "method": "", "request": map[string]any{},
			"metadata": map[string]any{}, "use_reflection": true, "use_tls": false,
		}
	case schema.ActionWebSocket:
		return map[string]any{"url": "", "message": "", "message_type": "text", "timeout": "10s"}
	case schema.ActionBrowser:
		return map[string]any{"url": "", "action": "navigate", "selector": ""}
	case schema.ActionLog:
		return map[string]any{"message": "", "level": "info"}
	case schema.ActionDelay:
		return map[string]any{"duration": "1s"}
	case schema.ActionAssert:
		return map[string]any{}
	case schema.ActionTransform:
		return map[string]any{"input": "", "transforms": map[string]any{}}
	case schema.ActionCondition:
		return map[string]any{"condition": ""}
	case schema.ActionForEach:
		return map[string]any{"items": "", "item_name": "item"}
	case schema.ActionParallel:
		return map[string]any{"steps": []any{}, "fail_fast": true}
	case schema.ActionWaitUntil:
		return map[string]any{"type": "http", "url": "", "condition": "", "timeout": "60s", "interval": "1s"}
	case schema.ActionRunFlow:
		return map[string]any{"flow": "", "input": map[string]any{}}
	case schema.ActionMockServerStart:
		return map[string]any{"name": "", "endpoints": []any{}}
	case schema.ActionMockServerStop:
		return map[string]any{"server_id": ""}
	case schema.ActionMockServerConfigure:
		return map[string]any{"server_id": "", "endpoints": []any{}}
	case schema.ActionContractGenerate:
		return map[string]any{"consumer": "", "provider": "", "version": "1.0.0"}
	case schema.ActionContractVerify:
		return map[string]any{"contract_id": "", "provider_base_url": "", "provider_version": ""}
	default:
		return map[string]any{}
	}
}

// NewID returns a short random step id of the form step_<8 hex>.
func NewID() string {
	return "step_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// NewStep builds a step of the given kind with a fresh id and default config.
func NewStep(kind schema.ActionKind) schema.Step {
	return schema.Step{
		ID:     NewID(),
		Action: kind,
		Config: DefaultConfig(kind),
	}
}

// NewNode builds a canvas node for a new step at pos. An empty section leaves
// the node untagged so the reverse conversion places it by position.
func NewNode(kind schema.ActionKind, section schema.SectionName, pos schema.Position) schema.Node {
	step := NewStep(kind)
	nodeKind := schema.Spec(kind).NodeKind
	width, height := schema.NodeSize(nodeKind, 0)

	return schema.Node{
		ID:       step.ID,
		Kind:     nodeKind,
		Position: pos,
		Width:    width,
		Height:   height,
		Data: schema.NodeData{
			Label:   step.DisplayName(),
			Action:  kind,
			Step:    &step,
			Section: section,
		},
	}
}
