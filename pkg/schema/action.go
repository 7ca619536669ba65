package schema

import "strings"

// ActionKind tags a step with what it does. The set is closed.
type ActionKind string

const (
	ActionHTTPRequest         ActionKind = "http_request"
	ActionDatabaseQuery       ActionKind = "database_query"
	ActionKafkaProduce        ActionKind = "kafka.produce"
	ActionKafkaConsume        ActionKind = "kafka.consume"
	ActionGRPC                ActionKind = "grpc"
	ActionWebSocket           ActionKind = "websocket"
	ActionBrowser             ActionKind = "browser"
	ActionLog                 ActionKind = "log"
	ActionDelay               ActionKind = "delay"
	ActionAssert              ActionKind = "assert"
	ActionTransform           ActionKind = "transform"
	ActionCondition           ActionKind = "condition"
	ActionForEach             ActionKind = "for_each"
	ActionParallel            ActionKind = "parallel"
	ActionWaitUntil           ActionKind = "wait_until"
	ActionRunFlow             ActionKind = "run_flow"
	ActionMockServerStart     ActionKind = "mock_server_start"
	ActionMockServerStop      ActionKind = "mock_server_stop"
	ActionMockServerConfigure ActionKind = "mock_server_configure"
	ActionContractGenerate    ActionKind = "contract_generate"
	ActionContractVerify      ActionKind = "contract_verify"
)

// ActionKinds lists every known kind in catalogue order.
var ActionKinds = []ActionKind{
	ActionHTTPRequest, ActionDatabaseQuery, ActionKafkaProduce, ActionKafkaConsume,
	ActionGRPC, ActionWebSocket, ActionBrowser, ActionLog, ActionDelay, ActionAssert,
	ActionTransform, ActionCondition, ActionForEach, ActionParallel, ActionWaitUntil,
	ActionRunFlow, ActionMockServerStart, ActionMockServerStop, ActionMockServerConfigure,
	ActionContractGenerate, ActionContractVerify,
}

// actionAliases maps legacy spellings to their canonical kind.
var actionAliases = map[string]ActionKind{
	"wait_for":      ActionWaitUntil,
	"kafka_produce": ActionKafkaProduce,
	"kafka_consume": ActionKafkaConsume,
	"http":          ActionHTTPRequest,
}

// ParseActionKind normalizes s into a known ActionKind.
func ParseActionKind(s string) (ActionKind, bool) {
	s = strings.TrimSpace(s)
	if k, ok := actionAliases[s]; ok {
		return k, true
	}
	k := ActionKind(s)
	return k, k.Known()
}

// Known reports whether k belongs to the closed set.
func (k ActionKind) Known() bool {
	return Spec(k).Category != CategoryUnknown
}

// IsStructural reports whether steps of this kind own nested sequences.
func (k ActionKind) IsStructural() bool {
	return k == ActionCondition || k == ActionForEach
}

// ActionCategory groups kinds for display and validation.
type ActionCategory string

const (
	CategoryUnknown   ActionCategory = ""
	CategoryNetwork   ActionCategory = "network"
	CategoryData      ActionCategory = "data"
	CategoryMessaging ActionCategory = "messaging"
	CategoryUtility   ActionCategory = "utility"
	CategoryControl   ActionCategory = "control"
	CategoryMock      ActionCategory = "mock"
	CategoryContract  ActionCategory = "contract"
)

// ActionSpec describes the static shape of one action kind.
type ActionSpec struct {
	Kind     ActionKind
	Category ActionCategory
	NodeKind NodeKind
	Required []string // config keys that must be present and non-empty
}

// Spec returns the static description of k. Every kind has a case here;
// unknown kinds come back with CategoryUnknown.
func Spec(k ActionKind) ActionSpec {
	switch k {
	case ActionHTTPRequest:
		return ActionSpec{k, CategoryNetwork, NodeKindFlow, []string{"method", "url"}}
	case ActionDatabaseQuery:
		return ActionSpec{k, CategoryData, NodeKindFlow, []string{"query"}}
	case ActionKafkaProduce:
		return ActionSpec{k, CategoryMessaging, NodeKindFlow, []string{"brokers", "topic"}}
	case ActionKafkaConsume:
		return ActionSpec{k, CategoryMessaging, NodeKindFlow, []string{"brokers", "topic"}}
	case ActionGRPC:
		return ActionSpec{k, CategoryNetwork, NodeKindFlow, []string{"address", "method"}}
	case ActionWebSocket:
		return ActionSpec{k, CategoryNetwork, NodeKindFlow, []string{"url"}}
	case ActionBrowser:
		return ActionSpec{k, CategoryNetwork, NodeKindFlow, []string{"url"}}
	case ActionLog:
		return ActionSpec{k, CategoryUtility, NodeKindFlow, []string{"message"}}
	case ActionDelay:
		return ActionSpec{k, CategoryUtility, NodeKindFlow, []string{"duration"}}
	case ActionAssert:
		return ActionSpec{k, CategoryUtility, NodeKindFlow, nil}
	case ActionTransform:
		return ActionSpec{k, CategoryData, NodeKindFlow, []string{"input"}}
	case ActionCondition:
		return ActionSpec{k, CategoryControl, NodeKindCondition, []string{"condition"}}
	case ActionForEach:
		return ActionSpec{k, CategoryControl, NodeKindLoop, []string{"items"}}
	case ActionParallel:
		return ActionSpec{k, CategoryControl, NodeKindFlow, []string{"steps"}}
	case ActionWaitUntil:
		return ActionSpec{k, CategoryControl, NodeKindFlow, []string{"condition"}}
	case ActionRunFlow:
		return ActionSpec{k, CategoryControl, NodeKindFlow, []string{"flow"}}
	case ActionMockServerStart:
		return ActionSpec{k, CategoryMock, NodeKindFlow, []string{"name"}}
	case ActionMockServerStop:
		return ActionSpec{k, CategoryMock, NodeKindFlow, []string{"server_id"}}
	case ActionMockServerConfigure:
		return ActionSpec{k, CategoryMock, NodeKindFlow, []string{"server_id"}}
	case ActionContractGenerate:
		return ActionSpec{k, CategoryContract, NodeKindFlow, []string{"consumer", "provider"}}
	case ActionContractVerify:
		return ActionSpec{k, CategoryContract, NodeKindFlow, []string{"contract_id", "provider_base_url"}}
	default:
		return ActionSpec{Kind: k, Category: CategoryUnknown, NodeKind: NodeKindFlow}
	}
}
