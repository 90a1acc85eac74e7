package matcher

import "strings"

// NormalizeTechnology canonicalizes a raw technology_name produced by
// the Splitter into a small family of stable names the Matcher can
// group connections by. Grounded on the original implementation's
// TechnologyValidator.VALID_TECHNOLOGY_ENUMS canonical set
// (HTTP/HTTPS, WebSockets, gRPC, GraphQL, MessageQueue, Unknown),
// extended to preserve a "PROTOCOL/METHOD" suffix (e.g. "HTTP/GET")
// when the Splitter already supplied one, since the strategy layer
// keys off that finer distinction.
func NormalizeTechnology(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "Unknown"
	}

	family, method := splitFamilyMethod(trimmed)
	canon := canonicalFamily(family)
	if method == "" {
		return canon
	}
	return canon + "/" + strings.ToUpper(method)
}

func splitFamilyMethod(raw string) (family, method string) {
	if idx := strings.Index(raw, "/"); idx >= 0 {
		return raw[:idx], raw[idx+1:]
	}
	return raw, ""
}

func canonicalFamily(family string) string {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "http", "https", "http/https", "rest", "restapi":
		return "HTTP"
	case "ws", "wss", "websocket", "websockets":
		return "WebSockets"
	case "grpc":
		return "gRPC"
	case "graphql":
		return "GraphQL"
	case "amqp", "rabbitmq", "kafka", "mq", "messagequeue", "message_queue", "sqs", "sns":
		return "MessageQueue"
	case "":
		return "Unknown"
	default:
		return family
	}
}
