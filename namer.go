package otxfn

// SpanNamer turns an operation name into a span name.
type SpanNamer interface {
	Name(operation string) string
}

// DefaultNamer returns operation names unchanged, as OTel semantic
// conventions recommend.
type DefaultNamer struct{}

// Name implements SpanNamer.
func (DefaultNamer) Name(operation string) string {
	return operation
}

// FunctionNamer names invocation spans after the served function, e.g.
// "invoke orders::orders.Handler::Create".
type FunctionNamer struct {
	// Function is the handler reference being served.
	Function string
}

// Name implements SpanNamer.
func (n FunctionNamer) Name(operation string) string {
	if n.Function == "" {
		return operation
	}

	return operation + " " + n.Function
}

// NameHTTP returns "METHOD /route".
func NameHTTP(method, route string) string {
	return method + " " + route
}

// NameRPC returns "Service/Method".
func NameRPC(service, method string) string {
	return service + "/" + method
}

// NameMessaging returns "verb destination", e.g. "process orders.create".
func NameMessaging(verb, destination string) string {
	return verb + " " + destination
}
