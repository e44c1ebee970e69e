package nats

import (
	"go.opentelemetry.io/otel/attribute"
)

const messagingSystem = "nats"

// Messaging semantic convention keys.
const (
	attrMessagingSystem          = "messaging.system"
	attrMessagingOperationName   = "messaging.operation.name"
	attrMessagingOperationType   = "messaging.operation.type"
	attrMessagingDestinationName = "messaging.destination.name"
	attrMessagingConsumerGroup   = "messaging.consumer.group.name"
	attrMessagingMessageID       = "messaging.message.id"
	attrMessagingMessageBodySize = "messaging.message.body.size"
	attrNATSStream               = "nats.stream"
)

const (
	opPublish = "publish"
	opRequest = "request"
	opProcess = "process"

	opTypeSend    = "send"
	opTypeProcess = "process"
)

// sendAttributes describes an outgoing invocation: a core request or a
// JetStream publish.
func sendAttributes(operation, subject, msgID string, bodySize int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(attrMessagingSystem, messagingSystem),
		attribute.String(attrMessagingOperationName, operation),
		attribute.String(attrMessagingOperationType, opTypeSend),
		attribute.String(attrMessagingDestinationName, subject),
	}
	if msgID != "" {
		attrs = append(attrs, attribute.String(attrMessagingMessageID, msgID))
	}
	if bodySize > 0 {
		attrs = append(attrs, attribute.Int(attrMessagingMessageBodySize, bodySize))
	}

	return attrs
}

// processAttributes describes a received invocation. stream and consumer
// are empty for core NATS requests.
func processAttributes(stream, consumer, subject string, bodySize int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(attrMessagingSystem, messagingSystem),
		attribute.String(attrMessagingOperationName, opProcess),
		attribute.String(attrMessagingOperationType, opTypeProcess),
		attribute.String(attrMessagingDestinationName, subject),
	}
	if stream != "" {
		attrs = append(attrs, attribute.String(attrNATSStream, stream))
	}
	if consumer != "" {
		attrs = append(attrs, attribute.String(attrMessagingConsumerGroup, consumer))
	}
	if bodySize > 0 {
		attrs = append(attrs, attribute.Int(attrMessagingMessageBodySize, bodySize))
	}

	return attrs
}
