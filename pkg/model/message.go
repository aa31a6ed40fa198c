package model

import (
	sn_trace "socialnet/pkg/trace"

	"github.com/ServiceWeaver/weaver"
)

// NotificationMessage is the envelope published to the notification
// exchange. Delivery is fire-and-forget; the sink records it durably.
type NotificationMessage struct {
	weaver.AutoMarshal
	RecipientID  int64               `bson:"recipient_id" json:"recipient_id"`
	RecipientUID string              `bson:"recipient_uid" json:"recipient_uid"`
	ChannelHint  string              `bson:"channel_hint" json:"channel_hint"`
	Payload      NotificationPayload `bson:"payload" json:"payload"`
	// tracing
	SpanContext sn_trace.SpanContext `bson:"-" json:"span_context"`
	// evaluation metrics
	SentAtMs int64 `bson:"sent_at_ms" json:"sent_at_ms"`
}
