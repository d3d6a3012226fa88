// Package connection implements the narrow bidirectional adapter of spec
// §4.6: it binds exactly one DoIP Channel to exactly one Conversation and
// forwards IndicateMessage/HandleMessage calls between them. It owns no
// state of its own and makes no decisions; it exists so the channel layer
// never holds a direct reference to a conversation's concrete type.
package connection

import "github.com/anodyne74/doip-diag-client/internal/channel"

// Indicatee is the narrow upward-facing surface a Conversation exposes to
// its Connection. A Conversation implements this directly.
type Indicatee interface {
	IndicateMessage(info channel.IndicationInfo, payloadPreview []byte) channel.IndicationResult
	HandleMessage(info channel.IndicationInfo, payload []byte)
}

// Connection adapts a single Conversation so it can be installed as a DoIP
// Channel's Indicator (spec §4.6: "Connection is a trivial adapter").
type Connection struct {
	conversation Indicatee
}

// New binds connection to conversation. One Connection per Conversation,
// for the lifetime of that conversation.
func New(conversation Indicatee) *Connection {
	return &Connection{conversation: conversation}
}

// IndicateMessage forwards to the owning conversation.
func (c *Connection) IndicateMessage(info channel.IndicationInfo, payloadPreview []byte) channel.IndicationResult {
	return c.conversation.IndicateMessage(info, payloadPreview)
}

// HandleMessage forwards to the owning conversation.
func (c *Connection) HandleMessage(info channel.IndicationInfo, payload []byte) {
	c.conversation.HandleMessage(info, payload)
}
