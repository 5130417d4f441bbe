// Package protocol holds the wire names shared by radar and the WhatsApp
// transports it talks to.
package protocol

// Presence states sent to the chat while a reply is pending.
const (
	PresenceComposing = "composing"
	PresencePaused    = "paused"
)

// Bridge frame types. Inbound and outbound text use the same type.
const (
	FrameMessage  = "message"
	FramePresence = "presence"
)

// Evolution API webhook events. Only message upserts carry user text.
const (
	EvolutionMessagesUpsert = "messages.upsert"
)

// WhatsApp JID suffixes.
const (
	GroupJIDSuffix = "@g.us"
	UserJIDSuffix  = "@s.whatsapp.net"
)
