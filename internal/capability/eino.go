package capability

import (
	"github.com/cloudwego/eino/schema"

	"github.com/agencyrun/agency/pkg/agency"
)

// ToEinoMessages converts the kernel's plain agency.Message history into
// eino's schema.Message, the content-type contract most LLM provider SDKs
// in the ecosystem speak at their boundary (grounded on the teacher's
// Processor.convertMessage in internal/session/loop.go). A concrete LLM
// capability wraps an eino-based provider and calls this right before
// issuing the completion request; pkg/agency itself stays free of the
// eino dependency so the pure kernel never needs it (spec §4.1 Purity
// guarantees).
func ToEinoMessages(history []agency.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		out = append(out, &schema.Message{
			Role:    einoRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func einoRole(r agency.Role) schema.RoleType {
	switch r {
	case agency.RoleUser:
		return schema.User
	case agency.RoleSystem:
		return schema.System
	case agency.RoleTool:
		return schema.Tool
	default:
		return schema.Assistant
	}
}

// FromEinoMessage converts a single eino schema.Message back into the
// kernel's history shape, the inverse used when recording an LLM response
// that an eino-based provider returned as a schema.Message rather than
// plain text.
func FromEinoMessage(msg *schema.Message) agency.Message {
	if msg == nil {
		return agency.Message{}
	}
	role := agency.RoleAssistant
	switch msg.Role {
	case schema.User:
		role = agency.RoleUser
	case schema.System:
		role = agency.RoleSystem
	case schema.Tool:
		role = agency.RoleTool
	}
	return agency.Message{Role: role, Content: msg.Content}
}
