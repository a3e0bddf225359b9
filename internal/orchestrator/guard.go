package orchestrator

import (
	"strings"

	"github.com/replygate/replygate/internal/bus"
)

// Guard rejection reasons, in evaluation order.
const (
	RejectDisabled = "disabled"
	RejectGroup    = "group_chat"
	RejectSelf     = "self_sent"
	RejectIgnored  = "ignored_partner"
	RejectEmpty    = "empty_content"
)

// rejectReason evaluates the guard clauses for one inbound event.
// Returns "" when the event is admitted. Pure function of its inputs;
// rejections are routine outcomes, never errors.
//
// The self-sent check runs even when the bridge claims to filter the
// account's own traffic upstream.
func rejectReason(ev bus.InboundEvent, opts Options) string {
	if !opts.Enabled {
		return RejectDisabled
	}
	if ev.ChatKind == bus.ChatGroup {
		return RejectGroup
	}
	if ev.SelfSent {
		return RejectSelf
	}
	if _, ignored := opts.Ignore[ev.PartnerID]; ignored {
		return RejectIgnored
	}
	if strings.TrimSpace(ev.Content) == "" {
		return RejectEmpty
	}
	return ""
}
