package rpc

import (
	"encoding/json"

	"github.com/stepherg/drpcd/internal/activity"
	"github.com/stepherg/drpcd/internal/events"
)

// Dispatcher drives one command frame to one reply; both the stream-IPC and
// WebSocket listeners share this interface so the protocol logic lives
// exactly once.
type Dispatcher interface {
	Handle(socketID string, f *IncomingFrame) *OutgoingFrame
}

// subscribableEvents is the fixed set of event names SUBSCRIBE/UNSUBSCRIBE
// will acknowledge.
var subscribableEvents = map[string]bool{
	"GUILD_STATUS": true,
	"GUILD_CREATE": true,
	"CHANNEL_CREATE": true,
	"VOICE_CHANNEL_SELECT": true,
	"VOICE_STATE_CREATE": true,
	"VOICE_STATE_UPDATE": true,
	"VOICE_STATE_DELETE": true,
	"VOICE_SETTINGS_UPDATE": true,
	"VOICE_CONNECTION_STATUS": true,
	"SPEAKING_START": true,
	"SPEAKING_STOP": true,
	"MESSAGE_CREATE": true,
	"MESSAGE_UPDATE": true,
	"MESSAGE_DELETE": true,
	"NOTIFICATION_CREATE": true,
	"ACTIVITY_JOIN": true,
	"ACTIVITY_SPECTATE": true,
	"ACTIVITY_JOIN_REQUEST": true,
}

// CommandDispatcher is the production Dispatcher: it publishes
// ActivityUpdate events to a Bus and replies inline for everything else.
type CommandDispatcher struct {
	bus *events.Bus
}

// NewCommandDispatcher builds a dispatcher that publishes onto bus.
func NewCommandDispatcher(bus *events.Bus) *CommandDispatcher {
	return &CommandDispatcher{bus: bus}
}

func (d *CommandDispatcher) Handle(socketID string, f *IncomingFrame) *OutgoingFrame {
	switch f.Cmd {
	case CmdSetActivity:
		return d.handleSetActivity(socketID, f)
	case CmdPing:
		return dispatchFrame("PONG", struct{}{}, f.Nonce, nil)
	case CmdAuthorize:
		return handleAuthorize(f)
	case CmdAuthenticate:
		return handleAuthenticate(f)
	case CmdSubscribe, CmdUnsubscribe:
		return handleSubscription(f)
	case CmdConnectionsCallback:
		return errorFrame(CmdConnectionsCallback, f.Nonce, 1000, "Connections callback not supported")
	case CmdInviteBrowser, CmdGuildTemplateBrowser, CmdDeepLink:
		return ackFrame(f.Cmd, f.Nonce, map[string]bool{"ok": true})
	default:
		return errorFrame(f.Cmd, f.Nonce, 4000, "Unknown command")
	}
}

type activityUpdateData struct {
	Activity json.RawMessage `json:"activity"`
}

func (d *CommandDispatcher) handleSetActivity(socketID string, f *IncomingFrame) *OutgoingFrame {
	args, ok := parseArgsMap(f.Args)
	if !ok {
		return errorFrame(CmdSetActivity, f.Nonce, 4000, "missing args")
	}

	actRaw, ok := args["activity"]
	if !ok {
		return errorFrame(CmdSetActivity, f.Nonce, 4000, "missing activity")
	}

	actFields, ok := parseArgsMap(actRaw)
	if !ok {
		return errorFrame(CmdSetActivity, f.Nonce, 4000, "activity must be object")
	}

	if btnRaw, present := actFields["buttons"]; present {
		switch valid, tooMany := validateButtons(btnRaw); {
		case tooMany:
			return errorFrame(CmdSetActivity, f.Nonce, 4002, "max 2 buttons")
		case !valid:
			return errorFrame(CmdSetActivity, f.Nonce, 4000, "button requires label and url strings")
		}
	}

	var act activity.Activity
	if err := json.Unmarshal(actRaw, &act); err != nil {
		return errorFrame(CmdSetActivity, f.Nonce, 4000, "activity must be object")
	}
	normalized := activity.Normalize(act)
	normalizedJSON, err := json.Marshal(normalized)
	if err != nil {
		return errorFrame(CmdSetActivity, f.Nonce, 4000, "activity must be object")
	}

	d.bus.Publish(events.NewActivityUpdate(socketID, normalizedJSON))

	var pid *uint32
	if pidRaw, present := args["pid"]; present {
		var p uint32
		if json.Unmarshal(pidRaw, &p) == nil {
			pid = &p
		}
	}

	return dispatchFrame("ACTIVITY_UPDATE", activityUpdateData{Activity: normalizedJSON}, f.Nonce, pid)
}

func handleAuthorize(f *IncomingFrame) *OutgoingFrame {
	args, _ := parseArgsMap(f.Args)
	clientID, hasClientID := args["client_id"]
	scopes, hasScopes := args["scopes"]
	if hasClientID && isJSONString(clientID) && hasScopes && isJSONArray(scopes) {
		return errorFrame(CmdAuthorize, f.Nonce, 1000, "Authorization not supported")
	}
	return errorFrame(CmdAuthorize, f.Nonce, 4000, "Invalid payload: client_id and scopes required")
}

func handleAuthenticate(f *IncomingFrame) *OutgoingFrame {
	args, _ := parseArgsMap(f.Args)
	if token, ok := args["access_token"]; ok && isJSONString(token) {
		return errorFrame(CmdAuthenticate, f.Nonce, 1000, "Authentication not supported")
	}
	return errorFrame(CmdAuthenticate, f.Nonce, 4000, "Invalid payload: access_token required")
}

func handleSubscription(f *IncomingFrame) *OutgoingFrame {
	args, _ := parseArgsMap(f.Args)
	eventRaw, ok := args["event"]
	var name string
	if !ok || json.Unmarshal(eventRaw, &name) != nil || !subscribableEvents[name] {
		return errorFrame(f.Cmd, f.Nonce, 4000, "Invalid or unknown event")
	}
	return ackFrame(f.Cmd, f.Nonce, struct{}{})
}

func parseArgsMap(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func isJSONString(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil
}

func isJSONArray(raw json.RawMessage) bool {
	var a []json.RawMessage
	return json.Unmarshal(raw, &a) == nil
}

// validateButtons reports whether every element of raw is an object
// carrying string label and url fields, and whether the list exceeds the
// two-button limit.
func validateButtons(raw json.RawMessage) (valid bool, tooMany bool) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return false, false
	}
	if len(list) > 2 {
		return false, true
	}
	for _, item := range list {
		fields, ok := parseArgsMap(item)
		if !ok {
			return false, false
		}
		label, hasLabel := fields["label"]
		url, hasURL := fields["url"]
		if !hasLabel || !hasURL || !isJSONString(label) || !isJSONString(url) {
			return false, false
		}
	}
	return true, false
}
