// Package rpc implements the command envelope and dispatcher shared by the
// stream-IPC and WebSocket listeners: one piece of logic drives both wire
// transports.
package rpc

import "encoding/json"

// Command is the tagged command name carried on IncomingFrame.Cmd.
type Command string

const (
	CmdDispatch             Command = "DISPATCH"
	CmdSetActivity          Command = "SET_ACTIVITY"
	CmdInviteBrowser        Command = "INVITE_BROWSER"
	CmdGuildTemplateBrowser Command = "GUILD_TEMPLATE_BROWSER"
	CmdDeepLink             Command = "DEEP_LINK"
	CmdConnectionsCallback  Command = "CONNECTIONS_CALLBACK"
	CmdAuthorize            Command = "AUTHORIZE"
	CmdAuthenticate         Command = "AUTHENTICATE"
	CmdSubscribe            Command = "SUBSCRIBE"
	CmdUnsubscribe          Command = "UNSUBSCRIBE"
	CmdPing                 Command = "PING"
)

// IncomingFrame is a command frame submitted by a producer client.
type IncomingFrame struct {
	Cmd   Command         `json:"cmd"`
	Args  json.RawMessage `json:"args,omitempty"`
	Nonce *string         `json:"nonce,omitempty"`
}

// OutgoingFrame is a server-originated reply. Evt, Nonce and Pid are
// omitted from the wire when nil.
type OutgoingFrame struct {
	Cmd   Command         `json:"cmd"`
	Evt   *string         `json:"evt,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Nonce *string         `json:"nonce,omitempty"`
	Pid   *uint32         `json:"pid,omitempty"`
}

// Error is the {code, message} body of an ERROR dispatch.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func evt(s string) *string { return &s }

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func errorFrame(cmd Command, nonce *string, code int, message string) *OutgoingFrame {
	return &OutgoingFrame{
		Cmd:   cmd,
		Evt:   evt("ERROR"),
		Data:  mustJSON(Error{Code: code, Message: message}),
		Nonce: nonce,
	}
}

func ackFrame(cmd Command, nonce *string, data any) *OutgoingFrame {
	return &OutgoingFrame{
		Cmd:   cmd,
		Evt:   evt("ACK"),
		Data:  mustJSON(data),
		Nonce: nonce,
	}
}

func dispatchFrame(evtName string, data any, nonce *string, pid *uint32) *OutgoingFrame {
	return &OutgoingFrame{
		Cmd:   CmdDispatch,
		Evt:   evt(evtName),
		Data:  mustJSON(data),
		Nonce: nonce,
		Pid:   pid,
	}
}
