// Package transport publishes rendered frames to external renderers and
// accepts remote control commands.
package transport

import (
	"encoding/json"
	"fmt"

	"lumen/internal/log"
)

var logger = log.Component("transport")

// Transport defines a generic interface for sending frames or events.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}

// Command types accepted from clients.
const (
	CmdControls  = "controls"
	CmdRandomize = "randomize"
	CmdPause     = "pause"
	CmdResume    = "resume"
	CmdSeek      = "seek"
	CmdSnapshot  = "snapshot"
	CmdRecord    = "record"
)

// Command is an inbound client message, e.g.
//
//	{"type":"controls","controls":{"warpAmount":0.5}}
//	{"type":"seek","seconds":42}
type Command struct {
	Type     string             `json:"type"`
	Controls map[string]float64 `json:"controls,omitempty"`
	Seconds  float64            `json:"seconds,omitempty"`
}

// ParseCommand decodes and checks a client message.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch cmd.Type {
	case CmdControls:
		if len(cmd.Controls) == 0 {
			return Command{}, fmt.Errorf("controls command without controls")
		}
	case CmdRandomize, CmdPause, CmdResume, CmdSnapshot:
	case CmdSeek:
		if cmd.Seconds < 0 {
			return Command{}, fmt.Errorf("seek to negative position %v", cmd.Seconds)
		}
	case CmdRecord:
		if cmd.Seconds < 0 {
			return Command{}, fmt.Errorf("record for negative duration %v", cmd.Seconds)
		}
	case "":
		return Command{}, fmt.Errorf("command without type")
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return cmd, nil
}

// CommandHandler executes a client command. A non-nil reply is sent back to
// the requesting client only.
type CommandHandler func(cmd Command) (reply any, err error)

// Reply is written back to a client after a command.
type Reply struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}
