// Package wsrdy implements transport.Connection over a raw gorilla/websocket
// connection speaking an explicit line-based RDY protocol, for brokers
// that expose credit as a first-class wire command the way spec.md's own
// broker does:
//
//	client -> SUB <topic>
//	server -> OK <max-rdy>
//	client -> RDY <n>
//	server -> MSG <id> <body>
//	client -> FIN <id>   | REQ <id>
//	either  -> _heartbeat_
//
// Grounded on kalshi/internal/connection/client.go's readLoop +
// heartbeatLoop + writeMu-guarded Send shape, generalized from Kalshi's
// JSON market-data frames to this module's own plain-text command lines,
// one command per websocket text message with no trailing newline.
package wsrdy

import (
	"fmt"
	"strconv"
	"strings"
)

const heartbeatFrame = "_heartbeat_"

type frameKind int

const (
	frameUnknown frameKind = iota
	frameOK
	frameMsg
	frameHeartbeat
)

type frame struct {
	kind frameKind
	id   string
	body []byte
	n    int64
}

func parseFrame(line string) frame {
	if line == heartbeatFrame {
		return frame{kind: frameHeartbeat}
	}

	parts := strings.SplitN(line, " ", 3)
	switch parts[0] {
	case "OK":
		if len(parts) < 2 {
			return frame{kind: frameUnknown}
		}
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return frame{kind: frameUnknown}
		}
		return frame{kind: frameOK, n: n}
	case "MSG":
		if len(parts) < 3 {
			return frame{kind: frameUnknown}
		}
		return frame{kind: frameMsg, id: parts[1], body: []byte(parts[2])}
	default:
		return frame{kind: frameUnknown}
	}
}

func subLine(topic string) string        { return fmt.Sprintf("SUB %s", topic) }
func rdyLine(n int64) string              { return fmt.Sprintf("RDY %d", n) }
func finLine(id string) string            { return fmt.Sprintf("FIN %s", id) }
func reqLine(id string) string            { return fmt.Sprintf("REQ %s", id) }
