// Package stomp adapts go-stomp framing to websocket messages: one text
// message carries exactly one STOMP 1.2 frame.
package stomp

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-stomp/stomp/v3/frame"
)

const (
	CmdConnect     = frame.CONNECT
	CmdStomp       = frame.STOMP
	CmdConnected   = frame.CONNECTED
	CmdSubscribe   = frame.SUBSCRIBE
	CmdUnsubscribe = frame.UNSUBSCRIBE
	CmdSend        = frame.SEND
	CmdDisconnect  = frame.DISCONNECT
	CmdMessage     = frame.MESSAGE
	CmdReceipt     = frame.RECEIPT
	CmdError       = frame.ERROR
)

const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHeartBeat     = "heart-beat"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrContentType   = "content-type"
	HdrMessage       = "message"
	HdrUserName      = "user-name"
)

var (
	ErrEmptyFrame     = errors.New("stomp: empty frame")
	ErrUnknownCommand = errors.New("stomp: unknown command")
	ErrMalformed      = errors.New("stomp: malformed frame")
)

// Commands outside this set are refused before parsing, which keeps the
// per-command metric labels bounded.
var knownCommands = map[string]bool{
	CmdConnect: true, CmdStomp: true, CmdConnected: true, CmdSubscribe: true,
	CmdUnsubscribe: true, CmdSend: true, CmdDisconnect: true, CmdMessage: true,
	CmdReceipt: true, CmdError: true,
}

type Frame = frame.Frame

func New(command string, headers ...string) *Frame {
	return frame.New(command, headers...)
}

// IsHeartBeat reports whether data holds only end-of-line heart-beats.
func IsHeartBeat(data []byte) bool {
	return len(bytes.Trim(data, "\r\n")) == 0
}

// Decode parses the single frame held by one websocket message. Leading
// heart-beat EOLs are skipped; a repeated header keeps every value and
// Header.Get returns the first.
func Decode(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	command, _, _ := bytes.Cut(data, []byte("\n"))
	command = bytes.TrimSuffix(command, []byte("\r"))
	if !knownCommands[string(command)] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	f, err := frame.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f == nil {
		return nil, ErrEmptyFrame
	}
	return f, nil
}

// Encode serializes f, escaping header names and values.
func Encode(f *Frame) []byte {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = frame.NewWriter(&buf).Write(f)
	return buf.Bytes()
}
