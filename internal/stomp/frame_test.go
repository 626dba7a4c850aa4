package stomp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeConnect(t *testing.T) {
	raw := "CONNECT\r\naccept-version:1.2,1.1\r\nheart-beat:4000,4000\r\nusername:alice\r\n\r\n\x00"

	f, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, CmdConnect, f.Command)
	require.Equal(t, "alice", f.Header.Get("username"))
	require.Equal(t, "4000,4000", f.Header.Get(HdrHeartBeat))
	require.Empty(t, f.Body)
}

func TestDecodeSubscribeSkipsHeartBeats(t *testing.T) {
	raw := "\n\nSUBSCRIBE\nid:sub-0\ndestination:/topic/global\n\n\x00"

	f, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, CmdSubscribe, f.Command)
	require.Equal(t, "sub-0", f.Header.Get(HdrID))
	require.Equal(t, "/topic/global", f.Header.Get(HdrDestination))
}

func TestDecodeRepeatedHeaderFirstWins(t *testing.T) {
	f, err := Decode([]byte("SEND\ndestination:/a\ndestination:/b\n\nhi\x00"))
	require.NoError(t, err)
	require.Equal(t, "/a", f.Header.Get(HdrDestination))
	require.Equal(t, []byte("hi"), f.Body)
}

func TestDecodeContentLength(t *testing.T) {
	f, err := Decode([]byte("SEND\ndestination:/a\ncontent-length:3\n\na\x00b\x00"))
	require.NoError(t, err)
	require.Equal(t, []byte("a\x00b"), f.Body)
}

func TestDecodeUnescapesHeaders(t *testing.T) {
	f, err := Decode([]byte("SEND\ndestination:/a\\cb\\nc\\\\\n\n\x00"))
	require.NoError(t, err)
	require.Equal(t, "/a:b\nc\\", f.Header.Get(HdrDestination))
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]error{
		"\n\r\n":                           ErrEmptyFrame,
		"BOGUS\n\n\x00":                    ErrUnknownCommand,
		"ACK\nid:1\n\n\x00":                ErrUnknownCommand,
		"SEND":                             ErrMalformed,
		"SEND\nbroken\n\n\x00":             ErrMalformed,
		"SEND\ndestination:/a\n\nhi":       ErrMalformed,
		"SEND\ncontent-length:9\n\nhi\x00": ErrMalformed,
	}
	for raw, want := range cases {
		_, err := Decode([]byte(raw))
		require.ErrorIs(t, err, want, "input %q", raw)
	}
}

func TestEncodeMessage(t *testing.T) {
	f := New(CmdMessage,
		HdrDestination, "/topic/global",
		HdrSubscription, "sub-0",
		HdrMessageID, "7",
	)
	f.Body = []byte(`{"type":"JOIN"}`)

	msg := string(Encode(f))
	require.True(t, strings.HasPrefix(msg, "MESSAGE\n"))
	require.Contains(t, msg, "\ndestination:/topic/global\n")
	require.Contains(t, msg, "\nsubscription:sub-0\n")
	require.Contains(t, msg, "\nmessage-id:7\n")
	require.True(t, strings.HasSuffix(msg, "\n\n{\"type\":\"JOIN\"}\x00"))

	back, err := Decode(Encode(f))
	require.NoError(t, err)
	require.Equal(t, CmdMessage, back.Command)
	require.Equal(t, "/topic/global", back.Header.Get(HdrDestination))
	require.Equal(t, "sub-0", back.Header.Get(HdrSubscription))
	require.Equal(t, "7", back.Header.Get(HdrMessageID))
	require.Equal(t, f.Body, back.Body)
}

func TestEncodeEscapesHeaderValues(t *testing.T) {
	msg := string(Encode(New(CmdError, HdrMessage, "bad:frame\ninjected:1")))
	require.Contains(t, msg, "message:bad\\cframe\\ninjected\\c1\n")

	back, err := Decode([]byte(msg))
	require.NoError(t, err)
	require.Equal(t, "bad:frame\ninjected:1", back.Header.Get(HdrMessage))
	require.Empty(t, back.Header.Get("injected"))
}

func TestIsHeartBeat(t *testing.T) {
	require.True(t, IsHeartBeat([]byte("\n")))
	require.True(t, IsHeartBeat([]byte("\r\n\n")))
	require.False(t, IsHeartBeat([]byte("CONNECT\n\n\x00")))
}
