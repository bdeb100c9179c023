package loadtest

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/informalsystems/mq-load-test/pkg/timeutils"
	"github.com/stretchr/testify/require"
)

func TestPayloadFillerLength(t *testing.T) {
	now := time.Now()
	for _, size := range []int{0, 1, 2, 61, 62, 63, 255, 1024, 65536} {
		p := NewPayload(size, now)
		require.Len(t, p.Payload, size, "size %d", size)

		var decoded Payload
		require.NoError(t, json.Unmarshal(p.Marshal(), &decoded))
		require.Len(t, decoded.Payload, size)
		require.Equal(t, now.UnixMilli(), decoded.DT)
	}
}

func TestNegativePayloadSizeYieldsEmptyFiller(t *testing.T) {
	require.Equal(t, "", NewPayload(-10, time.Now()).Payload)
}

func TestPayloadWireShape(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	require.Equal(t, `{"dt":1700000000123,"payload":""}`, string(NewPayload(0, now).Marshal()))

	p := NewPayload(16, now)
	expected := fmt.Sprintf(`{"dt":1700000000123,"payload":"%s"}`, p.Payload)
	require.Equal(t, expected, string(p.Marshal()))
	// no characters may need escaping, so the body size is fully determined
	require.Len(t, p.Marshal(), len(`{"dt":1700000000123,"payload":""}`)+16)
}

func TestRandStrAlphabet(t *testing.T) {
	s := randStr(4096)
	for _, r := range s {
		require.True(t, strings.ContainsRune(strChars, r), "unexpected character %q", r)
	}
	require.NotEqual(t, s, randStr(4096))
}

func TestNewMessageEnvelope(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageSize = 10
	cfg.TTL = timeutils.ParseableDuration(5 * time.Minute)
	msg := NewMessage(&cfg, time.Now())
	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, "MyPayload", msg.Label)
	require.Equal(t, 5*time.Minute, msg.TTL)
	require.Equal(t, len(msg.Body), msg.Size())
}
