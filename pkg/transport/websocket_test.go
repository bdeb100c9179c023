package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/informalsystems/mq-load-test/pkg/transport"
	"github.com/stretchr/testify/require"
)

type wsSink struct {
	mtx    sync.Mutex
	entity string
	frames []string
	done   chan struct{}
}

func newWSSink() (*wsSink, *httptest.Server) {
	sink := &wsSink{done: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		defer close(sink.done)
		sink.mtx.Lock()
		sink.entity = r.Header.Get(transport.EntityHeader)
		sink.mtx.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			sink.mtx.Lock()
			sink.frames = append(sink.frames, string(data))
			sink.mtx.Unlock()
		}
	}))
	return sink, svr
}

func TestWebSocketTransport(t *testing.T) {
	sink, svr := newWSSink()
	defer svr.Close()

	ctx := context.Background()
	url := "ws" + strings.TrimPrefix(svr.URL, "http")
	tr, err := transport.GetFactory("websocket").NewTransport(ctx, transport.Params{
		ConnectionString: url,
		EntityName:       "loadtest",
	})
	require.NoError(t, err)

	a := &transport.Message{Body: []byte(`{"dt":1,"payload":"a"}`)}
	b := &transport.Message{Body: []byte(`{"dt":2,"payload":"b"}`)}
	require.NoError(t, tr.SendOne(ctx, a))
	require.NoError(t, tr.SendBatch(ctx, []*transport.Message{a, b}))
	require.NoError(t, tr.Close(ctx))

	select {
	case <-sink.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for WebSockets server to finish")
	}

	sink.mtx.Lock()
	defer sink.mtx.Unlock()
	require.Equal(t, "loadtest", sink.entity)
	require.Len(t, sink.frames, 2)
	require.Equal(t, string(a.Body), sink.frames[0])

	var batch []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sink.frames[1]), &batch))
	require.Len(t, batch, 2)
	require.Equal(t, "b", batch[1]["payload"])
}

func TestWebSocketConnectionFailure(t *testing.T) {
	_, err := transport.GetFactory("websocket").NewTransport(context.Background(), transport.Params{
		ConnectionString: "ws://127.0.0.1:1/nothing-here",
	})
	require.Error(t, err)
}
