package netext

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/module"
)

func newTestVM() *engine.VM {
	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	return engine.New(graph, module.NewLoader())
}

func newWsExternalData(vm *engine.VM) *heap.ExternalData {
	obj := vm.Graph.NewNode(heap.KindPlain).Obj
	return heap.NewExternalData(obj)
}

// echoServer upgrades every request and echoes back whatever it reads,
// mirroring the round-trip a WebSocket.send/recv pair exercises.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStateOfWithoutConstructorErrors(t *testing.T) {
	vm := newTestVM()
	data := newWsExternalData(vm)
	if _, err := stateOf(data); err == nil {
		t.Error("stateOf() on an unconstructed WebSocket should error")
	}
}

func TestWsConstructorRejectsNonString(t *testing.T) {
	vm := newTestVM()
	data := newWsExternalData(vm)
	if _, err := wsConstructor(vm, nil, data, heap.Int(1)); err == nil {
		t.Error("WebSocket(1) should error on a non-String argument")
	}
}

func TestWsConstructorFailsOnUnreachableURL(t *testing.T) {
	vm := newTestVM()
	data := newWsExternalData(vm)
	url := heap.FromObject(vm.Graph.NewString("ws://127.0.0.1:1/nope").Obj)
	if _, err := wsConstructor(vm, nil, data, url); err == nil {
		t.Error("WebSocket() against an unreachable address should error")
	}
}

func TestWsSendRecvEchoRoundTrip(t *testing.T) {
	srv := echoServer(t)
	vm := newTestVM()
	data := newWsExternalData(vm)
	url := heap.FromObject(vm.Graph.NewString(wsURL(srv)).Obj)
	if _, err := wsConstructor(vm, nil, data, url); err != nil {
		t.Fatalf("WebSocket constructor error: %v", err)
	}
	defer wsClose(vm, nil, data, heap.None)

	msg := heap.FromObject(vm.Graph.NewString("hello").Obj)
	if _, err := wsSend(vm, nil, data, msg); err != nil {
		t.Fatalf("send error: %v", err)
	}

	got, err := wsRecv(vm, nil, data, heap.Int(2000))
	if err != nil {
		t.Fatalf("recv error: %v", err)
	}
	if !got.IsObject() || got.Obj.StrVal != "hello" {
		t.Errorf("recv() = %v, want String(\"hello\")", got)
	}
}

func TestWsRecvTimesOutWithNoMessage(t *testing.T) {
	srv := echoServer(t)
	vm := newTestVM()
	data := newWsExternalData(vm)
	url := heap.FromObject(vm.Graph.NewString(wsURL(srv)).Obj)
	if _, err := wsConstructor(vm, nil, data, url); err != nil {
		t.Fatalf("WebSocket constructor error: %v", err)
	}
	defer wsClose(vm, nil, data, heap.None)

	start := time.Now()
	if _, err := wsRecv(vm, nil, data, heap.Int(20)); err == nil {
		t.Error("recv() with no pending message should time out")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("recv() timed out after only %v", elapsed)
	}
}

func TestWsCloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)
	vm := newTestVM()
	data := newWsExternalData(vm)
	url := heap.FromObject(vm.Graph.NewString(wsURL(srv)).Obj)
	if _, err := wsConstructor(vm, nil, data, url); err != nil {
		t.Fatalf("WebSocket constructor error: %v", err)
	}
	if _, err := wsClose(vm, nil, data, heap.None); err != nil {
		t.Fatalf("first close error: %v", err)
	}
	if _, err := wsClose(vm, nil, data, heap.None); err != nil {
		t.Errorf("second close should be a no-op, got error: %v", err)
	}
}
