// Package netext implements the "net" native module's WebSocket
// external class (SPEC_FULL.md §C.8's transport-layer domain stack
// consumer), grounded on internal/network/websocket.go's
// WebSocketConn -- a background reader goroutine feeding a buffered
// channel, adapted from that package's connection-ID-keyed registry
// to one connection per WebSocket instance, the same per-object shape
// every external class in this module set uses.
package netext

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// Register installs the "net" module.
func Register(vm *engine.VM) {
	vm.RegisterNativeModule("net", build)
}

func build(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)
	vm.NewExternalClass(modNode, "WebSocket", map[string]engine.ExternalFunction{
		"constructor":   wsConstructor,
		"deconstructor": wsClose,
		"send":          wsSend,
		"send_binary":   wsSendBinary,
		"recv":          wsRecv,
		"close":         wsClose,
	})
	return modNode
}

type wsState struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
	msgs   chan []byte
}

// wsConstructor dials url eagerly (websocket.go's WebSocketConnect),
// then starts the same background-reader-into-buffered-channel
// pattern so recv() never blocks the dialer's goroutine on a frame
// nobody asked for yet.
func wsConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsObject() || arg.Obj.Kind != heap.KindString {
		return heap.None, vmerrors.New(vmerrors.TypeError, "WebSocket requires a String URL")
	}
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(arg.Obj.StrVal, nil)
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "websocket dial failed: %v", err)
	}
	st := &wsState{conn: conn, msgs: make(chan []byte, 100)}
	data.State["s"] = st
	go st.readLoop()
	return heap.None, nil
}

func (st *wsState) readLoop() {
	for {
		_, msg, err := st.conn.ReadMessage()
		if err != nil {
			close(st.msgs)
			return
		}
		st.msgs <- msg
	}
}

func stateOf(data *heap.ExternalData) (*wsState, error) {
	if data == nil {
		return nil, vmerrors.New(vmerrors.InternalError, "WebSocket method called without a constructed instance")
	}
	v, ok := data.State["s"]
	if !ok {
		return nil, vmerrors.New(vmerrors.IOError, "WebSocket was never successfully connected")
	}
	return v.(*wsState), nil
}

func wsSend(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	if !arg.IsObject() || arg.Obj.Kind != heap.KindString {
		return heap.None, vmerrors.New(vmerrors.TypeError, "WebSocket.send requires a String")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return heap.None, vmerrors.New(vmerrors.IOError, "WebSocket is closed")
	}
	if err := st.conn.WriteMessage(websocket.TextMessage, []byte(arg.Obj.StrVal)); err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "WebSocket.send failed: %v", err)
	}
	return heap.None, nil
}

func wsSendBinary(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	if !arg.IsObject() || arg.Obj.Kind != heap.KindString {
		return heap.None, vmerrors.New(vmerrors.TypeError, "WebSocket.send_binary requires a String payload")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return heap.None, vmerrors.New(vmerrors.IOError, "WebSocket is closed")
	}
	if err := st.conn.WriteMessage(websocket.BinaryMessage, []byte(arg.Obj.StrVal)); err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "WebSocket.send_binary failed: %v", err)
	}
	return heap.None, nil
}

// wsRecv takes an optional millisecond timeout, the same convention
// Thread.wait/Mutex.acquire use (None blocks indefinitely).
func wsRecv(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	if arg.IsNone() {
		msg, ok := <-st.msgs
		if !ok {
			return heap.None, vmerrors.New(vmerrors.IOError, "WebSocket connection closed")
		}
		return heap.FromObject(vm.Graph.NewString(string(msg)).Obj), nil
	}
	if !arg.IsValue() || arg.Val.Kind != heap.KInt {
		return heap.None, vmerrors.New(vmerrors.TypeError, "recv timeout must be an Int64 (milliseconds)")
	}
	select {
	case msg, ok := <-st.msgs:
		if !ok {
			return heap.None, vmerrors.New(vmerrors.IOError, "WebSocket connection closed")
		}
		return heap.FromObject(vm.Graph.NewString(string(msg)).Obj), nil
	case <-time.After(time.Duration(arg.Val.I) * time.Millisecond):
		return heap.None, vmerrors.New(vmerrors.TimeoutError, "WebSocket.recv timed out")
	}
}

func wsClose(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := stateOf(data)
	if err != nil {
		return heap.None, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return heap.None, nil
	}
	st.closed = true
	st.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	st.conn.Close()
	return heap.None, nil
}
