package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lumen/internal/render"
)

func dial(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestWebSocketTransport_Broadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	defer wst.Close()

	conn := dial(t, wst)

	var f render.Frame
	f.Seq = 7
	f.Uniforms[render.UBPM] = 128
	if err := wst.Send(f); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got render.Frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Seq != 7 || got.Uniforms[render.UBPM] != 128 {
		t.Errorf("received %+v", got)
	}
}

func TestWebSocketTransport_Commands(t *testing.T) {
	var mu sync.Mutex
	var seen []Command
	handler := func(cmd Command) (any, error) {
		mu.Lock()
		seen = append(seen, cmd)
		mu.Unlock()
		if cmd.Type == CmdSnapshot {
			return "frame_1.png", nil
		}
		if cmd.Type == CmdRecord {
			return nil, errors.New("already recording")
		}
		return nil, nil
	}
	wst, err := NewWebSocketTransport("127.0.0.1:0", handler)
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	defer wst.Close()

	conn := dial(t, wst)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	exchange := func(msg string) Reply {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var r Reply
		if err := conn.ReadJSON(&r); err != nil {
			t.Fatalf("read reply: %v", err)
		}
		return r
	}

	if r := exchange(`{"type":"pause"}`); !r.OK || r.Type != CmdPause {
		t.Errorf("pause reply = %+v", r)
	}
	if r := exchange(`{"type":"snapshot"}`); !r.OK || r.Result != "frame_1.png" {
		t.Errorf("snapshot reply = %+v", r)
	}
	if r := exchange(`{"type":"record","seconds":10}`); r.OK || r.Error != "already recording" {
		t.Errorf("record reply = %+v", r)
	}
	if r := exchange(`{"type":"bogus"}`); r.OK || r.Error == "" {
		t.Errorf("bogus reply = %+v", r)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("handler saw %d commands, want 3", len(seen))
	}
}

func TestWebSocketTransport_PortInUse(t *testing.T) {
	first, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	defer first.Close()

	if _, err := NewWebSocketTransport(first.Addr(), nil); err == nil {
		t.Error("second listener on the same address succeeded")
	}
}

func TestWebSocketTransport_SendAfterClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := wst.Send(render.Frame{}); err == nil {
		t.Error("Send() after Close() succeeded")
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
