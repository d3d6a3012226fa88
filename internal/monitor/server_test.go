package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeStatusProvider struct {
	statuses []ConversationStatus
}

func (f *fakeStatusProvider) ConversationStatuses() []ConversationStatus {
	return f.statuses
}

func TestServerStatusEndpoint(t *testing.T) {
	provider := &fakeStatusProvider{statuses: []ConversationStatus{
		{Name: "EcuFront", Activity: "Active", Connection: "Connected"},
	}}
	srv := NewServer(":0", provider, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	srv.http.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var got []ConversationStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "EcuFront" {
		t.Errorf("got %+v, want one EcuFront entry", got)
	}
}

func TestServerHealthz(t *testing.T) {
	srv := NewServer(":0", &fakeStatusProvider{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.http.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
}

func TestServerWebSocketBroadcast(t *testing.T) {
	srv := NewServer(":0", &fakeStatusProvider{}, nil)
	ts := httptest.NewServer(srv.http.Handler)
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		srv.mu.Lock()
		n := len(srv.clients)
		srv.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.BroadcastExchange(ExchangeEvent{Conversation: "EcuFront", Outcome: "Ok", LatencyMs: 12.5})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast message: %v", err)
	}
	var got ExchangeEvent
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decoding broadcast message: %v", err)
	}
	if got.Conversation != "EcuFront" || got.Outcome != "Ok" {
		t.Errorf("got %+v, want EcuFront/Ok", got)
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
