package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/adapters/acrcloud"
	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/internal/bridge"
)

type historyStub struct {
	mu      sync.Mutex
	records []string
}

func (h *historyStub) Record(ctx context.Context, deviceID, sessionID string, source entities.RecognitionSource, payload string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, deviceID+":"+string(source))
	return nil
}

func (h *historyStub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

type testServer struct {
	hub     *Hub
	factory *acrcloud.MockFactory
	history *historyStub
	url     string
}

func setupTestServer(t *testing.T, requirePermission bool) *testServer {
	t.Helper()
	logger := zap.NewNop()

	factory := acrcloud.NewMockFactory(logger)
	factory.ResultAfter = 8
	history := &historyStub{}

	hub := NewHub(HubOptions{
		Factory:           factory,
		Fingerprinter:     acrcloud.MockFingerprinter{},
		History:           history,
		RequirePermission: requirePermission,
	}, logger)
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, "device-1", logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})

	return &testServer{
		hub:     hub,
		factory: factory,
		history: history,
		url:     "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readType reads envelopes until one of the wanted type arrives
func readType(t *testing.T, conn *websocket.Conn, want MessageType) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == string(want) {
			return msg
		}
	}
}

func call(id, method string, args map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "call", "id": id, "method": method, "arguments": args}
}

func setUpArguments() map[string]interface{} {
	return map[string]interface{}{"accessKey": "key", "accessSecret": "secret", "host": "identify.example.com"}
}

func TestHub_ListenFlow(t *testing.T) {
	srv := setupTestServer(t, false)
	conn := dial(t, srv.url)

	sendJSON(t, conn, call("1", bridge.MethodSetUp, setUpArguments()))
	reply := readType(t, conn, MessageTypeReply)
	assert.Equal(t, "1", reply["id"])
	assert.Equal(t, true, reply["result"])
	assert.NotEmpty(t, reply["timestamp"])
	assert.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	sendJSON(t, conn, call("2", bridge.MethodListen, nil))
	assert.Equal(t, "2", readType(t, conn, MessageTypeReply)["id"])

	sendJSON(t, conn, call("3", bridge.MethodListen, nil))
	failure := readType(t, conn, MessageTypeError)
	assert.Equal(t, "3", failure["id"])
	assert.Equal(t, string(bridge.CodeAlreadyListening), failure["error_code"])

	// Two loud frames reach the mock's result threshold
	frame := []byte{0x00, 0x40, 0x00, 0x40}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	volume := readType(t, conn, MessageTypeEvent)
	assert.Equal(t, bridge.EventVolume, volume["method"])
	assert.InDelta(t, 0.5, volume["arguments"], 0.01)

	var result map[string]interface{}
	for result == nil {
		event := readType(t, conn, MessageTypeEvent)
		if event["method"] == bridge.EventResult {
			result = event
		}
	}
	assert.Equal(t, acrcloud.MockResultPayload, result["arguments"])

	// listening was cleared by the result
	sendJSON(t, conn, call("4", bridge.MethodListen, nil))
	assert.Equal(t, "4", readType(t, conn, MessageTypeReply)["id"])

	assert.Eventually(t, func() bool { return srv.history.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Fingerprints(t *testing.T) {
	srv := setupTestServer(t, false)
	conn := dial(t, srv.url)

	sendJSON(t, conn, call("1", bridge.MethodCreateFingerprint, map[string]interface{}{}))
	failure := readType(t, conn, MessageTypeError)
	assert.Equal(t, string(bridge.CodeUnavailable), failure["error_code"])

	pcm := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	sendJSON(t, conn, call("2", bridge.MethodCreateFingerprint, map[string]interface{}{"pcmData": pcm}))
	reply := readType(t, conn, MessageTypeReply)
	fingerprint, ok := reply["result"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, fingerprint)

	sendJSON(t, conn, call("3", bridge.MethodSetUp, setUpArguments()))
	readType(t, conn, MessageTypeReply)

	sendJSON(t, conn, call("4", bridge.MethodRecognizeFingerprint, map[string]interface{}{"fingerprint": fingerprint}))
	recognized := readType(t, conn, MessageTypeReply)
	assert.Equal(t, "4", recognized["id"])
	assert.Equal(t, acrcloud.MockResultPayload, recognized["result"])
}

func TestHub_CreateFingerprintLongSample(t *testing.T) {
	srv := setupTestServer(t, false)
	conn := dial(t, srv.url)

	// 30s of 16kHz stereo PCM is about 2.5MB once base64 encoded
	pcm := make([]byte, 30*16000*2*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	sendJSON(t, conn, call("1", bridge.MethodCreateFingerprint, map[string]interface{}{
		"pcmData": base64.StdEncoding.EncodeToString(pcm),
	}))

	reply := readType(t, conn, MessageTypeReply)
	assert.Equal(t, "1", reply["id"])
	expected, err := acrcloud.MockFingerprinter{}.CreateFingerprint(context.Background(), pcm, 16000, 2)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(expected), reply["result"])

	// the connection stays usable
	sendJSON(t, conn, map[string]interface{}{"type": "ping", "data": "still-here"})
	pong := readType(t, conn, MessageTypePong)
	assert.Equal(t, "still-here", pong["data"])
}

func TestHub_PermissionFlow(t *testing.T) {
	srv := setupTestServer(t, true)
	conn := dial(t, srv.url)

	sendJSON(t, conn, call("1", bridge.MethodSetUp, setUpArguments()))
	request := readType(t, conn, MessageTypePermissionRequest)
	assert.Equal(t, bridge.PermissionMicrophone, request["permission"])

	sendJSON(t, conn, map[string]interface{}{"type": "permission", "granted": true})
	reply := readType(t, conn, MessageTypeReply)
	assert.Equal(t, "1", reply["id"])
	assert.NotNil(t, srv.factory.LastClient())
}

func TestHub_PermissionDenied(t *testing.T) {
	srv := setupTestServer(t, true)
	conn := dial(t, srv.url)

	sendJSON(t, conn, call("1", bridge.MethodSetUp, setUpArguments()))
	readType(t, conn, MessageTypePermissionRequest)

	sendJSON(t, conn, map[string]interface{}{"type": "permission", "granted": false})
	failure := readType(t, conn, MessageTypeError)
	assert.Equal(t, "1", failure["id"])
	assert.Equal(t, string(bridge.CodePermissionDenied), failure["error_code"])
	assert.Nil(t, srv.factory.LastClient())
}

func TestHub_InvalidAndUnknownMessages(t *testing.T) {
	srv := setupTestServer(t, false)
	conn := dial(t, srv.url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	failure := readType(t, conn, MessageTypeError)
	assert.Equal(t, string(bridge.CodeInvalidMessage), failure["error_code"])

	sendJSON(t, conn, map[string]interface{}{"type": "teleport"})
	failure = readType(t, conn, MessageTypeError)
	assert.Equal(t, string(bridge.CodeInvalidMessage), failure["error_code"])

	sendJSON(t, conn, call("9", "doSomethingElse", nil))
	notImplemented := readType(t, conn, MessageTypeNotImplemented)
	assert.Equal(t, "9", notImplemented["id"])
	assert.Equal(t, "doSomethingElse", notImplemented["method"])

	sendJSON(t, conn, map[string]interface{}{"type": "ping", "data": "hello"})
	pong := readType(t, conn, MessageTypePong)
	assert.Equal(t, "hello", pong["data"])
}

func TestHub_DisconnectClosesSession(t *testing.T) {
	srv := setupTestServer(t, false)
	conn := dial(t, srv.url)

	sendJSON(t, conn, call("1", bridge.MethodSetUp, setUpArguments()))
	readType(t, conn, MessageTypeReply)
	sendJSON(t, conn, call("2", bridge.MethodListen, nil))
	readType(t, conn, MessageTypeReply)

	client := srv.factory.LastClient()
	require.NotNil(t, client)
	conn.Close()

	assert.Eventually(t, client.Closed, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return srv.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCreateReplyMessage(t *testing.T) {
	reply := CreateReplyMessage(bridge.Reply{CallID: "1", Method: "listen", Result: true})
	raw, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"reply"`)
	assert.Contains(t, string(raw), `"result":true`)

	failure := CreateReplyMessage(bridge.Reply{CallID: "2", Err: bridge.NewError(bridge.CodeNotListening, "Not listening")})
	raw, err = json.Marshal(failure)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error_code":"NOT_LISTENING"`)
	assert.Contains(t, string(raw), `"id":"2"`)

	missing := CreateReplyMessage(bridge.Reply{CallID: "3", Method: "fly", NotImplemented: true})
	assert.IsType(t, &NotImplementedMessage{}, missing)
}
