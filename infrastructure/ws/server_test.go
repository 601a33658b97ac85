package ws

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chat-relay/pipeline"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/storage"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newRelayServer(t *testing.T, retention time.Duration, maxSize int64) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewDiskStore(t.TempDir(), retention, log)
	require.NoError(t, err)

	allowed := map[string]struct{}{"txt": {}, "png": {}}
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, nil, time.Second)
	uploads := pipeline.NewPipeline(log, registry, router, store, nil,
		maxSize, allowed, UploadsPath, time.Second)
	service := services.NewRelayService(registry, router, uploads)

	server := NewServer(log, service, store, nil, 32, maxSize)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// waitFor reads frames until one matches the wanted event, skipping
// everything that interleaves in between.
func waitFor(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", event)
		if f.Event == event {
			return f.Data
		}
	}
}

// requireSilence asserts nothing arrives within a short window. The
// connection is unusable afterwards, so call it last.
func requireSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "expected silence, got %q", f.Event)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func presenceNames(t *testing.T, data json.RawMessage) map[string]string {
	t.Helper()
	var users map[string]string
	require.NoError(t, json.Unmarshal(data, &users))
	return users
}

func TestRelay_Everyone_Sees_The_Same_Presence(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 1<<20)

	// Given alice registers first
	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	first := presenceNames(t, waitFor(t, alice, "presence-update"))
	req.Len(first, 1)

	// When bob joins
	bob := dial(t, ts)
	send(t, bob, "set-name", map[string]string{"name": "bob"})

	// Then alice is told about the newcomer
	var joined struct {
		ConnectionID string `json:"connectionId"`
		Name         string `json:"name"`
	}
	req.NoError(json.Unmarshal(waitFor(t, alice, "user-joined"), &joined))
	req.Equal("bob", joined.Name)
	req.NotEmpty(joined.ConnectionID)

	// And both receive the same two-user snapshot
	fromAlice := presenceNames(t, waitFor(t, alice, "presence-update"))
	fromBob := presenceNames(t, waitFor(t, bob, "presence-update"))
	req.Equal(fromAlice, fromBob)
	req.Len(fromAlice, 2)
}

func TestRelay_Empty_Name_Falls_Back_To_Placeholder(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 1<<20)

	conn := dial(t, ts)
	send(t, conn, "set-name", map[string]string{"name": ""})

	users := presenceNames(t, waitFor(t, conn, "presence-update"))
	req.Len(users, 1)
	for _, name := range users {
		req.Equal("Anonymous", name)
	}
}

func TestRelay_Broadcast_Echoes_To_Sender_And_Peers(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 1<<20)

	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	bob := dial(t, ts)
	send(t, bob, "set-name", map[string]string{"name": "bob"})
	waitFor(t, bob, "presence-update")

	send(t, alice, "chat-broadcast", map[string]string{"body": "hello room"})

	type chat struct {
		SenderID   string `json:"senderId"`
		SenderName string `json:"senderName"`
		Body       string `json:"body"`
	}
	var toAlice, toBob chat
	req.NoError(json.Unmarshal(waitFor(t, alice, "chat-message"), &toAlice))
	req.NoError(json.Unmarshal(waitFor(t, bob, "chat-message"), &toBob))

	// Sender and peer observe the identical rendering
	req.Equal(toAlice, toBob)
	req.Equal("alice", toBob.SenderName)
	req.Equal("hello room", toBob.Body)
}

func TestRelay_Broadcast_Before_SetName_Is_Dropped(t *testing.T) {
	ts := newRelayServer(t, time.Minute, 1<<20)

	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	// A connection that never registered shouts into the void
	lurker := dial(t, ts)
	send(t, lurker, "chat-broadcast", map[string]string{"body": "can you hear me"})

	requireSilence(t, alice)
}

func TestRelay_Direct_Message_Reaches_Recipient_Only(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 1<<20)

	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	bob := dial(t, ts)
	send(t, bob, "set-name", map[string]string{"name": "bob"})
	waitFor(t, bob, "presence-update")

	// Alice learns bob's connection id from the join announcement
	var joined struct {
		ConnectionID string `json:"connectionId"`
	}
	req.NoError(json.Unmarshal(waitFor(t, alice, "user-joined"), &joined))

	send(t, alice, "chat-direct", map[string]string{
		"recipientId": joined.ConnectionID,
		"body":        "just for you",
	})

	var toBob struct {
		SenderName string `json:"senderName"`
		Body       string `json:"body"`
	}
	req.NoError(json.Unmarshal(waitFor(t, bob, "chat-message"), &toBob))
	req.Equal("alice", toBob.SenderName)
	req.Equal("just for you", toBob.Body)

	// No echo back to the sender
	requireSilence(t, alice)
}

func TestRelay_Departure_Announces_User_Left(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 1<<20)

	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	bob := dial(t, ts)
	send(t, bob, "set-name", map[string]string{"name": "bob"})
	waitFor(t, bob, "presence-update")
	waitFor(t, alice, "user-joined")

	req.NoError(bob.Close())

	var left struct {
		Name string `json:"name"`
	}
	req.NoError(json.Unmarshal(waitFor(t, alice, "user-left"), &left))
	req.Equal("bob", left.Name)

	users := presenceNames(t, waitFor(t, alice, "presence-update"))
	req.Len(users, 1)
}

func TestRelay_Upload_Roundtrip_Then_Expiry(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, 80*time.Millisecond, 1<<20)

	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	content := []byte("hello from the upload path")
	send(t, alice, "file-upload", map[string]string{
		"fileName": "notes.txt",
		"fileData": base64.StdEncoding.EncodeToString(content),
	})

	// The uploader receives the share like everyone else
	var shared struct {
		SenderName string `json:"senderName"`
		FileName   string `json:"fileName"`
		FileURL    string `json:"fileUrl"`
	}
	req.NoError(json.Unmarshal(waitFor(t, alice, "file-message"), &shared))
	req.Equal("alice", shared.SenderName)
	req.Equal("notes.txt", shared.FileName)
	req.True(strings.HasPrefix(shared.FileURL, UploadsPath))

	// The served bytes are identical to what was sent
	resp, err := http.Get(ts.URL + shared.FileURL)
	req.NoError(err)
	served, err := io.ReadAll(resp.Body)
	req.NoError(resp.Body.Close())
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(content, served)

	// After the retention window the same reference turns into a 404
	req.Eventually(func() bool {
		resp, err := http.Get(ts.URL + shared.FileURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRelay_Upload_Area_Cannot_Be_Listed(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 1<<20)

	// Given a live stored file
	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	send(t, alice, "file-upload", map[string]string{
		"fileName": "secret.txt",
		"fileData": base64.StdEncoding.EncodeToString([]byte("addressed content")),
	})
	var shared struct {
		FileURL string `json:"fileUrl"`
	}
	req.NoError(json.Unmarshal(waitFor(t, alice, "file-message"), &shared))

	// Then the bare route never enumerates stored names
	for _, path := range []string{UploadsPath, strings.TrimSuffix(UploadsPath, "/"), UploadsPath + "."} {
		resp, err := http.Get(ts.URL + path)
		req.NoError(err)
		body, err := io.ReadAll(resp.Body)
		req.NoError(resp.Body.Close())
		req.NoError(err)
		req.Equal(http.StatusNotFound, resp.StatusCode, "path %q", path)
		req.NotContains(string(body), strings.TrimPrefix(shared.FileURL, UploadsPath))
	}
}

func TestRelay_Upload_Rejections_Go_To_Uploader_Only(t *testing.T) {
	req := require.New(t)
	ts := newRelayServer(t, time.Minute, 64)

	alice := dial(t, ts)
	send(t, alice, "set-name", map[string]string{"name": "alice"})
	waitFor(t, alice, "presence-update")

	bob := dial(t, ts)
	send(t, bob, "set-name", map[string]string{"name": "bob"})
	waitFor(t, bob, "presence-update")

	type relayError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	// Disallowed extension
	send(t, alice, "file-upload", map[string]string{
		"fileName": "payload.exe",
		"fileData": base64.StdEncoding.EncodeToString([]byte("MZ")),
	})
	var typeErr relayError
	req.NoError(json.Unmarshal(waitFor(t, alice, "error"), &typeErr))
	req.Equal("TypeNotAllowed", typeErr.Code)

	// Over the size cap
	send(t, alice, "file-upload", map[string]string{
		"fileName": "big.txt",
		"fileData": base64.StdEncoding.EncodeToString(make([]byte, 200)),
	})
	var sizeErr relayError
	req.NoError(json.Unmarshal(waitFor(t, alice, "error"), &sizeErr))
	req.Equal("TooLarge", sizeErr.Code)

	// Peers never hear about either failure
	requireSilence(t, bob)
}
