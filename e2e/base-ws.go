package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"chat-relay/infrastructure/ws"
	"chat-relay/pipeline"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/storage"
)

// Frame is the wire envelope both directions share.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type BaseRelaySuite struct {
	suite.Suite
	Config Config

	// HTTPBase is the http:// base URL of the relay under test, used to
	// fetch stored uploads.
	HTTPBase string
	wsURL    string
	embedded *httptest.Server
	conns    []*websocket.Conn
}

// SetupSuite loads the environment configuration and, when no external
// relay address is configured, boots an in-process instance.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr != "" {
		s.HTTPBase = "http://" + s.Config.RelayAddr
		s.wsURL = "ws://" + s.Config.RelayAddr + "/ws"
		return
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewDiskStore(s.T().TempDir(), time.Minute, log)
	s.Require().NoError(err)

	allowed := map[string]struct{}{"txt": {}, "png": {}, "pdf": {}}
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, nil, time.Second)
	uploads := pipeline.NewPipeline(log, registry, router, store, nil,
		1<<20, allowed, ws.UploadsPath, time.Second)
	service := services.NewRelayService(registry, router, uploads)

	server := ws.NewServer(log, service, store, nil, 32, 1<<20)
	s.embedded = httptest.NewServer(server.Handler())
	s.HTTPBase = s.embedded.URL
	s.wsURL = "ws" + strings.TrimPrefix(s.embedded.URL, "http") + "/ws"
}

func (s *BaseRelaySuite) TearDownSuite() {
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	if s.embedded != nil {
		s.embedded.Close()
	}
}

// RelayClient wraps one WebSocket connection with frame logging.
type RelayClient struct {
	suite *BaseRelaySuite
	t     *testing.T
	conn  *websocket.Conn
}

// Dial connects a named participant and prints a colorized header for
// the step in logs.
func (s *BaseRelaySuite) Dial(t *testing.T, name string) *RelayClient {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.wsURL)
	s.conns = append(s.conns, conn)

	return &RelayClient{suite: s, t: t, conn: conn}
}

func (c *RelayClient) Close() {
	_ = c.conn.Close()
}

func (c *RelayClient) Send(event string, data any) {
	if c.suite.Config.DebugJSON {
		payload, _ := json.Marshal(data)
		c.t.Logf("SEND %s %s", event, payload)
	}
	c.suite.Require().NoError(c.conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// WaitFor reads frames until one matches the wanted event. Frames that
// interleave in between are logged and skipped.
func (c *RelayClient) WaitFor(event string) json.RawMessage {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var f Frame
		c.suite.Require().NoError(c.conn.ReadJSON(&f), "waiting for %q", event)
		if c.suite.Config.DebugJSON {
			c.t.Logf("RECV %s %s", f.Event, f.Data)
		}
		if f.Event == event {
			return f.Data
		}
	}
}

// Decode unmarshals a frame payload into out.
func (c *RelayClient) Decode(data json.RawMessage, out any) {
	c.suite.Require().NoError(json.Unmarshal(data, out))
}
