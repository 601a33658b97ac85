package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"chat-relay/pipeline"
	"chat-relay/services"
)

var validate = validator.New()

// Client owns one WebSocket connection. The read pump parses inbound
// frames and hands them to the relay service; the write pump drains the
// connection's sink back to the browser. Separating the two avoids
// head-of-line blocking when a browser is slow.
type Client struct {
	id      string
	socket  *websocket.Conn
	sink    *ConnSink
	service services.IRelayService
	log     *slog.Logger
}

func newClient(id string, socket *websocket.Conn, sink *ConnSink,
	service services.IRelayService, log *slog.Logger) *Client {
	return &Client{
		id:      id,
		socket:  socket,
		sink:    sink,
		service: service,
		log:     log.With("connection_id", id),
	}
}

// read consumes frames until the connection dies, then unwinds the
// session. Cancelling the connection context stops the write pump too.
func (c *Client) read(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.service.Disconnect(context.Background(), c.id)
		_ = c.socket.Close()
	}()

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			c.log.Debug("Connection closed", "error", err)
			return
		}
		c.dispatch(ctx, raw)
	}
}

// write drains the sink. Events were already dropped upstream if the
// buffer overflowed; anything read here is delivered or the connection
// is torn down.
func (c *Client) write(ctx context.Context) {
	defer c.socket.Close()

	for {
		select {
		case <-ctx.Done():
			_ = c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case evt := <-c.sink.Events:
			if err := c.socket.WriteJSON(toEnvelope(evt)); err != nil {
				c.log.Debug("Write failed, dropping connection", "error", err)
				return
			}
		}
	}
}

// dispatch routes one inbound frame to its handler. Unknown events and
// malformed payloads are dropped: the relay never answers garbage with
// an error frame.
func (c *Client) dispatch(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("Unparseable frame", "error", err)
		return
	}

	switch env.Event {
	case evSetName:
		var payload setNamePayload
		if !c.decode(env.Data, &payload) {
			return
		}
		c.service.SetName(ctx, c.id, payload.Name)

	case evChatBroadcast:
		var payload broadcastPayload
		if !c.decode(env.Data, &payload) {
			return
		}
		c.service.Broadcast(ctx, c.id, payload.Body)

	case evChatDirect:
		var payload directPayload
		if !c.decode(env.Data, &payload) {
			return
		}
		c.service.Direct(ctx, c.id, payload.RecipientID, payload.Body)

	case evFileUpload:
		var payload uploadPayload
		if !c.decode(env.Data, &payload) {
			return
		}
		data, err := pipeline.DecodeUploadPayload(payload.FileData)
		if err != nil {
			c.log.Warn("Undecodable upload payload", "file_name", payload.FileName, "error", err)
			return
		}
		c.service.ShareFile(ctx, pipeline.Upload{
			OwnerID:     c.id,
			RecipientID: payload.RecipientID,
			FileName:    payload.FileName,
			Data:        data,
		})

	default:
		c.log.Debug("Unknown event", "event", env.Event)
	}
}

func (c *Client) decode(raw json.RawMessage, payload any) bool {
	if err := json.Unmarshal(raw, payload); err != nil {
		c.log.Debug("Malformed payload", "error", err)
		return false
	}
	if err := validate.Struct(payload); err != nil {
		c.log.Debug("Invalid payload", "error", err)
		return false
	}
	return true
}
