package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/meshcall/meshcall-server/internal/auth"
	"github.com/meshcall/meshcall-server/internal/core"
	"github.com/meshcall/meshcall-server/internal/proto"
	"github.com/meshcall/meshcall-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
// The first inbound frame must be a hello carrying a valid identity token;
// every later frame is mapped to a coordinator command.
type WSHandler struct {
	coordinator *core.Coordinator
	channel     *core.LocalChannel
	authService *auth.Service
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(coordinator *core.Coordinator, channel *core.LocalChannel, authService *auth.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		coordinator: coordinator,
		channel:     channel,
		authService: authService,
		log:         logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client, err := h.handshake(ctx, conn)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws handshake failed")
		conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	h.channel.Attach(client)
	defer func() {
		h.channel.Detach(client)
		h.coordinator.HandleDisconnect(context.Background(), client.Address)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshake reads the hello frame and resolves the connection's identity.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (*core.Client, error) {
	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, err
	}
	if inbound.Type != proto.InboundTypeHello {
		return nil, errors.New("first message must be hello")
	}

	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		return nil, err
	}
	if hello.Token == "" {
		return nil, errors.New("hello carries no token")
	}

	claims, err := h.authService.ValidateToken(hello.Token)
	if err != nil {
		return nil, err
	}

	return core.NewClient(utils.NewConnID(), core.SignalingAddress(claims.Addr), claims.Username), nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("conn_id", client.ConnID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		h.coordinator.Dispatch(ctx, client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ConnID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
