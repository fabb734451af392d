package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/meshcall/meshcall-server/internal/core"
	"github.com/meshcall/meshcall-server/internal/proto"
)

// Smoke client: mints a guest identity, connects, then either initiates a
// call for a conversation or joins an existing call. When initiating it
// runs the offer-creation policy on every participant-joined event and
// relays placeholder offers, so a full signaling round trip can be watched
// from two terminals.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_call: %v", err)
		os.Exit(1)
	}
}

func run() error {
	wsAddr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	apiAddr := flag.String("api", "http://localhost:8080", "REST API base URL")
	user := flag.String("user", "cli-user", "display name")
	conversation := flag.String("initiate", "", "conversation id to start a call in")
	join := flag.String("join", "", "call id to join")
	mode := flag.String("mode", "video", "call mode (audio or video)")
	flag.Parse()

	if (*conversation == "") == (*join == "") {
		return errors.New("exactly one of -initiate or -join is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	self, token, err := mintGuest(ctx, *apiAddr, *user)
	if err != nil {
		return fmt.Errorf("mint guest identity: %w", err)
	}
	fmt.Printf("identity: %s (%s)\n", *user, self)

	conn, _, err := websocket.Dial(ctx, *wsAddr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(msgType string, data any) {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Printf("marshal %s: %v", msgType, err)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: raw}); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})

	initiating := *conversation != ""
	if initiating {
		send(proto.InboundTypeInitiate, proto.InitiateData{ConversationID: *conversation, Mode: *mode})
	} else {
		send(proto.InboundTypeJoin, proto.JoinData{CallID: *join})
	}

	fmt.Println("Connected. Ctrl+C to leave.")
	readLoop(ctx, conn, self, initiating, send)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, self core.SignalingAddress, initiating bool, send func(string, any)) {
	var policy *core.OfferPolicy
	roster := make(map[core.SignalingAddress]struct{})

	offerTo := func(ctx context.Context, peer core.SignalingAddress) error {
		fmt.Printf("-> offer to %s\n", peer)
		send(proto.InboundTypeSignal, proto.SignalData{
			CallID:  policy.CallID().String(),
			To:      peer.String(),
			Payload: json.RawMessage(`{"kind":"offer","sdp":"smoke"}`),
		})
		return nil
	}

	runPolicy := func() {
		if policy == nil {
			return
		}
		active := make([]core.SignalingAddress, 0, len(roster))
		for addr := range roster {
			active = append(active, addr)
		}
		if err := policy.OnParticipantJoined(ctx, active, offerTo); err != nil {
			log.Printf("offer policy: %v", err)
		}
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Error != nil {
			fmt.Printf("error [%s]: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventNameInitiated:
			var evt proto.EventInitiated
			if decode(outbound.Data, &evt) != nil {
				continue
			}
			fmt.Printf("call %s initiated in %s\n", evt.CallID, evt.ConversationID)
			if initiating && policy == nil {
				policy = core.NewOfferPolicy(core.CallID(evt.CallID), self, true)
				// The initiator joins its own call right away.
				send(proto.InboundTypeJoin, proto.JoinData{CallID: evt.CallID})
			}
		case proto.EventNameParticipantJoined:
			var evt proto.EventParticipantJoined
			if decode(outbound.Data, &evt) != nil {
				continue
			}
			fmt.Printf("%s joined call %s\n", evt.Participant.Addr, evt.CallID)
			roster[core.SignalingAddress(evt.Participant.Addr)] = struct{}{}
			runPolicy()
		case proto.EventNameParticipantLeft:
			var evt proto.EventParticipantLeft
			if decode(outbound.Data, &evt) != nil {
				continue
			}
			fmt.Printf("%s left call %s\n", evt.ParticipantID, evt.CallID)
			delete(roster, core.SignalingAddress(evt.ParticipantID))
		case proto.EventNameSignal:
			var evt proto.EventSignal
			if decode(outbound.Data, &evt) != nil {
				continue
			}
			fmt.Printf("signal from %s: %s\n", evt.FromID, string(evt.Payload))
			if !initiating {
				send(proto.InboundTypeSignal, proto.SignalData{
					CallID:  evt.CallID,
					To:      evt.FromID,
					Payload: json.RawMessage(`{"kind":"answer","sdp":"smoke"}`),
				})
			}
		case proto.EventNameMediaToggled:
			var evt proto.EventMediaToggled
			if decode(outbound.Data, &evt) != nil {
				continue
			}
			fmt.Printf("%s toggled %s=%v\n", evt.ParticipantID, evt.MediaType, evt.Enabled)
		case proto.EventNameEnded:
			var evt proto.EventEnded
			if decode(outbound.Data, &evt) != nil {
				continue
			}
			fmt.Printf("call %s ended after %dms\n", evt.CallID, evt.DurationMS)
			return
		}
	}
}

func decode(data any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("marshal outbound data: %v", err)
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Printf("unmarshal outbound data: %v", err)
		return err
	}
	return nil
}

func mintGuest(ctx context.Context, apiAddr, username string) (core.SignalingAddress, string, error) {
	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return "", "", err
	}

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, apiAddr+"/api/auth/guest", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusCreated {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var guest struct {
		Token string `json:"token"`
		Addr  string `json:"addr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&guest); err != nil {
		return "", "", err
	}
	return core.SignalingAddress(guest.Addr), guest.Token, nil
}
