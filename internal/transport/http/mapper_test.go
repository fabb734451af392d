package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/meshcall/meshcall-server/internal/core"
	"github.com/meshcall/meshcall-server/internal/proto"
)

func mustCommand(t *testing.T, msgType, data string) *core.Command {
	t.Helper()

	cmd, protoErr, err := inboundToCommand(proto.Inbound{Type: msgType, Data: json.RawMessage(data)})
	if err != nil {
		t.Fatalf("decode %s: %v", msgType, err)
	}
	if protoErr != nil {
		t.Fatalf("unexpected protocol error for %s: %+v", msgType, protoErr)
	}
	return cmd
}

func TestInboundToCommandInitiate(t *testing.T) {
	cmd := mustCommand(t, proto.InboundTypeInitiate,
		`{"conversationId":"conv-1","mode":"video","recipients":["bob","carol"]}`)

	if cmd.Kind != core.CommandInitiateCall || cmd.ConversationID != "conv-1" || cmd.Mode != core.CallModeVideo {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if len(cmd.Recipients) != 2 || cmd.Recipients[0] != "bob" || cmd.Recipients[1] != "carol" {
		t.Fatalf("unexpected recipients: %v", cmd.Recipients)
	}
}

func TestInboundToCommandJoinDefaultsMediaOn(t *testing.T) {
	cmd := mustCommand(t, proto.InboundTypeJoin, `{"callId":"call-1"}`)
	if !cmd.AudioEnabled || !cmd.VideoEnabled {
		t.Fatalf("omitted settings should default to enabled: %+v", cmd)
	}

	cmd = mustCommand(t, proto.InboundTypeJoin,
		`{"callId":"call-1","settings":{"audioEnabled":false}}`)
	if cmd.AudioEnabled || !cmd.VideoEnabled {
		t.Fatalf("explicit false not honored: %+v", cmd)
	}
}

func TestInboundToCommandToggleKinds(t *testing.T) {
	audio := mustCommand(t, proto.InboundTypeToggleAudio, `{"callId":"call-1","enabled":false}`)
	if audio.Kind != core.CommandToggleMedia || audio.MediaType != core.MediaTypeAudio || audio.Enabled {
		t.Fatalf("unexpected audio toggle: %+v", audio)
	}

	video := mustCommand(t, proto.InboundTypeToggleVideo, `{"callId":"call-1","enabled":true}`)
	if video.MediaType != core.MediaTypeVideo || !video.Enabled {
		t.Fatalf("unexpected video toggle: %+v", video)
	}
}

func TestInboundToCommandSignalKeepsPayloadOpaque(t *testing.T) {
	payload := `{"kind":"offer","sdp":"v=0","nested":{"deep":[1,2,3]}}`
	cmd := mustCommand(t, proto.InboundTypeSignal,
		`{"callId":"call-1","toId":"bob","payload":`+payload+`}`)

	if cmd.Kind != core.CommandRelaySignal || cmd.To != "bob" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if string(cmd.Payload) != payload {
		t.Fatalf("payload not preserved verbatim: %s", cmd.Payload)
	}
}

func TestInboundToCommandValidation(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		data    string
		code    string
	}{
		{"initiate without conversation", proto.InboundTypeInitiate, `{"mode":"video"}`, core.ErrCodeBadRequest},
		{"join without call id", proto.InboundTypeJoin, `{}`, core.ErrCodeBadRequest},
		{"leave without call id", proto.InboundTypeLeave, `{}`, core.ErrCodeBadRequest},
		{"toggle without call id", proto.InboundTypeToggleAudio, `{"enabled":true}`, core.ErrCodeBadRequest},
		{"signal without target", proto.InboundTypeSignal, `{"callId":"call-1","payload":{}}`, core.ErrCodeBadRequest},
		{"end without call id", proto.InboundTypeEnd, `{}`, core.ErrCodeBadRequest},
		{"unknown type", "call:teleport", `{}`, "invalid_message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, protoErr, err := inboundToCommand(proto.Inbound{Type: tt.msgType, Data: json.RawMessage(tt.data)})
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if cmd != nil {
				t.Fatalf("invalid input produced a command: %+v", cmd)
			}
			if protoErr == nil || protoErr.Code != tt.code {
				t.Fatalf("expected %s error, got %+v", tt.code, protoErr)
			}
		})
	}
}

func TestOutboundFromEvent(t *testing.T) {
	joined := time.Now()
	snap := core.ParticipantSnapshot{
		ID:             core.NewParticipantRecordID(),
		Address:        "bob",
		Username:       "bob",
		IsAudioEnabled: true,
		JoinedAt:       joined,
	}

	out := outboundFromEvent(&core.Event{Kind: core.EventParticipantJoined, Call: &core.CallEventData{
		CallID:      "call-1",
		Participant: &snap,
	}})
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameParticipantJoined {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	data, ok := out.Data.(proto.EventParticipantJoined)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if data.Participant.Addr != "bob" || !data.Participant.AudioEnabled || data.Participant.VideoEnabled {
		t.Fatalf("unexpected participant info: %+v", data.Participant)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventCallEnded, Call: &core.CallEventData{
		CallID:   "call-1",
		Duration: 1500 * time.Millisecond,
	}})
	ended, ok := out.Data.(proto.EventEnded)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if ended.DurationMS != 1500 {
		t.Fatalf("expected duration in milliseconds, got %d", ended.DurationMS)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: core.ErrCodeCallNotFound, Message: "call not found"}})
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeCallNotFound {
		t.Fatalf("unexpected error envelope: %+v", out)
	}
}

func TestOutboundFromEventSignal(t *testing.T) {
	payload := json.RawMessage(`{"kind":"candidate","candidate":"udp 1 2"}`)
	out := outboundFromEvent(&core.Event{Kind: core.EventSignal, Signal: &core.SignalData{
		CallID:  "call-1",
		From:    "alice",
		To:      "bob",
		Payload: payload,
	}})

	data, ok := out.Data.(proto.EventSignal)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if data.FromID != "alice" || data.ToID != "bob" || string(data.Payload) != string(payload) {
		t.Fatalf("unexpected signal event: %+v", data)
	}
}
