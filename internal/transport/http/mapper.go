package http

import (
	"encoding/json"

	"github.com/meshcall/meshcall-server/internal/core"
	"github.com/meshcall/meshcall-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeInitiate:
		var data proto.InitiateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.ConversationID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "conversationId is required"}, nil
		}
		recipients := make([]core.SignalingAddress, 0, len(data.Recipients))
		for _, r := range data.Recipients {
			recipients = append(recipients, core.SignalingAddress(r))
		}
		return &core.Command{
			Kind:           core.CommandInitiateCall,
			ConversationID: data.ConversationID,
			Mode:           core.CallMode(data.Mode),
			Recipients:     recipients,
		}, nil, nil
	case proto.InboundTypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "callId is required"}, nil
		}
		return &core.Command{
			Kind:         core.CommandJoinCall,
			CallID:       core.CallID(data.CallID),
			AudioEnabled: boolOrTrue(data.Settings.AudioEnabled),
			VideoEnabled: boolOrTrue(data.Settings.VideoEnabled),
		}, nil, nil
	case proto.InboundTypeLeave:
		var data proto.LeaveData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "callId is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandLeaveCall,
			CallID: core.CallID(data.CallID),
		}, nil, nil
	case proto.InboundTypeToggleAudio, proto.InboundTypeToggleVideo:
		var data proto.ToggleData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "callId is required"}, nil
		}
		media := core.MediaTypeAudio
		if inbound.Type == proto.InboundTypeToggleVideo {
			media = core.MediaTypeVideo
		}
		return &core.Command{
			Kind:      core.CommandToggleMedia,
			CallID:    core.CallID(data.CallID),
			MediaType: media,
			Enabled:   data.Enabled,
		}, nil, nil
	case proto.InboundTypeSignal:
		var data proto.SignalData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" || data.To == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "callId and toId are required"}, nil
		}
		return &core.Command{
			Kind:    core.CommandRelaySignal,
			CallID:  core.CallID(data.CallID),
			To:      core.SignalingAddress(data.To),
			Payload: data.Payload,
		}, nil, nil
	case proto.InboundTypeEnd:
		var data proto.LeaveData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.CallID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "callId is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandEndCall,
			CallID: core.CallID(data.CallID),
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func boolOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func participantInfo(p *core.ParticipantSnapshot) proto.ParticipantInfo {
	info := proto.ParticipantInfo{
		ID:           p.ID.String(),
		Addr:         p.Address.String(),
		Username:     p.Username,
		AudioEnabled: p.IsAudioEnabled,
		VideoEnabled: p.IsVideoEnabled,
		JoinedAt:     p.JoinedAt.Unix(),
	}
	if p.LeftAt != nil {
		left := p.LeftAt.Unix()
		info.LeftAt = &left
	}
	return info
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventCallInitiated:
		participants := make([]proto.ParticipantInfo, 0, len(event.Call.Participants))
		for i := range event.Call.Participants {
			participants = append(participants, participantInfo(&event.Call.Participants[i]))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameInitiated,
			Data: proto.EventInitiated{
				CallID:         event.Call.CallID.String(),
				ConversationID: event.Call.ConversationID,
				Mode:           string(event.Call.Mode),
				Initiator:      event.Call.Initiator.String(),
				Participants:   participants,
			},
		}
	case core.EventParticipantJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameParticipantJoined,
			Data: proto.EventParticipantJoined{
				CallID:      event.Call.CallID.String(),
				Participant: participantInfo(event.Call.Participant),
			},
		}
	case core.EventParticipantLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameParticipantLeft,
			Data: proto.EventParticipantLeft{
				CallID:        event.Call.CallID.String(),
				ParticipantID: event.Call.Address.String(),
			},
		}
	case core.EventMediaToggled:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMediaToggled,
			Data: proto.EventMediaToggled{
				CallID:        event.Call.CallID.String(),
				ParticipantID: event.Call.Address.String(),
				MediaType:     string(event.Call.MediaType),
				Enabled:       event.Call.Enabled,
			},
		}
	case core.EventCallEnded:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameEnded,
			Data: proto.EventEnded{
				CallID:     event.Call.CallID.String(),
				DurationMS: event.Call.Duration.Milliseconds(),
			},
		}
	case core.EventSignal:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameSignal,
			Data: proto.EventSignal{
				CallID:  event.Signal.CallID.String(),
				FromID:  event.Signal.From.String(),
				ToID:    event.Signal.To.String(),
				Payload: event.Signal.Payload,
			},
		}
	case core.EventError:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventNameError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown event"},
		}
	}
}
