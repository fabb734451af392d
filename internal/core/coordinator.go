package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meshcall/meshcall-server/internal/store"
)

// Coordinator is the entry point for all call operations. It drives the
// registry, the participant records, the timeout supervisor and the
// signaling channel. State for one call mutates strictly serially under the
// registry's per-session lock; independent calls proceed in parallel.
type Coordinator struct {
	registry *Registry
	channel  SignalingChannel
	timeouts *TimeoutSupervisor
	history  store.Store
	log      *zerolog.Logger
}

// NewCoordinator wires the coordinator. history may be nil when call
// accounting is disabled; ringTTL bounds how long an unanswered call may
// stay in the initiated state.
func NewCoordinator(channel SignalingChannel, history store.Store, ringTTL time.Duration, logger *zerolog.Logger) *Coordinator {
	c := &Coordinator{
		registry: NewRegistry(),
		channel:  channel,
		history:  history,
		log:      logger,
	}
	c.timeouts = NewTimeoutSupervisor(ringTTL, c.handleTimeout)
	return c
}

// Session returns an immutable snapshot of a registered session.
func (c *Coordinator) Session(id CallID) (SessionSnapshot, error) {
	return c.registry.Snapshot(id)
}

// Shutdown stops all outstanding ring timers.
func (c *Coordinator) Shutdown() {
	c.timeouts.Shutdown()
}

// Initiate creates a call session in the initiated state, arms its ring
// timer and notifies the intended recipients. Re-initiating a live call for
// the same conversation by the same initiator is idempotent.
func (c *Coordinator) Initiate(ctx context.Context, from SignalingAddress, conversationID string, mode CallMode, recipients []SignalingAddress) (SessionSnapshot, error) {
	if from.IsZero() {
		return SessionSnapshot{}, ErrUnauthorized
	}
	if conversationID == "" {
		return SessionSnapshot{}, fmt.Errorf("%w: conversation id is required", ErrBadRequest)
	}
	if !ValidCallMode(mode) {
		return SessionSnapshot{}, fmt.Errorf("%w: unknown call mode %q", ErrBadRequest, mode)
	}

	if id, ok := c.registry.FindByConversation(conversationID, from); ok {
		if snap, err := c.registry.Snapshot(id); err == nil {
			c.log.Debug().Str("call_id", id.String()).Str("initiator", from.String()).Msg("duplicate initiate, returning live call")
			return snap, nil
		}
	}

	s := NewCallSession(conversationID, mode, from)
	c.registry.Insert(s)
	c.channel.Subscribe(s.ID, from)
	c.timeouts.Start(s.ID)

	snap := s.Snapshot()
	c.recordCallCreated(ctx, snap)

	ev := &Event{Kind: EventCallInitiated, Call: &CallEventData{
		CallID:         snap.ID,
		ConversationID: snap.ConversationID,
		Mode:           snap.Mode,
		Initiator:      snap.Initiator,
		Participants:   snap.Participants,
	}}
	for _, to := range recipients {
		if to == from {
			continue
		}
		if err := c.channel.Send(to, ev); err != nil {
			c.log.Debug().Str("call_id", snap.ID.String()).Str("to", to.String()).Msg("initiate recipient unreachable")
		}
	}

	c.log.Info().
		Str("call_id", snap.ID.String()).
		Str("conversation_id", conversationID).
		Str("mode", string(mode)).
		Str("initiator", from.String()).
		Msg("call initiated")
	return snap, nil
}

// Join adds the caller to a call. Joining twice with the same address keeps
// exactly one active record and broadcasts participant-joined only once.
// The session turns active on the first non-initiator join, which also
// disarms the ring timer.
func (c *Coordinator) Join(ctx context.Context, from SignalingAddress, username string, id CallID, audioEnabled, videoEnabled bool) (ParticipantSnapshot, error) {
	if from.IsZero() {
		return ParticipantSnapshot{}, ErrUnauthorized
	}

	var (
		snap         ParticipantSnapshot
		duplicate    bool
		becameActive bool
	)
	err := c.registry.With(id, func(s *CallSession) error {
		if s.Status == CallStatusEnded {
			return ErrAlreadyEnded
		}
		p, already := s.AddParticipant(from, username, audioEnabled, videoEnabled)
		duplicate = already
		if !already && s.Status == CallStatusInitiated && from != s.Initiator {
			s.Status = CallStatusActive
			becameActive = true
		}
		snap = snapshotParticipant(p)
		return nil
	})
	if err != nil {
		return ParticipantSnapshot{}, err
	}

	c.channel.Subscribe(id, from)
	if becameActive {
		c.timeouts.Cancel(id)
		c.recordCallStatus(ctx, id, CallStatusActive, nil)
	}
	if duplicate {
		return snap, nil
	}

	c.recordParticipantJoined(ctx, id, snap)
	c.channel.Broadcast(id, &Event{Kind: EventParticipantJoined, Call: &CallEventData{
		CallID:      id,
		Participant: &snap,
	}})

	c.log.Info().Str("call_id", id.String()).Str("addr", from.String()).Msg("participant joined")
	return snap, nil
}

// Leave marks the caller as gone. When the last active participant departs,
// the session terminates and call:ended carries the elapsed duration.
func (c *Coordinator) Leave(ctx context.Context, from SignalingAddress, id CallID) error {
	if from.IsZero() {
		return ErrUnauthorized
	}

	var (
		left     ParticipantSnapshot
		endedNow bool
		endedAt  time.Time
		duration time.Duration
	)
	err := c.registry.With(id, func(s *CallSession) error {
		if s.Status == CallStatusEnded {
			return ErrAlreadyEnded
		}
		p, err := s.RemoveParticipant(from)
		if err != nil {
			return err
		}
		left = snapshotParticipant(p)
		if len(s.ActiveAddresses()) == 0 {
			now := time.Now()
			s.Status = CallStatusEnded
			s.EndedAt = &now
			endedNow = true
			endedAt = now
			duration = now.Sub(s.StartedAt)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.recordParticipantLeft(ctx, id, left)
	c.channel.Broadcast(id, &Event{Kind: EventParticipantLeft, Call: &CallEventData{
		CallID:      id,
		Address:     from,
		Participant: &left,
	}})

	if endedNow {
		c.timeouts.Cancel(id)
		c.recordCallStatus(ctx, id, CallStatusEnded, &endedAt)
		c.channel.Broadcast(id, &Event{Kind: EventCallEnded, Call: &CallEventData{
			CallID:   id,
			Duration: duration,
		}})
		c.channel.DropCall(id)
		c.log.Info().Str("call_id", id.String()).Dur("duration", duration).Msg("call ended")
	}

	c.channel.Unsubscribe(id, from)
	return nil
}

// ToggleMedia flips the caller's own audio or video flag and broadcasts the
// change. No state machine transition happens here.
func (c *Coordinator) ToggleMedia(ctx context.Context, from SignalingAddress, id CallID, media MediaType, enabled bool) error {
	if from.IsZero() {
		return ErrUnauthorized
	}

	var snap ParticipantSnapshot
	err := c.registry.With(id, func(s *CallSession) error {
		if s.Status == CallStatusEnded {
			return ErrAlreadyEnded
		}
		p, err := s.UpdateMedia(from, media, enabled)
		if err != nil {
			return err
		}
		snap = snapshotParticipant(p)
		return nil
	})
	if err != nil {
		return err
	}

	c.recordParticipantUpdated(ctx, id, snap)
	c.channel.Broadcast(id, &Event{Kind: EventMediaToggled, Call: &CallEventData{
		CallID:    id,
		Address:   from,
		MediaType: media,
		Enabled:   enabled,
	}})
	return nil
}

// RelaySignal forwards an opaque handshake payload to one recipient. The
// payload is never inspected. An unreachable recipient is reported to the
// sender and leaves the session untouched.
func (c *Coordinator) RelaySignal(ctx context.Context, from SignalingAddress, id CallID, to SignalingAddress, payload []byte) error {
	if from.IsZero() {
		return ErrUnauthorized
	}
	if to.IsZero() {
		return fmt.Errorf("%w: relay target is required", ErrBadRequest)
	}

	err := c.registry.With(id, func(s *CallSession) error {
		if s.Status == CallStatusEnded {
			return ErrAlreadyEnded
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.channel.Send(to, &Event{Kind: EventSignal, Signal: &SignalData{
		CallID:  id,
		From:    from,
		To:      to,
		Payload: payload,
	}})
}

// End terminates the call for everyone. Ending an already-ended call is a
// no-op.
func (c *Coordinator) End(ctx context.Context, from SignalingAddress, id CallID) error {
	if from.IsZero() {
		return ErrUnauthorized
	}

	var (
		ended    bool
		endedAt  time.Time
		duration time.Duration
	)
	err := c.registry.With(id, func(s *CallSession) error {
		if s.Status == CallStatusEnded {
			return nil
		}
		now := time.Now()
		for _, p := range s.participants {
			if p.IsActive() {
				left := now
				p.LeftAt = &left
			}
		}
		s.Status = CallStatusEnded
		s.EndedAt = &now
		ended = true
		endedAt = now
		duration = now.Sub(s.StartedAt)
		return nil
	})
	if err != nil || !ended {
		return err
	}

	c.timeouts.Cancel(id)
	c.recordCallStatus(ctx, id, CallStatusEnded, &endedAt)
	c.channel.Broadcast(id, &Event{Kind: EventCallEnded, Call: &CallEventData{
		CallID:   id,
		Duration: duration,
	}})
	c.channel.DropCall(id)
	c.log.Info().Str("call_id", id.String()).Str("by", from.String()).Dur("duration", duration).Msg("call ended")
	return nil
}

// HandleDisconnect removes a departed connection from every call it was
// active in, as if it had sent leave for each.
func (c *Coordinator) HandleDisconnect(ctx context.Context, addr SignalingAddress) {
	if addr.IsZero() {
		return
	}
	for _, id := range c.registry.IDs() {
		err := c.Leave(ctx, addr, id)
		if err != nil && !errors.Is(err, ErrParticipantNotFound) && !errors.Is(err, ErrAlreadyEnded) && !errors.Is(err, ErrCallNotFound) {
			c.log.Warn().Err(err).Str("call_id", id.String()).Str("addr", addr.String()).Msg("leave on disconnect failed")
		}
	}
}

// handleTimeout fires when the ring timer expires. Status is re-checked
// under the session lock: a call that turned active a moment before expiry
// is left alone.
func (c *Coordinator) handleTimeout(id CallID) {
	var (
		expired bool
		endedAt time.Time
	)
	err := c.registry.With(id, func(s *CallSession) error {
		if s.Status != CallStatusInitiated {
			return nil
		}
		now := time.Now()
		endedAt = now
		for _, p := range s.participants {
			if p.IsActive() {
				left := now
				p.LeftAt = &left
			}
		}
		s.Status = CallStatusEnded
		s.EndedAt = &now
		expired = true
		return nil
	})
	if err != nil || !expired {
		return
	}

	// Nobody answered: tear down quietly, initiator clients reset on their
	// own. History still records the outcome.
	c.recordCallStatus(context.Background(), id, CallStatusEnded, &endedAt)
	c.channel.DropCall(id)
	c.log.Info().Str("call_id", id.String()).Msg("unanswered call reclaimed by timeout")
}

// Dispatch validates and routes one inbound command from a connected client.
// Errors surface as call:error events to that client only; operations on
// already-ended calls are logged and ignored.
func (c *Coordinator) Dispatch(ctx context.Context, client *Client, cmd *Command) {
	if client.Address.IsZero() {
		client.push(&Event{Kind: EventError, Error: coreError(ErrCodeUnauthorized, "caller identity is required")})
		return
	}

	var err error
	switch cmd.Kind {
	case CommandInitiateCall:
		var snap SessionSnapshot
		snap, err = c.Initiate(ctx, client.Address, cmd.ConversationID, cmd.Mode, cmd.Recipients)
		if err == nil {
			// The initiator learns the call id through the same event the
			// recipients get.
			client.push(&Event{Kind: EventCallInitiated, Call: &CallEventData{
				CallID:         snap.ID,
				ConversationID: snap.ConversationID,
				Mode:           snap.Mode,
				Initiator:      snap.Initiator,
				Participants:   snap.Participants,
			}})
		}
	case CommandJoinCall:
		_, err = c.Join(ctx, client.Address, client.Username, cmd.CallID, cmd.AudioEnabled, cmd.VideoEnabled)
	case CommandLeaveCall:
		err = c.Leave(ctx, client.Address, cmd.CallID)
	case CommandToggleMedia:
		err = c.ToggleMedia(ctx, client.Address, cmd.CallID, cmd.MediaType, cmd.Enabled)
	case CommandRelaySignal:
		err = c.RelaySignal(ctx, client.Address, cmd.CallID, cmd.To, cmd.Payload)
	case CommandEndCall:
		err = c.End(ctx, client.Address, cmd.CallID)
	default:
		err = fmt.Errorf("%w: unknown command kind", ErrBadRequest)
	}
	if err == nil {
		return
	}

	if errors.Is(err, ErrAlreadyEnded) {
		c.log.Warn().Str("call_id", cmd.CallID.String()).Str("addr", client.Address.String()).Msg("operation on ended call ignored")
		return
	}
	client.push(&Event{Kind: EventError, Error: coreErrorFrom(err)})
}

// ==== best-effort call accounting ====
//
// History writes never fail a session mutation that already committed.

func (c *Coordinator) recordCallCreated(ctx context.Context, snap SessionSnapshot) {
	if c.history == nil {
		return
	}
	rec := &store.Call{
		ID:             snap.ID.String(),
		ConversationID: snap.ConversationID,
		Mode:           string(snap.Mode),
		Initiator:      snap.Initiator.String(),
		Status:         string(snap.Status),
		StartedAt:      snap.StartedAt,
	}
	if err := c.history.CreateCall(ctx, rec); err != nil {
		c.log.Warn().Err(err).Str("call_id", rec.ID).Msg("record call create failed")
	}
}

func (c *Coordinator) recordCallStatus(ctx context.Context, id CallID, status CallStatus, endedAt *time.Time) {
	if c.history == nil {
		return
	}
	if err := c.history.UpdateCallStatus(ctx, id.String(), string(status), endedAt); err != nil {
		c.log.Warn().Err(err).Str("call_id", id.String()).Msg("record call status failed")
	}
}

func (c *Coordinator) recordParticipantJoined(ctx context.Context, id CallID, snap ParticipantSnapshot) {
	if c.history == nil {
		return
	}
	rec := &store.CallParticipant{
		ID:             snap.ID.String(),
		CallID:         id.String(),
		Address:        snap.Address.String(),
		Username:       snap.Username,
		IsAudioEnabled: snap.IsAudioEnabled,
		IsVideoEnabled: snap.IsVideoEnabled,
		JoinedAt:       snap.JoinedAt,
	}
	if err := c.history.AddParticipant(ctx, rec); err != nil {
		c.log.Warn().Err(err).Str("call_id", id.String()).Msg("record participant join failed")
	}
}

func (c *Coordinator) recordParticipantLeft(ctx context.Context, id CallID, snap ParticipantSnapshot) {
	c.recordParticipantUpdated(ctx, id, snap)
}

func (c *Coordinator) recordParticipantUpdated(ctx context.Context, id CallID, snap ParticipantSnapshot) {
	if c.history == nil {
		return
	}
	rec := &store.CallParticipant{
		ID:             snap.ID.String(),
		CallID:         id.String(),
		Address:        snap.Address.String(),
		Username:       snap.Username,
		IsAudioEnabled: snap.IsAudioEnabled,
		IsVideoEnabled: snap.IsVideoEnabled,
		JoinedAt:       snap.JoinedAt,
		LeftAt:         snap.LeftAt,
	}
	if err := c.history.UpdateParticipant(ctx, rec); err != nil {
		c.log.Warn().Err(err).Str("call_id", id.String()).Msg("record participant update failed")
	}
}
