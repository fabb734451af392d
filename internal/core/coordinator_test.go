package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCallLifecycle(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	bob := connect(channel, "bob")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, []SignalingAddress{bob.Address})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if snap.Status != CallStatusInitiated || snap.Initiator != alice.Address {
		t.Fatalf("unexpected session snapshot: %+v", snap)
	}

	// The intended recipient is notified even before joining.
	initEv := mustEvent(t, bob.Events, EventCallInitiated)
	if initEv.Call.CallID != snap.ID || initEv.Call.Initiator != alice.Address {
		t.Fatalf("unexpected initiated event: %+v", initEv.Call)
	}

	// The initiator joining its own call does not answer it.
	if _, err := coord.Join(ctx, alice.Address, "alice", snap.ID, true, true); err != nil {
		t.Fatalf("initiator join: %v", err)
	}
	mustStatus(t, coord, snap.ID, CallStatusInitiated)

	if _, err := coord.Join(ctx, bob.Address, "bob", snap.ID, true, false); err != nil {
		t.Fatalf("join: %v", err)
	}
	mustStatus(t, coord, snap.ID, CallStatusActive)

	// Alice sees her own join echo first, then bob's.
	selfJoin := mustEvent(t, alice.Events, EventParticipantJoined)
	if selfJoin.Call.Participant.Address != alice.Address {
		t.Fatalf("expected alice join echo, got %+v", selfJoin.Call.Participant)
	}
	bobJoin := mustEvent(t, alice.Events, EventParticipantJoined)
	if bobJoin.Call.Participant.Address != bob.Address || bobJoin.Call.Participant.IsVideoEnabled {
		t.Fatalf("unexpected join event: %+v", bobJoin.Call.Participant)
	}

	if err := coord.ToggleMedia(ctx, bob.Address, snap.ID, MediaTypeAudio, false); err != nil {
		t.Fatalf("toggle media: %v", err)
	}
	toggleEv := mustEvent(t, alice.Events, EventMediaToggled)
	if toggleEv.Call.Address != bob.Address || toggleEv.Call.MediaType != MediaTypeAudio || toggleEv.Call.Enabled {
		t.Fatalf("unexpected toggle event: %+v", toggleEv.Call)
	}

	if err := coord.Leave(ctx, bob.Address, snap.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	leftEv := mustEvent(t, alice.Events, EventParticipantLeft)
	if leftEv.Call.Address != bob.Address {
		t.Fatalf("unexpected left event: %+v", leftEv.Call)
	}
	mustStatus(t, coord, snap.ID, CallStatusActive)

	// Last active participant leaving terminates the call.
	if err := coord.Leave(ctx, alice.Address, snap.ID); err != nil {
		t.Fatalf("final leave: %v", err)
	}
	endEv := mustEvent(t, alice.Events, EventCallEnded)
	if endEv.Call.CallID != snap.ID || endEv.Call.Duration <= 0 {
		t.Fatalf("unexpected ended event: %+v", endEv.Call)
	}
	final := mustStatus(t, coord, snap.ID, CallStatusEnded)
	if final.EndedAt == nil {
		t.Fatalf("ended session has no end time")
	}
}

func TestDuplicateJoinBroadcastsOnce(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	bob := connect(channel, "bob")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeAudio, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	first, err := coord.Join(ctx, bob.Address, "bob", snap.ID, true, true)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	second, err := coord.Join(ctx, bob.Address, "bob", snap.ID, false, true)
	if err != nil {
		t.Fatalf("duplicate join: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate join created a second record: %v vs %v", first.ID, second.ID)
	}

	joins := 0
	for _, ev := range drainEvents(alice.Events) {
		if ev.Kind == EventParticipantJoined && ev.Call.Participant.Address == bob.Address {
			joins++
		}
	}
	if joins != 1 {
		t.Fatalf("expected exactly one join broadcast for bob, got %d", joins)
	}

	// The duplicate still merged the new media settings.
	session := mustStatus(t, coord, snap.ID, CallStatusActive)
	for _, p := range session.Participants {
		if p.Address == bob.Address && p.IsAudioEnabled {
			t.Fatalf("duplicate join did not merge settings: %+v", p)
		}
	}
}

func TestToggleAfterLeaveFails(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	bob := connect(channel, "bob")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := coord.Join(ctx, alice.Address, "alice", snap.ID, true, true); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := coord.Join(ctx, bob.Address, "bob", snap.ID, true, true); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := coord.Leave(ctx, bob.Address, snap.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	err = coord.ToggleMedia(ctx, bob.Address, snap.ID, MediaTypeAudio, false)
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}

	// The failed toggle must not leak a broadcast.
	mustNoEvent(t, alice.Events, EventMediaToggled)
}

func TestRelayDeliversOpaquePayload(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	bob := connect(channel, "bob")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload := []byte("{\"kind\":\"offer\",\"sdp\":\"v=0 trailing\x00junk\"}")
	if err := coord.RelaySignal(ctx, alice.Address, snap.ID, bob.Address, payload); err != nil {
		t.Fatalf("relay: %v", err)
	}

	ev := mustEvent(t, bob.Events, EventSignal)
	if ev.Signal.From != alice.Address || ev.Signal.To != bob.Address {
		t.Fatalf("unexpected signal routing: %+v", ev.Signal)
	}
	if string(ev.Signal.Payload) != string(payload) {
		t.Fatalf("payload was altered in transit: %s", ev.Signal.Payload)
	}
}

func TestRelayToUnreachableRecipient(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	err = coord.RelaySignal(ctx, alice.Address, snap.ID, "ghost", []byte(`{}`))
	if !errors.Is(err, ErrRecipientNotConnected) {
		t.Fatalf("expected ErrRecipientNotConnected, got %v", err)
	}

	// A failed relay never mutates the session.
	mustStatus(t, coord, snap.ID, CallStatusInitiated)
}

func TestInitiateIsIdempotentPerConversation(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")

	first, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	second, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("re-initiate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-initiate created a second call: %v vs %v", first.ID, second.ID)
	}

	// After the call ends a fresh initiate starts a new one.
	if err := coord.End(ctx, alice.Address, first.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	third, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate after end: %v", err)
	}
	if third.ID == first.ID {
		t.Fatalf("initiate after end reused the ended call id")
	}
}

func TestRejoinKeepsParticipantRecord(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	bob := connect(channel, "bob")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := coord.Join(ctx, alice.Address, "alice", snap.ID, true, true); err != nil {
		t.Fatalf("join alice: %v", err)
	}

	first, err := coord.Join(ctx, bob.Address, "bob", snap.ID, true, true)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := coord.Leave(ctx, bob.Address, snap.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	again, err := coord.Join(ctx, bob.Address, "bob", snap.ID, true, true)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	if first.ID != again.ID {
		t.Fatalf("rejoin minted a new record id: %v vs %v", first.ID, again.ID)
	}
	if again.LeftAt != nil {
		t.Fatalf("rejoined participant still marked left: %+v", again)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeAudio, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := coord.Join(ctx, alice.Address, "alice", snap.ID, true, false); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := coord.End(ctx, alice.Address, snap.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := coord.End(ctx, alice.Address, snap.ID); err != nil {
		t.Fatalf("second end should be a no-op, got %v", err)
	}

	session := mustStatus(t, coord, snap.ID, CallStatusEnded)
	for _, p := range session.Participants {
		if p.LeftAt == nil {
			t.Fatalf("end left an active participant behind: %+v", p)
		}
	}
}

func TestJoinEndedCallReturnsAlreadyEnded(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := coord.End(ctx, alice.Address, snap.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	if _, err := coord.Join(ctx, "bob", "bob", snap.ID, true, true); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
	if _, err := coord.Join(ctx, "bob", "bob", "no-such-call", true, true); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestHandleDisconnectLeavesEveryCall(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	bob := connect(channel, "bob")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := coord.Join(ctx, alice.Address, "alice", snap.ID, true, true); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := coord.Join(ctx, bob.Address, "bob", snap.ID, true, true); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	coord.HandleDisconnect(ctx, bob.Address)

	leftEv := mustEvent(t, alice.Events, EventParticipantLeft)
	if leftEv.Call.Address != bob.Address {
		t.Fatalf("unexpected left event: %+v", leftEv.Call)
	}
}

func TestDispatchRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	coord, _ := newTestCoordinator(time.Minute)

	anon := NewClient("c1", "", "")
	coord.Dispatch(ctx, anon, &Command{Kind: CommandInitiateCall, ConversationID: "conv-1", Mode: CallModeVideo})

	ev := mustEvent(t, anon.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", ev)
	}
}

func TestDispatchAcksInitiator(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")
	coord.Dispatch(ctx, alice, &Command{Kind: CommandInitiateCall, ConversationID: "conv-1", Mode: CallModeVideo})

	ev := mustEvent(t, alice.Events, EventCallInitiated)
	if ev.Call.CallID == "" || ev.Call.ConversationID != "conv-1" {
		t.Fatalf("unexpected initiate ack: %+v", ev.Call)
	}
}

func TestDispatchIgnoresOperationsOnEndedCall(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")

	snap, err := coord.Initiate(ctx, alice.Address, "conv-1", CallModeVideo, nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := coord.End(ctx, alice.Address, snap.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	coord.Dispatch(ctx, alice, &Command{Kind: CommandJoinCall, CallID: snap.ID, AudioEnabled: true, VideoEnabled: true})

	// An already-ended call is logged server-side and not surfaced.
	mustNoEvent(t, alice.Events, EventError)
}

func TestDispatchRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	coord, channel := newTestCoordinator(time.Minute)

	alice := connect(channel, "alice")

	coord.Dispatch(ctx, alice, &Command{Kind: CommandInitiateCall, Mode: CallModeVideo})
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request for missing conversation, got %+v", ev)
	}

	coord.Dispatch(ctx, alice, &Command{Kind: CommandInitiateCall, ConversationID: "conv-1", Mode: "hologram"})
	ev = mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request for unknown mode, got %+v", ev)
	}
}
