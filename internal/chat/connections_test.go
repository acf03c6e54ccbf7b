package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/alumni-chat/internal/apperrors"
	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/models"
)

func TestSendRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		recipient uuid.UUID
		message   string
		code      apperrors.Code
	}{
		{"missing recipient", uuid.Nil, "", apperrors.CodeInvalidArgument},
		{"self", f.a.ID, "", apperrors.CodeInvalidArgument},
		{"message too long", f.b.ID, strings.Repeat("x", 201), apperrors.CodeInvalidArgument},
		{"unknown recipient", uuid.New(), "", apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendRequest(ctx, f.a.ID, tt.recipient, tt.message)
			assertCode(t, err, tt.code)
		})
	}
}

func TestSendRequestCreatesSinglePendingConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conn, err := f.svc.SendRequest(ctx, f.a.ID, f.b.ID, "  Hi from the 2015 class  ")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPending, conn.Status)
	require.NotNil(t, conn.RequestMessage)
	assert.Equal(t, "Hi from the 2015 class", *conn.RequestMessage)
	require.NotNil(t, conn.Requester)
	assert.Equal(t, "Ada Alum", conn.Requester.Name)

	_, err = f.svc.SendRequest(ctx, f.b.ID, f.a.ID, "")
	assertCode(t, err, apperrors.CodeConflict)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ConnectionPending, appErr.Details["status"])

	_, err = f.svc.SendRequest(ctx, f.a.ID, f.b.ID, "")
	assertCode(t, err, apperrors.CodeConflict)

	all, err := f.svc.ListConnections(ctx, f.a.ID, "", PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Total)

	notes := f.events.named(events.NameConnectionRequest)
	require.Len(t, notes, 1)
	assert.Equal(t, events.UserRoom(f.b.ID), notes[0].room)
}

func TestRespond(t *testing.T) {
	tests := []struct {
		name   string
		action models.ConnectionAction
		want   models.ConnectionStatus
	}{
		{"accept", models.ActionAccept, models.ConnectionAccepted},
		{"reject", models.ActionReject, models.ConnectionRejected},
		{"block", models.ActionBlock, models.ConnectionBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			conn, err := f.svc.SendRequest(ctx, f.a.ID, f.b.ID, "")
			require.NoError(t, err)

			got, err := f.svc.Respond(ctx, f.b.ID, conn.ID, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.NotNil(t, got.RespondedAt)
			if tt.action == models.ActionBlock {
				require.NotNil(t, got.BlockedBy)
				assert.Equal(t, f.b.ID, *got.BlockedBy)
			}

			updates := f.events.named(events.NameConnectionUpdate)
			require.Len(t, updates, 1)
			assert.Equal(t, events.UserRoom(f.a.ID), updates[0].room)
		})
	}
}

func TestRespondRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn, err := f.svc.SendRequest(ctx, f.a.ID, f.b.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, f.a.ID, conn.ID, models.ActionAccept)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.Respond(ctx, f.c.ID, conn.ID, models.ActionBlock)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.Respond(ctx, f.b.ID, uuid.New(), models.ActionAccept)
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.Respond(ctx, f.b.ID, conn.ID, models.ConnectionAction("ignore"))
	assertCode(t, err, apperrors.CodeInvalidArgument)

	_, err = f.svc.Respond(ctx, f.b.ID, conn.ID, models.ActionAccept)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, f.b.ID, conn.ID, models.ActionReject)
	assertCode(t, err, apperrors.CodeConflict)

	// Block stays available after acceptance, for either party.
	blocked, err := f.svc.Block(ctx, f.a.ID, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, f.a.ID, *blocked.BlockedBy)

	_, err = f.svc.Block(ctx, f.b.ID, conn.ID)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBlockUnblockScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, f.a, f.b)

	_, err := f.svc.Block(ctx, f.a.ID, conn.ID)
	require.NoError(t, err)

	assertCode(t, f.svc.Unblock(ctx, f.b.ID, f.a.ID), apperrors.CodeForbidden)

	require.NoError(t, f.svc.Unblock(ctx, f.a.ID, f.b.ID))
	all, err := f.svc.ListConnections(ctx, f.a.ID, "", PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, all.Total)

	fresh, err := f.svc.SendRequest(ctx, f.a.ID, f.b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPending, fresh.Status)
	assert.NotEqual(t, conn.ID, fresh.ID)
}

func TestUnblockWithoutBlockedConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assertCode(t, f.svc.Unblock(ctx, f.a.ID, f.b.ID), apperrors.CodeNotFound)

	f.connect(t, f.a, f.b)
	assertCode(t, f.svc.Unblock(ctx, f.a.ID, f.b.ID), apperrors.CodeNotFound)
}

func TestBlockUserWithoutConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conn, err := f.svc.BlockUser(ctx, f.a.ID, f.c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionBlocked, conn.Status)
	assert.Equal(t, f.a.ID, *conn.BlockedBy)

	_, err = f.svc.SendRequest(ctx, f.c.ID, f.a.ID, "")
	assertCode(t, err, apperrors.CodeConflict)

	_, err = f.svc.BlockUser(ctx, f.a.ID, f.c.ID)
	assertCode(t, err, apperrors.CodeConflict)

	_, err = f.svc.BlockUser(ctx, f.a.ID, f.a.ID)
	assertCode(t, err, apperrors.CodeInvalidArgument)

	_, err = f.svc.BlockUser(ctx, f.a.ID, uuid.New())
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestRemoveAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conn := f.connect(t, f.a, f.b)
	assertCode(t, f.svc.Remove(ctx, f.c.ID, conn.ID), apperrors.CodeForbidden)
	require.NoError(t, f.svc.Remove(ctx, f.b.ID, conn.ID))
	assertCode(t, f.svc.Remove(ctx, f.b.ID, conn.ID), apperrors.CodeNotFound)

	_, err := f.svc.SendRequest(ctx, f.a.ID, f.c.ID, "")
	require.NoError(t, err)
	assertCode(t, f.svc.Cancel(ctx, f.c.ID, f.a.ID), apperrors.CodeNotFound)
	require.NoError(t, f.svc.Cancel(ctx, f.a.ID, f.c.ID))
	assertCode(t, f.svc.Cancel(ctx, f.a.ID, f.c.ID), apperrors.CodeNotFound)
}

func TestPendingAndSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, f.a.ID, f.b.ID, "")
	require.NoError(t, err)
	_, err = f.svc.SendRequest(ctx, f.c.ID, f.b.ID, "")
	require.NoError(t, err)

	pending, err := f.svc.Pending(ctx, f.b.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	sent, err := f.svc.Sent(ctx, f.a.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, f.b.ID, sent[0].RecipientID)
	require.NotNil(t, sent[0].Recipient)
	assert.Equal(t, "Bea Alum", sent[0].Recipient.Name)

	sent, err = f.svc.Sent(ctx, f.b.ID)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestListConnectionsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, f.a, f.b)
	_, err := f.svc.SendRequest(ctx, f.c.ID, f.a.ID, "")
	require.NoError(t, err)

	accepted, err := f.svc.ListConnections(ctx, f.a.ID, models.ConnectionAccepted, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted.Total)

	page, err := f.svc.ListConnections(ctx, f.a.ID, "", PageRequest{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore())

	_, err = f.svc.ListConnections(ctx, f.a.ID, "friends", PageRequest{})
	assertCode(t, err, apperrors.CodeInvalidArgument)
}
