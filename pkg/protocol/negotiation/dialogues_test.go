/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package negotiation

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	mockstorage "github.com/agoralab/agora-framework-go/pkg/mock/storage"
	"github.com/agoralab/agora-framework-go/pkg/storage/mem"
)

func TestNewDialogues_Validation(t *testing.T) {
	_, err := NewDialogues("", sellerRoleResolver, mem.NewProvider())
	require.Error(t, err)

	_, err = NewDialogues("buyer", nil, mem.NewProvider())
	require.Error(t, err)

	_, err = NewDialogues("buyer", sellerRoleResolver,
		&mockstorage.MockStoreProvider{ErrOpenStoreHandle: errors.New("open error")})
	require.ErrorContains(t, err, "open error")
}

func TestDialogues_Create(t *testing.T) {
	ds := newTestRegistry(t, "buyer")

	t.Run("distinct conversation references", func(t *testing.T) {
		msg1, d1, err := ds.Create("seller", CFPMsgType, nil)
		require.NoError(t, err)

		msg2, d2, err := ds.Create("seller", CFPMsgType, nil)
		require.NoError(t, err)

		require.NotEqual(t, msg1.ConversationRef, msg2.ConversationRef)
		require.NotEqual(t, d1.Label().Key(), d2.Label().Key())
		require.Equal(t, 2, ds.ActiveCount())
	})

	t.Run("only opening performatives can create", func(t *testing.T) {
		_, _, err := ds.Create("seller", ProposeMsgType, nil)
		require.Error(t, err)
	})
}

func TestDialogues_Update(t *testing.T) {
	newCFP := func(ref string) *service.Message {
		return &service.Message{
			Protocol:        Name,
			Performative:    CFPMsgType,
			MessageID:       1,
			Target:          0,
			ConversationRef: ref,
			Sender:          "buyer",
			To:              "seller",
		}
	}

	t.Run("opening message creates dialogue", func(t *testing.T) {
		ds := newTestRegistry(t, "seller")

		d, err := ds.Update(newCFP("ref-1"))
		require.NoError(t, err)
		require.Equal(t, "ref-1", d.Label().ConversationRef)
		require.Equal(t, "buyer", d.Label().Counterparty)
		require.Equal(t, 1, ds.ActiveCount())

		// follow-ups resolve to the same dialogue
		accept := &service.Message{
			Protocol:        Name,
			Performative:    AcceptMsgType,
			MessageID:       2,
			Target:          1,
			ConversationRef: "ref-1",
			Sender:          "buyer",
			To:              "seller",
		}

		d2, err := ds.Update(accept)
		require.NoError(t, err)
		require.Same(t, d, d2)
	})

	t.Run("non-opening message with unknown label", func(t *testing.T) {
		ds := newTestRegistry(t, "seller")

		msg := newCFP("ref-2")
		msg.Performative = AcceptMsgType

		_, err := ds.Update(msg)
		require.ErrorIs(t, err, ErrUnidentifiedDialogue)
	})

	t.Run("opening message with wrong id", func(t *testing.T) {
		ds := newTestRegistry(t, "seller")

		msg := newCFP("ref-3")
		msg.MessageID = 5

		_, err := ds.Update(msg)
		require.ErrorIs(t, err, ErrUnidentifiedDialogue)
		require.Equal(t, 0, ds.ActiveCount())
	})

	t.Run("dangling target", func(t *testing.T) {
		ds := newTestRegistry(t, "seller")

		_, err := ds.Update(newCFP("ref-4"))
		require.NoError(t, err)

		msg := newCFP("ref-4")
		msg.MessageID = 2
		msg.Target = 42

		_, err = ds.Update(msg)
		require.ErrorIs(t, err, ErrUnidentifiedDialogue)
	})

	t.Run("duplicate message id", func(t *testing.T) {
		ds := newTestRegistry(t, "seller")

		_, err := ds.Update(newCFP("ref-5"))
		require.NoError(t, err)

		msg := newCFP("ref-5")
		msg.Target = 1

		_, err = ds.Update(msg)
		require.ErrorIs(t, err, ErrUnidentifiedDialogue)
	})
}

func TestDialogues_Complete(t *testing.T) {
	prov := mem.NewProvider()

	ds, err := NewDialogues("buyer", sellerRoleResolver, prov)
	require.NoError(t, err)

	_, d, err := ds.Create("seller", CFPMsgType, nil)
	require.NoError(t, err)

	endState := EndStateSuccessful
	require.NoError(t, ds.Complete(d, &endState))

	t.Run("removed from the active set", func(t *testing.T) {
		require.Equal(t, 0, ds.ActiveCount())
		require.Nil(t, ds.Get(d.Label()))
	})

	t.Run("archived", func(t *testing.T) {
		require.Same(t, d, ds.Archived(d.Label()))
		require.Nil(t, ds.Archived(Label{ConversationRef: "unknown"}))
	})

	t.Run("counted in the stats", func(t *testing.T) {
		snap := ds.Stats()
		require.Equal(t, 1, snap.SelfInitiated["successful"])
		require.Empty(t, snap.OtherInitiated)
	})

	t.Run("record persisted", func(t *testing.T) {
		store, err := prov.OpenStore(StoreName)
		require.NoError(t, err)

		raw, err := store.Get(d.Label().Key())
		require.NoError(t, err)

		record := &dialogueRecord{}
		require.NoError(t, json.Unmarshal(raw, record))
		require.True(t, record.Ended)
		require.Equal(t, "successful", record.EndState)
	})

	t.Run("aborted dialogues do not count", func(t *testing.T) {
		_, d2, err := ds.Create("seller", CFPMsgType, nil)
		require.NoError(t, err)

		require.NoError(t, ds.Complete(d2, nil))

		snap := ds.Stats()
		require.Equal(t, 1, snap.SelfInitiated["successful"])
		require.Empty(t, snap.SelfInitiated["declined_at_proposal"])

		_, ended := d2.Ended()
		require.False(t, ended)
	})
}

func TestDialogues_ConcurrentUpdateAndReply(t *testing.T) {
	ds := newTestRegistry(t, "seller")

	d, err := ds.Update(&service.Message{
		Protocol:        Name,
		Performative:    CFPMsgType,
		MessageID:       1,
		Target:          0,
		ConversationRef: "ref-race",
		Sender:          "buyer",
		To:              "seller",
	})
	require.NoError(t, err)

	const rounds = 200

	// replies built off a settlement goroutine interleave with inbound
	// deliveries resolving through the registry
	var (
		wg       sync.WaitGroup
		replyErr error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; i < rounds; i++ {
			d.Lock()

			if _, err := d.Reply(InformMsgType, nil, nil); err != nil {
				replyErr = err
				d.Unlock()

				return
			}

			d.Unlock()
		}
	}()

	for i := 0; i < rounds; i++ {
		_, err := ds.Update(&service.Message{
			Protocol:        Name,
			Performative:    InformMsgType,
			MessageID:       int64(i + 2),
			Target:          1,
			ConversationRef: "ref-race",
			Sender:          "buyer",
			To:              "seller",
		})
		require.NoError(t, err)
	}

	wg.Wait()
	require.NoError(t, replyErr)
}

func TestDialogues_StorageFailure(t *testing.T) {
	prov := mockstorage.NewMockStoreProvider()

	ds, err := NewDialogues("buyer", sellerRoleResolver, prov)
	require.NoError(t, err)

	_, d, err := ds.Create("seller", CFPMsgType, nil)
	require.NoError(t, err)

	prov.Store.ErrPut = errors.New("put error")

	t.Run("create fails", func(t *testing.T) {
		_, _, err := ds.Create("seller", CFPMsgType, nil)
		require.ErrorContains(t, err, "put error")
	})

	t.Run("complete fails", func(t *testing.T) {
		endState := EndStateSuccessful
		require.ErrorContains(t, ds.Complete(d, &endState), "put error")
	})
}

func TestDialogues_ArchiveBound(t *testing.T) {
	ds, err := NewDialogues("buyer", sellerRoleResolver, mem.NewProvider(), WithArchiveSize(1))
	require.NoError(t, err)

	_, d1, err := ds.Create("seller", CFPMsgType, nil)
	require.NoError(t, err)

	_, d2, err := ds.Create("seller", CFPMsgType, nil)
	require.NoError(t, err)

	require.NoError(t, ds.Complete(d1, nil))
	require.NoError(t, ds.Complete(d2, nil))

	// the older entry was evicted
	require.Nil(t, ds.Archived(d1.Label()))
	require.Same(t, d2, ds.Archived(d2.Label()))
}
