/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

type mockOutboundTransport struct {
	accept   bool
	sent     [][]byte
	endpoint string
	err      error
}

func (m *mockOutboundTransport) Send(payload []byte, endpoint string) (string, error) {
	if m.err != nil {
		return "", m.err
	}

	m.sent = append(m.sent, payload)
	m.endpoint = endpoint

	return "", nil
}

func (m *mockOutboundTransport) AcceptEndpoint(string) bool { return m.accept }

type mockService struct {
	name      string
	accept    bool
	inbound   []*service.Message
	handleErr error
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Accept(string) bool { return m.accept }

func (m *mockService) HandleInbound(msg *service.Message) (string, error) {
	m.inbound = append(m.inbound, msg)
	return msg.ConversationRef, m.handleErr
}

func newTestMessage() *service.Message {
	return &service.Message{
		Protocol:        "negotiation",
		Performative:    "cfp",
		MessageID:       1,
		ConversationRef: "ref-1",
		Sender:          "buyer",
		To:              "seller",
	}
}

func TestOutboundDispatcher_Send(t *testing.T) {
	t.Run("sends through accepting transport", func(t *testing.T) {
		book := NewAddressBook()
		book.SetEndpoint("seller", "http://seller.example.com")

		tr := &mockOutboundTransport{accept: true}
		disp := NewOutbound(book, []transport.OutboundTransport{tr})

		require.NoError(t, disp.Send(newTestMessage()))
		require.Len(t, tr.sent, 1)
		require.Equal(t, "http://seller.example.com", tr.endpoint)
	})

	t.Run("stamps reply-to endpoint", func(t *testing.T) {
		book := NewAddressBook()
		book.SetEndpoint("seller", "http://seller.example.com")

		tr := &mockOutboundTransport{accept: true}
		disp := NewOutbound(book, []transport.OutboundTransport{tr},
			WithReplyTo("http://buyer.example.com"))

		msg := newTestMessage()
		require.NoError(t, disp.Send(msg))

		sent, err := service.ParseMessage(tr.sent[0])
		require.NoError(t, err)
		require.Equal(t, "http://buyer.example.com", sent.ReplyTo)

		// the caller's envelope is untouched
		require.Empty(t, msg.ReplyTo)
	})

	t.Run("unknown destination", func(t *testing.T) {
		disp := NewOutbound(NewAddressBook(), []transport.OutboundTransport{&mockOutboundTransport{accept: true}})
		require.Error(t, disp.Send(newTestMessage()))
	})

	t.Run("no accepting transport", func(t *testing.T) {
		book := NewAddressBook()
		book.SetEndpoint("seller", "tcp://seller.example.com")

		disp := NewOutbound(book, []transport.OutboundTransport{&mockOutboundTransport{accept: false}})

		err := disp.Send(newTestMessage())
		require.Error(t, err)
		require.Contains(t, err.Error(), "no outbound transport found")
	})

	t.Run("transport failure", func(t *testing.T) {
		book := NewAddressBook()
		book.SetEndpoint("seller", "http://seller.example.com")

		disp := NewOutbound(book, []transport.OutboundTransport{
			&mockOutboundTransport{accept: true, err: errors.New("connection refused")},
		})

		require.Error(t, disp.Send(newTestMessage()))
	})
}

func TestInboundRouter(t *testing.T) {
	t.Run("routes to accepting service and learns reply-to", func(t *testing.T) {
		svc := &mockService{name: "negotiation-seller", accept: true}
		book := NewAddressBook()

		handler := NewInboundRouter([]MessageService{svc}, book).MessageHandler()

		require.NoError(t, handler([]byte(`{
			"protocol": "negotiation",
			"performative": "cfp",
			"message_id": 1,
			"conversation_ref": "ref-1",
			"sender": "buyer",
			"to": "seller",
			"reply_to": "http://buyer.example.com"
		}`)))

		require.Len(t, svc.inbound, 1)

		endpoint, err := book.Endpoint("buyer")
		require.NoError(t, err)
		require.Equal(t, "http://buyer.example.com", endpoint)
	})

	t.Run("invalid payload", func(t *testing.T) {
		handler := NewInboundRouter(nil, nil).MessageHandler()
		require.Error(t, handler([]byte("not json")))
	})

	t.Run("no accepting service", func(t *testing.T) {
		svc := &mockService{name: "negotiation-seller", accept: false}
		handler := NewInboundRouter([]MessageService{svc}, nil).MessageHandler()

		msg, err := newTestMessage().Marshal()
		require.NoError(t, err)

		err = handler(msg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "no message handlers found")
	})

	t.Run("service failure is propagated", func(t *testing.T) {
		svc := &mockService{name: "negotiation-seller", accept: true, handleErr: errors.New("boom")}
		handler := NewInboundRouter([]MessageService{svc}, nil).MessageHandler()

		msg, err := newTestMessage().Marshal()
		require.NoError(t, err)

		require.Error(t, handler(msg))
	})
}

func TestAddressBook(t *testing.T) {
	book := NewAddressBook()

	// empty values are ignored
	book.SetEndpoint("", "http://x")
	book.SetEndpoint("a", "")

	_, err := book.Endpoint("a")
	require.Error(t, err)

	book.SetEndpoint("a", "http://a.example.com")

	endpoint, err := book.Endpoint("a")
	require.NoError(t, err)
	require.Equal(t, "http://a.example.com", endpoint)
}
