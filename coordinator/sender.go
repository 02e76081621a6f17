package coordinator

import (
	"errors"

	"github.com/bikraj2/10101/orderbook"
)

// MessageChannelSender hands messages to the transport layer through a
// bounded channel. Send never blocks; a full queue is an error the notifier
// treats as a failed best-effort delivery.
type MessageChannelSender struct {
	messages chan orderbook.TraderMessage
}

func NewMessageChannelSender(bufferSize int) *MessageChannelSender {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MessageChannelSender{
		messages: make(chan orderbook.TraderMessage, bufferSize),
	}
}

// Messages is consumed by the transport delivering to connected traders.
func (s *MessageChannelSender) Messages() <-chan orderbook.TraderMessage {
	return s.messages
}

func (s *MessageChannelSender) Send(msg orderbook.TraderMessage) error {
	select {
	case s.messages <- msg:
		return nil
	default:
		return errors.New("trader message queue is full")
	}
}
