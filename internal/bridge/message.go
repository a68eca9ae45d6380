package bridge

import (
	"sync"
	"time"
)

// AttrSubFolder routes messages between logical streams sharing one
// subscription.
const AttrSubFolder = "subFolder"

// Message is an inbound notification independent of the transport that
// delivered it. Ack and Nack settle the message with the transport; the
// first settlement wins and later calls are no-ops.
type Message struct {
	ID          string
	Data        []byte
	Attributes  map[string]string
	PublishTime time.Time

	settle *settler
}

type settler struct {
	once sync.Once
	ack  func()
	nack func()
}

// NewMessage wraps transport callbacks. Either callback may be nil.
func NewMessage(id string, data []byte, attrs map[string]string, published time.Time, ack, nack func()) Message {
	return Message{
		ID:          id,
		Data:        data,
		Attributes:  attrs,
		PublishTime: published,
		settle:      &settler{ack: ack, nack: nack},
	}
}

func (m Message) Ack() {
	if m.settle == nil {
		return
	}
	m.settle.once.Do(func() {
		if m.settle.ack != nil {
			m.settle.ack()
		}
	})
}

func (m Message) Nack() {
	if m.settle == nil {
		return
	}
	m.settle.once.Do(func() {
		if m.settle.nack != nil {
			m.settle.nack()
		}
	})
}

func (m Message) Attr(key string) string { return m.Attributes[key] }
