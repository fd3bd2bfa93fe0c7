package debug

import (
	"github.com/netsampler/nfcollector/producer"
)

type PanicProducerWrapper struct {
	wrapped producer.ProducerInterface
}

// Produce turns a panic of the wrapped producer into a *PanicErrorMessage
// carrying the packet.
func (p *PanicProducerWrapper) Produce(msg interface{}, args *producer.ProduceArgs) (flowMessageSet []*producer.FlowMessage, err error) {
	defer func() {
		if pErr := recover(); pErr != nil {
			flowMessageSet = nil
			err = Recovered(msg, pErr)
		}
	}()

	return p.wrapped.Produce(msg, args)
}

func (p *PanicProducerWrapper) Close() {
	p.wrapped.Close()
}

func WrapPanicProducer(wrapped producer.ProducerInterface) producer.ProducerInterface {
	return &PanicProducerWrapper{
		wrapped: wrapped,
	}
}
