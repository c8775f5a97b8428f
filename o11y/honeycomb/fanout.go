package honeycomb

import (
	"github.com/honeycombio/libhoney-go/transmission"
)

// fanout sends every event to each sender, e.g. the honeycomb API and stderr.
// It must not be empty.
type fanout []transmission.Sender

func (f fanout) Add(ev *transmission.Event) {
	for _, s := range f {
		s.Add(ev)
	}
}

func (f fanout) Start() error {
	return f.each(transmission.Sender.Start)
}

func (f fanout) Stop() error {
	return f.each(transmission.Sender.Stop)
}

func (f fanout) Flush() error {
	return f.each(transmission.Sender.Flush)
}

// TxResponses only reports on the first sender.
func (f fanout) TxResponses() chan transmission.Response {
	return f[0].TxResponses()
}

func (f fanout) SendResponse(r transmission.Response) bool {
	dropped := false
	for _, s := range f {
		if s.SendResponse(r) {
			dropped = true
		}
	}
	return dropped
}

func (f fanout) each(op func(transmission.Sender) error) error {
	for _, s := range f {
		if err := op(s); err != nil {
			return err
		}
	}
	return nil
}
