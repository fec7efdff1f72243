package ipc

import (
	"io"
	"time"

	"github.com/pithecene-io/tandem/log"
	"github.com/pithecene-io/tandem/types"
)

// Handler consumes decoded channel events in arrival order.
// Implemented by the engine boundary in the host process.
type Handler interface {
	// HandleInput processes one input arrival.
	HandleInput(ch types.Channel, payload string, confidence float64, ts time.Time, latency time.Duration) error
	// HandleError processes one channel error report.
	HandleError(se types.SystemError) error
	// HandleSessionEnd processes the terminal frame.
	HandleSessionEnd(reason string) error
}

// Pump reads frames from a stream and dispatches them to the handler
// strictly in arrival order. Handler errors are logged and skipped;
// only fatal frame errors terminate the pump.
type Pump struct {
	decoder *FrameDecoder
	handler Handler
	logger  *log.Logger
}

// NewPump creates a pump over the stream.
func NewPump(r io.Reader, handler Handler, logger *log.Logger) *Pump {
	return &Pump{
		decoder: NewFrameDecoder(r),
		handler: handler,
		logger:  logger,
	}
}

// Run consumes the stream until EOF, a session_end frame, or a fatal
// frame error. Returns nil on clean termination.
func (p *Pump) Run() error {
	for {
		payload, err := p.decoder.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if IsFatalFrameError(err) {
				return err
			}
			p.logger.Warn("frame read", map[string]any{"error": err.Error()})
			continue
		}

		frame, err := DecodeFrame(payload)
		if err != nil {
			// Malformed payload; the stream is still aligned on the next
			// length prefix.
			p.logger.Warn("frame decode", map[string]any{"error": err.Error()})
			continue
		}

		done, err := p.dispatch(frame)
		if err != nil {
			p.logger.Warn("frame dispatch", map[string]any{"error": err.Error()})
		}
		if done {
			return nil
		}
	}
}

// dispatch routes one decoded frame. Returns done=true on session_end.
func (p *Pump) dispatch(frame any) (bool, error) {
	switch f := frame.(type) {
	case *ChannelInputFrame:
		return false, p.handler.HandleInput(
			types.Channel(f.Channel),
			f.Payload,
			f.Confidence,
			time.UnixMilli(f.TimestampMs),
			time.Duration(f.LatencyMs)*time.Millisecond,
		)
	case *ChannelErrorFrame:
		return false, p.handler.HandleError(types.SystemError{
			Type:        types.ErrorType(f.ErrorType),
			Channel:     types.Channel(f.Channel),
			Severity:    types.Severity(f.Severity),
			Message:     f.Message,
			Recoverable: f.Recoverable,
		})
	case *SessionEndFrame:
		return true, p.handler.HandleSessionEnd(f.Reason)
	}
	return false, nil
}
