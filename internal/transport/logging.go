package transport

import (
	"sync/atomic"

	"lumen/internal/render"
)

// DefaultLogEvery is how many frames LoggingTransport skips between lines.
const DefaultLogEvery = 60

// LoggingTransport implements the Transport interface by logging a summary
// of every Nth frame at debug level.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport. every <= 0 selects
// DefaultLogEvery.
func NewLoggingTransport(every int) *LoggingTransport {
	if every <= 0 {
		every = DefaultLogEvery
	}
	logger.Infof("logging every %d frames", every)
	return &LoggingTransport{every: uint64(every)}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 {
		return nil
	}
	switch v := data.(type) {
	case render.Frame:
		u := &v.Uniforms
		logger.Debugf("frame %d t=%.2fs pos=%.2fs bpm=%.1f z=%.2f energy=%.2f onset=%.2f paused=%v",
			v.Seq, u[render.UTime], v.Position, u[render.UBPM], u[render.URMSZ],
			u[render.UEnergy], u[render.UOnset], v.Paused)
	default:
		logger.Debugf("%T: %+v", data, data)
	}
	return nil
}

// Count returns the number of values received.
func (lt *LoggingTransport) Count() uint64 { return lt.count.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	logger.Debugf("logging transport closed after %d frames", lt.count.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
