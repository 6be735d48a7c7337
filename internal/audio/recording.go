package audio

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recorder writes the played mono signal to a WAV file.
type recorder struct {
	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion.
	scale      float64
	frames     int
	closed     bool
}

func (r *recorder) write(block []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	for i, s := range block {
		v := math.Max(-1, math.Min(1, float64(s)))
		r.sampleBuf.Data[i] = int(math.Round(v * r.scale))
	}
	r.frames += len(block)
	return r.wavEncoder.Write(r.sampleBuf)
}

func (r *recorder) close() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.frames, nil
	}
	r.closed = true
	if err := r.wavEncoder.Close(); err != nil {
		r.outputFile.Close()
		return r.frames, err
	}
	return r.frames, r.outputFile.Close()
}

// StartRecording begins writing every played block to filename as a mono
// WAV file with the given bit depth (16, 24 or 32).
func (e *Engine) StartRecording(filename string, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if e.rec.Load() != nil {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	sampleRate := e.SampleRate()
	r := &recorder{
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
			Data:           make([]int, e.blockSize),
		},
		scale: math.Pow(2, float64(bitDepth-1)) - 1,
	}
	if !e.rec.CompareAndSwap(nil, r) {
		file.Close()
		os.Remove(filename)
		return fmt.Errorf("already recording")
	}
	logger.Infof("recording to %s", filename)
	return nil
}

// StopRecording finalizes the WAV file. It returns the number of frames
// written.
func (e *Engine) StopRecording() (int, error) {
	r := e.rec.Swap(nil)
	if r == nil {
		return 0, nil
	}
	n, err := r.close()
	if err != nil {
		return n, fmt.Errorf("finalize recording: %w", err)
	}
	logger.Infof("recording stopped after %d frames", n)
	return n, nil
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool { return e.rec.Load() != nil }

func (e *Engine) record(block []float32) {
	r := e.rec.Load()
	if r == nil {
		return
	}
	if err := r.write(block); err != nil {
		logger.Errorf("writing recording: %v", err)
	}
}
