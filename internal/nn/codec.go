package nn

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The binary genome format is DataSize little-endian float32 values in buffer
// layout order. There is no header; the reader must already know the topology.

const floatBytes = 4

// EncodedSize is the byte length of the binary form.
func (g *Genome) EncodedSize() int {
	return len(g.data) * floatBytes
}

func (g *Genome) MarshalBinary() ([]byte, error) {
	out := make([]byte, g.EncodedSize())
	for i, v := range g.data {
		binary.LittleEndian.PutUint32(out[i*floatBytes:], math.Float32bits(v))
	}
	return out, nil
}

// UnmarshalBinary restores the buffer from exactly EncodedSize bytes.
func (g *Genome) UnmarshalBinary(data []byte) error {
	if len(data) < g.EncodedSize() {
		return fmt.Errorf("decode genome: %d of %d bytes: %w", len(data), g.EncodedSize(), io.ErrUnexpectedEOF)
	}
	if len(data) > g.EncodedSize() {
		return fmt.Errorf("decode genome: %d trailing bytes for topology %s", len(data)-g.EncodedSize(), g.topology)
	}
	for i := range g.data {
		g.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*floatBytes:]))
	}
	return nil
}

// WriteTo implements io.WriterTo.
func (g *Genome) WriteTo(w io.Writer) (int64, error) {
	payload, _ := g.MarshalBinary()
	n, err := w.Write(payload)
	if err == nil && n < len(payload) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// Load reads exactly EncodedSize bytes from r. A stream that ends early yields
// an error wrapping io.ErrUnexpectedEOF and leaves the buffer unchanged.
func (g *Genome) Load(r io.Reader) error {
	payload := make([]byte, g.EncodedSize())
	n, err := io.ReadFull(r, payload)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read genome: %d of %d bytes: %w", n, len(payload), err)
	}
	return g.UnmarshalBinary(payload)
}
