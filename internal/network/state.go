package network

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ChizhovVadim/rnnsearch/internal/ml"
)

var ErrBadFormat = errors.New("network: bad state format")

type Topology struct {
	EncoderInputs uint32
	DecoderInputs uint32
	Outputs       uint32
	Hidden        uint32
	Layers        uint32
}

// Binary layout of a model state:
// - All the data is stored in little-endian layout
// - All the matrices are written in column-major
// - 4 bytes magic/version: 66 (B), 90 (Z), 3 (major), 0 (minor)
// - 5 uint32: encoder inputs, decoder inputs, outputs, hidden size, layers
// - For every encoder layer then every decoder layer: Wx, Wh, b as float64
// - Output head: Wo, bo as float64
func (m *Model) SaveState(w io.Writer) error {
	var bw = bufio.NewWriter(w)

	var _, err = bw.Write([]byte{66, 90, 3, 0})
	if err != nil {
		return err
	}

	var buf = make([]byte, 5*4)
	binary.LittleEndian.PutUint32(buf[0:], m.topology.EncoderInputs)
	binary.LittleEndian.PutUint32(buf[4:], m.topology.DecoderInputs)
	binary.LittleEndian.PutUint32(buf[8:], m.topology.Outputs)
	binary.LittleEndian.PutUint32(buf[12:], m.topology.Hidden)
	binary.LittleEndian.PutUint32(buf[16:], m.topology.Layers)
	_, err = bw.Write(buf)
	if err != nil {
		return err
	}

	for _, p := range m.parameters() {
		err = writeSlice(bw, p.weights.Data)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadState reads weights written by SaveState. The stored topology must match the model.
func (m *Model) LoadState(r io.Reader) error {
	var br = bufio.NewReader(r)

	var buf = make([]byte, 4)
	var _, err = io.ReadFull(br, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if buf[0] != 66 || buf[1] != 90 {
		return fmt.Errorf("%w: magic word does not match", ErrBadFormat)
	}
	if buf[2] != 3 || buf[3] != 0 {
		return fmt.Errorf("%w: version %v.%v is not supported", ErrBadFormat, buf[2], buf[3])
	}

	buf = make([]byte, 5*4)
	_, err = io.ReadFull(br, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	var topology = Topology{
		EncoderInputs: binary.LittleEndian.Uint32(buf[0:]),
		DecoderInputs: binary.LittleEndian.Uint32(buf[4:]),
		Outputs:       binary.LittleEndian.Uint32(buf[8:]),
		Hidden:        binary.LittleEndian.Uint32(buf[12:]),
		Layers:        binary.LittleEndian.Uint32(buf[16:]),
	}
	if topology != m.topology {
		return fmt.Errorf("%w: topology %+v does not match model %+v", ErrBadFormat, topology, m.topology)
	}

	for _, p := range m.parameters() {
		err = readSlice(br, p.weights.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadFormat, err)
		}
	}
	return nil
}

func writeSlice(w io.Writer, data []float64) error {
	var buf = make([]byte, 8)
	for j := range data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(data[j]))
		var _, err = w.Write(buf)
		if err != nil {
			return err
		}
	}
	return nil
}

func readSlice(r io.Reader, data []float64) error {
	var buf = make([]byte, 8)
	for j := range data {
		var _, err = io.ReadFull(r, buf)
		if err != nil {
			return err
		}
		data[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return nil
}

type parameter struct {
	weights   *ml.Matrix
	gradients *ml.Gradients
}
