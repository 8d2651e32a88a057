// Package record reads and writes TFRecord files of training examples.
// Each record is framed as a little-endian length, a masked CRC-32C of the
// length bytes, the example payload, and a masked CRC-32C of the payload.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/lanefour/divetrace/internal/domain/model"
)

const (
	lengthSize = 8
	crcSize    = 4

	// maskDelta and the rotation follow the TFRecord checksum masking.
	maskDelta = 0xa282ead8

	// maxPayload guards length fields read from corrupt files.
	maxPayload = 64 << 20
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Writer serializes samples into a TFRecord stream.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter wraps an output stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one sample as a framed tf.train.Example record.
func (w *Writer) Write(sample model.Sample) error {
	payload := marshalExample(sample)

	var header [lengthSize + crcSize]byte
	binary.LittleEndian.PutUint64(header[:lengthSize], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[lengthSize:], maskedCRC(header[:lengthSize]))
	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}

	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}

	var footer [crcSize]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))
	if _, err := w.w.Write(footer[:]); err != nil {
		return fmt.Errorf("write record footer: %w", err)
	}

	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

// Reader decodes samples from a TFRecord stream, verifying checksums.
type Reader struct {
	r     io.Reader
	count int
}

// NewReader wraps an input stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next sample. It returns io.EOF at a clean end of
// stream, ErrChecksum on corrupted data, and ErrCorrupt on framing damage.
func (r *Reader) Next() (model.Sample, error) {
	var lengthBytes [lengthSize]byte
	if _, err := io.ReadFull(r.r, lengthBytes[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Sample{}, io.EOF
		}
		return model.Sample{}, fmt.Errorf("%w: truncated length: %v", ErrCorrupt, err)
	}

	var lengthCRC [crcSize]byte
	if _, err := io.ReadFull(r.r, lengthCRC[:]); err != nil {
		return model.Sample{}, fmt.Errorf("%w: truncated length checksum: %v", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(lengthCRC[:]) != maskedCRC(lengthBytes[:]) {
		return model.Sample{}, fmt.Errorf("%w: record length", ErrChecksum)
	}

	length := binary.LittleEndian.Uint64(lengthBytes[:])
	if length > maxPayload {
		return model.Sample{}, fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return model.Sample{}, fmt.Errorf("%w: truncated payload: %v", ErrCorrupt, err)
	}

	var payloadCRC [crcSize]byte
	if _, err := io.ReadFull(r.r, payloadCRC[:]); err != nil {
		return model.Sample{}, fmt.Errorf("%w: truncated payload checksum: %v", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(payloadCRC[:]) != maskedCRC(payload) {
		return model.Sample{}, fmt.Errorf("%w: record payload", ErrChecksum)
	}

	sample, err := unmarshalExample(payload)
	if err != nil {
		return model.Sample{}, err
	}
	r.count++
	return sample, nil
}

// Count returns the number of records read so far.
func (r *Reader) Count() int { return r.count }

// ReadAll drains the stream into a sample slice.
func ReadAll(r io.Reader) ([]model.Sample, error) {
	reader := NewReader(r)
	var samples []model.Sample
	for {
		sample, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		samples = append(samples, sample)
	}
}
