package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ErrModeMismatch is a recovery fault: a record's IsVector flag disagrees
// with the engine's configured Mode.
type ErrModeMismatch struct {
	Offset   int64
	Mode     Mode
	IsVector bool
}

func (e *ErrModeMismatch) Error() string {
	return fmt.Sprintf("wal: record at offset %d has is_vector=%v, incompatible with %s mode", e.Offset, e.IsVector, e.Mode)
}

// encode writes r's on-disk representation to w and returns the number of
// bytes written.
func encode(w io.Writer, r *Record) (int64, error) {
	var hdr [headerSize]byte
	hdr[0] = byte(r.Type)
	binary.LittleEndian.PutUint64(hdr[1:9], r.TxnID)
	binary.LittleEndian.PutUint64(hdr[9:17], r.TimestampNs)
	if r.IsVector {
		hdr[17] = 1
	}
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(len(r.Key))) //nolint:gosec

	payload := payloadBytes(r)
	binary.LittleEndian.PutUint32(hdr[22:26], uint32(len(payload))) //nolint:gosec

	n, err := w.Write(hdr[:])
	total := int64(n)
	if err != nil {
		return total, err
	}

	if len(r.Key) > 0 {
		n, err = w.Write(r.Key)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	if len(payload) > 0 {
		n, err = w.Write(payload)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// payloadBytes returns the wire representation of r's value: raw bytes for
// a string record, little-endian float32s for a vector record.
func payloadBytes(r *Record) []byte {
	if !r.IsVector {
		return r.Value
	}
	buf := make([]byte, len(r.Vector)*4)
	for i, f := range r.Vector {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(f))
	}
	return buf
}

// decode reads one record starting at the reader's current position.
//
// It returns io.EOF cleanly both at a true end of stream and on a short
// read of a partial record — both mean "end of log", tolerating a crash
// mid-append. It reports every other failure (a read error, or a vector
// payload whose length is not a multiple of 4) as io.EOF as well.
func decode(r io.Reader) (*Record, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, io.EOF
	}

	rec := &Record{
		Type:        RecordType(hdr[0]),
		TxnID:       binary.LittleEndian.Uint64(hdr[1:9]),
		TimestampNs: binary.LittleEndian.Uint64(hdr[9:17]),
		IsVector:    hdr[17] != 0,
	}
	keyLen := binary.LittleEndian.Uint32(hdr[18:22])
	dataLen := binary.LittleEndian.Uint32(hdr[22:26])

	if keyLen > 0 {
		rec.Key = make([]byte, keyLen)
		if _, err := io.ReadFull(r, rec.Key); err != nil {
			return nil, io.EOF
		}
	}

	if dataLen > 0 {
		raw := make([]byte, dataLen)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, io.EOF
		}
		if rec.IsVector {
			if dataLen%4 != 0 {
				return nil, io.EOF
			}
			rec.Vector = make([]float32, dataLen/4)
			for i := range rec.Vector {
				rec.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
			}
		} else {
			rec.Value = raw
		}
	}

	return rec, nil
}
