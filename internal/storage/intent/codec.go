package intent

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
)

// encodeFrame builds one frame: [length:4][crc32:4][type:1][payload].
// Length counts crc + type + payload.
func encodeFrame(op opType, ev *wireEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("intent: marshal event: %w", err)
	}

	typeByte := []byte{byte(op)}
	crc := crc32.ChecksumIEEE(append(typeByte, payload...))

	length := uint32(4 + 1 + len(payload))
	out := make([]byte, 0, 4+int(length))

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], length)
	out = append(out, header[:]...)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	out = append(out, typeByte...)
	out = append(out, payload...)
	return out, nil
}

// decodeFrame parses one frame body (everything after the length
// header).
func decodeFrame(frame []byte) (opType, *wireEvent, error) {
	// Frame body layout: [crc32:4][type:1][payload...]
	if len(frame) < 5 {
		return opUnspecified, nil, ErrCorruptedFrame
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	typeByte := frame[4]
	payload := frame[5:]

	gotCRC := crc32.ChecksumIEEE(append([]byte{typeByte}, payload...))
	if gotCRC != wantCRC {
		return opUnspecified, nil, ErrCorruptedFrame
	}

	op := opType(typeByte)
	switch op {
	case opBegin, opStep, opComplete:
	default:
		return opUnspecified, nil, ErrCorruptedFrame
	}

	var ev wireEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return opUnspecified, nil, fmt.Errorf("intent: unmarshal event: %w", err)
	}
	return op, &ev, nil
}

// readFrames streams frames from r until EOF or the first corrupt or
// torn frame. It returns the byte offset of the end of the last good
// frame so the caller can truncate a torn tail.
func readFrames(r io.Reader, fn func(op opType, ev *wireEvent)) (int64, error) {
	var offset int64
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			// Clean EOF or a torn header both end the scan.
			return offset, nil
		}
		length := binary.BigEndian.Uint32(header[:])
		if length < 5 || length > 16<<20 {
			return offset, nil
		}
		frame := make([]byte, length)
		if _, err := io.ReadFull(r, frame); err != nil {
			return offset, nil
		}
		op, ev, err := decodeFrame(frame)
		if err != nil {
			return offset, nil
		}
		fn(op, ev)
		offset += int64(4 + length)
	}
}
