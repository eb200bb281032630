// Package journal implements the cache journal wire protocol: a client
// used by the dispatcher for get-before-work and put-after-work, and the
// server that answers it.
//
// Every request starts with a 4-byte command ("hi \n", "put\n", "get\n").
// put and get follow it with the sort name on its own line and the JSON
// document on the next. Every reply is a 4-byte status ("ok \n" or
// "err\n"); only an ok reply to get is followed by a 4-byte little-endian
// length and that many payload bytes, where an empty payload means miss.
package journal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultAddr is where the journal server listens unless configured.
const DefaultAddr = "127.0.0.1:9001"

const (
	cmdHi  = "hi \n"
	cmdPut = "put\n"
	cmdGet = "get\n"

	statusOK  = "ok \n"
	statusErr = "err\n"

	tagLen = 4
	// maxFrame caps a single request line or payload.
	maxFrame = 64 << 20
)

var errFrameTooLarge = errors.New("journal frame too large")

// appendRequest encodes one request. hi carries no body.
func appendRequest(buf []byte, cmd, sort string, doc []byte) []byte {
	buf = append(buf, cmd...)
	if cmd == cmdHi {
		return buf
	}
	buf = append(buf, sort...)
	buf = append(buf, '\n')
	buf = append(buf, doc...)
	return append(buf, '\n')
}

// appendPayload appends an ok status with a length-prefixed payload, the
// reply to a get.
func appendPayload(buf []byte, payload []byte) []byte {
	buf = append(buf, statusOK...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// readTag reads one 4-byte command or status token.
func readTag(r io.Reader) (string, error) {
	var tag [tagLen]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return "", err
	}
	return string(tag[:]), nil
}

// readPayload reads a length-prefixed payload.
func readPayload(r io.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(n[:])
	if size > maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// readLine reads one newline-terminated request line without the newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, len(line))
	}
	return bytes.TrimSuffix(line, []byte{'\n'}), nil
}

// encodeDoc marshals a put or get document. JSON output never contains a
// raw newline, so the document fits on one request line.
func encodeDoc(v any) ([]byte, error) {
	return json.Marshal(v)
}
