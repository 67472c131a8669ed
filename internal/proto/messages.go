// Package proto defines the wire protocol between the CLI driver and the
// daemon: newline-delimited JSON request/response framing over the
// control connection, and a small binary frame format (type byte + u32
// length + payload) for data/resize/detach frames. The attach flow in this
// module does not use the frame format: the CLI attaches to tmux directly.
package proto

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Request types.
const (
	ReqCreate      = "create"
	ReqStart       = "start"
	ReqAttach      = "attach"
	ReqStop        = "stop"
	ReqRestart     = "restart"
	ReqDelete      = "delete"
	ReqDeleteGroup = "delete_group"
	ReqList        = "list"
	ReqRename      = "rename"
	ReqLogs        = "logs"
)

// Request is sent by the CLI to the daemon as one newline-terminated JSON
// object over the control connection.
type Request struct {
	Type       string            `json:"type"`
	InstanceID string            `json:"instance_id,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// Response is the daemon's reply, also one newline-terminated JSON object.
type Response struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Instance any    `json:"instance,omitempty"`
	List     any    `json:"list,omitempty"`
}

// WriteRequest/ReadRequest and WriteResponse/ReadResponse frame a single
// JSON value with a trailing newline, matching the donor's bufio.Scanner-
// based approach in cmd/grove/client.go.
func WriteRequest(w io.Writer, req Request) error {
	return writeJSONLine(w, req)
}

func ReadRequest(r *bufio.Reader) (Request, error) {
	var req Request
	err := readJSONLine(r, &req)
	return req, err
}

func WriteResponse(w io.Writer, resp Response) error {
	return writeJSONLine(w, resp)
}

func ReadResponse(r *bufio.Reader) (Response, error) {
	var resp Response
	err := readJSONLine(r, &resp)
	return resp, err
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func readJSONLine(r *bufio.Reader, v any) error {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return err
	}
	return json.Unmarshal(line, v)
}

// Attach frame types. Neither the daemon nor the CLI sends them; a
// ReqAttach response is not followed by any frames.
const (
	AttachFrameData   byte = 1
	AttachFrameResize byte = 2
	AttachFrameDetach byte = 3
)

// WriteFrame writes one binary frame: 1 type byte, 4-byte big-endian
// length, then payload.
func WriteFrame(w io.Writer, frameType byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = frameType
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one binary frame written by WriteFrame.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	frameType := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length == 0 {
		return frameType, nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return frameType, payload, nil
}

// IsTerminal reports whether a status string names a state from which the
// driver should stop polling for more output.
func IsTerminal(status string) bool {
	switch status {
	case "Stopped", "Error", "Finished", "Crashed", "Killed", "Exited":
		return true
	default:
		return false
	}
}
