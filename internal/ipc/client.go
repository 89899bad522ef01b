//go:build windows

package ipc

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

const defaultDialTimeout = 5 * time.Second

// Client is the engine-side view of a helper pipe: it sends the
// startup blob over the service pipe, or request/ack frames over the
// private engine pipe. Both are message-mode, so one Read returns one
// frame.
type Client struct {
	conn net.Conn
}

// DialService connects to the well-known service pipe.
func DialService(instance string) (*Client, error) {
	return dial(ServicePipeName(instance))
}

// DialPipe connects to an explicit pipe path (the engine uses this for
// the private pipe named on its command line).
func DialPipe(path string) (*Client, error) {
	return dial(path)
}

func dial(path string) (*Client, error) {
	timeout := defaultDialTimeout
	conn, err := winio.DialPipe(path, &timeout)
	if err != nil {
		return nil, fmt.Errorf("[IPC] dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// SendStartup writes the startup blob.
func (c *Client) SendStartup(sd StartupData) error {
	_, err := c.conn.Write(sd.Encode())
	return err
}

// ReadReport reads one three-line startup report.
func (c *Client) ReadReport() (ParsedReport, error) {
	frame, err := c.readFrame()
	if err != nil {
		return ParsedReport{}, err
	}
	return ParseReport(frame)
}

// RoundTrip sends a request and waits for the matching ack.
func (c *Client) RoundTrip(req Request) (Ack, error) {
	frame, err := Encode(req)
	if err != nil {
		return Ack{}, err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return Ack{}, err
	}
	resp, err := c.readFrame()
	if err != nil {
		return Ack{}, err
	}
	ack, err := DecodeAck(resp)
	if err != nil {
		return Ack{}, err
	}
	if ack.MessageID != req.Hdr().MessageID {
		return ack, fmt.Errorf("[IPC] ack for message %d, want %d", ack.MessageID, req.Hdr().MessageID)
	}
	return ack, nil
}

func (c *Client) readFrame() ([]byte, error) {
	buf := make([]byte, MaxRequestSize)
	n, err := c.conn.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return buf[:n], nil
}

// Close shuts the pipe connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}
