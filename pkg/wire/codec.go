package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// maxFrameSize bounds a single command or payload segment. The integrity
// push archive is the largest payload this protocol moves; 256MiB is well
// above any single file-tree archive while still rejecting a corrupt length
// prefix outright instead of trying to allocate gigabytes.
const maxFrameSize = 256 << 20

// netConnection is the concrete length-prefixed Connection implementation
// over net.Conn: each frame is written as
//
//	uint32(len(command)) | command bytes | uint32(len(data)) | data bytes
//
// in network byte order. This is the transport the master assumes but does
// not redefine in spec.md; it exists so the rest of the module has a
// runnable default instead of only an interface.
type netConnection struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewConnection wraps a net.Conn (typically from net.Listener.Accept) in the
// length-prefixed framing codec.
func NewConnection(conn net.Conn) Connection {
	return &netConnection{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *netConnection) Send(f Frame) error {
	if len(f.Command) > maxFrameSize || len(f.Data) > maxFrameSize {
		return fmt.Errorf("wire: frame exceeds max size %d", maxFrameSize)
	}

	buf := bufio.NewWriter(c.conn)
	if err := writeSegment(buf, []byte(f.Command)); err != nil {
		return fmt.Errorf("wire: write command: %w", err)
	}
	if err := writeSegment(buf, f.Data); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return buf.Flush()
}

func (c *netConnection) Recv() (Frame, error) {
	command, err := readSegment(c.reader)
	if err != nil {
		return Frame{}, err
	}
	data, err := readSegment(c.reader)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: read payload: %w", err)
	}
	return Frame{Command: string(command), Data: data}, nil
}

func (c *netConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *netConnection) Close() error {
	return c.conn.Close()
}

func writeSegment(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readSegment(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size > maxFrameSize {
		return nil, fmt.Errorf("wire: segment size %d exceeds max %d", size, maxFrameSize)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
