// Package transport wraps a gorilla/websocket connection to speak the CDP
// wire envelope, reusing the easyjson lexer/writer across calls the way
// chromedp's own conn.go does.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

var (
	// DefaultReadBufferSize is the default maximum read buffer size.
	DefaultReadBufferSize = 25 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024
)

// ErrInvalidWebsocketMessage is returned when a non-text frame arrives on
// the CDP websocket.
var ErrInvalidWebsocketMessage = errors.New("transport: invalid websocket message")

// Conn wraps a gorilla/websocket.Conn to read and write protocol.Message
// envelopes.
type Conn struct {
	*websocket.Conn

	buf    bytes.Buffer
	lexer  jlexer.Lexer
	writeMu sync.Mutex // serialises WriteMessage: one writer at a time
	writer jwriter.Writer

	dbgf func(string, ...interface{})
}

// Option configures a Conn at dial time.
type Option func(*Conn)

// WithDebugf sets a printf-style function Conn uses to log every frame it
// reads and writes, mirroring chromedp's own debug logging convention.
func WithDebugf(f func(string, ...interface{})) Option {
	return func(c *Conn) { c.dbgf = f }
}

// Dial connects to the CDP websocket endpoint at urlstr.
func Dial(ctx context.Context, urlstr string, opts ...Option) (*Conn, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}
	wsConn, _, err := d.DialContext(ctx, urlstr, nil)
	if err != nil {
		return nil, err
	}
	c := &Conn{Conn: wsConn}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Conn) bufReadAll(r io.Reader) ([]byte, error) {
	c.buf.Reset()
	_, err := c.buf.ReadFrom(r)
	return c.buf.Bytes(), err
}

// ReadMessage reads and decodes the next envelope from the wire.
func (c *Conn) ReadMessage(msg *protocol.Message) error {
	typ, r, err := c.NextReader()
	if err != nil {
		return err
	}
	if typ != websocket.TextMessage {
		return ErrInvalidWebsocketMessage
	}

	buf, err := c.bufReadAll(r)
	if err != nil {
		return err
	}
	if c.dbgf != nil {
		c.dbgf("<- %s", buf)
	}

	c.lexer = jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&c.lexer)
	if err := c.lexer.Error(); err != nil {
		return err
	}

	// c.buf is reused on the next read, and Params/Result/Error.Data alias
	// its bytes, so copy before returning.
	msg.Params = append([]byte{}, msg.Params...)
	msg.Result = append([]byte{}, msg.Result...)
	if msg.Error != nil {
		msg.Error.Data = append([]byte{}, msg.Error.Data...)
	}
	return nil
}

// WriteMessage encodes and writes msg to the wire.
func (c *Conn) WriteMessage(msg *protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w, err := c.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()

	c.writer = jwriter.Writer{}
	msg.MarshalEasyJSON(&c.writer)
	if err := c.writer.Error; err != nil {
		return err
	}

	if c.dbgf != nil {
		buf, _ := c.writer.BuildBytes()
		c.dbgf("-> %s", buf)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	} else if _, err := c.writer.DumpTo(w); err != nil {
		return err
	}
	return w.Close()
}

// ForceIP rewrites the host component of urlstr to an IP address when it is
// "localhost", since some Chrome versions reject "Host: localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme, rest := urlstr[:i+3], urlstr[i+3:]
		if j := strings.IndexByte(rest, '/'); j != -1 {
			host, path := rest[:j], rest[j:]
			if host == "localhost" || strings.HasPrefix(host, "localhost:") {
				return scheme + "127.0.0.1" + host[len("localhost"):] + path
			}
		}
	}
	return urlstr
}
