package network

import (
	"bytes"
	"io"
	"net"
	"time"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/command"
	"github.com/irtery/afina/log"
	"github.com/irtery/afina/metrics"
	"github.com/irtery/afina/protocol"
	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

// readBufferSize bounds how much of a command header we'll buffer
// before giving up on the client; it matches protocol.MaxCommandSize
// so a single fill can always make room for the longest valid header.
const readBufferSize = protocol.MaxCommandSize

// DefaultReadTimeout is the idle read timeout NewConn and NewAcceptor
// apply before every read. A zero timeout passed to NewConnTimeout or
// NewConnFull disables deadlines instead.
const DefaultReadTimeout = 5 * time.Second

// Conn serves one accepted connection: read a header, collect its
// payload if it has one, execute the resulting command.Command, write
// its reply, repeat until the client disconnects or sends something
// the parser cannot make sense of.
type Conn struct {
	netConn net.Conn
	pool    *recycle.Pool
	cache   *storage.Locked
	log     log.Logger

	parser      *protocol.Parser
	buf         []byte
	n           int
	readTimeout time.Duration
	metrics     *metrics.Server
}

func NewConn(netConn net.Conn, pool *recycle.Pool, cache *storage.Locked, logger log.Logger) *Conn {
	return NewConnTimeout(netConn, pool, cache, logger, DefaultReadTimeout)
}

// NewConnTimeout is NewConn with an explicit idle read timeout; a zero
// timeout disables deadlines entirely (used by tests against
// net.Pipe, which does not support SetReadDeadline in every Go
// version the same way a real socket does).
func NewConnTimeout(netConn net.Conn, pool *recycle.Pool, cache *storage.Locked, logger log.Logger, readTimeout time.Duration) *Conn {
	return NewConnFull(netConn, pool, cache, logger, readTimeout, nil)
}

// NewConnFull is NewConnTimeout with an optional metrics.Server; a nil
// server disables per-command latency and cache hit/miss recording.
func NewConnFull(netConn net.Conn, pool *recycle.Pool, cache *storage.Locked, logger log.Logger, readTimeout time.Duration, m *metrics.Server) *Conn {
	return &Conn{
		netConn:     netConn,
		pool:        pool,
		cache:       cache,
		log:         logger,
		parser:      protocol.NewParser(pool),
		buf:         make([]byte, readBufferSize),
		readTimeout: readTimeout,
		metrics:     m,
	}
}

// Serve runs the connection's lifetime to completion. It never
// returns an error to the caller — every failure (client disconnect,
// malformed input, write failure) just ends the loop and closes the
// socket, after logging anything other than a clean EOF.
func (c *Conn) Serve() {
	defer c.netConn.Close()
	for {
		if err := c.serveOne(); err != nil {
			if err != io.EOF {
				c.log.Debugf("closing connection: %v", err)
			}
			return
		}
	}
}

func (c *Conn) serveOne() error {
	for {
		ok, consumed, err := c.parser.Parse(c.buf, c.n)
		if err != nil {
			c.replyError(err)
			return err
		}
		if ok {
			c.consumeBuf(consumed)
			break
		}
		if err := c.fill(); err != nil {
			return err
		}
	}

	builder, argRemains := c.parser.Build()
	var payload *recycle.Data
	if argRemains > 0 {
		data, err := c.readPayload(argRemains)
		c.parser.Reset()
		if err != nil {
			c.replyError(err)
			return err
		}
		payload = data
	} else {
		c.parser.Reset()
	}

	cmd := builder.Finish(payload)
	return c.execute(cmd)
}

// execute runs cmd and, when metrics are enabled, records its latency
// under the timer matching its kind and tallies cache hits/misses for
// Get commands by inspecting the VALUE/END lines it writes.
func (c *Conn) execute(cmd command.Command) error {
	if c.metrics == nil {
		return cmd.Execute(c.cache, c.netConn)
	}

	if get, ok := cmd.(*command.Get); ok {
		counting := &hitCountingWriter{Writer: c.netConn}
		var err error
		c.metrics.GetLatency.Time(func() { err = get.Execute(c.cache, counting) })
		hits := int64(counting.values)
		misses := int64(len(get.Keys)) - hits
		c.metrics.CacheHits.Inc(hits)
		c.metrics.CacheMisses.Inc(misses)
		return err
	}

	var err error
	c.metrics.WriteLatency.Time(func() { err = cmd.Execute(c.cache, c.netConn) })
	return err
}

// hitCountingWriter counts VALUE reply lines written through it,
// without parsing or buffering the value bytes themselves.
type hitCountingWriter struct {
	io.Writer
	values int
}

func (h *hitCountingWriter) Write(p []byte) (int, error) {
	if bytes.HasPrefix(p, []byte(command.ValueResponse+" ")) {
		h.values++
	}
	return h.Writer.Write(p)
}

func (c *Conn) setReadDeadline() {
	if c.readTimeout > 0 {
		c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

// deadlineReader re-arms the connection's idle read deadline before
// every Read, so a slow-but-alive payload trickle doesn't trip the
// same timeout that bounds a single idle wait.
type deadlineReader struct{ c *Conn }

func (d deadlineReader) Read(p []byte) (int, error) {
	d.c.setReadDeadline()
	return d.c.netConn.Read(p)
}

func (c *Conn) replyError(err error) {
	io.WriteString(c.netConn, command.ClientErrorResponse+" "+err.Error()+command.Separator)
}

// fill reads more bytes from the connection into the unused tail of
// buf. It reports ErrTooLargeCommand rather than growing buf when the
// header still hasn't terminated by the time buf is full.
func (c *Conn) fill() error {
	if c.n == len(c.buf) {
		return stackerr.Wrap(protocol.ErrTooLargeCommand)
	}
	c.setReadDeadline()
	read, err := c.netConn.Read(c.buf[c.n:])
	if err != nil {
		return err
	}
	c.n += read
	return nil
}

// consumeBuf drops the first k bytes (a recognized header) and slides
// whatever is left — possibly the start of a pipelined next command,
// or payload bytes already in hand — to the front of buf.
func (c *Conn) consumeBuf(k int) {
	copy(c.buf, c.buf[k:c.n])
	c.n -= k
}

// readPayload collects total bytes (payload plus the trailing "\r\n",
// per the Parser.Build accounting rule), drawing first from whatever
// of it is already sitting in buf and only then reading more off the
// wire. Bytes already buffered beyond total (a pipelined next header)
// are preserved for the next serveOne iteration.
func (c *Conn) readPayload(total int) (*recycle.Data, error) {
	fromBuf := c.n
	if fromBuf > total {
		fromBuf = total
	}

	var src io.Reader = bytes.NewReader(c.buf[:fromBuf])
	if fromBuf < total {
		src = io.MultiReader(src, deadlineReader{c})
	}

	data, err := c.pool.ReadData(src, total-2)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}

	var sep [2]byte
	if _, err := io.ReadFull(src, sep[:]); err != nil {
		data.Recycle()
		return nil, stackerr.Wrap(err)
	}
	if sep[0] != '\r' || sep[1] != '\n' {
		data.Recycle()
		return nil, stackerr.Wrap(protocol.ErrInvalidLineSeparator)
	}

	copy(c.buf, c.buf[fromBuf:c.n])
	c.n -= fromBuf
	return data, nil
}
