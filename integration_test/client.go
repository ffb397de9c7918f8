package integration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ErrCacheMiss mirrors gomemcache's sentinel so load/integration specs
// written against this client read the same as specs written against
// a real memcache.Client would.
var ErrCacheMiss = errors.New("integration: cache miss")

// client is a minimal text-protocol client for the server's simplified
// wire format: no flags or expiration fields travel on the wire, so a
// standard memcached client library can't speak to it. client exists
// only to drive the literal end-to-end scenarios and the load test
// against a real net.Conn.
type client struct {
	addr string
	conn net.Conn
	r    *bufio.Reader
}

func newClient(addr string) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &client{addr: addr, conn: conn, r: bufio.NewReader(conn)}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}

func (c *client) line() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *client) sendCommand(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(c.conn, format+"\r\n", args...)
	return err
}

func (c *client) sendPayload(value []byte) error {
	if _, err := c.conn.Write(value); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte("\r\n"))
	return err
}

func (c *client) store(verb, key string, value []byte) error {
	if err := c.sendCommand("%s %s %d", verb, key, len(value)); err != nil {
		return err
	}
	if err := c.sendPayload(value); err != nil {
		return err
	}
	reply, err := c.line()
	if err != nil {
		return err
	}
	switch reply {
	case "STORED":
		return nil
	case "NOT_STORED":
		return errNotStored
	default:
		return fmt.Errorf("unexpected reply to %s: %q", verb, reply)
	}
}

var errNotStored = errors.New("integration: not stored")

func (c *client) Set(key string, value []byte) error     { return c.store("set", key, value) }
func (c *client) Add(key string, value []byte) error      { return c.store("add", key, value) }
func (c *client) Replace(key string, value []byte) error  { return c.store("replace", key, value) }
func (c *client) Append(key string, value []byte) error   { return c.store("append", key, value) }
func (c *client) Prepend(key string, value []byte) error  { return c.store("prepend", key, value) }

// Get fetches a single key. ErrCacheMiss is returned on a miss, same
// contract as gomemcache's Client.Get, so specs ported from the
// teacher's style read unchanged.
func (c *client) Get(key string) ([]byte, error) {
	m, err := c.GetMulti([]string{key})
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

// GetMulti fetches several keys in one round trip, returning only the
// keys that hit.
func (c *client) GetMulti(keys []string) (map[string][]byte, error) {
	if err := c.sendCommand("get %s", strings.Join(keys, " ")); err != nil {
		return nil, err
	}
	result := map[string][]byte{}
	for {
		line, err := c.line()
		if err != nil {
			return nil, err
		}
		if line == "END" {
			return result, nil
		}
		fields := strings.Fields(line)
		if len(fields) != 3 || fields[0] != "VALUE" {
			return nil, fmt.Errorf("unexpected get reply line: %q", line)
		}
		size, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("unexpected get size field: %q", fields[2])
		}
		value := make([]byte, size)
		if _, err := io.ReadFull(c.r, value); err != nil {
			return nil, err
		}
		var sep [2]byte
		if _, err := io.ReadFull(c.r, sep[:]); err != nil {
			return nil, err
		}
		result[fields[1]] = value
	}
}

func (c *client) Delete(key string) error {
	if err := c.sendCommand("delete %s", key); err != nil {
		return err
	}
	reply, err := c.line()
	if err != nil {
		return err
	}
	switch reply {
	case "DELETED":
		return nil
	case "NOT_FOUND":
		return ErrCacheMiss
	default:
		return fmt.Errorf("unexpected reply to delete: %q", reply)
	}
}

func (c *client) delta(verb, key string, d uint64) (uint64, error) {
	if err := c.sendCommand("%s %s %d", verb, key, d); err != nil {
		return 0, err
	}
	reply, err := c.line()
	if err != nil {
		return 0, err
	}
	if reply == "NOT_FOUND" {
		return 0, ErrCacheMiss
	}
	result, err := strconv.ParseUint(reply, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected reply to %s: %q", verb, reply)
	}
	return result, nil
}

func (c *client) Incr(key string, d uint64) (uint64, error) { return c.delta("incr", key, d) }
func (c *client) Decr(key string, d uint64) (uint64, error) { return c.delta("decr", key, d) }
