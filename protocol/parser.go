package protocol

import (
	"bytes"
	"strconv"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/command"
	"github.com/irtery/afina/recycle"
)

var crlf = []byte(Separator)

// Parser recognizes one command header at a time. It is restartable:
// Parse may be called with a prefix of the eventual header and will
// report that it made no progress rather than guess, so the caller
// can feed it the same buffer again once more bytes have arrived.
//
// Usage: call Parse until it reports true, call Build to get the
// Builder and payload size, collect and Finish the payload (if any),
// Execute the resulting command.Command, then Reset before parsing
// the next header.
type Parser struct {
	pool    *recycle.Pool
	pending Builder
}

func NewParser(pool *recycle.Pool) *Parser {
	return &Parser{pool: pool}
}

// Parse looks for a complete "\r\n"-terminated header inside
// buf[:n]. It returns (true, consumed) once a full header has been
// recognized and stores the resulting Builder for Build to retrieve.
// It returns (false, 0) when no header can yet be recognized and more
// input is required. err is non-nil (wrapping a grammar violation)
// when the prefix already in hand can never form a valid header; the
// connection must be closed in that case.
func (p *Parser) Parse(buf []byte, n int) (ok bool, consumed int, err error) {
	idx := bytes.IndexByte(buf[:n], '\n')
	if idx < 0 {
		if n >= MaxCommandSize {
			return false, 0, stackerr.Wrap(ErrTooLargeCommand)
		}
		return false, 0, nil
	}
	consumed = idx + 1
	line := buf[:consumed]
	if !bytes.HasSuffix(line, crlf) {
		return false, consumed, stackerr.Wrap(ErrInvalidLineSeparator)
	}
	fields := bytes.Fields(bytes.TrimSuffix(line, crlf))
	if len(fields) == 0 {
		return false, consumed, stackerr.Wrap(ErrEmptyCommand)
	}
	builder, err := p.buildFor(string(fields[0]), fields[1:])
	if err != nil {
		return false, consumed, err
	}
	p.pending = builder
	return true, consumed, nil
}

// Build returns the Builder recognized by the most recent successful
// Parse, along with the number of payload bytes the connection must
// still read for it — already including the trailing separator, per
// the arg_remains+2 accounting rule, so a non-zero result tells the
// caller exactly how many more bytes to consume before Finish. A
// command that carries a payload reports at least 2, even when its
// payload is empty; a command without one reports 0.
func (p *Parser) Build() (builder Builder, argRemains int) {
	builder = p.pending
	argRemains = builder.ArgRemains()
	if _, noPayload := builder.(*noPayloadBuilder); !noPayload {
		argRemains += 2
	}
	return builder, argRemains
}

// Reset clears the recognized header so the parser can be reused for
// the next command.
func (p *Parser) Reset() {
	p.pending = nil
}

func (p *Parser) buildFor(name string, fields [][]byte) (Builder, error) {
	switch name {
	case getCommand:
		return p.buildGet(fields)
	case deleteCommand:
		return p.buildDelete(fields)
	case setCommand:
		return p.buildStore(storeSet, fields)
	case addCommand:
		return p.buildStore(storeAdd, fields)
	case replaceCommand:
		return p.buildStore(storeReplace, fields)
	case appendCommand:
		return p.buildConcat(false, fields)
	case prependCommand:
		return p.buildConcat(true, fields)
	case incrCommand:
		return p.buildDelta(false, fields)
	case decrCommand:
		return p.buildDelta(true, fields)
	default:
		return nil, stackerr.Wrap(ErrUnknownCommand)
	}
}

func (p *Parser) buildGet(fields [][]byte) (Builder, error) {
	if len(fields) == 0 {
		return nil, stackerr.Wrap(ErrMoreFieldsRequired)
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		if err := checkKey(f); err != nil {
			return nil, stackerr.Wrap(err)
		}
		keys[i] = string(f)
	}
	return &noPayloadBuilder{cmd: command.NewGet(keys)}, nil
}

func (p *Parser) buildDelete(fields [][]byte) (Builder, error) {
	key, err := p.exactlyOneKey(fields)
	if err != nil {
		return nil, err
	}
	return &noPayloadBuilder{cmd: command.NewDelete(key)}, nil
}

func (p *Parser) buildStore(kind storeKind, fields [][]byte) (Builder, error) {
	key, nbytes, err := p.keyAndSize(fields)
	if err != nil {
		return nil, err
	}
	return &storeBuilder{kind: kind, key: key, nbytes: nbytes}, nil
}

func (p *Parser) buildConcat(prepend bool, fields [][]byte) (Builder, error) {
	key, nbytes, err := p.keyAndSize(fields)
	if err != nil {
		return nil, err
	}
	return &concatBuilder{pool: p.pool, prepend: prepend, key: key, nbytes: nbytes}, nil
}

func (p *Parser) buildDelta(decr bool, fields [][]byte) (Builder, error) {
	if len(fields) != 2 {
		return nil, stackerr.Wrap(ErrMoreFieldsRequired)
	}
	if err := checkKey(fields[0]); err != nil {
		return nil, stackerr.Wrap(err)
	}
	delta, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return nil, stackerr.Newf("%s: %s", ErrFieldsParseError, err)
	}
	key := string(fields[0])
	var cmd command.Command
	if decr {
		cmd = command.NewDecr(p.pool, key, delta)
	} else {
		cmd = command.NewIncr(p.pool, key, delta)
	}
	return &noPayloadBuilder{cmd: cmd}, nil
}

func (p *Parser) exactlyOneKey(fields [][]byte) (string, error) {
	if len(fields) != 1 {
		return "", stackerr.Wrap(ErrMoreFieldsRequired)
	}
	if err := checkKey(fields[0]); err != nil {
		return "", stackerr.Wrap(err)
	}
	return string(fields[0]), nil
}

func (p *Parser) keyAndSize(fields [][]byte) (key string, nbytes int, err error) {
	if len(fields) != 2 {
		err = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	if err = checkKey(fields[0]); err != nil {
		err = stackerr.Wrap(err)
		return
	}
	n, parseErr := strconv.ParseUint(string(fields[1]), 10, 32)
	if parseErr != nil {
		err = stackerr.Newf("%s: %s", ErrFieldsParseError, parseErr)
		return
	}
	key = string(fields[0])
	nbytes = int(n)
	return
}
