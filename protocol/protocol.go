package protocol

import "github.com/pkg/errors"

const (
	// MaxKeySize bounds a single key field.
	MaxKeySize = 250
	// MaxCommandSize bounds how many header bytes we'll scan looking
	// for a line terminator before giving up on the client.
	MaxCommandSize = 1 << 12

	Separator = "\r\n"

	setCommand     = "set"
	addCommand     = "add"
	replaceCommand = "replace"
	getCommand     = "get"
	deleteCommand  = "delete"
	appendCommand  = "append"
	prependCommand = "prepend"
	incrCommand    = "incr"
	decrCommand    = "decr"
)

var (
	ErrUnknownCommand      = errors.New("unknown command")
	ErrMoreFieldsRequired  = errors.New("more fields required")
	ErrTooManyFields       = errors.New("too many fields")
	ErrTooLargeKey         = errors.New("too large key")
	ErrInvalidCharInKey    = errors.New("key contains invalid characters")
	ErrFieldsParseError    = errors.New("fields parse error")
	ErrTooLargeCommand     = errors.New("command line is too long")
	ErrEmptyCommand        = errors.New("empty command")
	ErrInvalidLineSeparator = errors.New("invalid line separator")
)

func isInvalidFieldChar(b byte) bool {
	return b <= ' ' || b == 127
}

func checkKey(key []byte) error {
	if len(key) > MaxKeySize {
		return ErrTooLargeKey
	}
	for _, b := range key {
		if isInvalidFieldChar(b) {
			return ErrInvalidCharInKey
		}
	}
	return nil
}
