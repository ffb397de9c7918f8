package command

import (
	"fmt"
	"io"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/storage"
)

const (
	Separator = "\r\n"

	StoredResponse      = "STORED"
	NotStoredResponse   = "NOT_STORED"
	ValueResponse       = "VALUE"
	EndResponse         = "END"
	DeletedResponse     = "DELETED"
	NotFoundResponse    = "NOT_FOUND"
	ErrorResponse       = "ERROR"
	ClientErrorResponse = "CLIENT_ERROR"
	ServerErrorResponse = "SERVER_ERROR"
)

// Command is produced by the protocol parser once a full header (and,
// for commands that carry one, a full payload) has been read. Execute
// calls exactly one cache operation and writes the complete reply,
// including the trailing separator, to w.
type Command interface {
	Execute(cache *storage.Locked, w io.Writer) error
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+Separator)
	if err != nil {
		return stackerr.Wrap(err)
	}
	return nil
}

func writeLinef(w io.Writer, format string, args ...interface{}) error {
	return writeLine(w, fmt.Sprintf(format, args...))
}
