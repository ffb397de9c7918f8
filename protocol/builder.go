package protocol

import (
	"github.com/irtery/afina/command"
	"github.com/irtery/afina/recycle"
)

// Builder is the not-yet-runnable shape of a command recognized by
// Parse. ArgRemains reports how many payload bytes (not counting the
// trailing separator) the connection must still collect before
// calling Finish.
type Builder interface {
	ArgRemains() int
	Finish(payload *recycle.Data) command.Command
}

type noPayloadBuilder struct {
	cmd command.Command
}

func (b *noPayloadBuilder) ArgRemains() int { return 0 }
func (b *noPayloadBuilder) Finish(*recycle.Data) command.Command {
	return b.cmd
}

type storeKind int

const (
	storeSet storeKind = iota
	storeAdd
	storeReplace
)

type storeBuilder struct {
	kind    storeKind
	key     string
	nbytes  int
}

func (b *storeBuilder) ArgRemains() int { return b.nbytes }

func (b *storeBuilder) Finish(payload *recycle.Data) command.Command {
	switch b.kind {
	case storeAdd:
		return command.NewAdd(b.key, payload)
	case storeReplace:
		return command.NewReplace(b.key, payload)
	default:
		return command.NewSet(b.key, payload)
	}
}

type concatBuilder struct {
	pool    *recycle.Pool
	prepend bool
	key     string
	nbytes  int
}

func (b *concatBuilder) ArgRemains() int { return b.nbytes }

func (b *concatBuilder) Finish(payload *recycle.Data) command.Command {
	if b.prepend {
		return command.NewPrepend(b.pool, b.key, payload)
	}
	return command.NewAppend(b.pool, b.key, payload)
}
