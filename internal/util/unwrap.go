package util

// Unwrap returns the original error passed to stackerr.Wrap, so logs
// and protocol replies show the bare message instead of a stack trace.
func Unwrap(err error) error {
	type hasUnderlying interface {
		Underlying() error
	}
	if eh, ok := err.(hasUnderlying); ok {
		return eh.Underlying()
	}
	return err
}
