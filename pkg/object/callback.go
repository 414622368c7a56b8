package object

import (
	"sync"

	"weakref_go/pkg/weakref"
)

// Callback runs a callable object when a weak reference's referent dies.
// It owns the object for as long as the weak reference holds it.
type Callback struct {
	fn   *Func
	once sync.Once
}

var (
	_ weakref.Callback         = (*Callback)(nil)
	_ weakref.CallbackReleaser = (*Callback)(nil)
)

// CallbackOf adds an owner to f and wraps it as a weak reference callback.
func CallbackOf(f *Func) (*Callback, error) {
	if err := f.Incref(); err != nil {
		return nil, err
	}
	return &Callback{fn: f}, nil
}

// Func returns the wrapped object.
func (c *Callback) Func() *Func { return c.fn }

// Invoke calls the object with the dead reference as its argument.
func (c *Callback) Invoke(ref *weakref.Ref) error {
	_, err := c.fn.Call(ref)
	return err
}

// Release drops the callback's ownership of the object. Only the first call
// has any effect.
func (c *Callback) Release() {
	c.once.Do(func() {
		if err := c.fn.Decref(); err != nil {
			c.fn.heap.log.Err().
				Err(err).
				Uint64("id", c.fn.id).
				Log("releasing weak reference callback")
		}
	})
}
