package weakref

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// testObj is a minimal host object supporting weak references.
type testObj struct {
	name   string
	list   List
	owners int
	noWeak bool
}

func newObj(name string) *testObj { return &testObj{name: name} }

func (o *testObj) WeakRefList() *List {
	if o.noWeak {
		return nil
	}
	return &o.list
}

func (o *testObj) RefCount() int { return o.owners }
func (o *testObj) TypeName() string { return "obj" }
func (o *testObj) Name() (string, bool) { return o.name, o.name != "" }

// hashObj hashes and compares by key.
type hashObj struct {
	testObj
	key   string
	calls int
}

func newHashObj(key string) *hashObj { return &hashObj{key: key} }

func (o *hashObj) Hash() (uint64, error) {
	o.calls++
	if o.key == "" {
		return 0, errors.New("empty key")
	}
	var h uint64 = 14695981039346656037
	for i := 0; i < len(o.key); i++ {
		h ^= uint64(o.key[i])
		h *= 1099511628211
	}
	return h, nil
}

func (o *hashObj) Equal(other Referent) bool {
	x, ok := other.(*hashObj)
	return ok && x.key == o.key
}

// funcObj is callable.
type funcObj struct {
	testObj
	fn func(arg any) (any, error)
}

func (o *funcObj) Call(arg any) (any, error) { return o.fn(arg) }

// trace records callback invocations and releases in order.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (t *trace) add(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, fmt.Sprintf(format, args...))
}

func (t *trace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// recCallback is a named callback that records itself. Names starting with
// "fail" return an error, names starting with "panic" panic.
type recCallback struct {
	name     string
	tr       *trace
	fn       func(ref *Ref)
	released int
}

func (c *recCallback) Invoke(ref *Ref) error {
	c.tr.add("call %s alive=%v kind=%s", c.name, ref.Alive(), ref.Kind())
	if c.fn != nil {
		c.fn(ref)
	}
	switch {
	case strings.HasPrefix(c.name, "fail"):
		return fmt.Errorf("%s failed", c.name)
	case strings.HasPrefix(c.name, "panic"):
		panic(c.name + " panicked")
	}
	return nil
}

func (c *recCallback) Release() {
	c.released++
	c.tr.add("release %s", c.name)
}
