package scenario

import (
	"errors"
	"fmt"
	"strings"

	"weakref_go/pkg/object"
	"weakref_go/pkg/weakref"
)

var types = map[string]*object.Type{
	"plain":    {Name: "plain", WeakRefable: true, Hashable: true},
	"sealed":   {Name: "sealed", Hashable: true},
	"external": {Name: "external", WeakRefable: true, Hashable: true, ExternalSlot: true},
	"func":     {Name: "function", WeakRefable: true, Callable: true},
}

// errUsage marks steps that name things that do not exist.
var errUsage = errors.New("scenario")

// Runner executes commands against a heap. Objects and weak handles are
// addressed by name; names are never reused.
type Runner struct {
	heap    *object.Heap
	objects map[string]*object.Object
	handles map[string]*weakref.Ref

	// lines emitted by callable objects during the current command
	pending []string
}

// NewRunner creates a runner over heap.
func NewRunner(heap *object.Heap) *Runner {
	return &Runner{
		heap:    heap,
		objects: make(map[string]*object.Object),
		handles: make(map[string]*weakref.Ref),
	}
}

// Exec runs one command and returns the trace lines it produced. Failures of
// weak reference operations are part of the trace; the error is reserved for
// commands that cannot be carried out at all.
func (r *Runner) Exec(cmd Command) ([]string, error) {
	r.pending = r.pending[:0]
	line, err := r.exec(cmd)
	out := append([]string(nil), r.pending...)
	if line != "" {
		out = append(out, line)
	}
	return out, err
}

func (r *Runner) exec(cmd Command) (string, error) {
	a := cmd.Args
	switch cmd.Op {
	case "new":
		return "", r.newObject(a)
	case "ref", "proxy":
		return r.acquire(cmd.Op, a)
	case "incref":
		o, err := r.object(a[0])
		if err != nil {
			return "", err
		}
		return failure(cmd, o.Incref()), nil
	case "decref":
		o, err := r.object(a[0])
		if err != nil {
			return "", err
		}
		return failure(cmd, o.Decref()), nil
	case "deref":
		h, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		if target, ok := h.Get(); ok {
			return fmt.Sprintf("deref %s -> %s", a[0], r.nameOf(target)), nil
		}
		return fmt.Sprintf("deref %s -> none", a[0]), nil
	case "check":
		h, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		if err := h.CheckAlive(); err != nil {
			return failure(cmd, err), nil
		}
		return fmt.Sprintf("check %s ok", a[0]), nil
	case "call":
		return r.call(cmd)
	case "hash":
		h, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		sum, err := h.Hash()
		if err != nil {
			return failure(cmd, err), nil
		}
		return fmt.Sprintf("hash %s = 0x%016x", a[0], sum), nil
	case "eq":
		x, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		y, err := r.handle(a[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("eq %s %s = %v", a[0], a[1], x.Equal(y)), nil
	case "release":
		h, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		h.Release()
		return "", nil
	case "count":
		o, err := r.object(a[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("count %s = %d", a[0], r.heap.Manager().Count(o.Referent())), nil
	case "gc":
		h, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		h.StructuralClear()
		return "", nil
	case "show":
		h, err := r.handle(a[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s alive=%v", a[0], h.Kind(), h.Alive()), nil
	}
	return "", fmt.Errorf("%w: unknown command %q", errUsage, cmd.Op)
}

func (r *Runner) newObject(a []string) error {
	name := a[0]
	if _, exists := r.objects[name]; exists {
		return fmt.Errorf("%w: object %q already exists", errUsage, name)
	}
	kind := "plain"
	if len(a) > 1 {
		kind = a[1]
	}
	typ, ok := types[kind]
	if !ok {
		return fmt.Errorf("%w: unknown object type %q", errUsage, kind)
	}
	value := name
	if len(a) > 2 {
		value = a[2]
	}
	if typ.Callable {
		f := r.heap.NewFunc(typ, name, r.body(name))
		r.objects[name] = &f.Object
		return nil
	}
	r.objects[name] = r.heap.New(typ, name, value)
	return nil
}

// body is the code run by a callable object: it records the call and fails
// if the object's name starts with "fail".
func (r *Runner) body(name string) func(arg any) (any, error) {
	return func(arg any) (any, error) {
		switch v := arg.(type) {
		case *weakref.Ref:
			r.pending = append(r.pending, fmt.Sprintf("callback %s alive=%v", name, v.Alive()))
		case nil:
			r.pending = append(r.pending, fmt.Sprintf("called %s", name))
		default:
			r.pending = append(r.pending, fmt.Sprintf("called %s(%s)", name, r.nameOf(v)))
		}
		if strings.HasPrefix(name, "fail") {
			return nil, fmt.Errorf("%s failed", name)
		}
		return name, nil
	}
}

func (r *Runner) acquire(op string, a []string) (string, error) {
	name := a[0]
	if _, exists := r.handles[name]; exists {
		return "", fmt.Errorf("%w: handle %q already exists", errUsage, name)
	}
	o, err := r.object(a[1])
	if err != nil {
		return "", err
	}
	var cb weakref.Callback
	if len(a) > 2 {
		fo, err := r.object(a[2])
		if err != nil {
			return "", err
		}
		f, ok := fo.Referent().(*object.Func)
		if !ok {
			return "", fmt.Errorf("%w: %q is not callable", errUsage, a[2])
		}
		c, err := object.CallbackOf(f)
		if err != nil {
			return fmt.Sprintf("%s %s: %v", op, name, err), nil
		}
		cb = c
	}

	mgr := r.heap.Manager()
	var h *weakref.Ref
	if op == "ref" {
		h, err = mgr.NewRef(o.Referent(), cb)
	} else {
		h, err = mgr.NewProxy(o.Referent(), cb)
	}
	if err != nil {
		if c, ok := cb.(*object.Callback); ok {
			c.Release()
		}
		return fmt.Sprintf("%s %s: %v", op, name, err), nil
	}
	r.handles[name] = h
	return "", nil
}

func (r *Runner) call(cmd Command) (string, error) {
	h, err := r.handle(cmd.Args[0])
	if err != nil {
		return "", err
	}
	var arg any
	if len(cmd.Args) > 1 {
		arg, err = r.operand(cmd.Args[1])
		if err != nil {
			return "", err
		}
	}
	res, err := h.Call(arg)
	if err != nil {
		return failure(cmd, err), nil
	}
	return fmt.Sprintf("call %s = %v", cmd.Args[0], res), nil
}

// operand resolves a handle or object name, falling back to the literal word.
func (r *Runner) operand(word string) (any, error) {
	if h, ok := r.handles[word]; ok {
		return h, nil
	}
	if o, ok := r.objects[word]; ok {
		return o.Referent(), nil
	}
	return word, nil
}

func (r *Runner) object(name string) (*object.Object, error) {
	o, ok := r.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: no object named %q", errUsage, name)
	}
	return o, nil
}

func (r *Runner) handle(name string) (*weakref.Ref, error) {
	h, ok := r.handles[name]
	if !ok {
		return nil, fmt.Errorf("%w: no handle named %q", errUsage, name)
	}
	return h, nil
}

func (r *Runner) nameOf(v any) string {
	switch x := v.(type) {
	case *object.Object:
		name, _ := x.Name()
		return name
	case *object.Func:
		name, _ := x.Name()
		return name
	case *weakref.Ref:
		for name, h := range r.handles {
			if h == x {
				return name
			}
		}
		return x.Kind().String()
	}
	return fmt.Sprint(v)
}

func failure(cmd Command, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", cmd, err)
}
