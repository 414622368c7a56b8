package weakref

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyGate(t *testing.T) {
	m := New(Config{})
	obj := newObj("a")

	p, err := m.NewProxy(obj, nil)
	require.NoError(t, err)
	assert.Equal(t, KindProxy, p.Kind())

	var seen Referent
	require.NoError(t, p.Do(func(r Referent) error {
		seen = r
		return nil
	}))
	assert.Same(t, obj, seen)

	require.NoError(t, m.ClearAll(obj))

	called := false
	for i := 0; i < 3; i++ {
		err := p.Do(func(Referent) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrReferentGone)
		assert.ErrorIs(t, p.CheckAlive(), ErrReferentGone)
	}
	assert.False(t, called)
}

func TestDoRejectsPlainRefs(t *testing.T) {
	m := New(Config{})
	obj := newObj("a")
	r, err := m.NewRef(obj, nil)
	require.NoError(t, err)

	err = r.Do(func(Referent) error { return nil })
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestCallableProxy(t *testing.T) {
	m := New(Config{})
	target := newObj("target")
	fn := &funcObj{fn: func(arg any) (any, error) {
		if arg == nil {
			return nil, errors.New("no argument")
		}
		return arg, nil
	}}

	p, err := m.NewProxy(fn, nil)
	require.NoError(t, err)
	assert.Equal(t, KindCallableProxy, p.Kind())

	argProxy, err := m.NewProxy(target, nil)
	require.NoError(t, err)

	got, err := p.Call(argProxy)
	require.NoError(t, err)
	assert.Same(t, target, got, "proxy arguments are unwrapped")

	got, err = p.Call(42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = p.Call(nil)
	assert.EqualError(t, err, "no argument")

	require.NoError(t, m.ClearAll(target))
	_, err = p.Call(argProxy)
	assert.ErrorIs(t, err, ErrReferentGone)

	require.NoError(t, m.ClearAll(fn))
	_, err = p.Call(1)
	assert.ErrorIs(t, err, ErrReferentGone)
}

func TestCallOnNonCallable(t *testing.T) {
	m := New(Config{})
	obj := newObj("a")

	p, err := m.NewProxy(obj, nil)
	require.NoError(t, err)
	_, err = p.Call(nil)
	assert.ErrorIs(t, err, ErrWrongKind)

	r, err := m.NewRef(obj, nil)
	require.NoError(t, err)
	_, err = r.Call(nil)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestUnwrap(t *testing.T) {
	m := New(Config{})
	obj := newObj("a")

	r, err := m.NewRef(obj, nil)
	require.NoError(t, err)
	v, err := Unwrap(r)
	require.NoError(t, err)
	assert.Same(t, r, v, "plain references are not unwrapped")

	v, err = Unwrap("text")
	require.NoError(t, err)
	assert.Equal(t, "text", v)

	p, err := m.NewProxy(obj, nil)
	require.NoError(t, err)
	v, err = Unwrap(p)
	require.NoError(t, err)
	assert.Same(t, obj, v)

	require.NoError(t, m.ClearAll(obj))
	_, err = Unwrap(p)
	assert.ErrorIs(t, err, ErrReferentGone)
}

func TestHashSurvivesDeath(t *testing.T) {
	m := New(Config{})
	obj := newHashObj("key")

	r, err := m.NewRef(obj, nil)
	require.NoError(t, err)
	h1, err := r.Hash()
	require.NoError(t, err)
	h2, err := r.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, obj.calls, "hash is memoised")

	tr := &trace{}
	unhashed, err := m.NewRef(obj, &recCallback{name: "cb", tr: tr})
	require.NoError(t, err)

	require.NoError(t, m.ClearAll(obj))

	h3, err := r.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h3)

	_, err = unhashed.Hash()
	assert.ErrorIs(t, err, ErrUnhashable)
}

func TestHashErrors(t *testing.T) {
	m := New(Config{})

	plain := newObj("plain")
	r, err := m.NewRef(plain, nil)
	require.NoError(t, err)
	_, err = r.Hash()
	assert.ErrorIs(t, err, ErrUnhashable)

	bad := newHashObj("")
	r, err = m.NewRef(bad, nil)
	require.NoError(t, err)
	_, err = r.Hash()
	assert.ErrorIs(t, err, ErrUnhashable)
	assert.Contains(t, err.Error(), "empty key")

	r.Release()
	_, err = r.Hash()
	assert.ErrorIs(t, err, ErrUnhashable)
}

func TestEquality(t *testing.T) {
	m := New(Config{})
	a := newHashObj("same")
	b := newHashObj("same")
	c := newHashObj("other")

	ra, err := m.NewRef(a, nil)
	require.NoError(t, err)
	rb, err := m.NewRef(b, nil)
	require.NoError(t, err)
	rc, err := m.NewRef(c, nil)
	require.NoError(t, err)
	pa, err := m.NewProxy(a, nil)
	require.NoError(t, err)

	assert.True(t, ra.Equal(rb), "live references compare their referents")
	assert.False(t, ra.Equal(rc))
	assert.False(t, ra.Equal(pa), "kinds never compare equal")

	ra2, err := m.NewRef(a, nil)
	require.NoError(t, err)

	require.NoError(t, m.ClearAll(a))
	assert.False(t, ra.Equal(rb), "a dead reference only equals its own node")
	assert.True(t, ra.Equal(ra2))
	assert.True(t, ra.Equal(ra))
	assert.False(t, ra.Equal(nil))
}

func TestEqualityByIdentity(t *testing.T) {
	m := New(Config{})
	a := newObj("a")
	b := newObj("a")

	ra, err := m.NewRef(a, nil)
	require.NoError(t, err)
	tr := &trace{}
	ra2, err := m.NewRef(a, &recCallback{name: "cb", tr: tr})
	require.NoError(t, err)
	rb, err := m.NewRef(b, nil)
	require.NoError(t, err)

	assert.True(t, ra.Equal(ra2), "distinct nodes to one referent are equal while alive")
	assert.False(t, ra.Equal(rb))
}

func TestString(t *testing.T) {
	m := New(Config{})
	obj := newObj("alpha")

	r, err := m.NewRef(obj, nil)
	require.NoError(t, err)
	p, err := m.NewProxy(obj, nil)
	require.NoError(t, err)

	s := r.String()
	assert.True(t, strings.HasPrefix(s, "<weakref at "), s)
	assert.Contains(t, s, "to 'obj' at 0x")
	assert.True(t, strings.HasSuffix(s, "(alpha)>"), s)
	assert.Contains(t, p.String(), "<weakproxy at ")

	require.NoError(t, m.ClearAll(obj))
	assert.True(t, strings.HasSuffix(r.String(), "; dead>"), r.String())
	assert.True(t, strings.HasSuffix(p.String(), "; dead>"), p.String())
	assert.Equal(t, "<weakref nil>", (*Ref)(nil).String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "weakref", KindRef.String())
	assert.Equal(t, "weakproxy", KindProxy.String())
	assert.Equal(t, "weakcallableproxy", KindCallableProxy.String())
	assert.Equal(t, "unknown", Kind(9).String())
	assert.False(t, KindRef.IsProxy())
	assert.True(t, KindCallableProxy.IsProxy())
}
