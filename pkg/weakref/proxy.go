package weakref

import "fmt"

// CheckAlive is the liveness gate. It returns ErrReferentGone once the
// referent has been destroyed; the handle itself remains valid and keeps
// returning the same error.
func (r *Ref) CheckAlive() error {
	if r.target() == nil {
		return ErrReferentGone
	}
	return nil
}

// live passes the gate and returns the referent
func (r *Ref) live() (Referent, error) {
	target := r.target()
	if target == nil {
		return nil, ErrReferentGone
	}
	return target, nil
}

// Do forwards an operation to a proxy's referent. The gate runs first; fn is
// only called while the referent exists.
func (r *Ref) Do(fn func(referent Referent) error) error {
	if !r.Kind().IsProxy() {
		return fmt.Errorf("%w: %s does not forward operations", ErrWrongKind, r.Kind())
	}
	target, err := r.live()
	if err != nil {
		return err
	}
	return fn(target)
}

// Call invokes a callable proxy's referent. A proxy argument is unwrapped
// (and gated) before the call.
func (r *Ref) Call(arg any) (any, error) {
	if r.Kind() != KindCallableProxy {
		return nil, fmt.Errorf("%w: %s is not callable", ErrWrongKind, r.Kind())
	}
	target, err := r.live()
	if err != nil {
		return nil, err
	}
	arg, err = Unwrap(arg)
	if err != nil {
		return nil, err
	}
	return target.(Callable).Call(arg)
}

// Unwrap replaces a proxy operand with its referent, failing with
// ErrReferentGone if the proxy is dead. Other values pass through unchanged.
func Unwrap(v any) (any, error) {
	r, ok := v.(*Ref)
	if !ok || !r.Kind().IsProxy() {
		return v, nil
	}
	return r.live()
}
