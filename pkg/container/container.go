// Package container is a small constructor-injection container. Providers
// are functions whose parameters are resolved from the container; their
// first result is the provided type and an optional second result is an
// error.
package container

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type Container struct {
	mu        sync.Mutex
	prov      map[reflect.Type]provider
	instances map[reflect.Type]reflect.Value
	order     []reflect.Type // singleton creation order, for Close
}

type provider struct {
	fn        reflect.Value
	singleton bool
}

func New() *Container {
	return &Container{prov: make(map[reflect.Type]provider), instances: make(map[reflect.Type]reflect.Value)}
}

// Provide registers constructor for its first result type.
func (c *Container) Provide(constructor any, singleton bool) error {
	v := reflect.ValueOf(constructor)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: constructor must be a function, got %T", constructor)
	}
	ft := v.Type()
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return fmt.Errorf("container: constructor must return (T) or (T, error)")
	}
	if ft.NumOut() == 2 && ft.Out(1) != errorType {
		return fmt.Errorf("container: second return value must be error")
	}
	out := ft.Out(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.prov[out]; exists {
		return fmt.Errorf("container: provider already exists for %v", out)
	}
	c.prov[out] = provider{fn: v, singleton: singleton}
	return nil
}

// Supply registers an already built singleton.
func (c *Container) Supply(value any) error {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return fmt.Errorf("container: cannot supply nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := v.Type()
	if _, exists := c.prov[t]; exists {
		return fmt.Errorf("container: provider already exists for %v", t)
	}
	if _, exists := c.instances[t]; exists {
		return fmt.Errorf("container: value already supplied for %v", t)
	}
	c.instances[t] = v
	return nil
}

// Resolve populates target, which must be a non-nil pointer.
//
//	var db *database.DB
//	err := c.Resolve(&db)
func (c *Container) Resolve(target any) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("container: target must be a non-nil pointer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	val, err := c.get(ptr.Elem().Type(), map[reflect.Type]bool{})
	if err != nil {
		return err
	}
	ptr.Elem().Set(val)
	return nil
}

// Invoke calls fn with its parameters resolved. A trailing error result is
// returned.
func (c *Container) Invoke(fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: Invoke requires a function")
	}
	ft := v.Type()
	args := make([]reflect.Value, ft.NumIn())
	c.mu.Lock()
	for i := range args {
		val, err := c.get(ft.In(i), map[reflect.Type]bool{})
		if err != nil {
			c.mu.Unlock()
			return err
		}
		args[i] = val
	}
	c.mu.Unlock()

	outs := v.Call(args)
	if n := len(outs); n > 0 && ft.Out(n-1) == errorType && !outs[n-1].IsNil() {
		return outs[n-1].Interface().(error)
	}
	return nil
}

// get must be called with c.mu held. Interfaces resolve to the first
// provider or instance whose type implements them.
func (c *Container) get(t reflect.Type, seen map[reflect.Type]bool) (reflect.Value, error) {
	if v, ok := c.instances[t]; ok {
		return v, nil
	}
	prov, ok := c.prov[t]
	if !ok && t.Kind() == reflect.Interface {
		for it, v := range c.instances {
			if it.Implements(t) {
				return v, nil
			}
		}
		for pt, p := range c.prov {
			if pt.Implements(t) {
				t, prov, ok = pt, p, true
				if v, built := c.instances[pt]; built {
					return v, nil
				}
				break
			}
		}
	}
	if !ok {
		return reflect.Value{}, fmt.Errorf("container: no provider for %v", t)
	}
	if seen[t] {
		return reflect.Value{}, fmt.Errorf("container: cyclic dependency for %v", t)
	}
	seen[t] = true
	defer delete(seen, t)

	ft := prov.fn.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		dep, err := c.get(ft.In(i), seen)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%v: %w", t, err)
		}
		args[i] = dep
	}
	outs := prov.fn.Call(args)
	if len(outs) == 2 && !outs[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("container: build %v: %w", t, outs[1].Interface().(error))
	}
	res := outs[0]
	if prov.singleton {
		c.instances[t] = res
		c.order = append(c.order, t)
	}
	return res, nil
}

// Close closes built singletons in reverse creation order. Values with a
// Close() error or Close() method are closed; errors are joined.
func (c *Container) Close() error {
	c.mu.Lock()
	order := c.order
	c.order = nil
	instances := c.instances
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		v := instances[order[i]]
		if !v.IsValid() || (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil() {
			continue
		}
		switch x := v.Interface().(type) {
		case io.Closer:
			if err := x.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %v: %w", order[i], err))
			}
		case interface{ Close() }:
			x.Close()
		}
	}
	return errors.Join(errs...)
}
