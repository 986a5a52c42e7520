package vsphere

// once holds a value that is established on the first successful call to get
// and reused afterwards. A failed initialization is not remembered.
type once[T any] struct {
	value T
	set   bool
}

func (o *once[T]) get(init func() (T, error)) (T, error) {
	if o.set {
		return o.value, nil
	}
	v, err := init()
	if err != nil {
		var zero T
		return zero, err
	}
	o.value, o.set = v, true
	return v, nil
}

func (o *once[T]) reset() {
	var zero T
	o.value, o.set = zero, false
}
