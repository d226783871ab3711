package eval

func seqIndex(kind string, idx Value, length int) (int, error) {
	i, ok := toInt(idx)
	if !ok {
		return 0, errorf(TypeError, "%s indices must be integers or slices, not %s", kind, TypeName(idx))
	}
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, errorf(IndexError, "%s index out of range", kind)
	}
	return int(i), nil
}

func getItem(container, idx Value) (Value, error) {
	switch c := container.(type) {
	case *List:
		i, err := seqIndex("list", idx, len(c.Elems))
		if err != nil {
			return nil, err
		}
		return c.Elems[i], nil
	case Tuple:
		i, err := seqIndex("tuple", idx, len(c))
		if err != nil {
			return nil, err
		}
		return c[i], nil
	case string:
		r := []rune(c)
		i, err := seqIndex("string", idx, len(r))
		if err != nil {
			return nil, err
		}
		return string(r[i]), nil
	case *Range:
		i, err := seqIndex("range object", idx, int(c.Len()))
		if err != nil {
			return nil, err
		}
		return c.At(int64(i)), nil
	case *Dict:
		v, ok, err := c.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorf(KeyError, "%s", Repr(idx))
		}
		return v, nil
	case *Object:
		if get, ok := c.Attrs["__getitem__"].(func(Value) (Value, error)); ok {
			return get(idx)
		}
	}
	return nil, errorf(TypeError, "'%s' object is not subscriptable", TypeName(container))
}

func setItem(container, idx, v Value) error {
	switch c := container.(type) {
	case *List:
		i, err := seqIndex("list assignment", idx, len(c.Elems))
		if err != nil {
			return err
		}
		c.Elems[i] = v
		return nil
	case *Dict:
		return c.Set(idx, v)
	}
	return errorf(TypeError, "'%s' object does not support item assignment", TypeName(container))
}

func delItem(container, idx Value) error {
	switch c := container.(type) {
	case *List:
		i, err := seqIndex("list assignment", idx, len(c.Elems))
		if err != nil {
			return err
		}
		c.Elems = append(c.Elems[:i], c.Elems[i+1:]...)
		return nil
	case *Dict:
		ok, err := c.Delete(idx)
		if err != nil {
			return err
		}
		if !ok {
			return errorf(KeyError, "%s", Repr(idx))
		}
		return nil
	}
	return errorf(TypeError, "'%s' object does not support item deletion", TypeName(container))
}

// sliceIndices resolves slice bounds against a sequence length the way
// slice.indices does: negative bounds count from the end and out-of-range
// bounds are clamped.
func sliceIndices(lo, hi, st Value, length int) (start, stop, step int, err error) {
	step = 1
	if st != nil {
		s, ok := toInt(st)
		if !ok {
			return 0, 0, 0, errorf(TypeError, "slice indices must be integers or None")
		}
		if s == 0 {
			return 0, 0, 0, errorf(ValueError, "slice step cannot be zero")
		}
		step = int(s)
	}
	clamp := func(v Value, def int) (int, error) {
		if v == nil {
			return def, nil
		}
		i64, ok := toInt(v)
		if !ok {
			return 0, errorf(TypeError, "slice indices must be integers or None")
		}
		i := int(i64)
		if i < 0 {
			i += length
			if i < 0 {
				if step < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if i >= length {
			if step < 0 {
				return length - 1, nil
			}
			return length, nil
		}
		return i, nil
	}
	if step > 0 {
		start, err = clamp(lo, 0)
		if err == nil {
			stop, err = clamp(hi, length)
		}
	} else {
		start, err = clamp(lo, length-1)
		if err == nil {
			stop, err = clamp(hi, -1)
		}
	}
	return start, stop, step, err
}

func sliceRange(start, stop, step int) []int {
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out
}

func pick(elems []Value, idx []int) []Value {
	out := make([]Value, len(idx))
	for i, j := range idx {
		out[i] = elems[j]
	}
	return out
}

func getSlice(container, lo, hi, st Value) (Value, error) {
	switch c := container.(type) {
	case *List:
		start, stop, step, err := sliceIndices(lo, hi, st, len(c.Elems))
		if err != nil {
			return nil, err
		}
		return NewList(pick(c.Elems, sliceRange(start, stop, step))...), nil
	case Tuple:
		start, stop, step, err := sliceIndices(lo, hi, st, len(c))
		if err != nil {
			return nil, err
		}
		return Tuple(pick(c, sliceRange(start, stop, step))), nil
	case string:
		r := []rune(c)
		start, stop, step, err := sliceIndices(lo, hi, st, len(r))
		if err != nil {
			return nil, err
		}
		idx := sliceRange(start, stop, step)
		out := make([]rune, len(idx))
		for i, j := range idx {
			out[i] = r[j]
		}
		return string(out), nil
	case *Range:
		start, stop, step, err := sliceIndices(lo, hi, st, int(c.Len()))
		if err != nil {
			return nil, err
		}
		return &Range{
			Start: c.Start + int64(start)*c.Step,
			Stop:  c.Start + int64(stop)*c.Step,
			Step:  c.Step * int64(step),
		}, nil
	}
	return nil, errorf(TypeError, "'%s' object is not subscriptable", TypeName(container))
}

func setSlice(container, lo, hi, st, v Value) error {
	l, ok := container.(*List)
	if !ok {
		return errorf(TypeError, "'%s' object does not support slice assignment", TypeName(container))
	}
	vals, err := ToSlice(v)
	if err != nil {
		return errorf(TypeError, "can only assign an iterable")
	}
	start, stop, step, err := sliceIndices(lo, hi, st, len(l.Elems))
	if err != nil {
		return err
	}
	if step == 1 {
		if stop < start {
			stop = start
		}
		out := make([]Value, 0, len(l.Elems)-(stop-start)+len(vals))
		out = append(out, l.Elems[:start]...)
		out = append(out, vals...)
		out = append(out, l.Elems[stop:]...)
		l.Elems = out
		return nil
	}
	idx := sliceRange(start, stop, step)
	if len(idx) != len(vals) {
		return errorf(ValueError, "attempt to assign sequence of size %d to extended slice of size %d", len(vals), len(idx))
	}
	for i, j := range idx {
		l.Elems[j] = vals[i]
	}
	return nil
}

func delSlice(container, lo, hi, st Value) error {
	l, ok := container.(*List)
	if !ok {
		return errorf(TypeError, "'%s' object does not support item deletion", TypeName(container))
	}
	start, stop, step, err := sliceIndices(lo, hi, st, len(l.Elems))
	if err != nil {
		return err
	}
	drop := make(map[int]struct{})
	for _, i := range sliceRange(start, stop, step) {
		drop[i] = struct{}{}
	}
	out := l.Elems[:0:0]
	for i, e := range l.Elems {
		if _, gone := drop[i]; !gone {
			out = append(out, e)
		}
	}
	l.Elems = out
	return nil
}
