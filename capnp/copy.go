package capnp

// Copy deep-copies the object referenced by src into dst, returning a
// pointer valid within dst. Capability pointers are copied as-is
// (their table index is preserved); callers that move a Struct
// between messages are expected to also carry over the capability
// table (see Message.CapTable), the way outbound Call/Return payloads
// do via the cap walker in package rpc.
//
// This is a narrow stand-in for the traversal-limited, far-pointer-
// aware Canonicalize found in a full Cap'n Proto implementation —
// sufficient for copying freshly built, single-segment messages
// across a message boundary, which is all this engine needs.
func Copy(dst *Segment, src Ptr) (Ptr, error) {
	if !src.IsValid() {
		return Ptr{}, nil
	}
	switch {
	case src.InterfaceValid():
		return Ptr{raw: src.raw}, nil
	case src.StructValid():
		return copyStruct(dst, src.Struct())
	case src.ListValid():
		return copyList(dst, src.List())
	default:
		return Ptr{}, ErrInvalidPtr
	}
}

func copyStruct(dst *Segment, s Struct) (Ptr, error) {
	out, err := NewStruct(dst, s.size)
	if err != nil {
		return Ptr{}, err
	}
	copy(dst.data[out.off:out.off+address(s.size.DataSize)], s.seg.data[s.off:s.off+address(s.size.DataSize)])
	for i := uint16(0); i < s.size.PointerCount; i++ {
		p, err := s.Ptr(i)
		if err != nil {
			return Ptr{}, err
		}
		if !p.IsValid() {
			continue
		}
		cp, err := Copy(dst, p)
		if err != nil {
			return Ptr{}, err
		}
		if err := out.SetPtr(i, cp); err != nil {
			return Ptr{}, err
		}
	}
	return out.ToPtr(), nil
}

func copyList(dst *Segment, l List) (Ptr, error) {
	switch l.elemSize {
	case ElemSizePointer:
		out, err := NewPointerList(dst, l.length)
		if err != nil {
			return Ptr{}, err
		}
		for i := 0; i < l.length; i++ {
			p, err := l.At(i)
			if err != nil {
				return Ptr{}, err
			}
			if !p.IsValid() {
				continue
			}
			cp, err := Copy(dst, p)
			if err != nil {
				return Ptr{}, err
			}
			if err := out.Set(i, cp); err != nil {
				return Ptr{}, err
			}
		}
		return out.ToPtr(), nil
	case ElemSizeComposite:
		out, err := NewCompositeList(dst, l.structSize, l.length)
		if err != nil {
			return Ptr{}, err
		}
		for i := 0; i < l.length; i++ {
			src := l.Struct(i)
			dstStruct := out.Struct(i)
			copy(dst.data[dstStruct.off:dstStruct.off+address(src.size.DataSize)], src.seg.data[src.off:src.off+address(src.size.DataSize)])
			for j := uint16(0); j < src.size.PointerCount; j++ {
				p, err := src.Ptr(j)
				if err != nil {
					return Ptr{}, err
				}
				if !p.IsValid() {
					continue
				}
				cp, err := Copy(dst, p)
				if err != nil {
					return Ptr{}, err
				}
				if err := dstStruct.SetPtr(j, cp); err != nil {
					return Ptr{}, err
				}
			}
		}
		return out.ToPtr(), nil
	default:
		out, err := NewDataList(dst, l.elemSize, l.length)
		if err != nil {
			return Ptr{}, err
		}
		width := elemByteSize[l.elemSize]
		var nbytes address
		if l.elemSize == ElemSizeBit {
			nbytes = address((l.length + 7) / 8)
		} else {
			nbytes = address(l.length) * address(width)
		}
		copy(dst.data[out.data:out.data+nbytes], l.seg.data[l.data:l.data+nbytes])
		return out.ToPtr(), nil
	}
}
