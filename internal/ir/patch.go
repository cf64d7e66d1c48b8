package ir

// Clone returns a deep copy of the object.
// A nil object clones to an empty one so frozen states never alias nil maps.
func (obj IRObject) Clone() IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = CloneValue(v)
	}
	return out
}

// Clone returns a deep copy of the array.
func (arr IRArray) Clone() IRArray {
	if arr == nil {
		return nil
	}
	out := make(IRArray, len(arr))
	for i, v := range arr {
		out[i] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies any IRValue. Scalars are returned as-is.
func CloneValue(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		return val.Clone()
	case IRArray:
		return val.Clone()
	default:
		return v
	}
}

// Patch is a structural diff over an IRObject with JSON Merge Patch
// semantics (RFC 7386):
//   - nested objects are merged key by key
//   - an IRNull value removes the key
//   - any other value (including arrays) replaces the target value
//
// Keys the patch does not mention keep their original subtree, so the result
// shares structure with the input. The input is never modified.
type Patch IRObject

// Apply returns the patched copy of state.
func (p Patch) Apply(state IRObject) IRObject {
	return MergePatch(state, IRObject(p))
}

// MergePatch applies patch to target and returns the new object.
func MergePatch(target, patch IRObject) IRObject {
	out := make(IRObject, len(target)+len(patch))
	for k, v := range target {
		out[k] = v
	}

	for k, pv := range patch {
		switch val := pv.(type) {
		case IRNull:
			delete(out, k)
		case IRObject:
			existing, _ := out[k].(IRObject)
			out[k] = MergePatch(existing, val)
		default:
			out[k] = CloneValue(val)
		}
	}
	return out
}
