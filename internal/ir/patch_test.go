package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePatchSetsAndReplaces(t *testing.T) {
	state := IRObject{"count": IRInt(0), "tags": IRArray{IRString("a")}}

	got := Patch{"count": IRInt(1), "tags": IRArray{IRString("b")}}.Apply(state)

	assert.Equal(t, IRObject{"count": IRInt(1), "tags": IRArray{IRString("b")}}, got)
	assert.Equal(t, IRInt(0), state["count"], "input must not change")
}

func TestMergePatchNestedMerge(t *testing.T) {
	state := IRObject{
		"user": IRObject{"name": IRString("ada"), "age": IRInt(36)},
		"other": IRObject{"keep": IRBool(true)},
	}

	got := Patch{"user": IRObject{"age": IRInt(37)}}.Apply(state)

	assert.Equal(t, IRObject{"name": IRString("ada"), "age": IRInt(37)}, got["user"])
	assert.Equal(t, IRInt(36), state["user"].(IRObject)["age"])
}

func TestMergePatchNullDeletes(t *testing.T) {
	state := IRObject{"a": IRInt(1), "b": IRObject{"c": IRInt(2), "d": IRInt(3)}}

	got := Patch{"a": IRNull{}, "b": IRObject{"c": IRNull{}}}.Apply(state)

	assert.Equal(t, IRObject{"b": IRObject{"d": IRInt(3)}}, got)
}

func TestMergePatchObjectOverScalar(t *testing.T) {
	state := IRObject{"a": IRInt(1)}

	got := Patch{"a": IRObject{"x": IRInt(1), "y": IRNull{}}}.Apply(state)

	assert.Equal(t, IRObject{"a": IRObject{"x": IRInt(1)}}, got)
}

func TestMergePatchSharesUntouchedSubtrees(t *testing.T) {
	shared := IRObject{"deep": IRInt(1)}
	state := IRObject{"shared": shared, "n": IRInt(0)}

	got := Patch{"n": IRInt(1)}.Apply(state)

	got["shared"].(IRObject)["deep"] = IRInt(99)
	assert.Equal(t, IRInt(99), shared["deep"], "untouched subtree is shared, not copied")
}

func TestMergePatchEmptyIsIdentity(t *testing.T) {
	state := IRObject{"count": IRInt(3)}
	assert.Equal(t, state, Patch{}.Apply(state))
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{
		"list": IRArray{IRObject{"x": IRInt(1)}},
		"obj":  IRObject{"y": IRInt(2)},
	}

	clone := orig.Clone()
	clone["obj"].(IRObject)["y"] = IRInt(3)
	clone["list"].(IRArray)[0].(IRObject)["x"] = IRInt(4)

	assert.Equal(t, IRInt(2), orig["obj"].(IRObject)["y"])
	assert.Equal(t, IRInt(1), orig["list"].(IRArray)[0].(IRObject)["x"])
}

func TestCloneNilObject(t *testing.T) {
	var obj IRObject
	clone := obj.Clone()
	assert.NotNil(t, clone)
	assert.Empty(t, clone)
}
