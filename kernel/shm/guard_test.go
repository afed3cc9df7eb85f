package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyForEveryBlock(t *testing.T) {
	for _, jt := range JointTypes() {
		p := PolicyFor(jt)
		assert.Equal(t, jt, p.Block)
		assert.True(t, p.CanWrite(RoleAny), jt.String())
		assert.NotEqual(t, p.CanWrite(RoleController), p.CanWrite(RoleHardware),
			"%s must have exactly one writer", jt)
		assert.Equal(t, RoleController|RoleHardware, p.ReaderMask)
	}

	assert.True(t, PolicyFor(TorqueCommand).CanWrite(RoleController))
	assert.True(t, PolicyFor(ImuSensor).CanWrite(RoleHardware))
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"controller": RoleController,
		"hardware":   RoleHardware,
		"any":        RoleAny,
		"":           RoleAny,
	}
	for name, want := range tests {
		got, ok := ParseRole(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got)
	}

	_, ok := ParseRole("observer")
	assert.False(t, ok)
	assert.Equal(t, "hardware", RoleHardware.String())
}
