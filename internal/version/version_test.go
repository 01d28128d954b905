package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	out := String()
	assert.Contains(t, out, "seedpool "+Version)
	assert.Contains(t, out, runtime.Version())
}
