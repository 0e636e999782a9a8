package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_twice(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestSetOnline(t *testing.T) {
	SetOnline(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(Online))
	SetOnline(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(Online))
}
