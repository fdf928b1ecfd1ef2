package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/goleak"
)

func TestDependenciesAreSatisfied(t *testing.T) {
	assert.NoError(t, fx.ValidateApp(opts()))
}

func TestRelayDependenciesAreSatisfied(t *testing.T) {
	assert.NoError(t, fx.ValidateApp(relayOpts()))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
