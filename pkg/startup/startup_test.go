package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDependency struct {
	name      string
	dependsOn []string
	failures  int
	events    *[]string
}

func (f *fakeDependency) GetName() string     { return f.name }
func (f *fakeDependency) DependsOn() []string { return f.dependsOn }

func (f *fakeDependency) Start(context.Context) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("not ready")
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeDependency) Stop(context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStartupOrdersDependencies(t *testing.T) {
	var events []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "server", dependsOn: []string{"database", "redis"}, events: &events})
	s.AddDependency(&fakeDependency{name: "database", events: &events})
	s.AddDependency(&fakeDependency{name: "redis", events: &events})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:redis", "start:server"}, events)

	events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:server", "stop:redis", "stop:database"}, events)
}

func TestStartupRetries(t *testing.T) {
	var events []string
	s := newTestStartup(3)
	s.AddDependency(&fakeDependency{name: "database", failures: 2, events: &events})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StartupStatusStarted, s.Status("database"))
}

func TestStartupGivesUp(t *testing.T) {
	var events []string
	s := newTestStartup(2)
	s.AddDependency(&fakeDependency{name: "database", failures: 5, events: &events})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartupDetectsCycles(t *testing.T) {
	var events []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "a", dependsOn: []string{"b"}, events: &events})
	s.AddDependency(&fakeDependency{name: "b", dependsOn: []string{"a"}, events: &events})

	assert.Error(t, s.Start(context.Background()))
}
