package testing

import (
	"errors"

	"github.com/xraph/testhost"
	"github.com/xraph/testhost/internal/logger"
)

// NewQuietHost creates a host with a silent logger and default options.
// This prevents log bloat in test output.
func NewQuietHost(builder testhost.ContainerBuilder) (*testhost.Host, error) {
	return testhost.NewHost(testhost.HostConfig{
		Builder: builder,
		Logger:  logger.NewNoopLogger(),
	})
}

// NewQuietHostWithConfig creates a host for testing with full config
// control. Automatically adds a silent logger if none is provided.
func NewQuietHostWithConfig(cfg testhost.HostConfig) (*testhost.Host, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}
	return testhost.NewHost(cfg)
}

// NewStaticBuilder returns a builder that hands out the given containers in
// order, one per build. Use it to script exactly which container instances
// a test observes.
func NewStaticBuilder(containers ...testhost.Container) testhost.ContainerBuilder {
	i := 0
	return testhost.ContainerBuilderFunc(func(testhost.ResolveRequest) (testhost.Container, error) {
		if len(containers) == 0 {
			return nil, errors.New("static builder has no containers")
		}
		if i >= len(containers) {
			// Reuse the last container once the script runs out.
			i = len(containers) - 1
		}
		c := containers[i]
		i++
		return c, nil
	})
}
