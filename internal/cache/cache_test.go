package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/testhost/internal/errors"
	"github.com/xraph/testhost/internal/logger"
	"github.com/xraph/testhost/internal/shared"
)

type fakeContainer struct {
	id         int
	disposed   atomic.Bool
	disposeErr error
}

func (c *fakeContainer) Resolve(name string) (any, error) { return nil, nil }

func (c *fakeContainer) Dispose() error {
	c.disposed.Store(true)
	return c.disposeErr
}

type countingBuilder struct {
	builds   atomic.Int32
	buildErr error
}

func (b *countingBuilder) BuildContainer(req shared.ResolveRequest) (shared.Container, error) {
	n := b.builds.Add(1)
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	return &fakeContainer{id: int(n)}, nil
}

func newTestCache(builder shared.ContainerBuilder, cell *FactoryCell) *Cache {
	return New(builder, cell, logger.NewNoopLogger(), nil)
}

func TestGetOrCreatePrimary_MemoizesDefaultRequest(t *testing.T) {
	builder := &countingBuilder{}
	c := newTestCache(builder, nil)

	first, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.NoError(t, err)

	second, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), builder.builds.Load())
}

func TestGetOrCreatePrimary_ConcurrentCallersConvergeOnOneInstance(t *testing.T) {
	builder := &countingBuilder{}
	c := newTestCache(builder, nil)

	const callers = 16
	results := make([]shared.Container, callers)
	errs := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i], errs[i] = c.GetOrCreatePrimary(shared.ResolveRequest{})
		}(i)
	}
	start.Done()
	done.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i], "caller %d observed a different instance", i)
	}
	// Losing racers dispose their redundant builds.
	assert.False(t, results[0].(*fakeContainer).disposed.Load())
}

func TestGetOrCreatePrimary_CustomAssembliesBypassCache(t *testing.T) {
	builder := &countingBuilder{}
	c := newTestCache(builder, nil)

	cached, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.NoError(t, err)

	custom, err := c.GetOrCreatePrimary(shared.ResolveRequest{Assemblies: []string{"extra"}})
	require.NoError(t, err)
	assert.NotSame(t, cached, custom)

	again, err := c.GetOrCreatePrimary(shared.ResolveRequest{Assemblies: []string{"extra"}})
	require.NoError(t, err)
	assert.NotSame(t, custom, again)

	// Cached instance is untouched by the custom requests.
	still, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.NoError(t, err)
	assert.Same(t, cached, still)
}

func TestGetOrCreatePrimary_BuildErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("composition failed")
	builder := &countingBuilder{buildErr: boom}
	c := newTestCache(builder, nil)

	_, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.Error(t, err)
	assert.Same(t, boom, err)
	assert.Nil(t, c.Primary())

	// Not retried implicitly; a second call builds again and fails again.
	_, err = c.GetOrCreatePrimary(shared.ResolveRequest{})
	assert.Same(t, boom, err)
	assert.Equal(t, int32(2), builder.builds.Load())
}

func TestFactoryCell_BuildsOnceUnderConcurrency(t *testing.T) {
	var built atomic.Int32
	factory := &countingBuilder{}
	cell := NewFactoryCell(func() (shared.ContainerBuilder, error) {
		built.Add(1)
		return factory, nil
	})

	const callers = 8
	results := make([]shared.ContainerBuilder, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cell.Get()
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), built.Load())
	for i := 0; i < callers; i++ {
		assert.Same(t, factory, results[i])
	}
	assert.True(t, cell.Built())
}

func TestGetOrCreateRemote_ScopeLocalContainerSharedFactory(t *testing.T) {
	factory := &countingBuilder{}
	cell := NewFactoryCell(func() (shared.ContainerBuilder, error) {
		return factory, nil
	})

	scopeA := newTestCache(&countingBuilder{}, cell)
	scopeB := newTestCache(&countingBuilder{}, cell)

	remoteA, err := scopeA.GetOrCreateRemote()
	require.NoError(t, err)

	againA, err := scopeA.GetOrCreateRemote()
	require.NoError(t, err)
	assert.Same(t, remoteA, againA)

	remoteB, err := scopeB.GetOrCreateRemote()
	require.NoError(t, err)

	// Fresh container per scope, one shared factory.
	assert.NotSame(t, remoteA, remoteB)
	assert.Equal(t, int32(2), factory.builds.Load())
}

func TestGetOrCreateRemote_FactoryBuildErrorPropagates(t *testing.T) {
	boom := errors.New("assembly scan failed")
	cell := NewFactoryCell(func() (shared.ContainerBuilder, error) {
		return nil, boom
	})
	c := newTestCache(&countingBuilder{}, cell)

	_, err := c.GetOrCreateRemote()
	assert.Same(t, boom, err)
	assert.False(t, cell.Built())
}

func TestDisposeAll_DisposesEverythingAndClears(t *testing.T) {
	cell := NewFactoryCell(func() (shared.ContainerBuilder, error) {
		return &countingBuilder{}, nil
	})
	c := newTestCache(&countingBuilder{}, cell)

	primary, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.NoError(t, err)
	remote, err := c.GetOrCreateRemote()
	require.NoError(t, err)

	require.NoError(t, c.DisposeAll())

	assert.True(t, primary.(*fakeContainer).disposed.Load())
	assert.True(t, remote.(*fakeContainer).disposed.Load())
	assert.Nil(t, c.Primary())
	assert.Nil(t, c.Remote())

	// The shared factory survives disposal.
	assert.True(t, cell.Built())
}

func TestDisposeAll_NothingCreatedIsNoop(t *testing.T) {
	c := newTestCache(&countingBuilder{}, nil)
	assert.NoError(t, c.DisposeAll())
}

func TestDisposeAll_SurfacesDisposalErrors(t *testing.T) {
	boom := errors.New("dispose blew up")
	builder := shared.ContainerBuilderFunc(func(shared.ResolveRequest) (shared.Container, error) {
		return &fakeContainer{disposeErr: boom}, nil
	})
	c := newTestCache(builder, nil)

	_, err := c.GetOrCreatePrimary(shared.ResolveRequest{})
	require.NoError(t, err)

	err = c.DisposeAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, errors.Is(err, errors.ErrDisposeFailedSentinel))
}
