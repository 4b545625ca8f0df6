package testhost_test

import (
	"fmt"

	"github.com/xraph/testhost"
)

type exampleContainer struct{}

func (*exampleContainer) Resolve(name string) (any, error) { return nil, nil }
func (*exampleContainer) Dispose() error                   { return nil }

func Example() {
	host, err := testhost.NewHost(testhost.HostConfig{
		Builder: testhost.ContainerBuilderFunc(func(testhost.ResolveRequest) (testhost.Container, error) {
			return &exampleContainer{}, nil
		}),
		Logger:  testhost.NewNoopLogger(),
		Options: func() *testhost.Options { o := testhost.DefaultOptions(); return &o }(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	scope, err := host.Begin()
	if err != nil {
		fmt.Println(err)
		return
	}

	// Production code resolves through the global entry point, unaware a
	// test scope is serving it.
	first, _ := host.Container()
	second, _ := host.Container()
	fmt.Println("same instance:", first == second)

	if err := scope.End(); err != nil {
		fmt.Println(err)
		return
	}

	_, err = host.Container()
	fmt.Println("after teardown:", testhost.IsNoActiveScope(err))

	// Output:
	// same instance: true
	// after teardown: true
}
