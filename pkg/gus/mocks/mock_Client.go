// Package mocks provides test doubles for the gus client.
package mocks

import (
	"context"

	gus "github.com/sells-group/nip-resolver/pkg/gus"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SearchNIP provides a mock function with given fields: ctx, nip
func (_m *MockClient) SearchNIP(ctx context.Context, nip string) ([]gus.Entity, error) {
	ret := _m.Called(ctx, nip)

	if len(ret) == 0 {
		panic("no return value specified for SearchNIP")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) ([]gus.Entity, error)); ok {
		return rf(ctx, nip)
	}
	var r0 []gus.Entity
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]gus.Entity)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient and registers cleanup.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
