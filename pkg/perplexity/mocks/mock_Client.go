// Package mocks provides test doubles for the perplexity client.
package mocks

import (
	"context"

	perplexity "github.com/sells-group/nip-resolver/pkg/perplexity"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Ask provides a mock function with given fields: ctx, q
func (_m *MockClient) Ask(ctx context.Context, q perplexity.Question) (*perplexity.Answer, error) {
	ret := _m.Called(ctx, q)

	if len(ret) == 0 {
		panic("no return value specified for Ask")
	}

	if rf, ok := ret.Get(0).(func(context.Context, perplexity.Question) (*perplexity.Answer, error)); ok {
		return rf(ctx, q)
	}
	var r0 *perplexity.Answer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*perplexity.Answer)
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
