// Package mocks provides test doubles for the earthengine client.
package mocks

import (
	"context"

	earthengine "github.com/sells-group/forest-cli/pkg/earthengine"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// ReduceRegion provides a mock function with given fields: ctx, req
func (_m *MockClient) ReduceRegion(ctx context.Context, req earthengine.ReduceRequest) (earthengine.Values, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for ReduceRegion")
	}

	var r0 earthengine.Values
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, earthengine.ReduceRequest) (earthengine.Values, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, earthengine.ReduceRequest) earthengine.Values); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(earthengine.Values)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, earthengine.ReduceRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReduceRegions provides a mock function with given fields: ctx, req
func (_m *MockClient) ReduceRegions(ctx context.Context, req earthengine.ReduceRegionsRequest) ([]earthengine.FeatureValues, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for ReduceRegions")
	}

	var r0 []earthengine.FeatureValues
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, earthengine.ReduceRegionsRequest) ([]earthengine.FeatureValues, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, earthengine.ReduceRegionsRequest) []earthengine.FeatureValues); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]earthengine.FeatureValues)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, earthengine.ReduceRegionsRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
