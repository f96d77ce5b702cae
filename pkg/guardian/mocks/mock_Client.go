// Package mocks provides test doubles for the guardian client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"
	guardian "github.com/trunghafromvietnam/aegis-share/pkg/guardian"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// AnalyzeImage provides a mock function with given fields: ctx, img
func (_m *MockClient) AnalyzeImage(ctx context.Context, img guardian.ImageUpload) (*guardian.AnalysisResponse, error) {
	ret := _m.Called(ctx, img)

	if len(ret) == 0 {
		panic("no return value specified for AnalyzeImage")
	}

	var r0 *guardian.AnalysisResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, guardian.ImageUpload) (*guardian.AnalysisResponse, error)); ok {
		return rf(ctx, img)
	}
	if rf, ok := ret.Get(0).(func(context.Context, guardian.ImageUpload) *guardian.AnalysisResponse); ok {
		r0 = rf(ctx, img)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*guardian.AnalysisResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, guardian.ImageUpload) error); ok {
		r1 = rf(ctx, img)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// VoiceGuardian provides a mock function with given fields: ctx, transcript
func (_m *MockClient) VoiceGuardian(ctx context.Context, transcript string) (*guardian.AnalysisResponse, error) {
	ret := _m.Called(ctx, transcript)

	if len(ret) == 0 {
		panic("no return value specified for VoiceGuardian")
	}

	var r0 *guardian.AnalysisResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*guardian.AnalysisResponse, error)); ok {
		return rf(ctx, transcript)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *guardian.AnalysisResponse); ok {
		r0 = rf(ctx, transcript)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*guardian.AnalysisResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, transcript)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Health provides a mock function with given fields: ctx
func (_m *MockClient) Health(ctx context.Context) (*guardian.HealthResponse, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Health")
	}

	var r0 *guardian.HealthResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*guardian.HealthResponse, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) *guardian.HealthResponse); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*guardian.HealthResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
