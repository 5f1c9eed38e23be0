// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package mpt is a generated GoMock package.
package mpt

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockCompute is a mock of Compute interface.
type MockCompute struct {
	ctrl     *gomock.Controller
	recorder *MockComputeMockRecorder
	isgomock struct{}
}

// MockComputeMockRecorder is the mock recorder for MockCompute.
type MockComputeMockRecorder struct {
	mock *MockCompute
}

// NewMockCompute creates a new mock instance.
func NewMockCompute(ctrl *gomock.Controller) *MockCompute {
	mock := &MockCompute{ctrl: ctrl}
	mock.recorder = &MockComputeMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCompute) EXPECT() *MockComputeMockRecorder {
	return m.recorder
}

// ComputeBranch mocks base method.
func (m *MockCompute) ComputeBranch(mask uint16, children []ChildData, path NibblesView, value []byte) []byte {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ComputeBranch", mask, children, path, value)
	ret0, _ := ret[0].([]byte)
	return ret0
}

// ComputeBranch indicates an expected call of ComputeBranch.
func (mr *MockComputeMockRecorder) ComputeBranch(mask, children, path, value any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ComputeBranch", reflect.TypeOf((*MockCompute)(nil).ComputeBranch), mask, children, path, value)
}

// ComputeNode mocks base method.
func (m *MockCompute) ComputeNode(node *Node) []byte {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ComputeNode", node)
	ret0, _ := ret[0].([]byte)
	return ret0
}

// ComputeNode indicates an expected call of ComputeNode.
func (mr *MockComputeMockRecorder) ComputeNode(node any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ComputeNode", reflect.TypeOf((*MockCompute)(nil).ComputeNode), node)
}
