// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package pool is a generated GoMock package.
package pool

import (
	reflect "reflect"

	common "github.com/0xsoniclabs/triedb/common"
	gomock "go.uber.org/mock/gomock"
)

// MockNodePool is a mock of NodePool interface.
type MockNodePool struct {
	ctrl     *gomock.Controller
	recorder *MockNodePoolMockRecorder
	isgomock struct{}
}

// MockNodePoolMockRecorder is the mock recorder for MockNodePool.
type MockNodePoolMockRecorder struct {
	mock *MockNodePool
}

// NewMockNodePool creates a new mock instance.
func NewMockNodePool(ctrl *gomock.Controller) *MockNodePool {
	mock := &MockNodePool{ctrl: ctrl}
	mock.recorder = &MockNodePoolMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockNodePool) EXPECT() *MockNodePoolMockRecorder {
	return m.recorder
}

// Close mocks base method.
func (m *MockNodePool) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockNodePoolMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockNodePool)(nil).Close))
}

// Flush mocks base method.
func (m *MockNodePool) Flush() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Flush")
	ret0, _ := ret[0].(error)
	return ret0
}

// Flush indicates an expected call of Flush.
func (mr *MockNodePoolMockRecorder) Flush() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Flush", reflect.TypeOf((*MockNodePool)(nil).Flush))
}

// GetMemoryFootprint mocks base method.
func (m *MockNodePool) GetMemoryFootprint() *common.MemoryFootprint {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetMemoryFootprint")
	ret0, _ := ret[0].(*common.MemoryFootprint)
	return ret0
}

// GetMemoryFootprint indicates an expected call of GetMemoryFootprint.
func (mr *MockNodePoolMockRecorder) GetMemoryFootprint() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetMemoryFootprint", reflect.TypeOf((*MockNodePool)(nil).GetMemoryFootprint))
}

// Read mocks base method.
func (m *MockNodePool) Read(offset ChunkOffset, length int) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Read", offset, length)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Read indicates an expected call of Read.
func (mr *MockNodePoolMockRecorder) Read(offset, length any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Read", reflect.TypeOf((*MockNodePool)(nil).Read), offset, length)
}

// Virtualize mocks base method.
func (m *MockNodePool) Virtualize(offset ChunkOffset) (VirtualOffset, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Virtualize", offset)
	ret0, _ := ret[0].(VirtualOffset)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Virtualize indicates an expected call of Virtualize.
func (mr *MockNodePoolMockRecorder) Virtualize(offset any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Virtualize", reflect.TypeOf((*MockNodePool)(nil).Virtualize), offset)
}

// Write mocks base method.
func (m *MockNodePool) Write(tier Tier, data []byte) (ChunkOffset, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Write", tier, data)
	ret0, _ := ret[0].(ChunkOffset)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Write indicates an expected call of Write.
func (mr *MockNodePoolMockRecorder) Write(tier, data any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Write", reflect.TypeOf((*MockNodePool)(nil).Write), tier, data)
}
