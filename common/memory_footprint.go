// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"sort"
	"strings"
)

// MemoryFootprint describes the memory consumption of a component and its
// sub-components as a tree. Shared sub-components may be registered in several
// places; they are counted once when totals are computed.
type MemoryFootprint struct {
	value    uintptr
	children map[string]*MemoryFootprint
	note     string
}

// MemoryFootprintProvider is implemented by components able to report their
// own memory consumption.
type MemoryFootprintProvider interface {
	GetMemoryFootprint() *MemoryFootprint
}

// NewMemoryFootprint creates a footprint node covering the given number of
// bytes, not including any sub-components.
func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{value: value}
}

// AddChild registers the footprint of a sub-component under the given name.
// Registering the same name twice replaces the previous entry.
func (m *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	if m.children == nil {
		m.children = map[string]*MemoryFootprint{}
	}
	m.children[name] = child
}

// SetNote attaches a free-form annotation shown next to the footprint value.
func (m *MemoryFootprint) SetNote(note string) {
	m.note = note
}

// Value returns the bytes attributed to this node alone.
func (m *MemoryFootprint) Value() uintptr {
	return m.value
}

// Total returns the number of bytes covered by this footprint including all
// transitively reachable sub-components. Footprint instances reachable through
// multiple paths are counted only once.
func (m *MemoryFootprint) Total() uintptr {
	visited := map[*MemoryFootprint]struct{}{}
	return m.total(visited)
}

func (m *MemoryFootprint) total(visited map[*MemoryFootprint]struct{}) uintptr {
	if m == nil {
		return 0
	}
	if _, seen := visited[m]; seen {
		return 0
	}
	visited[m] = struct{}{}
	sum := m.value
	for _, child := range m.children {
		sum += child.total(visited)
	}
	return sum
}

func (m *MemoryFootprint) String() string {
	var builder strings.Builder
	m.toString(&builder, ".", "")
	return builder.String()
}

func (m *MemoryFootprint) toString(builder *strings.Builder, path, name string) {
	if m == nil {
		return
	}
	if name != "" {
		path = path + "/" + name
	}
	if m.note != "" {
		fmt.Fprintf(builder, "%d %s %s\n", m.Total(), path, m.note)
	} else {
		fmt.Fprintf(builder, "%d %s\n", m.Total(), path)
	}
	names := make([]string, 0, len(m.children))
	for childName := range m.children {
		names = append(names, childName)
	}
	sort.Strings(names)
	for _, childName := range names {
		m.children[childName].toString(builder, path, childName)
	}
}
