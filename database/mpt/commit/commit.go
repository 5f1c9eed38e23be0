// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package commit provides Pedersen vector commitments over the Banderwagon
// curve, the primitive behind the commitment-based node data strategy. A
// commitment binds a vector of 256 field values into a single curve point
// whose compressed form serves as a 32-byte node digest.
package commit

import (
	"github.com/crate-crypto/go-ipa/banderwagon"
	"github.com/crate-crypto/go-ipa/ipa"

	"github.com/0xsoniclabs/triedb/common"
)

// VectorSize is the length of the committed vector, fixed by the generator
// set of the underlying IPA configuration.
const VectorSize = 256

// Commitment is a Pedersen commitment to a vector of VectorSize values, a
// point on the Banderwagon curve.
type Commitment struct {
	point banderwagon.Element
}

// Identity returns the commitment to the all-zero vector, the point at
// infinity.
func Identity() Commitment {
	return Commitment{point: banderwagon.Identity}
}

// Commit creates a commitment to the given vector.
func Commit(values [VectorSize]Value) Commitment {
	elements := make([]banderwagon.Fr, VectorSize)
	for i, value := range values {
		elements[i] = value.scalar
	}
	return Commitment{point: ipaConfig.Commit(elements)}
}

// IsValid checks whether the commitment is a point on the curve. Instances
// decoded from untrusted sources are not necessarily valid.
func (c Commitment) IsValid() bool {
	return c.point.IsOnCurve()
}

// Equal is a point equality check.
func (c Commitment) Equal(other Commitment) bool {
	return c.point.Equal(&other.point)
}

// ToValue maps the commitment into the scalar field, allowing commitments to
// feed recursively into further commitments.
func (c Commitment) ToValue() Value {
	var res banderwagon.Fr
	c.point.MapToScalarField(&res)
	return Value{scalar: res}
}

// Hash returns the commitment mapped into the scalar field as a 32-byte
// digest.
func (c Commitment) Hash() common.Hash {
	value := c.ToValue()
	return value.scalar.BytesLE()
}

// Compress returns the canonical 32-byte encoding of the commitment point,
// the form stored as a node's cached data.
func (c Commitment) Compress() [32]byte {
	return c.point.Bytes()
}

// Update returns a commitment to the same vector with the value at the given
// position replaced, using the additive homomorphism of Pedersen commitments
// instead of recommitting the full vector.
func (c Commitment) Update(position byte, old, new Value) Commitment {
	var values [VectorSize]Value
	values[position].scalar.Sub(&new.scalar, &old.scalar)
	diff := Commit(values)

	var res Commitment
	res.point.Add(&c.point, &diff.point)
	return res
}

// ipaConfig holds the generator points and curve parameters shared by all
// commitments.
var ipaConfig = func() *ipa.IPAConfig {
	conf, _ := ipa.NewIPASettings()
	return conf
}()
