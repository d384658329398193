// Package index encodes features into the sorted row keys of the attribute
// index and turns attribute queries into key ranges.
//
// Version 3 row keys are laid out as
//
//	[shard:1][attribute ordinal:2][lexicoded value][0x00][secondary tier][feature id]
//
// The secondary tier is the 8-byte Z2 of a Point default geometry, else the
// 8-byte date of the indexed date attribute, else empty.
package index

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
)

const (
	// AttributeIndexName names the attribute index key space.
	AttributeIndexName = "attr"
	// AttributeIndexVersion is the key layout version produced here.
	AttributeIndexVersion = 3
	// DefaultShards is the shard count used when none is configured.
	DefaultShards = 4
)

// KeySpace is an index encoding over a feature type.
type KeySpace interface {
	Name() string
	Version() int
	// Validate rejects feature types the encoding cannot index.
	Validate(sft *feature.SimpleFeatureType) error
	// Keys returns the row keys of f, one per indexed value.
	Keys(sft *feature.SimpleFeatureType, f feature.Feature) ([][]byte, error)
	// Ranges returns the key ranges covering q, one or more per shard.
	Ranges(sft *feature.SimpleFeatureType, q Query) ([]store.Range, error)
	// Decode splits a row key into its parts.
	Decode(sft *feature.SimpleFeatureType, key []byte) (Key, error)
}

// Tier is the kind of secondary tier following the value.
type Tier int

const (
	TierNone Tier = iota
	TierZ2
	TierDate
)

func (t Tier) String() string {
	switch t {
	case TierZ2:
		return "z2"
	case TierDate:
		return "date"
	}
	return "none"
}

func (t Tier) width() int {
	if t == TierNone {
		return 0
	}
	return 8
}

// TierOf selects the secondary tier of sft.
func TierOf(sft *feature.SimpleFeatureType) Tier {
	if gd, ok := sft.GeometryDescriptor(); ok && gd.Type == feature.TypePoint {
		return TierZ2
	}
	if sft.DtgIndex() >= 0 {
		return TierDate
	}
	return TierNone
}

// Key is a decoded row key.
type Key struct {
	Shard     byte
	Attribute int
	Value     any
	Tier      []byte
	ID        string
}

// Bound is one end of an attribute range.
type Bound struct {
	Value     any
	Inclusive bool
}

// Query selects features by one indexed attribute. Equals selects a single
// value; otherwise Lower and Upper bound a range, nil meaning unbounded. BBox
// narrows an equality query on the Z2 tier.
type Query struct {
	Attribute string
	Equals    any
	Lower     *Bound
	Upper     *Bound
	BBox      *orb.Bound
}

// AttributeKeySpace is the version 3 attribute index encoding.
type AttributeKeySpace struct {
	shards int
}

var _ KeySpace = (*AttributeKeySpace)(nil)

// NewAttributeKeySpace returns the encoding with shards shards, clamped to
// [1, 255]; zero selects DefaultShards.
func NewAttributeKeySpace(shards int) *AttributeKeySpace {
	switch {
	case shards == 0:
		shards = DefaultShards
	case shards < 1:
		shards = 1
	case shards > math.MaxUint8:
		shards = math.MaxUint8
	}
	return &AttributeKeySpace{shards: shards}
}

func (ks *AttributeKeySpace) Name() string { return AttributeIndexName }
func (ks *AttributeKeySpace) Version() int { return AttributeIndexVersion }

// Shards returns the shard count.
func (ks *AttributeKeySpace) Shards() int { return ks.shards }

// Shard returns the shard of a feature id.
func (ks *AttributeKeySpace) Shard(id string) byte {
	return byte(xxhash.Sum64String(id) % uint64(ks.shards))
}

// IndexedAttributes returns the ordinals of the indexed attributes.
func IndexedAttributes(sft *feature.SimpleFeatureType) []int {
	var out []int
	for i, d := range sft.Attributes() {
		if d.Indexed() {
			out = append(out, i)
		}
	}
	return out
}

func (ks *AttributeKeySpace) Validate(sft *feature.SimpleFeatureType) error {
	if sft.AttributeCount() > math.MaxUint16 {
		return geoerrors.Newf(geoerrors.ErrorTypeInvalidSchema, "too many attributes: %d", sft.AttributeCount())
	}
	for _, i := range IndexedAttributes(sft) {
		d := sft.Attribute(i)
		if d.Type.IsGeometry() {
			return geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "geometry attributes cannot be attribute indexed").
				WithDetail("field", d.Name)
		}
	}
	return nil
}

// valueType is the lexicoded type of an attribute: the element type of lists.
func valueType(d feature.AttributeDescriptor) feature.AttributeType {
	if d.Type == feature.TypeList {
		return d.ElementType
	}
	return d.Type
}

func (ks *AttributeKeySpace) Keys(sft *feature.SimpleFeatureType, f feature.Feature) ([][]byte, error) {
	indexed := IndexedAttributes(sft)
	if len(indexed) == 0 {
		return nil, nil
	}
	id := f.ID()
	shard := ks.Shard(id)
	tier, err := tierValue(sft, f)
	if err != nil {
		return nil, err
	}

	sameType := f.Type() == sft
	var keys [][]byte
	for _, i := range indexed {
		d := sft.Attribute(i)
		var value any
		if sameType {
			value = f.AttributeAt(i)
		} else {
			value = f.Attribute(d.Name)
		}
		if value == nil {
			continue
		}
		items := []any{value}
		if d.Type == feature.TypeList {
			items = feature.ListItems(value)
		}

		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			if item == nil {
				continue
			}
			enc, err := EncodeValue(valueType(d), item)
			if err != nil {
				return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot encode index value").
					WithDetail("field", d.Name).
					WithDetail("id", id)
			}
			if _, dup := seen[string(enc)]; dup {
				continue
			}
			seen[string(enc)] = struct{}{}
			keys = append(keys, rowKey(shard, i, enc, tier, id))
		}
	}
	return keys, nil
}

func rowKey(shard byte, ordinal int, value, tier []byte, id string) []byte {
	key := make([]byte, 0, 3+len(value)+1+len(tier)+len(id))
	key = append(key, shard)
	key = binary.BigEndian.AppendUint16(key, uint16(ordinal))
	key = append(key, value...)
	key = append(key, terminator)
	key = append(key, tier...)
	return append(key, id...)
}

func valuePrefix(shard byte, ordinal int, value []byte) []byte {
	prefix := make([]byte, 0, 3+len(value)+1)
	prefix = append(prefix, shard)
	prefix = binary.BigEndian.AppendUint16(prefix, uint16(ordinal))
	if value != nil {
		prefix = append(prefix, value...)
		prefix = append(prefix, terminator)
	}
	return prefix
}

func tierValue(sft *feature.SimpleFeatureType, f feature.Feature) ([]byte, error) {
	switch TierOf(sft) {
	case TierZ2:
		if p, ok := f.DefaultGeometry().(orb.Point); ok {
			return binary.BigEndian.AppendUint64(nil, Z2(p)), nil
		}
		return make([]byte, 8), nil
	case TierDate:
		d := sft.Attribute(sft.DtgIndex())
		value, err := feature.ConvertValue(f.Attribute(d.Name), d)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return make([]byte, 8), nil
		}
		return EncodeValue(feature.TypeDate, value)
	}
	return nil, nil
}

func (ks *AttributeKeySpace) Ranges(sft *feature.SimpleFeatureType, q Query) ([]store.Range, error) {
	i := sft.IndexOf(q.Attribute)
	if i < 0 {
		return nil, geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "unknown query attribute").
			WithDetail("field", q.Attribute)
	}
	d := sft.Attribute(i)
	if !d.Indexed() {
		return nil, geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "attribute is not indexed").
			WithDetail("field", d.Name)
	}
	encode := func(v any) ([]byte, error) {
		scalar := feature.AttributeDescriptor{Name: d.Name, Type: valueType(d)}
		converted, err := feature.ConvertValue(v, scalar)
		if err != nil {
			return nil, err
		}
		enc, err := EncodeValue(scalar.Type, converted)
		if err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInvalidArgument, "cannot encode query value").
				WithDetail("field", d.Name)
		}
		return enc, nil
	}

	ranges := make([]store.Range, 0, ks.shards)
	if q.Equals != nil {
		enc, err := encode(q.Equals)
		if err != nil {
			return nil, err
		}
		var zlo, zhi []byte
		if q.BBox != nil && TierOf(sft) == TierZ2 {
			zlo = binary.BigEndian.AppendUint64(nil, Z2(q.BBox.Min))
			zhi = binary.BigEndian.AppendUint64(nil, Z2(q.BBox.Max)+1)
		}
		for s := 0; s < ks.shards; s++ {
			prefix := valuePrefix(byte(s), i, enc)
			if zlo == nil {
				ranges = append(ranges, store.PrefixRange(prefix))
				continue
			}
			ranges = append(ranges, store.Range{
				Start: append(bytes.Clone(prefix), zlo...),
				End:   append(bytes.Clone(prefix), zhi...),
			})
		}
		return ranges, nil
	}

	var lo, hi []byte
	var err error
	if q.Lower != nil {
		if lo, err = encode(q.Lower.Value); err != nil {
			return nil, err
		}
	}
	if q.Upper != nil {
		if hi, err = encode(q.Upper.Value); err != nil {
			return nil, err
		}
	}
	for s := 0; s < ks.shards; s++ {
		base := valuePrefix(byte(s), i, nil)
		r := store.Range{Start: base, End: store.PrefixEnd(base)}
		if q.Lower != nil {
			r.Start = valuePrefix(byte(s), i, lo)
			if !q.Lower.Inclusive {
				r.Start = store.PrefixEnd(r.Start)
			}
		}
		if q.Upper != nil {
			r.End = valuePrefix(byte(s), i, hi)
			if q.Upper.Inclusive {
				r.End = store.PrefixEnd(r.End)
			}
		}
		if !r.Empty() {
			ranges = append(ranges, r)
		}
	}
	return ranges, nil
}

func (ks *AttributeKeySpace) Decode(sft *feature.SimpleFeatureType, key []byte) (Key, error) {
	if len(key) < 4 {
		return Key{}, geoerrors.New(geoerrors.ErrorTypeData, "row key too short")
	}
	k := Key{Shard: key[0], Attribute: int(binary.BigEndian.Uint16(key[1:3]))}
	if k.Attribute >= sft.AttributeCount() {
		return Key{}, geoerrors.Newf(geoerrors.ErrorTypeData, "row key attribute %d out of range", k.Attribute)
	}
	d := sft.Attribute(k.Attribute)
	value, rest, err := DecodeValue(valueType(d), key[3:])
	if err != nil {
		return Key{}, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot decode row key value").
			WithDetail("field", d.Name)
	}
	width := TierOf(sft).width()
	if len(rest) < width {
		return Key{}, geoerrors.New(geoerrors.ErrorTypeData, "row key tier truncated").
			WithDetail("field", d.Name)
	}
	k.Value = value
	k.Tier = bytes.Clone(rest[:width])
	k.ID = string(rest[width:])
	return k, nil
}
