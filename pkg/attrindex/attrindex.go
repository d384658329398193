// Package attrindex binds the version 3 attribute index encoding to a
// key-value store platform.
//
// AttributeIndex holds no state of its own: row keys come from its KeySpace
// and are read and written through its Platform. Version identifies the key
// layout so stores written by another layout are detected before use.
package attrindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/index"
	"github.com/ajitpratap0/geovec/pkg/store"
)

// AttributeIndex composes an index encoding with an execution platform.
type AttributeIndex struct {
	Keys     index.KeySpace
	Platform store.Platform
}

// NewAttributeIndexV3 binds the version 3 key space, with shards shards, to
// platform.
func NewAttributeIndexV3(platform store.Platform, shards int) *AttributeIndex {
	return &AttributeIndex{
		Keys:     index.NewAttributeKeySpace(shards),
		Platform: platform,
	}
}

// Version is the index format version, 3.
func (a *AttributeIndex) Version() int { return a.Keys.Version() }

// CheckCompatible fails when data was written with another index version.
func (a *AttributeIndex) CheckCompatible(stored int) error {
	if stored != a.Version() {
		return geoerrors.Newf(geoerrors.ErrorTypeCapability,
			"attribute index version %d is not supported, expected %d", stored, a.Version()).
			WithDetail("platform", a.Platform.Name())
	}
	return nil
}

// TableName returns the platform table holding the index of typeName.
func (a *AttributeIndex) TableName(typeName string) string {
	return fmt.Sprintf("%s_%s_v%d", SanitizeName(typeName), a.Keys.Name(), a.Version())
}

// SanitizeName maps a feature type name onto a table name prefix of at most
// 32 letters, digits and underscores, starting with a letter.
func SanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
		if sb.Len() == 32 {
			break
		}
	}
	out := sb.String()
	if out == "" || !(out[0] >= 'a' && out[0] <= 'z' || out[0] >= 'A' && out[0] <= 'Z') {
		out = "t" + out
	}
	return out
}

// Entry is a feature and the value stored under each of its keys.
type Entry struct {
	Feature feature.Feature
	Value   []byte
}

// Write indexes the entries in one batch.
func (a *AttributeIndex) Write(ctx context.Context, sft *feature.SimpleFeatureType, entries []Entry) error {
	var muts []store.Mutation
	for _, e := range entries {
		keys, err := a.Keys.Keys(sft, e.Feature)
		if err != nil {
			return err
		}
		for _, k := range keys {
			muts = append(muts, store.Put(k, e.Value))
		}
	}
	if len(muts) == 0 {
		return nil
	}
	return a.Platform.Apply(ctx, a.TableName(sft.Name()), muts)
}

// Delete removes the keys of the given features, which must carry the
// attribute values they were written with.
func (a *AttributeIndex) Delete(ctx context.Context, sft *feature.SimpleFeatureType, features []feature.Feature) error {
	var muts []store.Mutation
	for _, f := range features {
		keys, err := a.Keys.Keys(sft, f)
		if err != nil {
			return err
		}
		for _, k := range keys {
			muts = append(muts, store.Del(k))
		}
	}
	if len(muts) == 0 {
		return nil
	}
	return a.Platform.Apply(ctx, a.TableName(sft.Name()), muts)
}

// Ranges plans q.
func (a *AttributeIndex) Ranges(sft *feature.SimpleFeatureType, q index.Query) ([]store.Range, error) {
	return a.Keys.Ranges(sft, q)
}

// ScanRange calls fn with every decoded key and value in r.
func (a *AttributeIndex) ScanRange(ctx context.Context, sft *feature.SimpleFeatureType, r store.Range,
	fn func(key index.Key, value []byte) error) error {

	return a.Platform.Scan(ctx, a.TableName(sft.Name()), r, func(raw, value []byte) error {
		key, err := a.Keys.Decode(sft, raw)
		if err != nil {
			return err
		}
		return fn(key, value)
	})
}

// Scan plans q and scans its ranges one after another.
func (a *AttributeIndex) Scan(ctx context.Context, sft *feature.SimpleFeatureType, q index.Query,
	fn func(key index.Key, value []byte) error) error {

	ranges, err := a.Ranges(sft, q)
	if err != nil {
		return err
	}
	for _, r := range ranges {
		if err := a.ScanRange(ctx, sft, r, fn); err != nil {
			return err
		}
	}
	return nil
}
