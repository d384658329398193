package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

type memoryUploader struct {
	objects map[string][]byte
	err     error
}

func (m *memoryUploader) Upload(_ context.Context, name string, body io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[name] = b
	return "mem://" + name, nil
}

func TestUploadVectorToObjectUploader(t *testing.T) {
	u := &memoryUploader{objects: map[string][]byte{}}
	sfv, want := roadsVector(t)

	uri, err := UploadVector(context.Background(), u, sfv, Options{Format: Avro, Compression: "deflate"})
	require.NoError(t, err)
	assert.Equal(t, "mem://roads.avro", uri)

	var got []feature.Feature
	require.NoError(t, ReadAvro(bytes.NewReader(u.objects["roads.avro"]), nil, collect(t, &got)))
	assertFeatures(t, want, got)
}

func TestUploadVectorReportsUploaderErrors(t *testing.T) {
	boom := errors.New("boom")
	sfv, _ := roadsVector(t)
	_, err := UploadVector(context.Background(), &memoryUploader{err: boom}, sfv, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestNewGCSUploaderRequiresBucket(t *testing.T) {
	_, err := NewGCSUploader(context.Background(), GCSConfig{})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "roads.avro", objectKey("", "roads.avro"))
	assert.Equal(t, "a/b/roads.avro", objectKey("/a/b/", "roads.avro"))
}
