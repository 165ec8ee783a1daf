package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpixel/agency-portal/internal/config"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

type fakeCDN struct {
	inputs []*cloudfront.CreateInvalidationInput
}

func (f *fakeCDN) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudfront.CreateInvalidationOutput{}, nil
}

func testConfig() config.StorageConfig {
	return config.StorageConfig{
		S3Bucket:                 "portal-uploads",
		AWSRegion:                "us-east-1",
		CDNDomain:                "cdn.example.com",
		CloudFrontDistributionID: "E123",
		MaxUploadMB:              1,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadImageCreatesVariants(t *testing.T) {
	fs3 := newFakeS3()
	store := NewWithClients(fs3, nil, testConfig())

	obj, err := store.Upload(context.Background(), "user-42", bytes.NewReader(pngBytes(t, 1000, 500)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.Key, "uploads/user-42/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, 1000, obj.Width)
	assert.Equal(t, "https://cdn.example.com/"+obj.Key, obj.URL)

	require.Len(t, obj.Variants, 2)
	assert.Equal(t, 600, obj.Variants["medium"].Width)
	assert.Equal(t, 300, obj.Variants["medium"].Height)
	assert.Equal(t, 150, obj.Variants["thumb"].Width)
	assert.True(t, strings.HasSuffix(obj.Variants["thumb"].Key, "_150w.png"))
	assert.Len(t, fs3.objects, 3)
}

func TestUploadSmallImageSkipsVariants(t *testing.T) {
	fs3 := newFakeS3()
	store := NewWithClients(fs3, nil, testConfig())

	obj, err := store.Upload(context.Background(), "u", bytes.NewReader(pngBytes(t, 120, 80)))
	require.NoError(t, err)
	assert.Empty(t, obj.Variants)
	assert.Len(t, fs3.objects, 1)
}

func TestUploadRejects(t *testing.T) {
	store := NewWithClients(newFakeS3(), nil, testConfig())

	_, err := store.Upload(context.Background(), "u", strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := bytes.Repeat([]byte{0}, (1<<20)+1)
	_, err = store.Upload(context.Background(), "u", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h greyscale
// pixels, with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; colour type 0 (greyscale)

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUploadRejectsOversizedDimensions(t *testing.T) {
	fs3 := newFakeS3()
	store := NewWithClients(fs3, nil, testConfig())

	_, err := store.Upload(context.Background(), "u", bytes.NewReader(pngHeader(16000, 16000)))
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "16000x16000")
	assert.Empty(t, fs3.objects)

	store.maxPixels = 1000*500 - 1
	_, err = store.Upload(context.Background(), "u", bytes.NewReader(pngBytes(t, 1000, 500)))
	assert.ErrorIs(t, err, ErrTooLarge)

	store.maxPixels = 1000 * 500
	obj, err := store.Upload(context.Background(), "u", bytes.NewReader(pngBytes(t, 1000, 500)))
	require.NoError(t, err)
	assert.Len(t, obj.Variants, 2)
}

func TestUploadSanitizesOwner(t *testing.T) {
	store := NewWithClients(newFakeS3(), nil, testConfig())
	obj, err := store.Upload(context.Background(), "../../etc", bytes.NewReader([]byte("%PDF-1.4 test")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "uploads/etc/"))
	assert.Equal(t, "application/pdf", obj.ContentType)
}

func TestDeleteRemovesVariantsAndInvalidates(t *testing.T) {
	fs3 := newFakeS3()
	cdn := &fakeCDN{}
	store := NewWithClients(fs3, cdn, testConfig())

	err := store.Delete(context.Background(), "uploads/u/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/u/abc.jpg", "uploads/u/abc_600w.jpg", "uploads/u/abc_150w.jpg"}, fs3.deleted)

	require.Len(t, cdn.inputs, 1)
	batch := cdn.inputs[0].InvalidationBatch
	assert.Equal(t, int32(3), aws.ToInt32(batch.Paths.Quantity))
	assert.Contains(t, batch.Paths.Items, "/uploads/u/abc.jpg")
}

func TestDeleteRejectsForeignKeys(t *testing.T) {
	store := NewWithClients(newFakeS3(), nil, testConfig())
	assert.ErrorIs(t, store.Delete(context.Background(), "config/secrets.yaml"), ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(context.Background(), "uploads/../secrets"), ErrInvalidKey)
}

func TestPing(t *testing.T) {
	fs3 := newFakeS3()
	store := NewWithClients(fs3, nil, testConfig())
	assert.NoError(t, store.Ping(context.Background()))
	fs3.headErr = errors.New("forbidden")
	assert.Error(t, store.Ping(context.Background()))
}

func TestURLWithoutCDN(t *testing.T) {
	cfg := testConfig()
	cfg.CDNDomain = ""
	store := NewWithClients(newFakeS3(), nil, cfg)
	assert.Equal(t, "https://portal-uploads.s3.us-east-1.amazonaws.com/uploads/x.png", store.URL("uploads/x.png"))
}
