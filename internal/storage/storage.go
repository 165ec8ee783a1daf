// Package storage keeps portal uploads (avatars, article covers, project
// files) in S3 and serves them through CloudFront when configured.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/config"
)

var (
	ErrTooLarge        = errors.New("storage: file too large")
	ErrUnsupportedType = errors.New("storage: unsupported file type")
	ErrInvalidKey      = errors.New("storage: invalid key")
	ErrNotConfigured   = errors.New("storage: bucket not configured")
)

const keyPrefix = "uploads/"

var ownerRe = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// allowedTypes maps sniffed content types to stored extensions.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type cloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// Variant is a resized copy of an uploaded image.
type Variant struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Object describes a stored upload.
type Object struct {
	Key         string             `json:"key"`
	URL         string             `json:"url"`
	ContentType string             `json:"content_type"`
	Size        int64              `json:"size"`
	Width       int                `json:"width,omitempty"`
	Height      int                `json:"height,omitempty"`
	Variants    map[string]Variant `json:"variants,omitempty"`
}

// Store uploads and deletes objects.
type Store struct {
	s3             s3API
	cdn            cloudFrontAPI
	bucket         string
	region         string
	cdnDomain      string
	distributionID string
	maxBytes       int64
	maxPixels      int64
	now            func() time.Time
}

// New builds a Store from cfg using the default AWS credential chain or the
// configured profile.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	if cfg.S3Bucket == "" {
		return nil, ErrNotConfigured
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}
	var cdn cloudFrontAPI
	if cfg.CloudFrontDistributionID != "" {
		cdn = cloudfront.NewFromConfig(awsCfg)
	}
	log.Printf("[storage] S3 bucket=%s region=%s cdn=%q", cfg.S3Bucket, cfg.AWSRegion, cfg.CDNDomain)
	return NewWithClients(s3.NewFromConfig(awsCfg), cdn, cfg), nil
}

// NewWithClients builds a Store around existing clients. cdn may be nil.
func NewWithClients(s3Client s3API, cdn cloudFrontAPI, cfg config.StorageConfig) *Store {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	return &Store{
		s3:             s3Client,
		cdn:            cdn,
		bucket:         cfg.S3Bucket,
		region:         cfg.AWSRegion,
		cdnDomain:      cfg.CDNDomain,
		distributionID: cfg.CloudFrontDistributionID,
		maxBytes:       int64(maxMB) << 20,
		maxPixels:      DefaultMaxImagePixels,
		now:            time.Now,
	}
}

// MaxBytes is the upload size limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Upload stores the content of r under uploads/{owner}/. Images also get
// medium and thumbnail variants.
func (s *Store) Upload(ctx context.Context, owner string, r io.Reader) (*Object, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	isImage := strings.HasPrefix(contentType, "image/")
	var width, height int
	if isImage {
		var err error
		width, height, err = imageDimensions(data)
		if err != nil {
			// Sniffed as an image but the header is unreadable; keep the
			// original without variants.
			log.Printf("[storage] read image header: %v", err)
			isImage = false
		} else if int64(width)*int64(height) > s.maxPixels {
			return nil, fmt.Errorf("%w: %dx%d image exceeds %d pixels", ErrTooLarge, width, height, s.maxPixels)
		}
	}

	owner = ownerRe.ReplaceAllString(owner, "")
	if owner == "" {
		owner = "shared"
	}
	base := keyPrefix + owner + "/" + uuid.NewString()
	key := base + ext

	if err := s.put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("storage: upload original: %w", err)
	}

	obj := &Object{
		Key:         key,
		URL:         s.URL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	if !isImage {
		return obj, nil
	}
	obj.Width, obj.Height = width, height

	img, err := decodeImage(data)
	if err != nil {
		// Sniffed as an image but undecodable; keep the original only.
		log.Printf("[storage] decode %s: %v", key, err)
		return obj, nil
	}

	for _, v := range variantSizes {
		if obj.Width <= v.width {
			continue
		}
		resized, w, h, vct, err := resize(img, v.width, contentType)
		if err != nil {
			log.Printf("[storage] resize %s to %dw: %v", key, v.width, err)
			continue
		}
		vkey := variantKey(base, v.width, vct)
		if err := s.put(ctx, vkey, resized, vct); err != nil {
			log.Printf("[storage] upload variant %s: %v", vkey, err)
			continue
		}
		if obj.Variants == nil {
			obj.Variants = make(map[string]Variant)
		}
		obj.Variants[v.name] = Variant{Key: vkey, URL: s.URL(vkey), Width: w, Height: h}
	}
	return obj, nil
}

// Delete removes key and any variants, then invalidates the CDN paths.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	keys := []string{key}
	ext := path.Ext(key)
	if ct := contentTypeForExt(ext); strings.HasPrefix(ct, "image/") {
		base := strings.TrimSuffix(key, ext)
		for _, v := range variantSizes {
			keys = append(keys, variantKey(base, v.width, variantContentType(ct)))
		}
	}

	for _, k := range keys {
		if _, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(k),
		}); err != nil {
			return fmt.Errorf("storage: delete %s: %w", k, err)
		}
	}

	if s.cdn == nil || s.distributionID == "" {
		return nil
	}
	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = "/" + k
	}
	_, err := s.cdn.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(s.distributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(strconv.FormatInt(s.now().UnixNano(), 10)),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		// Objects are gone; a stale CDN copy expires on its own.
		log.Printf("[storage] CloudFront invalidation failed for %s: %v", key, err)
	}
	return nil
}

// Ping checks the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// URL returns the public URL for key.
func (s *Store) URL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// ValidKey reports whether key names an upload this store created.
func ValidKey(key string) bool {
	if !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "..") {
		return false
	}
	return path.Clean(key) == key
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	return err
}

func contentTypeForExt(ext string) string {
	for ct, e := range allowedTypes {
		if e == ext {
			return ct
		}
	}
	return ""
}
