package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/diary-backend/errs"
)

const (
	// MaxImageSize caps a single upload.
	MaxImageSize = 10 << 20
	// ImagePrefix is the key prefix of every stored image.
	ImagePrefix = "diary_images/"
)

// ImageStore keeps uploaded entry images.
type ImageStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL is where a browser can fetch key.
	URL(ctx context.Context, key string) (string, error)
}

// Upload is an image file received with a form.
type Upload struct {
	Filename string
	Body     io.Reader
}

// PreparedImage is a validated upload ready to be stored.
type PreparedImage struct {
	Key         string
	ContentType string
	Data        []byte
}

// PrepareImage reads up, checks its size and sniffed content type, and picks
// its storage key from title.
func PrepareImage(title string, up Upload) (*PreparedImage, error) {
	data, err := io.ReadAll(io.LimitReader(up.Body, MaxImageSize+1))
	if err != nil {
		return nil, errs.NewBadRequestError("could not read uploaded image")
	}
	if len(data) == 0 {
		return nil, errs.NewFieldError("image", "The submitted file is empty.")
	}
	if len(data) > MaxImageSize {
		return nil, errs.NewMaxBodySizeExceededError(MaxImageSize)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errs.NewUnsupportedMediaTypeError(contentType, "image/*")
	}

	return &PreparedImage{
		Key:         ImageKey(title, up.Filename, contentType),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// ImageKey builds diary_images/<slug>-<uuid><ext>. The extension comes from
// the uploaded filename, falling back to the content type.
func ImageKey(title, filename, contentType string) string {
	base := slug.Make(title)
	if base == "" {
		base = "image"
	}
	if len(base) > 60 {
		base = strings.Trim(base[:60], "-")
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ""
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("%s%s-%s%s", ImagePrefix, base, uuid.NewString(), ext)
}

// DiskImageStore keeps images below a local directory served under baseURL.
type DiskImageStore struct {
	root    string
	baseURL string
}

func NewDiskImageStore(root, baseURL string) (*DiskImageStore, error) {
	if err := os.MkdirAll(filepath.Join(root, ImagePrefix), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskImageStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/") + "/"}, nil
}

func (d *DiskImageStore) Root() string {
	return d.root
}

func (d *DiskImageStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if !strings.HasPrefix(clean, "/"+ImagePrefix) {
		return "", errs.NewBadRequestError("invalid image key")
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *DiskImageStore) Put(_ context.Context, key string, body []byte, _ string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0o644)
}

func (d *DiskImageStore) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *DiskImageStore) URL(_ context.Context, key string) (string, error) {
	return d.baseURL + key, nil
}

// S3Options configures an S3 compatible bucket. Endpoint and static keys are
// optional and used for MinIO style deployments.
type S3Options struct {
	Region       string
	Bucket       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	URLExpiry    time.Duration
}

type s3ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3ImageStore keeps images in a bucket and hands out presigned GET urls.
type S3ImageStore struct {
	client    s3ObjectAPI
	presigner s3Presigner
	bucket    string
	expiry    time.Duration
}

func NewS3ImageStore(ctx context.Context, opts S3Options) (*S3ImageStore, error) {
	if opts.Bucket == "" {
		return nil, errs.NewMissingRequiredFieldError("S3_BUCKET")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 15 * time.Minute
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	log.Info().Str("bucket", opts.Bucket).Str("endpoint", opts.Endpoint).Msg("Using S3 image store")
	return &S3ImageStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		expiry:    opts.URLExpiry,
	}, nil
}

func (s *S3ImageStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3ImageStore) URL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}
