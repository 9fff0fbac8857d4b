// Package docsync fetches the documentation bundle served under /static
// and /apidoc. The release pipeline publishes a tarball to S3 keyed by
// its SHA256 digest and writes that digest to an SSM parameter; at
// startup we read the parameter, download the tarball, verify the
// digest and unpack it into the doc root.
package docsync

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

const (
	// maxBundleSize caps the compressed tarball download
	maxBundleSize int64 = 50 * 1024 * 1024

	// maxSingleFile caps one extracted file, against decompression bombs
	maxSingleFile int64 = 10 * 1024 * 1024

	// maxTotalExtract caps the whole extracted tree
	maxTotalExtract int64 = 100 * 1024 * 1024
)

// paramGetter and objectGetter are the slices of the SSM and S3 APIs we
// use, so tests can substitute fakes.
type paramGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Options struct {
	Logger log.Logger

	// SSM parameter containing the bundle SHA256 digest
	SSMParam string

	// S3 location for bundles: s3://{bucket}/{prefix}/{digest}.tar.gz
	S3Bucket string
	S3Prefix string

	// Directory the bundle is unpacked into
	DocRoot string

	// AWS config (uses default if nil)
	AWSConfig *aws.Config
}

type Syncer struct {
	opts   Options
	ssm    paramGetter
	s3     objectGetter
	logger log.Logger
}

func New(ctx context.Context, opts Options) (*Syncer, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.DocRoot == "" {
		return nil, xerrors.New("DocRoot is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	var err error
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	return &Syncer{
		opts:   opts,
		ssm:    ssm.NewFromConfig(awsCfg),
		s3:     s3.NewFromConfig(awsCfg),
		logger: opts.Logger,
	}, nil
}

// CurrentDigest reads the published bundle digest from SSM.
func (s *Syncer) CurrentDigest(ctx context.Context) (string, error) {
	out, err := s.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", s.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", s.opts.SSMParam)
	}

	digest := strings.TrimSpace(*out.Parameter.Value)
	if digest == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", s.opts.SSMParam)
	}
	return digest, nil
}

func (s *Syncer) s3Key(digest string) string {
	if s.opts.S3Prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", s.opts.S3Prefix, digest)
	}
	return fmt.Sprintf("%s.tar.gz", digest)
}

// download fetches the tarball, verifying its SHA256 against digest.
// Returns the path of a temp file the caller must remove.
func (s *Syncer) download(ctx context.Context, digest string) (string, error) {
	key := s.s3Key(digest)

	s.logger.Info(ctx, "downloading doc bundle",
		"bucket", s.opts.S3Bucket,
		"key", key,
		"expected_digest", digest,
	)

	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get S3 object s3://%s/%s", s.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	tmpFile, err := os.CreateTemp("", "doc-bundle-*.tar.gz")
	if err != nil {
		return "", xerrors.Wrap(err, "create temp file")
	}
	tmpPath := tmpFile.Name()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, h), io.LimitReader(out.Body, maxBundleSize+1))
	tmpFile.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", xerrors.Wrap(err, "download bundle")
	}
	if written > maxBundleSize {
		os.Remove(tmpPath)
		return "", xerrors.Newf("bundle exceeds max size (%d bytes, limit %d)", written, maxBundleSize)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(actual)), []byte(strings.ToLower(digest))) != 1 {
		os.Remove(tmpPath)
		return "", xerrors.Newf("digest mismatch: expected %s, got %s", digest, actual)
	}

	s.logger.Info(ctx, "downloaded doc bundle", "bytes", written, "digest", actual)
	return tmpPath, nil
}

// Sync fetches the current bundle and unpacks it into DocRoot. Returns
// the digest that was installed.
func (s *Syncer) Sync(ctx context.Context) (string, error) {
	digest, err := s.CurrentDigest(ctx)
	if err != nil {
		return "", err
	}

	bundlePath, err := s.download(ctx, digest)
	if err != nil {
		return "", err
	}
	defer os.Remove(bundlePath)

	if err := os.MkdirAll(s.opts.DocRoot, 0o755); err != nil {
		return "", xerrors.Wrapf(err, "create doc root %s", s.opts.DocRoot)
	}

	s.logger.Info(ctx, "extracting doc bundle", "digest", digest, "dest", s.opts.DocRoot)
	if err := extractTarGz(bundlePath, s.opts.DocRoot); err != nil {
		return "", xerrors.Wrap(err, "extract bundle")
	}

	return digest, nil
}

func extractTarGz(bundlePath, dst string) error {
	f, err := os.Open(bundlePath)
	if err != nil {
		return xerrors.Wrapf(err, "open %s", bundlePath)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	var totalBytes int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xerrors.Wrap(err, "read tar header")
		}

		target, err := sanitizeTarPath(dst, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Wrapf(err, "mkdir %s", target)
			}

		case tar.TypeReg:
			if hdr.Size > maxSingleFile {
				return xerrors.Newf("file %s exceeds max size (%d > %d)", hdr.Name, hdr.Size, maxSingleFile)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return xerrors.Wrapf(err, "mkdir %s", filepath.Dir(target))
			}
			n, err := writeFile(target, tr, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			totalBytes += n
			if totalBytes > maxTotalExtract {
				return xerrors.Newf("total extracted size exceeds limit (%d bytes, max %d)", totalBytes, maxTotalExtract)
			}

		default:
			return xerrors.Newf("unsupported file type in archive: %s (type=%d)", hdr.Name, hdr.Typeflag)
		}
	}

	return nil
}

// sanitizeTarPath rejects absolute paths and traversal. An empty result
// with nil error means the entry should be skipped.
func sanitizeTarPath(dst, name string) (string, error) {
	name = filepath.Clean(name)
	if name == "." || name == "" {
		return "", nil
	}
	if filepath.IsAbs(name) {
		return "", xerrors.Newf("absolute path in tar: %s", name)
	}
	if strings.Contains(name, "..") {
		return "", xerrors.Newf("path traversal in tar: %s", name)
	}

	target := filepath.Join(dst, name)
	if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", xerrors.Newf("path escapes destination: %s", name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, xerrors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, maxSingleFile+1))
	if err != nil {
		return n, xerrors.Wrapf(err, "write %s", path)
	}
	if n > maxSingleFile {
		return n, xerrors.Newf("file too large: %s (%d bytes)", path, n)
	}
	return n, nil
}
