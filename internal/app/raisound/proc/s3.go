package proc

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/minio/minio-go/v7"
	"raisound/internal/app/raisound/podcast"
)

// S3Store mirrors downloaded episodes to a bucket
type S3Store struct {
	Client   *minio.Client
	Location string
	Bucket   string
	Prefix   string
}

// Mirror uploads succeeded and skipped episodes of report, returns number of uploaded files
func (s *S3Store) Mirror(ctx context.Context, report *podcast.Report) (int, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return 0, err
	}

	uploaded := 0
	show := KeyFor(report.Show)
	for _, res := range report.Results {
		if res.Status == podcast.Failed || res.Path == "" {
			continue
		}
		objectName := ObjectName(s.Prefix, show, res.Path)
		info, err := s.UploadEpisode(ctx, objectName, res.Path)
		if err != nil {
			log.Printf("[WARN] can't upload %s to %s, %v", res.Path, s.Bucket, err)
			continue
		}
		log.Printf("[INFO] uploaded %s to %s/%s, %d bytes", res.Path, s.Bucket, info.Key, info.Size)
		uploaded++
	}
	return uploaded, nil
}

// UploadEpisode to s3 storage
func (s *S3Store) UploadEpisode(ctx context.Context, objectName, filePath string) (*minio.UploadInfo, error) {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath)))
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	uploadInfo, err := s.Client.FPutObject(ctx, s.Bucket, objectName, filePath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, err
	}
	return &uploadInfo, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.Bucket, err)
	}
	if exists {
		return nil
	}
	if err = s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{Region: s.Location}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.Bucket, err)
	}
	log.Printf("[INFO] created bucket %s", s.Bucket)
	return nil
}

// ObjectName builds <prefix>/<show>/<file name>
func ObjectName(prefix, show, filePath string) string {
	return strings.TrimPrefix(path.Join(strings.Trim(prefix, "/"), show, filepath.Base(filePath)), "/")
}
