package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/OFFIS-RIT/netswatch/internal/config"
	"github.com/OFFIS-RIT/netswatch/internal/util"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const reportPrefix = "reconcile-reports"

func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReportArchive stores every reconcile report as one JSON object.
type ReportArchive struct {
	client objectPutter
	bucket string
	log    *logger.Logger
}

func NewReportArchive(client objectPutter, bucket string, log *logger.Logger) (*ReportArchive, error) {
	if client == nil {
		return nil, errors.New("report archive needs an s3 client")
	}
	if bucket == "" {
		return nil, errors.New("report archive needs a bucket")
	}
	return &ReportArchive{client: client, bucket: bucket, log: log}, nil
}

// ReportKey is reconcile-reports/<yyyy>/<mm>/<dd>/<run id>.json, dated by the
// start of the pass.
func ReportKey(report *reconcile.Report) string {
	day := report.StartedAt.UTC()
	return path.Join(reportPrefix, day.Format("2006"), day.Format("01"), day.Format("02"), report.RunID+".json")
}

// Store uploads report and returns its object key. Uploads are retried a few
// times since losing a report does not undo the deletions it describes.
func (a *ReportArchive) Store(ctx context.Context, report *reconcile.Report) (string, error) {
	if report == nil || report.RunID == "" {
		return "", errors.New("report has no run id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	key := ReportKey(report)

	err = util.RetryErrWithContext(ctx, 3, util.LinearBackoff(500*time.Millisecond, 2*time.Second), func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		return err
	})
	if err != nil {
		a.log.Error("[Archive] Failed to upload reconcile report", "key", key, "err", err)
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}

	a.log.Debug("[Archive] Reconcile report stored", "bucket", a.bucket, "key", key)
	return key, nil
}
