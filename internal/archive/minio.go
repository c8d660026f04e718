// Package archive uploads CSV snapshots of exported missions to S3-compatible
// object storage. Uploads are best-effort; the spreadsheet and the local
// store remain the primary records.
package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/sheets"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

type Archive struct {
	client *minio.Client
	bucket string
	log    *logrus.Logger
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool, log *logrus.Logger) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Archive{client: client, bucket: bucket, log: log}, nil
}

// Upload writes the mission's batch rows as a CSV object. The object name
// carries the mission ID and export time so re-exports never clobber an
// earlier snapshot.
func (a *Archive) Upload(ctx context.Context, mission store.Mission, subs []store.Submission) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}

	header, rows := sheets.BatchRows(subs)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	name := fmt.Sprintf("exports/%s-%s.csv", mission.ID, time.Now().UTC().Format("20060102T150405Z"))
	_, err := a.client.PutObject(ctx, a.bucket, name, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	a.log.WithFields(logrus.Fields{"mission": mission.ID, "object": name}).Info("export snapshot archived")
	return nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}
