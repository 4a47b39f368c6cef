// Package reliability ships periodic snapshots of the data directory to an
// S3-compatible bucket: a tar.gz archive of the portfolio database plus a
// checksum manifest, uploaded on a fixed schedule.
package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/config"
	"github.com/aristath/equilibre/internal/database"
)

// BackupService archives the database and uploads it.
type BackupService struct {
	db       *database.DB
	dataDir  string
	cfg      config.BackupConfig
	uploader *manager.Uploader
	cron     *cron.Cron
	log      zerolog.Logger
}

// NewBackupService builds the service and its S3 client. An explicit
// endpoint switches the client to an S3-compatible provider (R2, MinIO)
// with path-style addressing.
func NewBackupService(ctx context.Context, db *database.DB, dataDir string, cfg config.BackupConfig, log zerolog.Logger) (*BackupService, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup bucket is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup credentials: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &BackupService{
		db:       db,
		dataDir:  dataDir,
		cfg:      cfg,
		uploader: manager.NewUploader(s3.NewFromConfig(awsCfg, s3Opts...)),
		cron:     cron.New(),
		log:      log.With().Str("service", "backup").Logger(),
	}, nil
}

// Start schedules recurring backups.
func (s *BackupService) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Backup(ctx); err != nil {
			s.log.Error().Err(err).Msg("Scheduled backup failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule backups: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", s.cfg.Interval).Str("bucket", s.cfg.Bucket).Msg("Backups scheduled")
	return nil
}

// Stop halts the schedule and waits for a running backup.
func (s *BackupService) Stop() {
	<-s.cron.Stop().Done()
}

// Backup checkpoints the database, archives the data directory, and uploads
// the archive plus its sha256 manifest.
func (s *BackupService) Backup(ctx context.Context) error {
	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	archive, err := s.archiveDataDir()
	if err != nil {
		return fmt.Errorf("failed to archive data directory: %w", err)
	}

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	key := fmt.Sprintf("equilibre/%s.tar.gz", stamp)

	sum := sha256.Sum256(archive)
	checksum := hex.EncodeToString(sum[:])

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(archive),
		ContentType: aws.String("application/gzip"),
	}); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	manifest := fmt.Sprintf("%s  %s\n", checksum, filepath.Base(key))
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key + ".sha256"),
		Body:        strings.NewReader(manifest),
		ContentType: aws.String("text/plain"),
	}); err != nil {
		return fmt.Errorf("failed to upload backup checksum: %w", err)
	}

	s.log.Info().Str("key", key).Int("bytes", len(archive)).Msg("Backup uploaded")
	return nil
}

// archiveDataDir packs every regular file under the data directory into a
// tar.gz held in memory. WAL side files are skipped: the checkpoint above
// folded them into the main database.
func (s *BackupService) archiveDataDir() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(s.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, "-wal") || strings.HasSuffix(path, "-shm") {
			return nil
		}

		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
