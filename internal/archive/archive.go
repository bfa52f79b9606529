// Package archive uploads finished tournament brackets to S3 compatible
// object storage as JSON documents.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/tournament"
)

// Config selects the bucket. Endpoint is set for S3 compatible stores such
// as R2 or MinIO; static keys are optional and fall back to the default
// credential chain.
type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// PutObjectAPI is the part of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver implements tournament.Archiver.
type Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    zerolog.Logger
}

var _ tournament.Archiver = (*Archiver)(nil)

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "load object storage config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func New(client PutObjectAPI, bucket, prefix string, log zerolog.Logger) *Archiver {
	if prefix == "" {
		prefix = "tournaments"
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("component", "archive").Logger(),
	}
}

// Key returns the object key of a tournament's archive.
func (a *Archiver) Key(tournamentID string) string {
	return fmt.Sprintf("%s/%s.json", a.prefix, tournamentID)
}

// ArchiveTournament uploads the bracket snapshot.
func (a *Archiver) ArchiveTournament(ctx context.Context, t tournament.Tournament) error {
	body, err := json.Marshal(t)
	if err != nil {
		return eris.Wrapf(err, "encode tournament %s", t.ID)
	}

	key := a.Key(t.ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return eris.Wrapf(err, "upload %s", key)
	}

	a.log.Info().Str("tournament_id", t.ID).Str("key", key).Int("bytes", len(body)).Msg("tournament archived")
	return nil
}
