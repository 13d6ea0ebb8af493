package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dkovalev0/ciphertalk/internal/common"
	sc "github.com/dkovalev0/ciphertalk/internal/server/config"
	"github.com/dkovalev0/ciphertalk/internal/server/models"
	"github.com/dkovalev0/ciphertalk/internal/server/repositories/repomanager"
)

// Seams for the AWS SDK so tests can intercept presigning without a live
// object store.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Payload carries the opaque encrypted fields of a message. The server never
// decodes or validates the blob; Algorithm is a client-side label from an
// open set.
type Payload struct {
	Blob      string
	Nonce     string
	Algorithm string
}

// MessageService appends to the message log and presigns object-storage URLs
// for file payloads.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *MessageService {
	return &MessageService{db: db, repomanager: m, config: cfg}
}

// Send persists a message addressed to the user or group named by `to`.
// Exactly the recipient field matching the address kind is populated;
// an address with an undefined kind is malformed input and fails hard.
//
// By default the target is not validated: addressing correctness belongs to
// the caller and the store stays a pure append log. With
// Config.ValidateRecipients set, direct messages to a nonexistent user fail
// with common.ErrorNotFound; group sends stay unchecked either way.
func (s *MessageService) Send(ctx context.Context, senderID int64, to models.Address, payload Payload, isFile bool) (*models.Message, error) {
	if !to.Kind.Valid() {
		return nil, common.ErrInvalidAddress
	}

	if s.config.ValidateRecipients && to.Kind == models.AddressUser {
		if _, err := s.repomanager.Users(s.db).GetByID(ctx, to.ID); err != nil {
			return nil, err
		}
	}

	message := &models.Message{
		SenderID:  senderID,
		To:        to,
		Blob:      payload.Blob,
		Nonce:     payload.Nonce,
		Algorithm: payload.Algorithm,
		IsFile:    isFile,
	}

	message, err := s.repomanager.Messages(s.db).Create(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	return message, nil
}

// randomStorageKey spreads objects across date-based prefixes.
func randomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("attachments/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *MessageService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a fresh object key and a short-lived URL a client
// can PUT an encrypted file body to. The resulting key travels inside the
// message payload blob, which stays opaque to the server.
func (s *MessageService) PresignUpload(ctx context.Context) (key string, url string, err error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key = randomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.PresignValidityDuration))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// PresignDownload returns a short-lived URL for fetching a stored file body.
func (s *MessageService) PresignDownload(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.PresignValidityDuration))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
