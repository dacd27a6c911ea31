package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/livelens/media-processor/internal/config"
	"github.com/livelens/media-processor/pkg/models"
)

// jobRecord is the persisted shape of a finished job.
type jobRecord struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	models.VideoJob

	ProcessedAt string `dynamodbav:"processed_at"`
}

// DynamoClient is the subset of the DynamoDB API the store uses.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// JobStore persists final job results in DynamoDB so the rest of the
// platform can query processing status. Persistence sits outside the
// pipeline's own contract: a store failure never changes a job result.
type JobStore struct {
	client    DynamoClient
	tableName string
}

// NewJobStore creates a JobStore using the provided configuration.
func NewJobStore(ctx context.Context, cfg *config.Config) (*JobStore, error) {
	if cfg.Storage.DynamoDBTable == "" {
		return nil, errors.New("DynamoDB table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Storage.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	return &JobStore{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.Storage.DynamoDBTable,
	}, nil
}

// NewJobStoreFromClient creates a JobStore from an existing DynamoDB
// client.
func NewJobStoreFromClient(client DynamoClient, tableName string) *JobStore {
	return &JobStore{
		client:    client,
		tableName: tableName,
	}
}

// SaveResult writes the finalized job record, overwriting any previous
// result for the same video id (keys are deterministic, re-runs are
// idempotent overwrites).
func (s *JobStore) SaveResult(ctx context.Context, job *models.VideoJob) error {
	record := &jobRecord{
		PK:          fmt.Sprintf("VIDEO#%s", job.VideoID),
		SK:          "RESULT",
		VideoJob:    *job,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}

	return nil
}

// GetResult retrieves the persisted result for a video id.
func (s *JobStore) GetResult(ctx context.Context, videoID string) (*models.VideoJob, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("VIDEO#%s", videoID)},
			"sk": &types.AttributeValueMemberS{Value: "RESULT"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}

	if result.Item == nil {
		return nil, models.ErrJobNotFound
	}

	var record jobRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}

	job := record.VideoJob
	return &job, nil
}

// DescribeTable checks that the configured table is reachable; used by
// the readiness probe.
func (s *JobStore) DescribeTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	return err
}
