package business

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/citabot/citabot/pkg/logging"
)

// ErrNotFound indicates no business exists for the assistant number.
var ErrNotFound = errors.New("business: not found")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Repository reads businesses from DynamoDB. The core never writes
// this table; tenant lifecycle is owned by provisioning tooling.
type Repository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewRepository builds a repository backed by the provided DynamoDB client.
func NewRepository(client dynamoAPI, tableName string, logger *logging.Logger) *Repository {
	if client == nil {
		panic("business: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("business: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// GetByAssistantNumber fetches the business owning the given assistant number.
func (r *Repository) GetByAssistantNumber(ctx context.Context, assistantNumber string) (*Business, error) {
	if assistantNumber == "" {
		return nil, errors.New("business: assistant number required")
	}

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"assistantNumber": &types.AttributeValueMemberS{Value: assistantNumber},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("business: failed to fetch %s: %w", assistantNumber, err)
	}
	if output.Item == nil {
		return nil, ErrNotFound
	}

	var biz Business
	if err := attributevalue.UnmarshalMap(output.Item, &biz); err != nil {
		return nil, fmt.Errorf("business: failed to unmarshal %s: %w", assistantNumber, err)
	}
	return &biz, nil
}
