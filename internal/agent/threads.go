// Package agent drives assistant conversations: one OpenAI thread per
// (assistant, client) pair, a bounded run loop, and the tool calls that
// reach into bookings and calendars.
package agent

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/citabot/citabot/pkg/logging"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ThreadStore maps (assistantNumber, clientNumber) pairs to their
// OpenAI thread identifiers in DynamoDB.
type ThreadStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewThreadStore builds a store backed by the provided DynamoDB client.
func NewThreadStore(client dynamoAPI, tableName string, logger *logging.Logger) *ThreadStore {
	if client == nil {
		panic("agent: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("agent: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ThreadStore{client: client, tableName: tableName, logger: logger}
}

// GetThreadID returns the stored thread identifier, or "" when the pair
// has no thread yet.
func (s *ThreadStore) GetThreadID(ctx context.Context, assistantNumber, clientNumber string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"assistantNumber": &types.AttributeValueMemberS{Value: assistantNumber},
			"clientNumber":    &types.AttributeValueMemberS{Value: clientNumber},
		},
	})
	if err != nil {
		return "", fmt.Errorf("agent: failed to get thread id: %w", err)
	}
	if out.Item == nil {
		return "", nil
	}
	attr, ok := out.Item["threadId"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("agent: thread item for %s/%s has no threadId", assistantNumber, clientNumber)
	}
	return attr.Value, nil
}

// SaveThreadID records the thread identifier for the pair.
func (s *ThreadStore) SaveThreadID(ctx context.Context, assistantNumber, clientNumber, threadID string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"assistantNumber": &types.AttributeValueMemberS{Value: assistantNumber},
			"clientNumber":    &types.AttributeValueMemberS{Value: clientNumber},
			"threadId":        &types.AttributeValueMemberS{Value: threadID},
		},
	})
	if err != nil {
		return fmt.Errorf("agent: failed to save thread id: %w", err)
	}
	s.logger.Debug("thread id saved",
		"assistant_number", assistantNumber,
		"client_number", clientNumber,
		"thread_id", threadID,
	)
	return nil
}
