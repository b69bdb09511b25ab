// Package appointments persists the denormalized per-client appointment
// index that tracks which calendar event backs each (client, service)
// booking.
package appointments

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

// ErrVersionConflict indicates the index document changed between read
// and write. Callers should re-read and retry once.
var ErrVersionConflict = errors.New("appointments: version conflict")

// Record ties one (client name, service) pair to its calendar event.
type Record struct {
	Service      string `dynamodbav:"service" json:"service"`
	EventID      string `dynamodbav:"eventId" json:"eventId"`
	EmployeeName string `dynamodbav:"employeeName" json:"employeeName"`
}

// Index is the whole appointment document for one (assistant, client)
// conversation pair. Appointments maps client display names to their
// booking records; the store rewrites the document as a unit.
type Index struct {
	AssistantNumber string              `dynamodbav:"assistantNumber" json:"assistantNumber"`
	ClientNumber    string              `dynamodbav:"clientNumber" json:"clientNumber"`
	Appointments    map[string][]Record `dynamodbav:"appointments" json:"appointments"`
	Version         int64               `dynamodbav:"version" json:"version"`
}

// Find returns the record for (clientName, service), or nil.
func (ix *Index) Find(clientName, service string) *Record {
	if ix == nil || ix.Appointments == nil {
		return nil
	}
	records := ix.Appointments[clientName]
	for i := range records {
		if records[i].Service == service {
			return &records[i]
		}
	}
	return nil
}

// Append adds a record under clientName, allocating maps as needed.
func (ix *Index) Append(clientName string, rec Record) {
	if ix.Appointments == nil {
		ix.Appointments = map[string][]Record{}
	}
	ix.Appointments[clientName] = append(ix.Appointments[clientName], rec)
}

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store reads and rewrites appointment index documents in DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Get fetches the index for (assistantNumber, clientNumber). A missing
// document is not an error: an empty index is returned so first-time
// clients flow through the create path.
func (s *Store) Get(ctx context.Context, assistantNumber, clientNumber string) (*Index, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       indexKey(assistantNumber, clientNumber),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to fetch index: %w", err)
	}

	if output.Item == nil {
		return &Index{
			AssistantNumber: assistantNumber,
			ClientNumber:    clientNumber,
		}, nil
	}

	var ix Index
	if err := attributevalue.UnmarshalMap(output.Item, &ix); err != nil {
		return nil, fmt.Errorf("appointments: failed to unmarshal index: %w", err)
	}
	return &ix, nil
}

// Put rewrites the whole index document, guarded by an expected-version
// check: the write succeeds only if the stored version still matches the
// version the caller read. The stored version is bumped by one.
func (s *Store) Put(ctx context.Context, ix *Index) error {
	if ix == nil {
		return errors.New("appointments: index cannot be nil")
	}

	expected := ix.Version
	ix.Version = expected + 1
	item, err := attributevalue.MarshalMap(ix)
	if err != nil {
		ix.Version = expected
		return fmt.Errorf("appointments: failed to marshal index: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if expected == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(assistantNumber) OR version = :expected")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
	}
	input.ExpressionAttributeValues = map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expected)},
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		ix.Version = expected
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return ErrVersionConflict
		}
		return fmt.Errorf("appointments: failed to persist index: %w", err)
	}
	return nil
}

func indexKey(assistantNumber, clientNumber string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"assistantNumber": &types.AttributeValueMemberS{Value: assistantNumber},
		"clientNumber":    &types.AttributeValueMemberS{Value: clientNumber},
	}
}
