package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/config"
)

// dynamoAPI is the subset of the DynamoDB client the store uses. Tests
// substitute a stub.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore implements domain.ConversationStore on a DynamoDB table keyed by
// a single string partition key "user_id". The whole history is one item and
// the turns travel as a JSON document, so the table schema never changes when
// the turn shape does.
type DynamoStore struct {
	client  dynamoAPI
	table   string
	timeout time.Duration
}

type dynamoItem struct {
	UserID    string `dynamodbav:"user_id"`
	Turns     string `dynamodbav:"turns"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// NewDynamoStore builds a store against the real DynamoDB API using the
// default AWS credential chain. cfg.Endpoint overrides the service endpoint
// for local development (dynamodb-local, LocalStack).
func NewDynamoStore(ctx context.Context, cfg config.StateConfig, region string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newDynamoStoreWithClient(client, cfg.Table, cfg.Timeout), nil
}

func newDynamoStoreWithClient(client dynamoAPI, table string, timeout time.Duration) *DynamoStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DynamoStore{client: client, table: table, timeout: timeout}
}

// Load reads the user's item with a strongly consistent read so a just-written
// turn is always visible to the next request.
func (s *DynamoStore) Load(ctx context.Context, userID string) ([]domain.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storageErr("dynamo.load", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, storageErr("dynamo.load", err)
	}
	var turns []domain.Turn
	if item.Turns != "" {
		if err := json.Unmarshal([]byte(item.Turns), &turns); err != nil {
			return nil, storageErr("dynamo.load", err)
		}
	}
	return turns, nil
}

// Append is read-modify-write: the single-item layout trades write
// amplification for a schema DynamoDB can serve with one GetItem.
func (s *DynamoStore) Append(ctx context.Context, userID, role, text string) error {
	turns, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	turns = append(turns, domain.Turn{Role: role, Text: text, Timestamp: now})

	doc, err := json.Marshal(turns)
	if err != nil {
		return storageErr("dynamo.append", err)
	}
	item, err := attributevalue.MarshalMap(dynamoItem{
		UserID:    userID,
		Turns:     string(doc),
		UpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return storageErr("dynamo.append", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return storageErr("dynamo.append", err)
	}
	return nil
}

func (s *DynamoStore) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	}); err != nil {
		return storageErr("dynamo.clear", err)
	}
	return nil
}
