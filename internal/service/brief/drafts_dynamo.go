package brief

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/brightpixel/agency-portal/internal/domain"
)

// expiresAttr is the table's TTL attribute (epoch seconds). DynamoDB
// deletes expired items lazily, so reads check it too.
const expiresAttr = "expires_at"

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDraftStore keeps wizard sessions in a DynamoDB table keyed by "id".
type DynamoDraftStore struct {
	db    dynamoAPI
	table string
	now   func() time.Time
}

// NewDynamoDraftStore creates a store using the default AWS credential chain.
func NewDynamoDraftStore(ctx context.Context, table, region string) (*DynamoDraftStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newDynamoDraftStore(dynamodb.NewFromConfig(cfg), table), nil
}

func newDynamoDraftStore(db dynamoAPI, table string) *DynamoDraftStore {
	return &DynamoDraftStore{db: db, table: table, now: time.Now}
}

func (d *DynamoDraftStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (d *DynamoDraftStore) Get(ctx context.Context, id string) (*domain.BriefSession, error) {
	out, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting brief session from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, ErrSessionNotFound
	}
	if n, ok := out.Item[expiresAttr].(*types.AttributeValueMemberN); ok {
		if exp, err := strconv.ParseInt(n.Value, 10, 64); err == nil && d.now().Unix() >= exp {
			return nil, ErrSessionNotFound
		}
	}

	var s domain.BriefSession
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling brief session: %w", err)
	}
	return &s, nil
}

func (d *DynamoDraftStore) Save(ctx context.Context, s *domain.BriefSession, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshaling brief session: %w", err)
	}
	item[expiresAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(d.now().Add(ttl).Unix(), 10)}

	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting brief session to DynamoDB: %w", err)
	}
	return nil
}

func (d *DynamoDraftStore) Delete(ctx context.Context, id string) error {
	_, err := d.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.key(id),
	})
	if err != nil {
		return fmt.Errorf("deleting brief session from DynamoDB: %w", err)
	}
	return nil
}
