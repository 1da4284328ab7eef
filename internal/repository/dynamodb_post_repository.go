package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/klass-lk/postboard/internal/model"
	"go.uber.org/zap"
)

// postPartition is the single partition every post lives in. Sort keys are
// UUIDv7 ids, so a descending query returns the newest post first.
const postPartition = "POST"

type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type postItem struct {
	PK        string  `dynamodbav:"pk"`
	SK        string  `dynamodbav:"sk"`
	Title     string  `dynamodbav:"title"`
	Content   string  `dynamodbav:"content"`
	Author    string  `dynamodbav:"author"`
	ImageURL  *string `dynamodbav:"imageUrl,omitempty"`
	CreatedAt int64   `dynamodbav:"createdAt"`
	UpdatedAt int64   `dynamodbav:"updatedAt"`
}

func (i postItem) toPost() model.Post {
	return model.Post{
		ID:        i.SK,
		Title:     i.Title,
		Content:   i.Content,
		Author:    i.Author,
		ImageURL:  i.ImageURL,
		CreatedAt: time.UnixMilli(i.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(i.UpdatedAt).UTC(),
	}
}

type DynamoDBPostRepository struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBPostRepository(client DynamoDBAPI, tableName string) *DynamoDBPostRepository {
	return &DynamoDBPostRepository{
		client:    client,
		tableName: tableName,
	}
}

// EnsureTable creates the posts table when it does not exist yet.
func (r *DynamoDBPostRepository) EnsureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	if err == nil {
		return nil
	}
	var notFoundEx *types.ResourceNotFoundException
	if !errors.As(err, &notFoundEx) {
		return fmt.Errorf("describe table %s: %w", r.tableName, err)
	}

	zap.L().Info("DynamoDB table does not exist, creating it", zap.String("table", r.tableName))
	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", r.tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(r.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)}, time.Minute)
}

func (r *DynamoDBPostRepository) Insert(ctx context.Context, post model.Post) (model.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id, err := uuid.NewV7()
	if err != nil {
		return model.Post{}, err
	}
	ts := now(time.Millisecond)
	post.ID = id.String()
	post.CreatedAt = ts
	post.UpdatedAt = ts

	item, err := attributevalue.MarshalMap(postItem{
		PK:        postPartition,
		SK:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Author:    post.Author,
		ImageURL:  post.ImageURL,
		CreatedAt: ts.UnixMilli(),
		UpdatedAt: ts.UnixMilli(),
	})
	if err != nil {
		return model.Post{}, err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	})
	if err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (r *DynamoDBPostRepository) FindAll(ctx context.Context) ([]model.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	results := []model.Post{}
	var startKey map[string]types.AttributeValue
	for {
		output, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: postPartition},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}

		var items []postItem
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			results = append(results, item.toPost())
		}

		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	SortNewestFirst(results)
	return results, nil
}

func (r *DynamoDBPostRepository) FindByID(ctx context.Context, id string) (model.Post, error) {
	if err := validateUUID(id); err != nil {
		return model.Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       postKey(id),
	})
	if err != nil {
		return model.Post{}, err
	}
	if output.Item == nil {
		return model.Post{}, model.ErrPostNotFound
	}

	var item postItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return model.Post{}, err
	}
	return item.toPost(), nil
}

func (r *DynamoDBPostRepository) Update(ctx context.Context, id string, update model.PostUpdate) (model.Post, error) {
	if err := validateUUID(id); err != nil {
		return model.Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	names := map[string]string{"#updatedAt": "updatedAt"}
	values := map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now(time.Millisecond).UnixMilli())},
	}
	sets := []string{"#updatedAt = :updatedAt"}
	addSet := func(field string, value *string) {
		if value == nil {
			return
		}
		names["#"+field] = field
		values[":"+field] = &types.AttributeValueMemberS{Value: *value}
		sets = append(sets, fmt.Sprintf("#%s = :%s", field, field))
	}
	addSet("title", update.Title)
	addSet("content", update.Content)
	addSet("author", update.Author)

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       postKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(sk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return model.Post{}, translateDynamoError(err)
	}

	var item postItem
	if err := attributevalue.UnmarshalMap(output.Attributes, &item); err != nil {
		return model.Post{}, err
	}
	return item.toPost(), nil
}

func (r *DynamoDBPostRepository) Delete(ctx context.Context, id string) (model.Post, error) {
	if err := validateUUID(id); err != nil {
		return model.Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 postKey(id),
		ConditionExpression: aws.String("attribute_exists(sk)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		return model.Post{}, translateDynamoError(err)
	}

	var item postItem
	if err := attributevalue.UnmarshalMap(output.Attributes, &item); err != nil {
		return model.Post{}, err
	}
	return item.toPost(), nil
}

func postKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: postPartition},
		"sk": &types.AttributeValueMemberS{Value: id},
	}
}

func validateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.ErrInvalidID
	}
	return nil
}

func translateDynamoError(err error) error {
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return model.ErrPostNotFound
	}
	return err
}
