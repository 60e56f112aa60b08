package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vidyaguide/internal/domain"
)

const (
	pkPrefixConv = "CONV#"
	skPrefixMsg  = "MSG#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour

	// fixed-width so the sort key orders lexically by time
	skTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// dynamodbAPI is the subset of *dynamodb.Client used here.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores chat exchanges in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func convPK(conversationID string) string {
	return pkPrefixConv + conversationID
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(skTimeLayout)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// SaveExchange writes the exchange and bumps the conversation's META# counter
// in one transaction. A zero CreatedAt is replaced with the current time.
func (c *Client) SaveExchange(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.ConversationID) == "" {
		return errors.New("repository: SaveExchange: conversation id is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = c.now()
	}
	ttl := strconv.FormatInt(c.ttlValue(), 10)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                exchangeItem(ex, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: convPK(ex.ConversationID)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression: aws.String("SET conversationId = :cid, lastActivity = :la, #ttl = :ttl ADD exchanges :one"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":cid": &types.AttributeValueMemberS{Value: ex.ConversationID},
						":la":  &types.AttributeValueMemberS{Value: ex.CreatedAt.UTC().Format(time.RFC3339)},
						":ttl": &types.AttributeValueMemberN{Value: ttl},
						":one": &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// GetExchanges returns up to limit of the most recent exchanges, oldest first.
func (c *Client) GetExchanges(ctx context.Context, conversationID string, limit int) ([]domain.Exchange, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so the limit keeps the latest exchanges.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetExchanges query: %w", err)
	}

	exchanges := make([]domain.Exchange, 0, len(out.Items))
	for _, item := range out.Items {
		ex, err := itemToExchange(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetExchanges unmarshal: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}
	return exchanges, nil
}

// GetMeta returns the conversation's aggregate record; found is false when
// the conversation has never been written.
func (c *Client) GetMeta(ctx context.Context, conversationID string) (meta domain.ConversationMeta, found bool, err error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationMeta{}, false, fmt.Errorf("repository: GetMeta get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationMeta{}, false, nil
	}

	count, err := intAttr(out.Item, "exchanges")
	if err != nil {
		return domain.ConversationMeta{}, false, fmt.Errorf("repository: GetMeta decode exchanges: %w", err)
	}
	meta = domain.ConversationMeta{ConversationID: conversationID, Exchanges: count}
	if la, err := strAttr(out.Item, "lastActivity"); err == nil {
		meta.LastActivity, _ = time.Parse(time.RFC3339, la)
	}
	return meta, true, nil
}

func exchangeItem(ex domain.Exchange, ttl string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(ex.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(ex.CreatedAt)},
		"conversationId": &types.AttributeValueMemberS{Value: ex.ConversationID},
		"message":        &types.AttributeValueMemberS{Value: ex.Message},
		"reply":          &types.AttributeValueMemberS{Value: ex.Reply},
		"createdAt":      &types.AttributeValueMemberS{Value: ex.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: ttl},
	}
}

func itemToExchange(item map[string]types.AttributeValue) (domain.Exchange, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Exchange{}, err
	}
	message, err := strAttr(item, "message")
	if err != nil {
		return domain.Exchange{}, err
	}
	reply, _ := strAttr(item, "reply") // allow empty

	var createdAt time.Time
	if raw, err := strAttr(item, "createdAt"); err == nil {
		createdAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Exchange{}, fmt.Errorf("repository: parse createdAt: %w", err)
		}
	}

	return domain.Exchange{
		ConversationID: strings.TrimPrefix(pk, pkPrefixConv),
		Message:        message,
		Reply:          reply,
		CreatedAt:      createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
