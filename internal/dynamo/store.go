// Package dynamo stores lead conversations in a single DynamoDB table.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

const (
	skPrefixMsg   = "MSG#"
	skPrefixMsgID = "MSGID#"
)

// dynamodbAPI is the subset of the DynamoDB client the store calls.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// ConversationStore keeps one item per message under the lead's partition.
// Sort keys are zero-padded sequence numbers so a Query returns append order.
// A MSGID#<id> guard item next to each message makes ids unique per lead.
type ConversationStore struct {
	api       dynamodbAPI
	tableName string
}

func New(api dynamodbAPI, tableName string) (*ConversationStore, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamo: table name must not be empty")
	}
	return &ConversationStore{api: api, tableName: tableName}, nil
}

// Open builds a store from the default AWS credential chain.
func Open(ctx context.Context, tableName string) (*ConversationStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), tableName)
}

func leadPK(leadID string) string {
	return "LEAD#" + leadID
}

func msgSK(seq int64) string {
	return fmt.Sprintf("%s%020d", skPrefixMsg, seq)
}

func (s *ConversationStore) GetMessages(ctx context.Context, leadID string) ([]models.Message, error) {
	items, err := s.queryLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("dynamo: GetMessages: %w", err)
	}
	msgs := make([]models.Message, 0, len(items))
	for _, item := range items {
		m, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("dynamo: GetMessages unmarshal: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func msgIDSK(id string) string {
	return skPrefixMsgID + id
}

// AppendMessage writes the message and its id guard in one transaction, so a
// redelivered message id is rejected even though it carries a fresh sequence.
func (s *ConversationStore) AppendMessage(ctx context.Context, m models.Message) error {
	notExists := aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item: map[string]types.AttributeValue{
					"PK":  &types.AttributeValueMemberS{Value: leadPK(m.LeadID)},
					"SK":  &types.AttributeValueMemberS{Value: msgIDSK(m.ID)},
					"seq": &types.AttributeValueMemberN{Value: strconv.FormatInt(m.Seq, 10)},
				},
				ConditionExpression: notExists,
			}},
			{Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                messageItem(m),
				ConditionExpression: notExists,
			}},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) && len(canceled.CancellationReasons) > 0 &&
			aws.ToString(canceled.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			return fmt.Errorf("message %s for lead %s: %w", m.ID, m.LeadID, models.ErrDuplicate)
		}
		return fmt.Errorf("dynamo: AppendMessage %s: %w", m.ID, err)
	}
	return nil
}

// MarkRead sets read_at on an outbound message. An existing read_at is kept.
func (s *ConversationStore) MarkRead(ctx context.Context, leadID, messageID string, at time.Time) (models.Message, error) {
	items, err := s.queryLead(ctx, leadID)
	if err != nil {
		return models.Message{}, fmt.Errorf("dynamo: MarkRead: %w", err)
	}
	var target map[string]types.AttributeValue
	for _, item := range items {
		if id, _ := strAttr(item, "id"); id == messageID {
			target = item
			break
		}
	}
	if target == nil {
		return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	if dir, _ := strAttr(target, "direction"); dir != string(models.DirectionOutbound) {
		return models.Message{}, engagement.DataIntegrityError("read_receipt_on_inbound_message", nil)
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": target["PK"],
			"SK": target["SK"],
		},
		UpdateExpression:    aws.String("SET read_at = if_not_exists(read_at, :at)"),
		ConditionExpression: aws.String("attribute_exists(PK) AND direction = :out"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":  &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
			":out": &types.AttributeValueMemberS{Value: string(models.DirectionOutbound)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
		}
		return models.Message{}, fmt.Errorf("dynamo: MarkRead update: %w", err)
	}
	m, err := itemToMessage(out.Attributes)
	if err != nil {
		return models.Message{}, fmt.Errorf("dynamo: MarkRead unmarshal: %w", err)
	}
	return m, nil
}

func (s *ConversationStore) queryLead(ctx context.Context, leadID string) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: leadPK(leadID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}
	var items []map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func messageItem(m models.Message) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: leadPK(m.LeadID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(m.Seq)},
		"id":        &types.AttributeValueMemberS{Value: m.ID},
		"lead_id":   &types.AttributeValueMemberS{Value: m.LeadID},
		"seq":       &types.AttributeValueMemberN{Value: strconv.FormatInt(m.Seq, 10)},
		"direction": &types.AttributeValueMemberS{Value: string(m.Direction)},
		"body":      &types.AttributeValueMemberS{Value: m.Body},
		"sent_at":   &types.AttributeValueMemberS{Value: m.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
	if m.ReadAt != nil {
		item["read_at"] = &types.AttributeValueMemberS{Value: m.ReadAt.UTC().Format(time.RFC3339Nano)}
	}
	return item
}

func itemToMessage(item map[string]types.AttributeValue) (models.Message, error) {
	var m models.Message
	var err error
	if m.ID, err = strAttr(item, "id"); err != nil {
		return m, err
	}
	if m.LeadID, err = strAttr(item, "lead_id"); err != nil {
		return m, err
	}
	direction, err := strAttr(item, "direction")
	if err != nil {
		return m, err
	}
	m.Direction = models.Direction(direction)
	m.Body, _ = strAttr(item, "body")

	seq, ok := item["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return m, errors.New("attribute seq missing or not N")
	}
	if m.Seq, err = strconv.ParseInt(seq.Value, 10, 64); err != nil {
		return m, fmt.Errorf("attribute seq: %w", err)
	}

	if m.Timestamp, err = timeAttr(item, "sent_at"); err != nil {
		return m, err
	}
	if _, ok := item["read_at"]; ok {
		readAt, err := timeAttr(item, "read_at")
		if err != nil {
			return m, err
		}
		m.ReadAt = &readAt
	}
	return m, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("attribute %s missing", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %s is not S", key)
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	raw, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("attribute %s: %w", key, err)
	}
	return t, nil
}
