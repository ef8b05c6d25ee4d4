package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

type fakeDynamo struct {
	queryPages  []*dynamodb.QueryOutput
	queryErr    error
	transactErr error
	updateOut   *dynamodb.UpdateItemOutput
	updateErr   error
	queryInputs []*dynamodb.QueryInput
	lastWrite   *dynamodb.TransactWriteItemsInput
	lastUpdate  *dynamodb.UpdateItemInput
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastWrite = in
	return &dynamodb.TransactWriteItemsOutput{}, f.transactErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	cp := *in
	f.queryInputs = append(f.queryInputs, &cp)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queryPages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	page := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return page, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	return f.updateOut, f.updateErr
}

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func mustNew(t *testing.T, f *fakeDynamo) *ConversationStore {
	t.Helper()
	s, err := New(f, "engagement")
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "engagement")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestAppendMessage_WritesMessageAndIDGuard(t *testing.T) {
	f := &fakeDynamo{}
	s := mustNew(t, f)

	err := s.AppendMessage(context.Background(), models.Message{
		ID: "m1", LeadID: "lead-1", Seq: 7, Direction: models.DirectionInbound, Body: "hola", Timestamp: t0,
	})
	require.NoError(t, err)
	require.NotNil(t, f.lastWrite)
	require.Len(t, f.lastWrite.TransactItems, 2)

	guard := f.lastWrite.TransactItems[0].Put
	require.Equal(t, "engagement", aws.ToString(guard.TableName))
	require.Equal(t, "LEAD#lead-1", guard.Item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "MSGID#m1", guard.Item["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", aws.ToString(guard.ConditionExpression))

	msg := f.lastWrite.TransactItems[1].Put
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", aws.ToString(msg.ConditionExpression))
	require.Equal(t, "LEAD#lead-1", msg.Item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "MSG#00000000000000000007", msg.Item["SK"].(*types.AttributeValueMemberS).Value)
	_, hasRead := msg.Item["read_at"]
	require.False(t, hasRead)
}

func TestAppendMessage_RepeatedIDIsDuplicate(t *testing.T) {
	f := &fakeDynamo{transactErr: &types.TransactionCanceledException{
		Message: aws.String("canceled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	}}
	s := mustNew(t, f)

	err := s.AppendMessage(context.Background(), models.Message{ID: "m1", LeadID: "l", Seq: 2, Timestamp: t0})
	require.ErrorIs(t, err, models.ErrDuplicate)
}

func TestAppendMessage_PropagatesError(t *testing.T) {
	f := &fakeDynamo{transactErr: errors.New("boom")}
	s := mustNew(t, f)
	err := s.AppendMessage(context.Background(), models.Message{ID: "m1", LeadID: "l", Timestamp: t0})
	require.ErrorContains(t, err, "boom")
	require.NotErrorIs(t, err, models.ErrDuplicate)
}

func TestGetMessages_FollowsPagination(t *testing.T) {
	read := t0.Add(time.Hour)
	first := messageItem(models.Message{ID: "m1", LeadID: "l", Seq: 1, Direction: models.DirectionInbound, Timestamp: t0})
	second := messageItem(models.Message{ID: "m2", LeadID: "l", Seq: 2, Direction: models.DirectionOutbound, Timestamp: t0.Add(time.Minute), ReadAt: &read})
	f := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{first}, LastEvaluatedKey: map[string]types.AttributeValue{"PK": first["PK"], "SK": first["SK"]}},
		{Items: []map[string]types.AttributeValue{second}},
	}}
	s := mustNew(t, f)

	msgs, err := s.GetMessages(context.Background(), "l")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, int64(2), msgs[1].Seq)
	require.NotNil(t, msgs[1].ReadAt)
	require.True(t, msgs[1].ReadAt.Equal(read))
	require.True(t, msgs[0].Timestamp.Equal(t0))

	require.Len(t, f.queryInputs, 2)
	require.Nil(t, f.queryInputs[0].ExclusiveStartKey)
	require.NotNil(t, f.queryInputs[1].ExclusiveStartKey)
	require.True(t, aws.ToBool(f.queryInputs[0].ScanIndexForward))
}

func TestGetMessages_BadItem(t *testing.T) {
	f := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		{"PK": &types.AttributeValueMemberS{Value: "LEAD#l"}},
	}}}}
	s := mustNew(t, f)
	_, err := s.GetMessages(context.Background(), "l")
	require.ErrorContains(t, err, "unmarshal")
}

func TestMarkRead_UpdatesOutbound(t *testing.T) {
	read := t0.Add(2 * time.Hour)
	out := models.Message{ID: "m2", LeadID: "l", Seq: 2, Direction: models.DirectionOutbound, Timestamp: t0}
	updated := out
	updated.ReadAt = &read
	f := &fakeDynamo{
		queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
			messageItem(models.Message{ID: "m1", LeadID: "l", Seq: 1, Direction: models.DirectionInbound, Timestamp: t0}),
			messageItem(out),
		}}},
		updateOut: &dynamodb.UpdateItemOutput{Attributes: messageItem(updated)},
	}
	s := mustNew(t, f)

	m, err := s.MarkRead(context.Background(), "l", "m2", read)
	require.NoError(t, err)
	require.NotNil(t, m.ReadAt)
	require.True(t, m.ReadAt.Equal(read))
	require.Equal(t, "SET read_at = if_not_exists(read_at, :at)", aws.ToString(f.lastUpdate.UpdateExpression))
	require.Equal(t, "MSG#00000000000000000002", f.lastUpdate.Key["SK"].(*types.AttributeValueMemberS).Value)
}

func TestMarkRead_InboundIsIntegrityError(t *testing.T) {
	f := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		messageItem(models.Message{ID: "m1", LeadID: "l", Seq: 1, Direction: models.DirectionInbound, Timestamp: t0}),
	}}}}
	s := mustNew(t, f)
	_, err := s.MarkRead(context.Background(), "l", "m1", t0)
	require.True(t, engagement.IsDataIntegrityError(err))
	require.Nil(t, f.lastUpdate)
}

func TestMarkRead_Unknown(t *testing.T) {
	s := mustNew(t, &fakeDynamo{})
	_, err := s.MarkRead(context.Background(), "l", "missing", t0)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMarkRead_ConditionFailedIsNotFound(t *testing.T) {
	f := &fakeDynamo{
		queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
			messageItem(models.Message{ID: "m2", LeadID: "l", Seq: 2, Direction: models.DirectionOutbound, Timestamp: t0}),
		}}},
		updateErr: &types.ConditionalCheckFailedException{Message: aws.String("gone")},
	}
	s := mustNew(t, f)
	_, err := s.MarkRead(context.Background(), "l", "m2", t0)
	require.ErrorIs(t, err, models.ErrNotFound)
}
