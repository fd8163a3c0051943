package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

type mockDynamo struct {
	putInput     *dynamodb.PutItemInput
	putErr       error
	updateInputs []*dynamodb.UpdateItemInput
	updateErr    error
	getOutput    *dynamodb.GetItemOutput
	getErr       error
}

func (m *mockDynamo) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, input)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func TestJobStorePutPendingPersistsDefaults(t *testing.T) {
	mock := &mockDynamo{}
	store := NewJobStore(mock, "ingestion_jobs", logging.Default())

	job := &JobRecord{JobID: "job-123", CoachID: "coach-1", Filename: "a.pdf", FileURL: "https://x/a.pdf"}
	if err := store.PutPending(context.Background(), job); err != nil {
		t.Fatalf("PutPending returned error: %v", err)
	}
	if mock.putInput == nil {
		t.Fatal("expected PutItem to be called")
	}

	var stored JobRecord
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored job: %v", err)
	}
	if stored.Status != JobStatusPending || stored.CoachID != "coach-1" {
		t.Fatalf("unexpected stored job %+v", stored)
	}
	if stored.CreatedAt == "" || stored.UpdatedAt == "" {
		t.Fatal("expected timestamps to be populated")
	}
	if stored.ExpiresAt <= time.Now().Unix() {
		t.Fatal("expected TTL in the future")
	}
	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(jobId)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %v", expr)
	}
}

func TestJobStorePutPendingNilJob(t *testing.T) {
	store := NewJobStore(&mockDynamo{}, "ingestion_jobs", nil)
	if err := store.PutPending(context.Background(), nil); err == nil {
		t.Fatal("expected error when job is nil")
	}
}

func TestJobStoreMarkCompleted(t *testing.T) {
	mock := &mockDynamo{}
	store := NewJobStore(mock, "ingestion_jobs", nil)

	if err := store.MarkCompleted(context.Background(), "job-123", Result{IngestionID: "ing-1", ChunksCreated: 4, TotalChars: 3200}); err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}
	if len(mock.updateInputs) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(mock.updateInputs))
	}
	update := mock.updateInputs[0]
	if update.ExpressionAttributeNames["#status"] != "status" || update.ExpressionAttributeNames["#error"] != "errorMessage" {
		t.Fatalf("expected reserved attribute names to be aliased, got %v", update.ExpressionAttributeNames)
	}
	if status := update.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value; status != string(JobStatusCompleted) {
		t.Fatalf("expected completed status, got %s", status)
	}
	if _, ok := update.ExpressionAttributeValues[":result"].(*types.AttributeValueMemberM); !ok {
		t.Fatalf("expected marshalled result, got %T", update.ExpressionAttributeValues[":result"])
	}
}

func TestJobStoreMarkFailed(t *testing.T) {
	mock := &mockDynamo{}
	store := NewJobStore(mock, "ingestion_jobs", nil)

	if err := store.MarkFailed(context.Background(), "job-123", "boom"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	update := mock.updateInputs[0]
	if _, ok := update.ExpressionAttributeValues[":result"].(*types.AttributeValueMemberNULL); !ok {
		t.Fatalf("expected result to be NULL, got %T", update.ExpressionAttributeValues[":result"])
	}

	mock.updateErr = errors.New("dynamo failed")
	if err := store.MarkFailed(context.Background(), "job-1", "x"); err == nil || !strings.Contains(err.Error(), "dynamo failed") {
		t.Fatalf("expected dynamo error, got %v", err)
	}
}

func TestJobStoreGetJob(t *testing.T) {
	mock := &mockDynamo{getOutput: &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"jobId":  &types.AttributeValueMemberS{Value: "job-42"},
			"status": &types.AttributeValueMemberS{Value: string(JobStatusPending)},
		},
	}}
	store := NewJobStore(mock, "ingestion_jobs", nil)

	job, err := store.GetJob(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if job.JobID != "job-42" || job.Status != JobStatusPending {
		t.Fatalf("unexpected job: %#v", job)
	}

	mock.getOutput = &dynamodb.GetItemOutput{}
	if _, err := store.GetJob(context.Background(), "job-42"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := store.GetJob(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty jobID")
	}
}
