package ingestion

import (
	"context"
	"fmt"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

// Publisher enqueues ingestion jobs for the worker and records them as
// pending in the job store.
type Publisher struct {
	queue  queueClient
	jobs   JobTracker
	logger *logging.Logger
}

func NewPublisher(queue queueClient, jobs JobTracker, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("ingestion: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// Enqueue validates job, persists a pending record when a job store is
// configured and publishes it. It returns the job id.
func (p *Publisher) Enqueue(ctx context.Context, job Job) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}
	payload, body, err := encodePayload(queuePayload{Job: job, TrackStatus: p.jobs != nil})
	if err != nil {
		return "", err
	}

	if p.jobs != nil {
		record := &JobRecord{
			JobID:    payload.ID,
			CoachID:  job.CoachID,
			FileID:   job.FileID,
			Filename: job.Filename,
			FileURL:  job.FileURL,
		}
		if err := p.jobs.PutPending(ctx, record); err != nil {
			return "", err
		}
	}

	if err := p.queue.Send(ctx, body); err != nil {
		if p.jobs != nil {
			if markErr := p.jobs.MarkFailed(ctx, payload.ID, "enqueue failed"); markErr != nil {
				p.logger.Error("failed to mark unqueued job", "job_id", payload.ID, "error", markErr)
			}
		}
		return "", fmt.Errorf("ingestion: failed to enqueue job: %w", err)
	}

	p.logger.Debug("ingestion job enqueued", "job_id", payload.ID, "coach_id", job.CoachID, "filename", job.Filename)
	return payload.ID, nil
}
