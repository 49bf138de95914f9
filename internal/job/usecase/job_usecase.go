package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	jobdomain "deskmail-backend/internal/job/domain"
	jobrepo "deskmail-backend/internal/job/repository"
	threaddomain "deskmail-backend/internal/thread/domain"
)

// TriageRetrier re-runs a failed triage classification.
type TriageRetrier interface {
	RetryTriage(ctx context.Context, tenantID, threadID string) error
}

// MailboxSyncer runs deferred mailbox syncs.
type MailboxSyncer interface {
	SyncRecent(ctx context.Context, tenantID, mailboxID string) ([]*threaddomain.Thread, error)
	SyncFull(ctx context.Context, tenantID, mailboxID string) ([]*threaddomain.Thread, error)
	SyncIncremental(ctx context.Context, tenantID, mailboxID string) ([]*threaddomain.Thread, error)
}

// Runner drains the job queue on demand. There is no scheduler and no
// backoff: a failed job keeps its error recorded and is attempted again on
// every subsequent drain until it succeeds or is removed.
type Runner struct {
	jobs   jobrepo.JobRepository
	triage TriageRetrier
	syncer MailboxSyncer
}

func NewRunner(jobs jobrepo.JobRepository, triage TriageRetrier, syncer MailboxSyncer) *Runner {
	return &Runner{jobs: jobs, triage: triage, syncer: syncer}
}

// Drain runs up to limit queued jobs for the tenant, oldest first, and
// returns how many it picked up. Individual job failures are recorded on the
// job, not returned.
func (r *Runner) Drain(ctx context.Context, tenantID string, limit int) (int, error) {
	queued, err := r.jobs.ListQueued(tenantID, limit)
	if err != nil {
		return 0, fmt.Errorf("list queued jobs: %w", err)
	}
	for _, job := range queued {
		job.Status = jobdomain.StatusRunning
		job.Attempts++
		job.UpdatedAt = time.Now().UTC()
		if err := r.jobs.Update(job); err != nil {
			return 0, fmt.Errorf("mark job %s running: %w", job.ID, err)
		}

		runErr := r.run(ctx, job)
		if runErr != nil {
			log.Printf("[Jobs] job %s (%s) failed: %v", job.ID, job.Type, runErr)
			job.Status = jobdomain.StatusFailed
			job.LastError = runErr.Error()
		} else {
			job.Status = jobdomain.StatusCompleted
			job.LastError = ""
		}
		job.UpdatedAt = time.Now().UTC()
		if err := r.jobs.Update(job); err != nil {
			return 0, fmt.Errorf("finalize job %s: %w", job.ID, err)
		}
	}
	return len(queued), nil
}

func (r *Runner) run(ctx context.Context, job *jobdomain.Job) error {
	switch job.Type {
	case jobdomain.TypeAIRetry:
		if job.Payload[jobdomain.PayloadAction] != jobdomain.ActionTriage {
			return fmt.Errorf("unknown ai_retry action %q", job.Payload[jobdomain.PayloadAction])
		}
		threadID := job.Payload[jobdomain.PayloadThreadID]
		if threadID == "" {
			return fmt.Errorf("ai_retry job %s has no thread id", job.ID)
		}
		return r.triage.RetryTriage(ctx, job.TenantID, threadID)
	case jobdomain.TypeSync:
		mailboxID := job.Payload[jobdomain.PayloadMailbox]
		if mailboxID == "" {
			return fmt.Errorf("sync job %s has no mailbox", job.ID)
		}
		var err error
		switch mode := job.Payload[jobdomain.PayloadMode]; mode {
		case "full":
			_, err = r.syncer.SyncFull(ctx, job.TenantID, mailboxID)
		case "incremental":
			_, err = r.syncer.SyncIncremental(ctx, job.TenantID, mailboxID)
		case "", "recent":
			_, err = r.syncer.SyncRecent(ctx, job.TenantID, mailboxID)
		default:
			err = fmt.Errorf("unknown sync mode %q", mode)
		}
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
