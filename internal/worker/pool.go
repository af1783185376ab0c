package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studytrack-backend/internal/models"
	"studytrack-backend/internal/services"
)

const (
	maxAttempts = 3
	lockTTL     = 10 * time.Minute
	popTimeout  = 30 * time.Second
)

type SessionGetter interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.StudySession, error)
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

// Pool runs calendar-sync jobs pushed onto redis by the API.
type Pool struct {
	redis       *redis.Client
	sessions    SessionGetter
	jobs        JobStore
	calendar    services.CalendarSyncer
	publisher   services.Publisher
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	sessions SessionGetter,
	jobs JobStore,
	calendar services.CalendarSyncer,
	publisher services.Publisher,
	workerCount int,
) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		sessions:    sessions,
		jobs:        jobs,
		calendar:    calendar,
		publisher:   publisher,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

// Queue is the producer side of the pool.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

// Enqueue pushes job onto the queue for its type.
func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return q.redis.LPush(ctx, JobQueueName(job.Type), payload).Err()
}

func (p *Pool) Start() {
	queues := []string{JobQueueName(models.JobCalendarSync)}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for them to finish their current job.
// Idle workers notice the signal once their BLPOP times out.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int, queues []string) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			continue // timeout or transient error
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue // another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		if message, err := p.run(ctx, &job); err != nil {
			p.handleFailure(ctx, &job, err)
		} else {
			p.handleSuccess(ctx, &job, message)
		}

		p.redis.Del(ctx, lockKey)
	}
}

// run executes job and returns the message reported to the user on success.
func (p *Pool) run(ctx context.Context, job *models.Job) (string, error) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, "processing"); err != nil {
		log.Printf("Job %s: failed to mark processing: %v", job.ID, err)
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     1,
			StepName: "Syncing with Google Calendar",
		},
	})

	switch job.Type {
	case models.JobCalendarSync:
		return p.processCalendarSync(ctx, job)
	default:
		return "", fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Pool) processCalendarSync(ctx context.Context, job *models.Job) (string, error) {
	if p.calendar == nil {
		return "", fmt.Errorf("google calendar is not configured")
	}

	session, err := p.sessions.GetForUser(ctx, job.ReferenceID, job.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to get study session: %w", err)
	}

	result := p.calendar.Sync(ctx, job.UserID, session)
	if !result.OK {
		return "", fmt.Errorf("calendar sync failed: %s", result.Message)
	}
	return result.Message, nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, message string) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, "completed"); err != nil {
		log.Printf("Job %s: failed to mark completed: %v", job.ID, err)
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: resultType(job.Type),
			Message:    message,
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < maxAttempts {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, "pending")
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		retry := *job
		queue := NewQueue(p.redis)
		time.AfterFunc(retryBackoff(job.RetryCount), func() {
			if err := queue.Enqueue(context.Background(), &retry); err != nil {
				log.Printf("Job %s: failed to requeue: %v", retry.ID, err)
			}
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, "failed")
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if p.publisher != nil {
		p.publisher.PublishUpdate(ctx, userID, msg)
	}
}

func retryBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func JobQueueName(jobType string) string {
	return "queue:" + jobType
}

func resultType(jobType string) string {
	switch jobType {
	case models.JobCalendarSync:
		return "study_session"
	default:
		return jobType
	}
}
