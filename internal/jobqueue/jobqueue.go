package jobqueue

import (
	"context"
	"fmt"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

type Config struct {
	MaxWorkers int
}

// JobQueue runs background jobs on River, backed by the application database.
type JobQueue struct {
	client *river.Client[pgx.Tx]
}

func NewJobQueue(pool *pgxpool.Pool, cfg Config, pushWorker *PushNotificationWorker) (*JobQueue, error) {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, pushWorker)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}

	return &JobQueue{client: client}, nil
}

func (q *JobQueue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

func (q *JobQueue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}

// EnqueueMessagePush queues one push job per recipient of message.
func (q *JobQueue) EnqueueMessagePush(ctx context.Context, message *models.Message, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	params := make([]river.InsertManyParams, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		params = append(params, river.InsertManyParams{Args: pushArgsFor(message, recipientID)})
	}

	if _, err := q.client.InsertMany(ctx, params); err != nil {
		return fmt.Errorf("queue push notifications: %w", err)
	}
	return nil
}

// Migrate applies River's own schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
