package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/trelloplus/bot-server-go/internal/config"
)

// Task deletes stale rows and reports how many went away.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// CleanupJob runs its tasks on a cron schedule such as "@every 1h" or
// "0 4 * * *".
type CleanupJob struct {
	cron    *cron.Cron
	tasks   []Task
	timeout time.Duration
}

func NewCleanupJob(schedule string, tasks ...Task) (*CleanupJob, error) {
	j := &CleanupJob{
		cron:    cron.New(),
		tasks:   tasks,
		timeout: config.CleanupTimeout,
	}
	if _, err := j.cron.AddFunc(schedule, j.cleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the tasks once and then on schedule.
func (j *CleanupJob) Start() {
	go j.cleanup()
	j.cron.Start()
	log.Info().Int("tasks", len(j.tasks)).Msg("cleanup job started")
}

// Stop waits for a running cleanup to finish.
func (j *CleanupJob) Stop() {
	<-j.cron.Stop().Done()
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	for _, task := range j.tasks {
		j.runCleanup(ctx, task)
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, task Task) {
	count, err := task.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", task.Name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", task.Name)
	}
}
