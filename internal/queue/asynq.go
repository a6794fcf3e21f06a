package queue

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// AsynqClient implements Client on github.com/hibiken/asynq with Redis as
// the backing store, so scheduled reminders survive process restarts.
type AsynqClient struct {
	client *asynq.Client
}

func NewAsynqClient(redisAddr, redisPassword string) (*AsynqClient, error) {
	if redisAddr == "" {
		return nil, errors.New("asynq: redis address is required")
	}
	c := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword})
	return &AsynqClient{client: c}, nil
}

var _ Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t Task, opt EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}

	var opts []asynq.Option
	if opt.ProcessIn > 0 {
		opts = append(opts, asynq.ProcessIn(opt.ProcessIn))
	}
	if opt.Queue != "" {
		opts = append(opts, asynq.Queue(opt.Queue))
	}
	if opt.MaxRetry != 0 {
		retry := opt.MaxRetry
		if retry < 0 {
			retry = 0
		}
		opts = append(opts, asynq.MaxRetry(retry))
	}

	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), opts...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// AsynqServer implements Server. The API process runs one of these
// alongside the HTTP server so reminders are picked up without a separate
// worker deployment.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewAsynqServer(redisAddr, redisPassword string, log zerolog.Logger) (*AsynqServer, error) {
	if redisAddr == "" {
		return nil, errors.New("asynq: redis address is required")
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword},
		asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{"default": 1, "chat": 2},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Str("task", task.Type()).Err(err).Msg("task handler failed")
			}),
		},
	)
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

var _ Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the server and blocks until the context is canceled, then
// shuts down gracefully.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}
