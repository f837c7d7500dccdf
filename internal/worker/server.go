package worker

import (
	"context"

	"github.com/phistudioco/holdingmanager-sub001/internal/worker/handlers"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(
	redisOpt asynq.RedisConnOpt,
	scanner handlers.AlertScanner,
	concurrency int,
	logger *zap.Logger,
) *Server {
	if concurrency <= 0 {
		concurrency = 2
	}
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueAlerts: 6,
				"default":         1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	alertHandler := handlers.NewAlertHandler(scanner, logger)
	mux.HandleFunc(tasks.TypeAlertScan, alertHandler.HandleAlertScan)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
