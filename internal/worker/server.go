// Package worker 封装了 asynq 后台任务的 worker 服务。
package worker

import (
	"context"

	"multiroom-chat/internal/repository"
	"multiroom-chat/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// WorkerServer 包装 asynq.Server，负责后台任务的消费。
type WorkerServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorkerServer 创建并配置 WorkerServer 实例。
func NewWorkerServer(redisOpt asynq.RedisClientOpt, membershipRepo repository.MembershipRepository, liveness LivenessChecker) *WorkerServer {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithError(err).WithField("task_type", task.Type()).Error("Asynq task processing failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypePresenceReconcile, NewPresenceReconcileHandler(membershipRepo, liveness))

	return &WorkerServer{server: server, mux: mux}
}

// Start 启动 worker (非阻塞)。
func (w *WorkerServer) Start() error {
	logrus.Info("Starting asynq worker server...")
	return w.server.Start(w.mux)
}

// Shutdown 优雅停止 worker，等待进行中的任务完成。
func (w *WorkerServer) Shutdown() {
	logrus.Info("Shutting down asynq worker server...")
	w.server.Shutdown()
}
