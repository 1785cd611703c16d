// Package tasks 定义了后台任务的类型和载荷构造函数。
package tasks

import (
	"github.com/hibiken/asynq"
)

// TypePresenceReconcile 是在线状态对账任务的类型名。
// 由 scheduler 周期性入队，清理 "行还在、连接已不在" 的陈旧成员关系。
const TypePresenceReconcile = "presence:reconcile"

// NewPresenceReconcileTask 创建在线状态对账任务。
// 任务无载荷：worker 每次都对全量成员关系做一遍核对。
func NewPresenceReconcileTask() *asynq.Task {
	return asynq.NewTask(TypePresenceReconcile, nil)
}
