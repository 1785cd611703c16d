package worker

import (
	"context"
	"time"

	"multiroom-chat/internal/repository"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// reconcileGracePeriod 是新成员关系免于对账的保护期。
// 刚加入的行可能对应一条还在注册路上的连接，不应立即清理。
const reconcileGracePeriod = 2 * time.Minute

// LivenessChecker 报告某用户是否有存活连接订阅着某房间。
// 由 Hub 实现。
type LivenessChecker interface {
	IsMemberLive(userID, roomID uint) bool
}

// PresenceReconcileHandler 处理在线状态对账任务。
// 正常路径下 Leave/断连清理已经删除了成员关系行；这里兜底处理
// 清理失败 (例如离开时数据库抖动) 遗留的陈旧行，使持久化的
// 在线人数最终回到与存活连接一致。
type PresenceReconcileHandler struct {
	membershipRepo repository.MembershipRepository
	liveness       LivenessChecker
}

// NewPresenceReconcileHandler 创建 PresenceReconcileHandler 实例
func NewPresenceReconcileHandler(membershipRepo repository.MembershipRepository, liveness LivenessChecker) *PresenceReconcileHandler {
	if membershipRepo == nil {
		panic("MembershipRepository cannot be nil for PresenceReconcileHandler")
	}
	if liveness == nil {
		panic("LivenessChecker cannot be nil for PresenceReconcileHandler")
	}
	return &PresenceReconcileHandler{membershipRepo: membershipRepo, liveness: liveness}
}

// ProcessTask 实现 asynq.Handler。
func (h *PresenceReconcileHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	log := logrus.WithField("task", "presence:reconcile")

	rows, err := h.membershipRepo.FindAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load memberships for reconciliation")
		return err
	}

	now := time.Now()
	removed := 0
	for _, row := range rows {
		if now.Sub(row.EnteredAt) < reconcileGracePeriod {
			continue
		}
		if h.liveness.IsMemberLive(row.UserID, row.RoomID) {
			continue
		}
		if err := h.membershipRepo.Delete(ctx, row.UserID, row.RoomID); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"user_id": row.UserID,
				"room_id": row.RoomID,
			}).Warn("Failed to delete stale membership, will retry next run")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.WithField("removed", removed).Info("Reconciled stale room memberships")
	} else {
		log.Debug("Presence reconciliation found nothing to clean")
	}
	return nil
}
