package service

import (
	"context"
	"time"

	"multiroom-chat/internal/repository"

	"github.com/sirupsen/logrus"
)

// PresenceService 维护每个房间当前活跃的用户集合并派生在线人数。
// 数据来源是持久化的 ActiveMembership 表；它只被查询，不主动推送，
// 推送由 Hub 在状态转换时触发。
type PresenceService struct {
	membershipRepo repository.MembershipRepository
}

// NewPresenceService 创建 PresenceService 实例。
func NewPresenceService(membershipRepo repository.MembershipRepository) *PresenceService {
	if membershipRepo == nil {
		panic("MembershipRepository cannot be nil for PresenceService")
	}
	return &PresenceService{membershipRepo: membershipRepo}
}

// MarkActive 将 (user, room) 标记为活跃。幂等：重复加入只刷新
// 进入时间，不会让人数翻倍。
func (s *PresenceService) MarkActive(ctx context.Context, userID, roomID uint) error {
	err := s.membershipRepo.Upsert(ctx, userID, roomID, time.Now())
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"room_id": roomID,
		}).Error("Failed to mark user active in room")
		return ErrInternalServer
	}
	return nil
}

// MarkInactive 删除 (user, room) 的活跃标记。幂等：重复离开是
// no-op 而不是错误，行不存在属于合法稳态。
func (s *PresenceService) MarkInactive(ctx context.Context, userID, roomID uint) error {
	err := s.membershipRepo.Delete(ctx, userID, roomID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"room_id": roomID,
		}).Error("Failed to mark user inactive in room")
		return ErrInternalServer
	}
	return nil
}

// ActiveCount 返回房间内拥有活跃成员关系的去重用户数。
func (s *PresenceService) ActiveCount(ctx context.Context, roomID uint) (int64, error) {
	count, err := s.membershipRepo.CountDistinctUsers(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to count active users")
		return 0, ErrInternalServer
	}
	return count, nil
}
