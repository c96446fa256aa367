package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRewardAvailabilityAt(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	one := 1

	tests := []struct {
		name   string
		reward Reward
		want   RewardAvailability
	}{
		{"open", Reward{Active: true}, RewardRedeemable},
		{"inactive", Reward{Active: false}, RewardInactive},
		{"not started", Reward{Active: true, ValidFrom: &future}, RewardNotStarted},
		{"ended", Reward{Active: true, ValidUntil: &past}, RewardEnded},
		{"cap reached", Reward{Active: true, MaxRedemptions: &one, CurrentRedemptions: 1}, RewardExhausted},
		{"inside window", Reward{Active: true, ValidFrom: &past, ValidUntil: &future, MaxRedemptions: &one}, RewardRedeemable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reward.AvailabilityAt(now))
		})
	}
}
