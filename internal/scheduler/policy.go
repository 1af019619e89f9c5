package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fleet-resource-manager/internal/models"
)

// Policy 准入策略
type Policy string

const (
	// PolicyCapacity 重叠预约的峰值占用加上候选需求不超过容量
	PolicyCapacity Policy = "capacity"
	// PolicyHeadroom 容量有余量即准入；余量耗尽时任何重叠都拒绝
	PolicyHeadroom Policy = "headroom"
)

// ParsePolicy 解析配置中的策略名，空串为 capacity
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyCapacity:
		return PolicyCapacity, nil
	case PolicyHeadroom:
		return PolicyHeadroom, nil
	}
	return "", fmt.Errorf("unknown admission policy %q", s)
}

// admit 对候选区间 [start, end] 做准入判断
// overlapping 只包含与候选区间重叠的 scheduled 预约
func (p Policy) admit(capacity, required int, overlapping []models.SubareaReservation, start, end time.Time) bool {
	switch p {
	case PolicyHeadroom:
		if capacity-required > 0 {
			return true
		}
		return len(overlapping) == 0
	default:
		return peakLoad(overlapping, start, end)+required <= capacity
	}
}

type loadEvent struct {
	at    time.Time
	delta int
}

// peakLoad 计算区间 [start, end] 内任一时刻的最大并发占用（闭区间，端点相接也计入）
func peakLoad(reservations []models.SubareaReservation, start, end time.Time) int {
	events := make([]loadEvent, 0, 2*len(reservations))
	for _, r := range reservations {
		from, to := r.StartTime, r.EndTime
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if to.Before(from) {
			continue
		}
		events = append(events,
			loadEvent{at: from, delta: r.RequiredCapacity},
			loadEvent{at: to, delta: -r.RequiredCapacity},
		)
	}

	// 同一时刻先加后减
	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta > events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})

	load, peak := 0, 0
	for _, e := range events {
		load += e.delta
		if load > peak {
			peak = load
		}
	}
	return peak
}
