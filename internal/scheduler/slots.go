package scheduler

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"contentpilot/internal/types"
)

// MinHistoricalRecords is the number of records a platform needs before its
// historical engagement replaces the default slot table.
const MinHistoricalRecords = 20

const (
	engagementWeight = 0.6
	reachWeight      = 0.4

	defaultScoreBase   = 80.0
	defaultScoreJitter = 15.0
)

// slotTable is the fixed set of days and hours considered good for a
// platform when no history exists. Every (day, hour) pair is a candidate.
type slotTable struct {
	days  []time.Weekday
	hours []int
}

// defaultSlots holds the industry-average posting windows per platform.
// Platforms missing from the table use Instagram's entry.
var defaultSlots = map[types.Platform]slotTable{
	types.PlatformInstagram: {
		days:  []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday},
		hours: []int{11, 14, 19},
	},
	types.PlatformFacebook: {
		days:  []time.Weekday{time.Wednesday, time.Thursday, time.Friday},
		hours: []int{9, 13, 15},
	},
	types.PlatformYouTube: {
		days:  []time.Weekday{time.Thursday, time.Friday, time.Saturday},
		hours: []int{12, 15, 17},
	},
	types.PlatformWordPress: {
		days:  []time.Weekday{time.Monday, time.Tuesday, time.Thursday},
		hours: []int{8, 10, 14},
	},
	types.PlatformTwitter: {
		days:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		hours: []int{9, 12, 17},
	},
	types.PlatformLinkedIn: {
		days:  []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday},
		hours: []int{8, 10, 12},
	},
	types.PlatformTikTok: {
		days:  []time.Weekday{time.Tuesday, time.Thursday, time.Friday},
		hours: []int{9, 12, 19},
	},
}

func slotsFor(platform types.Platform) slotTable {
	if t, ok := defaultSlots[platform]; ok {
		return t
	}
	return defaultSlots[types.PlatformInstagram]
}

// rankHistorical scores every record of the platform by weighted engagement
// and reach.
func rankHistorical(platform types.Platform, records []types.HistoricalPerformance) []types.OptimalTime {
	out := make([]types.OptimalTime, 0, len(records))
	for _, r := range records {
		out = append(out, types.OptimalTime{
			DayOfWeek: r.DayOfWeek,
			Hour:      r.Hour,
			Platform:  platform,
			Score:     r.AvgEngagement*engagementWeight + r.AvgReach*reachWeight,
			Reason: fmt.Sprintf("Based on %d historical posts with %.2f%% avg engagement",
				r.PostCount, r.AvgEngagement),
		})
	}
	return out
}

// DefaultSlotReason explains every slot ranked from the default table.
const DefaultSlotReason = "Industry best-practice timing (not personalized)"

// rankDefaults scores the default table with a jittered score in [80, 95).
// jitter must return the same value for the same slot on every call.
func rankDefaults(platform types.Platform, jitter func(day time.Weekday, hour int) float64) []types.OptimalTime {
	table := slotsFor(platform)
	out := make([]types.OptimalTime, 0, len(table.days)*len(table.hours))
	for _, day := range table.days {
		for _, hour := range table.hours {
			out = append(out, types.OptimalTime{
				DayOfWeek: day,
				Hour:      hour,
				Platform:  platform,
				Score:     defaultScoreBase + jitter(day, hour)*defaultScoreJitter,
				Reason:    DefaultSlotReason,
			})
		}
	}
	return out
}

// slotJitter returns a value in [0, 1) derived only from seed and the slot,
// so a scheduler ranks its default table identically on every query.
func slotJitter(seed uint64, platform types.Platform, day time.Weekday, hour int) float64 {
	key := xxhash.Sum64String(fmt.Sprintf("%s/%d/%d", platform, day, hour))
	return rand.New(rand.NewPCG(seed, key)).Float64()
}

// sortByScore orders slots by descending score. Ties fall back to the
// earlier hour and then the earlier weekday so rankings are deterministic.
func sortByScore(slots []types.OptimalTime) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.DayOfWeek < b.DayOfWeek
	})
}
