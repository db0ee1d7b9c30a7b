package scoring

import (
	"sort"
	"time"

	"newsintel/internal/domain/entity"
)

// Ranked is an admitted article annotated for presentation.
type Ranked struct {
	Article  *entity.Article
	Priority float64
	Urgency  entity.Bucket
	Action   entity.Action
}

// Select admits articles against p at time now and orders the survivors by
// descending priority. Ties keep key order so the result is deterministic.
func Select(articles []*entity.Article, p entity.Profile, w entity.PriorityWeights, now time.Time) []Ranked {
	out := make([]Ranked, 0, len(articles))
	for _, a := range articles {
		if a == nil || !AdmitAt(a, p, now) {
			continue
		}
		out = append(out, Ranked{
			Article:  a,
			Priority: Priority(a, w),
			Urgency:  UrgencyBucket(a),
			Action:   SuggestAction(a),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Article.Key < out[j].Article.Key
	})
	return out
}
