package model

// Stats are the aggregate counts over a collection.
type Stats struct {
	Success int `json:"successCount"`
	Failed  int `json:"failCount"`
	Pending int `json:"pendingCount"`
}

// Total returns the number of items counted.
func (s Stats) Total() int {
	return s.Success + s.Failed + s.Pending
}

// ComputeStats counts items by status bucket. Anything that is not success
// or failed is pending.
func ComputeStats(items []Item) Stats {
	var s Stats
	for _, it := range items {
		switch it.Status.Bucket() {
		case BucketSuccess:
			s.Success++
		case BucketFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}
