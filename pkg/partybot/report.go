package partybot

import "sort"

// ReportEntry is one aggregated catalog item with its distinct owner count.
type ReportEntry struct {
	// AppID is the Steam application identifier.
	AppID int64
	// Name is the first-seen display name for the item.
	Name string
	// OwnerCount is the number of distinct members owning the item.
	OwnerCount int
}

// Report ranks items by distinct owner count.
type Report []ReportEntry

// Aggregate combines per-member owned games into a ranked report.
//
// An item's first-seen display name is retained even when later payloads
// disagree. Members with empty or absent payloads contribute zero ownerships.
// Ordering is deterministic: owner count descending, then app ID ascending.
func Aggregate(owned map[string][]Game) Report {
	type accumulator struct {
		name   string
		owners map[string]struct{}
	}

	items := make(map[int64]*accumulator)
	for member, games := range owned {
		for _, game := range games {
			item, exists := items[game.AppID]
			if !exists {
				item = &accumulator{
					name:   game.Name,
					owners: make(map[string]struct{}),
				}
				items[game.AppID] = item
			}
			item.owners[member] = struct{}{}
		}
	}

	report := make(Report, 0, len(items))
	for appID, item := range items {
		report = append(report, ReportEntry{
			AppID:      appID,
			Name:       item.name,
			OwnerCount: len(item.owners),
		})
	}
	sort.Slice(report, func(i, j int) bool {
		if report[i].OwnerCount != report[j].OwnerCount {
			return report[i].OwnerCount > report[j].OwnerCount
		}

		return report[i].AppID < report[j].AppID
	})

	return report
}

// Filter returns entries whose owner count meets the threshold.
//
// Threshold filtering lives with the caller's tolerance policy; Aggregate
// itself never drops entries.
func (r Report) Filter(threshold int) Report {
	filtered := make(Report, 0, len(r))
	for _, entry := range r {
		if entry.OwnerCount >= threshold {
			filtered = append(filtered, entry)
		}
	}

	return filtered
}
