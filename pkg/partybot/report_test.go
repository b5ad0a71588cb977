package partybot

import "testing"

func TestAggregate(t *testing.T) {
	t.Parallel()

	t.Run("counts distinct owners and orders by count then app id", func(t *testing.T) {
		t.Parallel()

		owned := map[string][]Game{
			"alice": {{AppID: 1, Name: "Solo Game"}, {AppID: 2, Name: "Group Game"}},
			"bob":   {{AppID: 2, Name: "Group Game"}},
		}

		report := Aggregate(owned)
		if len(report) != 2 {
			t.Fatalf("entries = %d, want 2", len(report))
		}
		if report[0].AppID != 2 || report[0].OwnerCount != 2 {
			t.Fatalf("first entry = %+v, want app 2 with 2 owners", report[0])
		}
		if report[1].AppID != 1 || report[1].OwnerCount != 1 {
			t.Fatalf("second entry = %+v, want app 1 with 1 owner", report[1])
		}
	})

	t.Run("ties break on ascending app id", func(t *testing.T) {
		t.Parallel()

		owned := map[string][]Game{
			"alice": {{AppID: 30, Name: "C"}, {AppID: 10, Name: "A"}, {AppID: 20, Name: "B"}},
		}

		report := Aggregate(owned)
		if len(report) != 3 {
			t.Fatalf("entries = %d, want 3", len(report))
		}
		for index, wantAppID := range []int64{10, 20, 30} {
			if report[index].AppID != wantAppID {
				t.Fatalf("entry %d app id = %d, want %d", index, report[index].AppID, wantAppID)
			}
		}
	})

	t.Run("keeps first seen display name", func(t *testing.T) {
		t.Parallel()

		owned := map[string][]Game{
			"alice": {{AppID: 7, Name: "Original"}, {AppID: 7, Name: "Renamed"}},
		}

		report := Aggregate(owned)
		if len(report) != 1 {
			t.Fatalf("entries = %d, want 1", len(report))
		}
		if report[0].Name != "Original" {
			t.Fatalf("name = %q, want Original", report[0].Name)
		}
		if report[0].OwnerCount != 1 {
			t.Fatalf("owner count = %d, duplicate listings must not inflate it", report[0].OwnerCount)
		}
	})

	t.Run("empty payloads contribute nothing", func(t *testing.T) {
		t.Parallel()

		owned := map[string][]Game{
			"alice": nil,
			"bob":   {},
		}

		if report := Aggregate(owned); len(report) != 0 {
			t.Fatalf("entries = %d, want 0", len(report))
		}
		if report := Aggregate(nil); len(report) != 0 {
			t.Fatalf("entries from nil input = %d, want 0", len(report))
		}
	})
}

func TestReportFilter(t *testing.T) {
	t.Parallel()

	report := Report{
		{AppID: 1, Name: "All", OwnerCount: 3},
		{AppID: 2, Name: "Most", OwnerCount: 2},
		{AppID: 3, Name: "One", OwnerCount: 1},
	}

	filtered := report.Filter(2)
	if len(filtered) != 2 {
		t.Fatalf("entries = %d, want 2", len(filtered))
	}
	if filtered[0].AppID != 1 || filtered[1].AppID != 2 {
		t.Fatalf("filtered = %+v, want apps 1 and 2 in order", filtered)
	}

	if empty := report.Filter(4); len(empty) != 0 {
		t.Fatalf("entries above any owner count = %d, want 0", len(empty))
	}
	if all := report.Filter(0); len(all) != len(report) {
		t.Fatalf("zero threshold kept %d entries, want all %d", len(all), len(report))
	}
}
