// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

func TestBuildOpenFilter(t *testing.T) {
	f, err := Build(Params{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !f.Open() {
		t.Error("empty params should build an open filter")
	}
	if !f.MatchesState(models.StateArchive) {
		t.Error("open filter should match any state")
	}
	if !f.InRange(time.Now()) {
		t.Error("open filter should match any instant")
	}
}

func TestBuildSort(t *testing.T) {
	tests := []struct {
		name    string
		sort    string
		want    []SortField
		wantErr bool
	}{
		{
			name: "single ascending default",
			sort: "lastModified",
			want: []SortField{{Column: "lastModified", Direction: Ascending}},
		},
		{
			name: "explicit descending",
			sort: "lastModified+DESC",
			want: []SortField{{Column: "lastModified", Direction: Descending}},
		},
		{
			name: "multiple columns",
			sort: "timestamp+DESC,lastModified",
			want: []SortField{
				{Column: "timestamp", Direction: Descending},
				{Column: "lastModified", Direction: Ascending},
			},
		},
		{
			// Only the exact DESC marker reverses; anything else is ascending.
			name: "lowercase desc ignored",
			sort: "lastModified+desc",
			want: []SortField{{Column: "lastModified", Direction: Ascending}},
		},
		{
			name:    "column not in whitelist",
			sort:    "userId",
			wantErr: true,
		},
		{
			name:    "second column not in whitelist",
			sort:    "lastModified,secret",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Build(Params{Sort: tt.sort})
			if tt.wantErr {
				if err == nil {
					t.Fatal("Build() should fail")
				}
				var fe *models.InvalidFilterError
				if !errors.As(err, &fe) {
					t.Fatalf("error type = %T, want *InvalidFilterError", err)
				}
				if fe.Param != "sort" {
					t.Errorf("Param = %q, want sort", fe.Param)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(f.Sort) != len(tt.want) {
				t.Fatalf("Sort length = %d, want %d", len(f.Sort), len(tt.want))
			}
			for i, want := range tt.want {
				if f.Sort[i] != want {
					t.Errorf("Sort[%d] = %+v, want %+v", i, f.Sort[i], want)
				}
			}
		})
	}
}

func TestBuildStates(t *testing.T) {
	f, err := Build(Params{States: []string{"active", "complete"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !f.MatchesState(models.StateActive) || !f.MatchesState(models.StateComplete) {
		t.Error("filter should match listed states")
	}
	if f.MatchesState(models.StateArchive) {
		t.Error("filter should not match unlisted state")
	}

	if _, err := Build(Params{States: []string{"active", "deleted"}}); err == nil {
		t.Error("unknown state name should fail the build")
	}
}

func TestBuildBBox(t *testing.T) {
	f, err := Build(Params{BBox: "-105.5,39.2,-104.5,40.1"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(f.Geometries) != 1 {
		t.Fatalf("Geometries length = %d, want 1", len(f.Geometries))
	}
	if f.Geometries[0].Type != models.GeometryPolygon {
		t.Errorf("bbox geometry type = %q, want Polygon", f.Geometries[0].Type)
	}

	for _, bad := range []string{"1,2,3", "a,b,c,d", "10,10,0,0"} {
		if _, err := Build(Params{BBox: bad}); err == nil {
			t.Errorf("BBox %q should fail the build", bad)
		}
	}
}

func TestBuildGeometry(t *testing.T) {
	raw := json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`)
	f, err := Build(Params{Geometry: raw})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(f.Geometries) != 1 {
		t.Fatalf("Geometries length = %d, want 1", len(f.Geometries))
	}

	if _, err := Build(Params{Geometry: json.RawMessage(`{"type":"Blob"}`)}); err == nil {
		t.Error("unknown geometry type should fail the build")
	}
	if _, err := Build(Params{Geometry: json.RawMessage(`not json`)}); err == nil {
		t.Error("malformed geometry should fail the build")
	}
}

func TestTimeRangePredicates(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	f, err := Build(Params{StartDate: &start, EndDate: &end, ObservationStartDate: &start})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if f.InRange(start.Add(-time.Second)) {
		t.Error("instant before StartDate should not match")
	}
	if !f.InRange(start.Add(time.Hour)) {
		t.Error("instant inside range should match")
	}
	if f.InRange(end.Add(time.Second)) {
		t.Error("instant after EndDate should not match")
	}
	if f.InObservationRange(start.Add(-time.Hour)) {
		t.Error("observation instant before bound should not match")
	}
}
