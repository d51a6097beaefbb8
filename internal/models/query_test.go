package models

import "testing"

func TestQueryIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"zero value", Query{}, true},
		{"text", Query{Text: "go"}, false},
		{"categories", Query{CategoryIDs: []int64{1}}, false},
		{"tags", Query{TagIDs: []int64{1}}, false},
		{"posts", Query{PostIDs: []int64{1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryFingerprint(t *testing.T) {
	a := Query{Text: "go", CategoryIDs: []int64{2, 1}, TagIDs: []int64{5}}
	b := Query{Text: "go", CategoryIDs: []int64{1, 2}, TagIDs: []int64{5}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("facet order must not change the fingerprint")
	}

	c := Query{Text: "rust", CategoryIDs: []int64{1, 2}, TagIDs: []int64{5}}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different queries must not collide")
	}

	if got := len(a.Fingerprint()); got != 32 {
		t.Errorf("fingerprint length = %d, want 32", got)
	}
}
