package query

import (
	"testing"
)

func TestParseCTE(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCTEs []string
		wantErr  bool
	}{
		{
			name:     "single CTE",
			query:    "WITH big AS (SELECT * FROM orders WHERE qty > 10) SELECT COUNT(*) FROM big",
			wantCTEs: []string{"big"},
		},
		{
			name:     "multiple CTEs",
			query:    "WITH a AS (SELECT x FROM t1), b AS (SELECT y FROM t2) SELECT * FROM a JOIN b ON a.x = b.y",
			wantCTEs: []string{"a", "b"},
		},
		{
			name:     "CTE referencing earlier CTE",
			query:    "WITH a AS (SELECT x FROM t1), b AS (SELECT x FROM a) SELECT SUM(x) FROM b",
			wantCTEs: []string{"a", "b"},
		},
		{
			name:    "missing AS",
			query:   "WITH a (SELECT x FROM t1) SELECT * FROM a",
			wantErr: true,
		},
		{
			name:    "missing parenthesis",
			query:   "WITH a AS SELECT x FROM t1 SELECT * FROM a",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(q.CTEs) != len(tt.wantCTEs) {
				t.Fatalf("expected %d CTEs, got %d", len(tt.wantCTEs), len(q.CTEs))
			}
			for i, name := range tt.wantCTEs {
				if q.CTEs[i].Name != name {
					t.Errorf("CTE %d name = %q, want %q", i, q.CTEs[i].Name, name)
				}
				if q.CTEs[i].Query == nil {
					t.Errorf("CTE %d has no query", i)
				}
			}
		})
	}
}
