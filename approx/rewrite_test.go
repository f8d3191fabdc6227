package approx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/approxq/query"
)

// mapCatalog resolves "schema.table" keys to "schema.table" samples
func mapCatalog(pairs map[string]string) Catalog {
	m := make(map[TableUniqueName]TableUniqueName, len(pairs))
	for original, sample := range pairs {
		o, err := ParseTableUniqueName(original, DefaultSchema)
		if err != nil {
			panic(err)
		}
		s, err := ParseTableUniqueName(sample, DefaultSchema)
		if err != nil {
			panic(err)
		}
		m[o] = s
	}
	return CatalogFunc(func(original TableUniqueName) (TableUniqueName, bool) {
		s, ok := m[original]
		return s, ok
	})
}

var ordersCatalog = map[string]string{"public.orders": "public.orders_sample_1pct"}

func rewriteText(t *testing.T, policy Policy, catalog map[string]string, text string) *Rewrite {
	t.Helper()
	q, err := query.Parse(text)
	require.NoError(t, err)
	e := &engine{catalog: mapCatalog(catalog), policy: policy, defaultSchema: DefaultSchema}
	return e.rewrite(q)
}

func TestRewrite_Substitution(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "unaliased table takes original name as alias",
			query: "SELECT AVG(price) FROM orders",
			want:  "SELECT AVG(price) FROM public.orders_sample_1pct AS orders",
		},
		{
			name:  "user alias kept",
			query: "SELECT COUNT(*) FROM orders o WHERE o.qty > 1",
			want:  "SELECT COUNT(*) FROM public.orders_sample_1pct AS o WHERE o.qty > 1",
		},
		{
			name:  "qualified reference",
			query: "SELECT SUM(orders.qty) FROM Public.Orders",
			want:  "SELECT SUM(orders.qty) FROM public.orders_sample_1pct AS Orders",
		},
		{
			name:  "schema-qualified columns follow the sample alias",
			query: "SELECT public.orders.region, SUM(public.orders.qty) FROM public.orders GROUP BY public.orders.region",
			want:  "SELECT orders.region, SUM(orders.qty) FROM public.orders_sample_1pct AS orders GROUP BY orders.region",
		},
		{
			name:  "schema-qualified column in correlated subquery",
			query: "SELECT COUNT(*) FROM public.orders WHERE EXISTS (SELECT 1 FROM customers c WHERE c.id = public.orders.cid)",
			want:  "SELECT COUNT(*) FROM public.orders_sample_1pct AS orders WHERE EXISTS (SELECT 1 FROM customers AS c WHERE c.id = orders.cid)",
		},
		{
			name:  "quoted reference",
			query: `SELECT COUNT(*) FROM "orders"`,
			want:  `SELECT COUNT(*) FROM public.orders_sample_1pct AS "orders"`,
		},
		{
			name:  "join with unmapped table",
			query: "SELECT c.tier, SUM(o.price) FROM orders o JOIN customers c ON o.cid = c.id GROUP BY c.tier",
			want:  "SELECT c.tier, SUM(o.price) FROM public.orders_sample_1pct AS o JOIN customers AS c ON o.cid = c.id GROUP BY c.tier",
		},
		{
			name:  "derived table",
			query: "SELECT SUM(t.total) FROM (SELECT price * qty AS total FROM orders) AS t",
			want:  "SELECT SUM(t.total) FROM (SELECT price * qty AS total FROM public.orders_sample_1pct AS orders) AS t",
		},
		{
			name:  "subqueries in predicates and select list",
			query: "SELECT COUNT(*), (SELECT AVG(price) FROM orders) FROM customers c WHERE EXISTS (SELECT 1 FROM orders o WHERE o.cid = c.id)",
			want:  "SELECT COUNT(*), (SELECT AVG(price) FROM public.orders_sample_1pct AS orders) FROM customers AS c WHERE EXISTS (SELECT 1 FROM public.orders_sample_1pct AS o WHERE o.cid = c.id)",
		},
		{
			name:  "CTE name is never looked up",
			query: "WITH orders AS (SELECT * FROM orders WHERE qty > 1) SELECT SUM(price) FROM orders",
			want:  "WITH orders AS (SELECT * FROM public.orders_sample_1pct AS orders WHERE qty > 1) SELECT SUM(price) FROM orders",
		},
		{
			name:  "CTE visible inside nested scope",
			query: "WITH big AS (SELECT cid FROM customers) SELECT COUNT(*) FROM orders WHERE cid IN (SELECT cid FROM big)",
			want:  "WITH big AS (SELECT cid FROM customers) SELECT COUNT(*) FROM public.orders_sample_1pct AS orders WHERE cid IN (SELECT cid FROM big)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := rewriteText(t, Direct{}, ordersCatalog, tt.query)
			assert.Equal(t, tt.want, rw.SQL)
			assert.Equal(t, SampleTableMapping{
				{Schema: "public", Table: "orders"}: {Schema: "public", Table: "orders_sample_1pct"},
			}, rw.Samples)
		})
	}
}

func TestRewrite_NoSubstitute(t *testing.T) {
	queries := []string{
		"SELECT AVG(price) FROM orders",
		"SELECT region, SUM(price) FROM sales.orders o WHERE o.qty BETWEEN 1 AND 5 GROUP BY region HAVING SUM(price) > 10 ORDER BY region DESC LIMIT 3",
		"WITH x AS (SELECT * FROM t) SELECT COUNT(*) FROM x LEFT JOIN (SELECT id FROM u) AS y ON x.id = y.id WHERE x.a NOT IN (SELECT a FROM v)",
		"SELECT CASE WHEN a IS NULL THEN -b ELSE (a + b) * 2 END, SUM(c) OVER (PARTITION BY d ORDER BY e ROWS BETWEEN 1 PRECEDING AND CURRENT ROW) FROM t WHERE NOT (a = 1 OR b LIKE 'x%')",
	}

	for _, text := range queries {
		t.Run(text, func(t *testing.T) {
			q, err := query.Parse(text)
			require.NoError(t, err)

			rw := rewriteText(t, Bootstrapping{}, nil, text)
			assert.Equal(t, q.String(), rw.SQL, "rewritten text must not change without substitutes")
			assert.Empty(t, rw.Samples)
			assert.Empty(t, rw.Diagnostics)
			for _, m := range (FixedMargin{Margin: DefaultErrorMargin}).Annotate(rw.Columns, rw.Samples) {
				assert.Zero(t, m)
			}
		})
	}
}

func TestRewrite_ReusesMapping(t *testing.T) {
	rw := rewriteText(t, Bootstrapping{}, ordersCatalog,
		"SELECT COUNT(*) FROM orders a JOIN public.orders b ON a.cid = b.cid")

	assert.Equal(t, 1, rw.Samples.Len())
	assert.Equal(t, 2, strings.Count(rw.SQL, "public.orders_sample_1pct"))
}

func TestRewrite_Multiplicity(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		scopes []ScopeAnnotation
	}{
		{
			name:  "aggregation consumes at root",
			query: "SELECT AVG(price) FROM orders",
			scopes: []ScopeAnnotation{
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: true, Decision: DecisionConsumed},
			},
		},
		{
			name:  "non aggregating child propagates",
			query: "SELECT SUM(t.total) FROM (SELECT price * qty AS total FROM orders) AS t",
			scopes: []ScopeAnnotation{
				{Depth: 1, Origin: OriginFrom, MultiplicityActive: true, Decision: DecisionPropagated},
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: true, Decision: DecisionConsumed},
			},
		},
		{
			name:  "aggregating child consumes",
			query: "SELECT AVG(s.c) FROM (SELECT region, COUNT(*) AS c FROM orders GROUP BY region) AS s",
			scopes: []ScopeAnnotation{
				{Depth: 1, Origin: OriginFrom, MultiplicityActive: true, Decision: DecisionConsumed},
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: false, Decision: DecisionNone},
			},
		},
		{
			name:  "propagates through several levels",
			query: "SELECT COUNT(*) FROM (SELECT * FROM (SELECT * FROM orders) AS a) AS b",
			scopes: []ScopeAnnotation{
				{Depth: 2, Origin: OriginFrom, MultiplicityActive: true, Decision: DecisionPropagated},
				{Depth: 1, Origin: OriginFrom, MultiplicityActive: true, Decision: DecisionPropagated},
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: true, Decision: DecisionConsumed},
			},
		},
		{
			name:  "still active at root is dropped",
			query: "SELECT price FROM orders",
			scopes: []ScopeAnnotation{
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: true, Decision: DecisionDropped},
			},
		},
		{
			name:  "CTE body propagates to defining scope",
			query: "WITH o AS (SELECT price FROM orders) SELECT SUM(price) FROM o",
			scopes: []ScopeAnnotation{
				{Depth: 1, Origin: OriginCTE, MultiplicityActive: true, Decision: DecisionPropagated},
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: true, Decision: DecisionConsumed},
			},
		},
		{
			name:  "unsampled scopes carry nothing",
			query: "SELECT COUNT(*) FROM customers WHERE id IN (SELECT cid FROM returns)",
			scopes: []ScopeAnnotation{
				{Depth: 1, Origin: OriginWhere, MultiplicityActive: false, Decision: DecisionNone},
				{Depth: 0, Origin: OriginRoot, MultiplicityActive: false, Decision: DecisionNone},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := rewriteText(t, Bootstrapping{}, ordersCatalog, tt.query)
			assert.Equal(t, tt.scopes, rw.Scopes)
		})
	}
}

func TestRewrite_Keyset(t *testing.T) {
	t.Run("outermost GROUP BY", func(t *testing.T) {
		rw := rewriteText(t, Bootstrapping{}, ordersCatalog,
			"SELECT region, o.channel, SUM(price) FROM orders o GROUP BY region, o.channel")
		assert.Equal(t, []query.ColumnRef{{Column: "region"}, {Column: "o.channel"}}, rw.Keyset)
	})

	t.Run("WHERE subquery never carries a keyset", func(t *testing.T) {
		rw := rewriteText(t, Bootstrapping{}, ordersCatalog,
			"SELECT region, SUM(price) FROM orders WHERE cid IN (SELECT id FROM customers GROUP BY id) GROUP BY region")
		require.Len(t, rw.Scopes, 2)
		assert.Equal(t, OriginWhere, rw.Scopes[0].Origin)
		assert.Nil(t, rw.Scopes[0].Keyset)
		assert.Equal(t, []query.ColumnRef{{Column: "region"}}, rw.Keyset)
	})

	t.Run("nested GROUP BY only", func(t *testing.T) {
		rw := rewriteText(t, Bootstrapping{}, ordersCatalog,
			"SELECT AVG(s.c) FROM (SELECT region, COUNT(*) AS c FROM orders GROUP BY region) AS s")
		assert.Nil(t, rw.Keyset)
		for _, scope := range rw.Scopes {
			assert.Nil(t, scope.Keyset)
		}
	})
}

func TestRewrite_Diagnostics(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		catalog   map[string]string
		wantDepth []int
	}{
		{
			name:      "distinct aggregate over sample",
			query:     "SELECT COUNT(DISTINCT cid) FROM orders",
			catalog:   ordersCatalog,
			wantDepth: []int{0},
		},
		{
			name:    "distinct aggregate without sample",
			query:   "SELECT COUNT(DISTINCT cid) FROM orders",
			catalog: nil,
		},
		{
			name:      "window over active multiplicity",
			query:     "SELECT SUM(price) OVER (PARTITION BY region) FROM orders",
			catalog:   ordersCatalog,
			wantDepth: []int{0},
		},
		{
			name:    "window after aggregation",
			query:   "SELECT region, SUM(price), RANK() OVER (ORDER BY SUM(price)) FROM orders GROUP BY region",
			catalog: ordersCatalog,
		},
		{
			name:      "limit in nested scope",
			query:     "SELECT AVG(t.price) FROM (SELECT price FROM orders LIMIT 10) AS t",
			catalog:   ordersCatalog,
			wantDepth: []int{1},
		},
		{
			name:    "limit at root",
			query:   "SELECT region, SUM(price) FROM orders GROUP BY region LIMIT 5",
			catalog: ordersCatalog,
		},
		{
			name:    "limit in aggregating nested scope",
			query:   "SELECT AVG(t.s) FROM (SELECT SUM(price) AS s FROM orders GROUP BY region LIMIT 10) AS t",
			catalog: ordersCatalog,
		},
		{
			name:      "select distinct in nested scope",
			query:     "SELECT COUNT(*) FROM (SELECT DISTINCT cid FROM orders) AS t",
			catalog:   ordersCatalog,
			wantDepth: []int{1},
		},
		{
			name:    "select distinct without sample",
			query:   "SELECT COUNT(*) FROM (SELECT DISTINCT cid FROM orders) AS t",
			catalog: nil,
		},
		{
			name:    "select distinct over aggregated rows",
			query:   "SELECT COUNT(*) FROM (SELECT DISTINCT region, SUM(price) AS s FROM orders GROUP BY region) AS t",
			catalog: ordersCatalog,
		},
		{
			name:      "every diagnostic is kept",
			query:     "SELECT COUNT(DISTINCT a.cid) FROM (SELECT cid FROM orders LIMIT 5) AS a",
			catalog:   ordersCatalog,
			wantDepth: []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := rewriteText(t, Bootstrapping{}, tt.catalog, tt.query)
			var depths []int
			for _, d := range rw.Diagnostics {
				depths = append(depths, d.Depth)
			}
			assert.Equal(t, tt.wantDepth, depths)
			if len(tt.wantDepth) > 0 {
				assert.ErrorIs(t, rw.Err(), ErrRewrite)
			} else {
				assert.NoError(t, rw.Err())
			}
		})
	}
}

func TestRewrite_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "quoted select alias",
			query: `SELECT AVG(price) AS "avg price" FROM orders`,
			want:  `SELECT AVG(price) AS "avg price" FROM public.orders_sample_1pct AS orders`,
		},
		{
			name:  "quoted table alias",
			query: `SELECT COUNT(*) FROM orders AS "o o"`,
			want:  `SELECT COUNT(*) FROM public.orders_sample_1pct AS "o o"`,
		},
		{
			name:  "quoted derived table alias",
			query: `SELECT SUM(total) FROM (SELECT price AS "Total" FROM orders) AS "T"`,
			want:  `SELECT SUM(total) FROM (SELECT price AS "Total" FROM public.orders_sample_1pct AS orders) AS "T"`,
		},
		{
			name:  "quoted CTE name",
			query: `WITH "my cte" AS (SELECT price FROM orders) SELECT SUM(price) FROM "my cte"`,
			want:  `WITH "my cte" AS (SELECT price FROM public.orders_sample_1pct AS orders) SELECT SUM(price) FROM "my cte"`,
		},
		{
			name:  "backslash in LIKE pattern is literal",
			query: `SELECT COUNT(*) FROM orders WHERE path LIKE 'a\_b%'`,
			want:  `SELECT COUNT(*) FROM public.orders_sample_1pct AS orders WHERE path LIKE 'a\_b%'`,
		},
		{
			name:  "backslashes in string literal are literal",
			query: `SELECT COUNT(*) FROM orders WHERE path = 'C:\new\table'`,
			want:  `SELECT COUNT(*) FROM public.orders_sample_1pct AS orders WHERE path = 'C:\new\table'`,
		},
		{
			name:  "doubled quote in string literal",
			query: `SELECT COUNT(*) FROM orders WHERE note = 'it''s'`,
			want:  `SELECT COUNT(*) FROM public.orders_sample_1pct AS orders WHERE note = 'it''s'`,
		},
		{
			name:  "double negation",
			query: "SELECT SUM(- -price) FROM orders",
			want:  "SELECT SUM(-(-price)) FROM public.orders_sample_1pct AS orders",
		},
		{
			name:  "negated negative literal",
			query: "SELECT SUM(price * - -2) FROM orders",
			want:  "SELECT SUM(price * -(-2)) FROM public.orders_sample_1pct AS orders",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := rewriteText(t, Direct{}, ordersCatalog, tt.query)
			assert.Equal(t, tt.want, rw.SQL)

			again, err := query.Parse(rw.SQL)
			require.NoError(t, err, "rewritten SQL must parse")
			assert.Equal(t, rw.SQL, again.String())
		})
	}
}

func TestRewrite_QuotedTableCase(t *testing.T) {
	catalog := map[string]string{`public."Orders"`: "public.orders_upper_s"}

	rw := rewriteText(t, Direct{}, catalog, `SELECT COUNT(*) FROM "Orders"`)
	assert.Equal(t, `SELECT COUNT(*) FROM public.orders_upper_s AS "Orders"`, rw.SQL)

	rw = rewriteText(t, Direct{}, catalog, "SELECT COUNT(*) FROM orders")
	assert.Equal(t, "SELECT COUNT(*) FROM orders", rw.SQL)
	assert.Empty(t, rw.Samples)

	rw = rewriteText(t, Direct{}, ordersCatalog, `SELECT COUNT(*) FROM "Orders"`)
	assert.Empty(t, rw.Samples, "quoted mixed-case name is a different table")
}

func TestRewrite_DirectPolicy(t *testing.T) {
	queries := []string{
		"SELECT COUNT(DISTINCT cid) FROM orders",
		"SELECT SUM(price) OVER (PARTITION BY region) FROM orders",
		"SELECT AVG(t.price) FROM (SELECT price FROM orders LIMIT 10) AS t",
	}

	for _, text := range queries {
		t.Run(text, func(t *testing.T) {
			rw := rewriteText(t, Direct{}, ordersCatalog, text)
			assert.Empty(t, rw.Diagnostics)
			assert.Equal(t, 1, rw.Samples.Len())
			for _, scope := range rw.Scopes {
				assert.False(t, scope.MultiplicityActive)
				assert.Equal(t, DecisionNone, scope.Decision)
			}
		})
	}
}

func TestRewrite_ColumnsMatchSelectList(t *testing.T) {
	rw := rewriteText(t, Bootstrapping{}, ordersCatalog,
		"SELECT region, AVG(price), COUNT(*) AS n FROM orders GROUP BY region")
	assert.Equal(t, AggregateColumnIndicator{false, true, true}, rw.Columns)
}
