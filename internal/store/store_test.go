package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/serverdb/internal/filter"
	"github.com/roach88/serverdb/internal/query"
	"github.com/roach88/serverdb/internal/querysql"
	"github.com/roach88/serverdb/internal/record"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/testutil"
	"github.com/roach88/serverdb/internal/value"
)

// createTestStore opens an in-memory store with the fixture tables.
func createTestStore(t *testing.T) (*Store, *schema.Directory) {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	dir := testutil.Directory(t)
	require.NoError(t, s.Migrate(context.Background(), dir))
	return s, dir
}

func seed(t *testing.T, s *Store, dir *schema.Directory) {
	t.Helper()
	servers := []map[string]any{
		{
			"hostname": "web01", "intern_ip": "10.0.0.1", "servertype": "web", "active": true,
			"os": "bookworm", "cores": 8, "tags": []any{"prod", "frontend"}, "ports": []any{80, 443},
			"primary_ip6": "2001:db8::1",
		},
		{
			"hostname": "web02", "intern_ip": "10.0.0.2", "servertype": "web", "active": false,
			"tags": []any{"staging"}, "additional_ips": []any{"8.8.8.8"},
		},
		{
			"hostname": "db_01", "intern_ip": "192.168.1.1", "servertype": "db_master",
			"monitored": true, "cores": 32,
		},
	}
	var recs []*record.Record
	for i, attrs := range servers {
		rec, err := record.FromMap(dir, int64(i+1), attrs)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, s.InsertRecords(context.Background(), dir, recs...))
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != querysql.SQLite {
		t.Errorf("Dialect() = %s, want sqlite3", s.Dialect().Name())
	}
}

func TestOpen_MigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	dir := testutil.Directory(t)

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		if err := s.Migrate(context.Background(), dir); err != nil {
			t.Fatalf("Migrate() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpenDSN_Errors(t *testing.T) {
	_, err := OpenDSN("postgres", "postgres://localhost")
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = OpenDSN(DriverMySQL, "no slash here")
	assert.ErrorContains(t, err, "invalid mysql DSN")
}

func TestClose_Nil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestDriverFunctions(t *testing.T) {
	s, _ := createTestStore(t)

	tests := []struct {
		expr string
		want any
	}{
		{"INET_NTOA(167772161)", "10.0.0.1"},
		{"INET_NTOA(4294967295)", "255.255.255.255"},
		{"INET_NTOA(4294967296)", nil},
		{"INET_NTOA(NULL)", nil},
		{"INET6_NTOA('20010db8000000000000000000000001')", "2001:db8::1"},
		{"INET6_NTOA('zz')", nil},
		{"INET6_NTOA(NULL)", nil},
		{"'web01' REGEXP '^web[0-9]+$'", int64(1)},
		{"'db01' REGEXP '^web'", int64(0)},
		{"42 REGEXP '^4'", int64(1)},
		{"NULL REGEXP ''", nil},
		{"'ABC' LIKE 'a%'", int64(0)},
		{"'abc' LIKE 'a%'", int64(1)},
		{`'a_c' LIKE 'a\_%' ESCAPE '\'`, int64(1)},
		{`'abc' LIKE 'a\_%' ESCAPE '\'`, int64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			var got any
			require.NoError(t, s.DB().QueryRow("SELECT "+tt.expr).Scan(&got))
			if b, ok := got.([]byte); ok {
				got = string(b)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDriverFunctions_BadPattern(t *testing.T) {
	s, _ := createTestStore(t)

	var got any
	err := s.DB().QueryRow("SELECT 'a' REGEXP '('").Scan(&got)
	assert.Error(t, err)
}

func TestMigrate_MySQLRefused(t *testing.T) {
	s := &Store{driver: DriverMySQL}
	err := s.Migrate(context.Background(), testutil.Directory(t))
	assert.ErrorContains(t, err, "only created on sqlite3")
}

func TestInsertRecords_StoredForms(t *testing.T) {
	s, dir := createTestStore(t)
	seed(t, s, dir)

	var row struct {
		Hostname   string         `db:"hostname"`
		InternIP   int64          `db:"intern_ip"`
		Servertype int64          `db:"servertype_id"`
		Active     sql.NullString `db:"active"`
		Segment    sql.NullString `db:"segment"`
	}
	require.NoError(t, s.DB().Get(&row,
		"SELECT hostname, intern_ip, servertype_id, active, segment FROM admin_server WHERE server_id = 1"))
	assert.Equal(t, "web01", row.Hostname)
	assert.Equal(t, int64(167772161), row.InternIP)
	assert.Equal(t, testutil.ServertypeWeb, row.Servertype)
	assert.Equal(t, sql.NullString{String: "1", Valid: true}, row.Active)
	assert.False(t, row.Segment.Valid)

	var ip6 string
	require.NoError(t, s.DB().Get(&ip6,
		"SELECT value FROM attrib_values WHERE server_id = 1 AND attrib_id = ?", testutil.KeyPrimaryIP6))
	assert.Equal(t, "20010db8000000000000000000000001", ip6)

	var n int
	require.NoError(t, s.DB().Get(&n, "SELECT COUNT(*) FROM attrib_values WHERE server_id = 1 AND attrib_id = ?", testutil.KeyTags))
	assert.Equal(t, 2, n)
}

func TestInsertRecords_UnknownEnumName(t *testing.T) {
	s, dir := createTestStore(t)
	rec := record.NewBuilder(9).Set("servertype", value.String("mail")).Build()

	err := s.InsertRecords(context.Background(), dir, rec)
	assert.ErrorContains(t, err, `"mail" is not a servertype`)
}

func TestStored(t *testing.T) {
	assert.Equal(t, "x", Stored(value.String("x")))
	assert.Equal(t, int64(7), Stored(value.Int(7)))
	assert.Equal(t, "0", Stored(value.Bool(false)))
	assert.Equal(t, int64(3232235777), Stored(value.MustIP("192.168.1.1")))
	assert.Equal(t, "00000000000000000000000000000001", Stored(value.MustIP6("::1")))
	assert.Nil(t, Stored(nil))
}

func TestFetchValues(t *testing.T) {
	s, dir := createTestStore(t)
	seed(t, s, dir)
	ctx := context.Background()

	triples, err := s.FetchValues(ctx, []int64{1}, []int64{testutil.KeyTags, testutil.KeyCores})
	require.NoError(t, err)
	assert.Equal(t, []query.Triple{
		{ServerID: 1, AttribID: testutil.KeyCores, Value: "8"},
		{ServerID: 1, AttribID: testutil.KeyTags, Value: "frontend"},
		{ServerID: 1, AttribID: testutil.KeyTags, Value: "prod"},
	}, triples)

	triples, err = s.FetchValues(ctx, []int64{2, 3}, nil)
	require.NoError(t, err)
	assert.Len(t, triples, 4)

	triples, err = s.FetchValues(ctx, []int64{1}, []int64{})
	require.NoError(t, err)
	assert.Empty(t, triples)

	triples, err = s.FetchValues(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, triples)
}

func TestFetchValues_SpansChunks(t *testing.T) {
	s, dir := createTestStore(t)
	ctx := context.Background()

	n := 2*fetchChunk + 1
	recs := make([]*record.Record, 0, n)
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		rec, err := record.FromMap(dir, int64(i), map[string]any{"cores": i})
		require.NoError(t, err)
		recs = append(recs, rec)
		ids = append(ids, int64(i))
	}
	require.NoError(t, s.InsertRecords(ctx, dir, recs...))

	triples, err := s.FetchValues(ctx, ids, []int64{testutil.KeyCores})
	require.NoError(t, err)
	require.Len(t, triples, n)
	assert.Equal(t, int64(1), triples[0].ServerID)
	assert.Equal(t, int64(n), triples[n-1].ServerID)
	assert.Equal(t, "1001", triples[1000].Value)
}

func TestEngine_EndToEnd(t *testing.T) {
	s, dir := createTestStore(t)
	seed(t, s, dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := query.NewEngine(dir, s.Dialect(), s, query.WithLogger(logger))

	tests := []struct {
		name    string
		filters map[string]string
		want    []int64
	}{
		{"all", nil, []int64{1, 2, 3}},
		{"enum regexp", map[string]string{"servertype": `Regexp("^db")`}, []int64{3}},
		{"enum negation", map[string]string{"servertype": `Not(ExactMatch("web"))`}, []int64{3}},
		{"private network", map[string]string{"intern_ip": `InsideNetwork("10.0.0.0/8")`}, []int64{1, 2}},
		{"address text", map[string]string{"intern_ip": `Startswith("192.168.")`}, []int64{3}},
		{"escaped underscore", map[string]string{"hostname": `Startswith("db_")`}, []int64{3}},
		{"boolean absence", map[string]string{"active": `ExactMatch(false)`}, []int64{2, 3}},
		{"eav boolean absence", map[string]string{"monitored": `ExactMatch(false)`}, []int64{1, 2}},
		{"optional", map[string]string{"os": `Optional(ExactMatch("bookworm"))`}, []int64{1, 2, 3}},
		{"multi negation", map[string]string{"tags": `Not(ExactMatch("prod"))`}, []int64{2}},
		{"multi empty", map[string]string{"tags": `Empty()`}, []int64{3}},
		{"multi not empty", map[string]string{"tags": `Not(Empty())`}, []int64{1, 2}},
		{"public multi", map[string]string{"additional_ips": `PublicIP()`}, []int64{2}},
		{"ip6 network", map[string]string{"primary_ip6": `InsideNetwork("2001:db8::/32")`}, []int64{1}},
		{"integer range", map[string]string{"cores": `Between(8, 16)`}, []int64{1}},
		{"integer prefix", map[string]string{"cores": `Startswith("3")`}, []int64{3}},
		{"two attributes", map[string]string{"servertype": `ExactMatch("web")`, "tags": `ExactMatch("prod")`}, []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := query.NewRequest()
			for attr, code := range tt.filters {
				f, err := filter.ParseCode(code)
				require.NoError(t, err)
				require.NoError(t, req.Set(attr, f))
			}
			recs, err := engine.Query(context.Background(), req)
			require.NoError(t, err)

			ids := []int64{}
			for _, r := range recs {
				ids = append(ids, r.ID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestEngine_Materializes(t *testing.T) {
	s, dir := createTestStore(t)
	seed(t, s, dir)
	engine := query.NewEngine(dir, s.Dialect(), s, query.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	req := query.NewRequest().MustSet("hostname", filter.NewExactMatch(value.String("web01")))
	recs, err := engine.Query(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	web := recs[0]
	for name, want := range map[string]value.Value{
		"hostname":    value.String("web01"),
		"intern_ip":   value.MustIP("10.0.0.1"),
		"servertype":  value.String("web"),
		"active":      value.Bool(true),
		"os":          value.String("bookworm"),
		"cores":       value.Int(8),
		"primary_ip6": value.MustIP6("2001:db8::1"),
	} {
		got, ok := web.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, []value.Value{value.Int(80), value.Int(443)}, web.Values("ports"))
	assert.Equal(t, []value.Value{value.String("frontend"), value.String("prod")}, web.Values("tags"))

	recs, err = engine.Query(context.Background(), query.NewRequest().Restrict("hostname", "tags"))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"hostname", "tags"}, recs[0].Names())
	assert.Equal(t, []string{"hostname"}, recs[2].Names())
}
