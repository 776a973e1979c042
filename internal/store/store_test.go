package store

import (
	"strings"
	"testing"
)

func TestEscapeLikePattern(t *testing.T) {
	cases := map[string]string{
		"logs/":       "logs/",
		"100%":        `100\%`,
		"a_b":         `a\_b`,
		`back\slash`:  `back\\slash`,
		"%_%mixed_%_": `\%\_\%mixed\_\%\_`,
	}
	for in, want := range cases {
		if got := escapeLikePattern(in); got != want {
			t.Errorf("escapeLikePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildListFindingsQueryNoFilters(t *testing.T) {
	sql, args := buildListFindingsQuery("", "", 50, 10)
	if len(args) != 2 {
		t.Fatalf("args = %v, want [cursor, limit]", args)
	}
	if args[0] != int64(10) || args[1] != 50 {
		t.Errorf("args = %v, want [10 50]", args)
	}
	if strings.Contains(sql, "bucket =") || strings.Contains(sql, "key LIKE") {
		t.Errorf("unexpected filter clause in query: %s", sql)
	}
}

func TestBuildListFindingsQueryWithBucket(t *testing.T) {
	sql, args := buildListFindingsQuery("my-bucket", "", 50, 0)
	if len(args) != 3 {
		t.Fatalf("args = %v, want 3 entries", args)
	}
	if args[1] != "my-bucket" {
		t.Errorf("args[1] = %v, want my-bucket", args[1])
	}
	if !strings.Contains(sql, "bucket = $2") {
		t.Errorf("query missing bucket filter: %s", sql)
	}
}

func TestBuildListFindingsQueryWithPrefix(t *testing.T) {
	sql, args := buildListFindingsQuery("", "logs/", 25, 5)
	if len(args) != 3 {
		t.Fatalf("args = %v, want 3 entries", args)
	}
	if args[1] != "logs/%" {
		t.Errorf("args[1] = %v, want logs/%%", args[1])
	}
	if !strings.Contains(sql, "key LIKE $2") {
		t.Errorf("query missing key filter: %s", sql)
	}
}

func TestBuildListFindingsQueryBucketAndPrefix(t *testing.T) {
	sql, args := buildListFindingsQuery("b", "p/", 10, 0)
	if len(args) != 4 {
		t.Fatalf("args = %v, want 4 entries", args)
	}
	if !strings.Contains(sql, "bucket = $2") || !strings.Contains(sql, "key LIKE $3") {
		t.Errorf("query missing both filters: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT $4") {
		t.Errorf("query missing limit placeholder: %s", sql)
	}
}

func TestBuildListFindingsQueryEscapesLikeMetacharacters(t *testing.T) {
	sql, args := buildListFindingsQuery("", "100%_off", 10, 0)
	if args[1] != `100\%\_off%` {
		t.Errorf("args[1] = %q, want literal %% and _ escaped", args[1])
	}
	if !strings.Contains(sql, "ESCAPE '\\'") {
		t.Errorf("query missing ESCAPE clause: %s", sql)
	}
}

func TestBuildListFindingsQueryOrdersAscendingById(t *testing.T) {
	sql, _ := buildListFindingsQuery("", "", 10, 0)
	if !strings.Contains(sql, "ORDER BY id ASC") {
		t.Errorf("query must order by id ascending for cursor pagination: %s", sql)
	}
	if !strings.Contains(sql, "WHERE id > $1") {
		t.Errorf("query must filter strictly greater than cursor: %s", sql)
	}
}
