package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/wolfman30/agentx-dm-platform/internal/config"
)

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(FS, down); err != nil {
			t.Errorf("%s has no matching %s", up, down)
		}
	}
}

func TestSchemaDefinesCoreTables(t *testing.T) {
	var all strings.Builder
	ups, _ := fs.Glob(FS, "*.up.sql")
	for _, up := range ups {
		b, err := fs.ReadFile(FS, up)
		if err != nil {
			t.Fatal(err)
		}
		all.Write(b)
	}
	schema := all.String()
	for _, table := range []string{"coaches", "user_roles", "dm_sessions", "contacts", "course_files", "embeddings", "offers", "clicks", "sales", "payouts"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema missing table %s", table)
		}
	}
}

func TestDefaultCoachIsSeeded(t *testing.T) {
	b, err := fs.ReadFile(FS, "000005_default_coach.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "'"+config.DefaultCoachID+"'") {
		t.Fatalf("seed does not insert the fallback coach %s", config.DefaultCoachID)
	}
}
