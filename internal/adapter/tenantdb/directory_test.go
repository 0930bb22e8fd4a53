package tenantdb

import "testing"

func TestRebind(t *testing.T) {
	pg := &Directory{dialect: DialectPostgres}
	got := pg.rebind(`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`)
	want := `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &Directory{dialect: DialectSQLite}
	if got := lite.rebind(`SELECT ?`); got != `SELECT ?` {
		t.Errorf("sqlite rebind = %q, want unchanged", got)
	}
}
