package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		User: "writewave",
		Pass: "s3cret",
		Host: "db.internal",
		Port: "3307",
		Name: "users",
	}

	parsed, err := mysql.ParseDSN(dsn(cfg))
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if parsed.User != "writewave" || parsed.Passwd != "s3cret" {
		t.Errorf("credentials = %s/%s", parsed.User, parsed.Passwd)
	}
	if parsed.Addr != "db.internal:3307" {
		t.Errorf("Addr = %q, want db.internal:3307", parsed.Addr)
	}
	if parsed.DBName != "users" {
		t.Errorf("DBName = %q, want users", parsed.DBName)
	}
	if !parsed.ParseTime {
		t.Error("ParseTime not enabled; DATETIME columns would scan as []byte")
	}
	if parsed.Loc != time.UTC {
		t.Errorf("Loc = %v, want UTC", parsed.Loc)
	}
	if parsed.Params["charset"] != "utf8mb4" {
		t.Errorf("charset = %q, want utf8mb4", parsed.Params["charset"])
	}
	if !parsed.AllowNativePasswords {
		t.Error("native password auth disabled")
	}
}

func TestDSNEmptyPassword(t *testing.T) {
	parsed, err := mysql.ParseDSN(dsn(Config{
		User: "writewave", Host: "localhost", Port: "3306", Name: "users",
	}))
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if parsed.Passwd != "" {
		t.Errorf("Passwd = %q, want empty", parsed.Passwd)
	}
}
