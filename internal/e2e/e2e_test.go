package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kudibooks/kudibooks/internal/clock"
	"github.com/kudibooks/kudibooks/internal/config"
	"github.com/kudibooks/kudibooks/internal/migration"
	"github.com/kudibooks/kudibooks/internal/server"
	"github.com/kudibooks/kudibooks/pkg/db"
	"github.com/kudibooks/kudibooks/pkg/log"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app     *fx.App
	db      *gorm.DB
	baseURL string
	httpSrv *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func setDefaultEnv() {
	dir, err := os.MkdirTemp("", "kudibooks-e2e")
	if err != nil {
		panic(err)
	}
	os.Setenv("DATABASE_TYPE", "sqlite")
	os.Setenv("DATABASE_NAME", filepath.Join(dir, "kudibooks"))
	os.Setenv("HTTP_ADDR", "127.0.0.1:0")
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("SCHEDULER_ENABLED", "false")
	os.Setenv("METRICS_ENABLED", "false")
	os.Setenv("LOG_LEVEL", "error")
}

func startEnv() (*testEnv, error) {
	e := &testEnv{}

	var engine *gin.Engine
	e.app = fx.New(
		config.Module,
		log.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(9)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		fx.Populate(&engine, &e.db),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.app.Start(ctx); err != nil {
		return nil, err
	}

	e.httpSrv = httptest.NewServer(engine)
	e.baseURL = e.httpSrv.URL
	return e, nil
}

func (e *testEnv) shutdown() {
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.app.Stop(ctx)
}

func resetDatabase(t *testing.T, conn *gorm.DB) {
	t.Helper()
	for _, table := range []string{
		"tax_ledger_source_refs",
		"tax_ledger_records",
		"ledger_entries",
		"audit_logs",
		"sales",
		"products",
		"expenses",
		"tax_settings_profiles",
	} {
		if err := conn.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset table %s: %v", table, err)
		}
	}
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}
