package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestProbeRunnerCombinesAndCaches(t *testing.T) {
	var calls atomic.Int32
	failing := CheckerFunc(func(context.Context) CheckResult {
		calls.Add(1)
		return result("db", errors.New("db down"))
	})
	ok := CheckerFunc(func(context.Context) CheckResult { return result("redis", nil) })

	p := NewProbeRunner(time.Second, time.Minute, failing, ok)
	ready, results := p.Ready(context.Background())
	if ready || len(results) != 2 || results[0].Error != "db down" || !results[1].Healthy {
		t.Fatalf("unexpected readiness %v %+v", ready, results)
	}
	p.Ready(context.Background())
	if calls.Load() != 1 {
		t.Fatalf("expected cached result, checker ran %d times", calls.Load())
	}
}

func TestProbeRunnerNoCheckersIsReady(t *testing.T) {
	if ready, _ := NewProbeRunner(0, 0).Ready(context.Background()); !ready {
		t.Fatal("expected ready without checkers")
	}
}

func TestDBAndRedisCheckers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if res := DBChecker(db).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy db, got %+v", res)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if res := RedisChecker(client).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy redis, got %+v", res)
	}
	mr.Close()
	if res := RedisChecker(client).Check(context.Background()); res.Healthy || res.Name != "redis" {
		t.Fatalf("expected unhealthy redis, got %+v", res)
	}
}
