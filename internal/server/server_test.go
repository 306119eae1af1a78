package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/clock"
	"github.com/Tiliavir/trivial-study-tracker/internal/config"
	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/presence"
	"github.com/Tiliavir/trivial-study-tracker/internal/server"
	"github.com/Tiliavir/trivial-study-tracker/internal/storage"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

var t0 = time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ts       *httptest.Server
	store    *storage.Store
	clock    *clock.FakeClock
	presence *presence.Broadcaster
	alice    string
	bob      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "tst.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	c := clock.Fake(t0)
	engine := timer.NewEngine(store, timer.WithClock(c))
	b := presence.NewBroadcaster(store, presence.WithClock(c))
	srv := server.New(server.Settings{Port: 0}, server.Deps{
		Engine:   engine,
		Queries:  store,
		Auth:     store,
		Presence: b,
	}, server.WithClock(c))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	// Runs before ts.Close so open streams end.
	t.Cleanup(b.Close)

	f := &fixture{ts: ts, store: store, clock: c, presence: b}
	_, f.alice, err = store.CreateUser(context.Background(), "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	_, f.bob, err = store.CreateUser(context.Background(), "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	return v
}

func requireError(t *testing.T, status int, data []byte, wantStatus int, wantKind string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", status, wantStatus, data)
	}
	e := decode[server.ErrorResponse](t, data)
	if e.Kind != wantKind || e.Error == "" {
		t.Fatalf("error body = %+v, want kind %q", e, wantKind)
	}
}

func (f *fixture) plan(t *testing.T, token string, tasks ...model.PlannedTask) []model.Task {
	t.Helper()
	status, data := f.call(t, http.MethodPost, "/api/tasks/batch", token, server.PlanRequest{Tasks: tasks})
	if status != http.StatusCreated {
		t.Fatalf("plan status = %d: %s", status, data)
	}
	resp := decode[server.PlanResponse](t, data)
	if !resp.Success || len(resp.Tasks) != len(tasks) {
		t.Fatalf("plan response = %+v", resp)
	}
	return resp.Tasks
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(90 * time.Second)
	status, data := f.call(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	h := decode[server.HealthResponse](t, data)
	if h.Status != "ok" || h.UptimeSeconds != 90 {
		t.Fatalf("health = %+v", h)
	}
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)
	for _, token := range []string{"", "not-a-token"} {
		status, data := f.call(t, http.MethodGet, "/api/me", token, nil)
		requireError(t, status, data, http.StatusUnauthorized, "unauthenticated")
	}

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/me", nil)
	req.Header.Set("Authorization", "Basic "+f.alice)
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("basic scheme: status %d, challenge %q", resp.StatusCode, resp.Header.Get("WWW-Authenticate"))
	}

	status, data := f.call(t, http.MethodGet, "/api/me", f.alice, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if me := decode[model.User](t, data); me.Username != "alice" || me.Name != "Alice" {
		t.Fatalf("me = %+v", me)
	}
	if strings.Contains(string(data), "token") {
		t.Fatalf("user JSON leaks token: %s", data)
	}
}

func TestPlanValidation(t *testing.T) {
	f := newFixture(t)

	status, data := f.call(t, http.MethodPost, "/api/tasks/batch", f.alice, server.PlanRequest{})
	requireError(t, status, data, http.StatusBadRequest, "invalid_plan")

	status, data = f.call(t, http.MethodPost, "/api/tasks/batch", f.alice, server.PlanRequest{
		Tasks: []model.PlannedTask{{Name: "Kinematics", EstimatedMinutes: 0}},
	})
	requireError(t, status, data, http.StatusBadRequest, "invalid_plan")

	status, data = f.call(t, http.MethodPost, "/api/tasks/batch", f.alice, `{"tasks": [`)
	requireError(t, status, data, http.StatusBadRequest, server.KindBadRequest)

}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t)
	small := server.New(server.Settings{MaxBodyBytes: 64}, server.Deps{
		Engine: timer.NewEngine(f.store, timer.WithClock(f.clock)),
		Auth:   f.store,
	})
	ts := httptest.NewServer(small.Handler())
	defer ts.Close()

	body := `{"tasks":[{"task_name":"` + strings.Repeat("x", 200) + `","estimated_minutes":5}]}`
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/tasks/batch", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.alice)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	requireError(t, resp.StatusCode, data, http.StatusRequestEntityTooLarge, server.KindBadRequest)
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	tasks := f.plan(t, f.alice,
		model.PlannedTask{Name: "Kinematics", Subject: "Physics", EstimatedMinutes: 60},
		model.PlannedTask{Name: "Acids", Subject: "Chemistry", EstimatedMinutes: 30},
	)
	kin := tasks[0].ID

	status, data := f.call(t, http.MethodPost, "/api/tasks/"+kin+"/start", f.alice, nil)
	if status != http.StatusOK {
		t.Fatalf("start: %d %s", status, data)
	}
	if s := decode[server.StartResponse](t, data); !s.Success || !s.StartedAt.Equal(t0) {
		t.Fatalf("start response = %+v", s)
	}

	status, data = f.call(t, http.MethodPost, "/api/tasks/"+kin+"/start", f.alice, nil)
	requireError(t, status, data, http.StatusConflict, "invalid_state")

	status, data = f.call(t, http.MethodPost, "/api/tasks/"+kin+"/start", f.bob, nil)
	requireError(t, status, data, http.StatusNotFound, "not_found")

	status, data = f.call(t, http.MethodPost, "/api/tasks/"+tasks[1].ID+"/pause", f.alice, nil)
	requireError(t, status, data, http.StatusConflict, "invalid_state")

	f.clock.Advance(40 * time.Minute)
	status, data = f.call(t, http.MethodPost, "/api/tasks/"+kin+"/pause", f.alice, nil)
	if status != http.StatusOK {
		t.Fatalf("pause: %d %s", status, data)
	}
	if p := decode[server.PauseResponse](t, data); p.AccumulatedMinutes != 40 {
		t.Fatalf("pause response = %+v", p)
	}

	f.clock.Advance(15 * time.Minute)
	f.call(t, http.MethodPost, "/api/tasks/"+kin+"/start", f.alice, nil)
	f.clock.Advance(30 * time.Minute)
	status, data = f.call(t, http.MethodPost, "/api/tasks/"+kin+"/complete", f.alice, nil)
	if status != http.StatusOK {
		t.Fatalf("complete: %d %s", status, data)
	}
	done := decode[server.CompleteResponse](t, data)
	if done.Status != model.StatusCompletedDelayed || done.ActualMinutes != 70 || done.CompletedToday != 1 {
		t.Fatalf("complete response = %+v", done)
	}

	status, data = f.call(t, http.MethodPost, "/api/tasks/"+kin+"/complete", f.alice, nil)
	requireError(t, status, data, http.StatusConflict, "invalid_state")

	status, data = f.call(t, http.MethodPost, "/api/tasks/missing/complete", f.alice, nil)
	requireError(t, status, data, http.StatusNotFound, "not_found")
}

func TestTasksToday(t *testing.T) {
	f := newFixture(t)
	f.plan(t, f.alice, model.PlannedTask{Name: "Kinematics", EstimatedMinutes: 60})
	f.plan(t, f.bob, model.PlannedTask{Name: "Acids", EstimatedMinutes: 30})

	_, data := f.call(t, http.MethodGet, "/api/tasks/today", f.alice, nil)
	mine := decode[[]model.Task](t, data)
	if len(mine) != 1 || mine[0].Name != "Kinematics" {
		t.Fatalf("mine = %+v", mine)
	}

	_, data = f.call(t, http.MethodGet, "/api/tasks/today?all=true", f.alice, nil)
	all := decode[[]model.Task](t, data)
	if len(all) != 2 {
		t.Fatalf("all = %+v", all)
	}
	names := map[string]string{}
	for _, task := range all {
		names[task.Name] = task.UserName
	}
	if names["Acids"] != "Bob" || names["Kinematics"] != "Alice" {
		t.Fatalf("owners = %v", names)
	}

	// Tomorrow the list starts empty.
	f.clock.Advance(24 * time.Hour)
	_, data = f.call(t, http.MethodGet, "/api/tasks/today", f.alice, nil)
	if tasks := decode[[]model.Task](t, data); len(tasks) != 0 {
		t.Fatalf("tomorrow = %+v", tasks)
	}
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	task := f.plan(t, f.bob, model.PlannedTask{Name: "Acids", EstimatedMinutes: 30})[0]
	f.call(t, http.MethodPost, "/api/tasks/"+task.ID+"/start", f.bob, nil)
	f.clock.Advance(25 * time.Minute)
	f.call(t, http.MethodPost, "/api/tasks/"+task.ID+"/complete", f.bob, nil)

	status, data := f.call(t, http.MethodGet, "/api/leaderboard", f.alice, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	rows := decode[[]model.Standing](t, data)
	if len(rows) != 2 || rows[0].Name != "Bob" || rows[0].Rank != 1 || rows[0].TotalMinutes != 25 || rows[0].OnTimeTasks != 1 {
		t.Fatalf("leaderboard = %+v", rows)
	}
	if rows[1].Name != "Alice" || rows[1].Rank != 2 {
		t.Fatalf("second row = %+v", rows[1])
	}
}

func readEvent(t *testing.T, r *bufio.Reader) model.Snapshot {
	t.Helper()
	type result struct {
		snap model.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var data string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				done <- result{err: err}
				return
			}
			line = strings.TrimRight(line, "\n")
			if line == "" && data != "" {
				break
			}
			if rest, ok := strings.CutPrefix(line, "data: "); ok {
				data = rest
			}
		}
		var snap model.Snapshot
		err := json.Unmarshal([]byte(data), &snap)
		done <- result{snap: snap, err: err}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("reading event: %v", res.err)
		}
		return res.snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return model.Snapshot{}
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	task := f.plan(t, f.alice, model.PlannedTask{Name: "Kinematics", Subject: "Physics", EstimatedMinutes: 60})[0]
	f.call(t, http.MethodPost, "/api/tasks/"+task.ID+"/start", f.alice, nil)

	status, data := f.call(t, http.MethodGet, "/api/stream", "", nil)
	requireError(t, status, data, http.StatusUnauthorized, "unauthenticated")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.ts.URL+"/api/stream", nil)
	req.Header.Set("Authorization", "Bearer "+f.bob)
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	first := readEvent(t, r)
	if len(first.Users) != 2 {
		t.Fatalf("first snapshot = %+v", first)
	}
	var alice model.Presence
	for _, p := range first.Users {
		if p.Name == "Alice" {
			alice = p
		}
	}
	if alice.ActiveTask == nil || alice.ActiveTask.Name != "Kinematics" {
		t.Fatalf("alice presence = %+v", alice)
	}

	f.clock.WaitForTickers(1)
	f.clock.Advance(30 * time.Minute)
	second := readEvent(t, r)
	for _, p := range second.Users {
		if p.Name == "Alice" && (p.ActiveTask == nil || p.ActiveTask.ProgressPercent != 50) {
			t.Fatalf("alice after 30m = %+v", p.ActiveTask)
		}
	}

	if f.presence.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", f.presence.Subscribers())
	}
	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for f.presence.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartShutdown(t *testing.T) {
	b := presence.NewBroadcaster(nil)
	srv := server.New(server.Settings{Host: "127.0.0.1", Port: 0}, server.Deps{Presence: b})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.Addr() != "" {
		t.Fatalf("addr after shutdown = %q", srv.Addr())
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = " 0.0.0.0 "
	cfg.Server.Port = 9001
	s := server.SettingsFromConfig(cfg)
	if s.Address() != "0.0.0.0:9001" || s.URL() != "http://0.0.0.0:9001" {
		t.Fatalf("settings = %+v", s)
	}
	if s.MaxBodyBytes != server.DefaultMaxBodyBytes || s.WriteTimeout != server.DefaultWriteTimeout {
		t.Fatalf("defaults not applied: %+v", s)
	}
}
