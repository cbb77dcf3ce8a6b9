package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/boardwise/movecoach/internal/boardimg"
	"github.com/boardwise/movecoach/internal/explain"
	"github.com/boardwise/movecoach/internal/promptcat"
	"github.com/boardwise/movecoach/internal/report"
	"github.com/boardwise/movecoach/internal/service/cache"
	"github.com/boardwise/movecoach/internal/service/review"
	"github.com/boardwise/movecoach/pkg/coachdto"
)

const okReply = `{"explanation":"Centralizes the knight.","themes":["development"],"reason":"solid developing move"}`

func newTestServer(t *testing.T, completer explain.Completer) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{Host: mr.Host(), Port: port}, nil)
	if err != nil {
		t.Fatalf("cache.NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = cacheSvc.Close() })

	catalog, err := promptcat.New("")
	if err != nil {
		t.Fatalf("promptcat.New: %v", err)
	}
	// Width 2 splits the fixture's three requests across two windows,
	// which gives cancellation a boundary to land on.
	svc, err := review.NewService(completer, catalog, cacheSvc, review.NewMemoryRepository(), review.Config{Model: "gpt-test", Concurrency: 2}, nil)
	if err != nil {
		t.Fatalf("review.NewService: %v", err)
	}

	srv, err := NewServer(svc, boardimg.New(boardimg.WithSquareSize(32)), report.NewFormatter(), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mr
}

// reviewRequestFixture is a five-ply Italian whose default selection is
// plies 3, 4 and 5.
func reviewRequestFixture() coachdto.ReviewRequest {
	pos := func(cp int, class string) coachdto.PositionEval {
		v := cp
		return coachdto.PositionEval{
			Lines:          []coachdto.EvalScore{{CP: &v}},
			Classification: class,
		}
	}
	positions := []coachdto.PositionEval{
		pos(20, ""),
		pos(30, ""),
		pos(25, "okay"),
		pos(30, "best"),
		pos(350, "blunder"),
		pos(60, "okay"),
	}
	positions[2].BestMove = "b1c3"
	positions[4].Opening = "Italian Game"
	positions[5].Opening = "Italian Game"
	return coachdto.ReviewRequest{
		White:     "Ana",
		Black:     "Boris",
		MovesUCI:  []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4"},
		Positions: positions,
	}
}

func httpDo(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func postReview(t *testing.T, ts *httptest.Server, gameID string, req coachdto.ReviewRequest) *http.Response {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return httpDo(t, http.MethodPost, ts.URL+"/api/games/"+gameID+"/review", payload)
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func waitForStatus(t *testing.T, url string, want int) *http.Response {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := httpDo(t, http.MethodGet, url, nil)
		if resp.StatusCode == want {
			return resp
		}
		resp.Body.Close()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("GET %s never returned %d", url, want)
	return nil
}

func TestReviewLifecycle(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	resp := postReview(t, ts, "game-42", reviewRequestFixture())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST review status = %d", resp.StatusCode)
	}
	var accepted coachdto.ReviewAccepted
	decodeBody(t, resp, &accepted)
	if accepted.GameID != "game-42" || accepted.RunID == "" {
		t.Fatalf("accepted = %+v", accepted)
	}

	resp = waitForStatus(t, ts.URL+"/api/games/game-42/explanations", http.StatusOK)
	var ge coachdto.GameExplanations
	decodeBody(t, resp, &ge)
	if ge.RunID != accepted.RunID || len(ge.Moves) != 3 {
		t.Fatalf("explanations = %+v", ge)
	}
	if ge.Moves[3].MoveSAN != "Nf3" {
		t.Fatalf("move 3 = %+v", ge.Moves[3])
	}
	if ge.Opening != "Italian Game" {
		t.Fatalf("opening = %q", ge.Opening)
	}

	resp = httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET report status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("report content type = %q", ct)
	}
	text, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(text), "Game review #game-42") {
		t.Fatalf("report body:\n%s", text)
	}
	if !strings.Contains(string(text), "[blunder]") {
		t.Fatalf("report misses classification tag:\n%s", text)
	}

	resp = httpDo(t, http.MethodGet, ts.URL+"/api/history?limit=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET history status = %d", resp.StatusCode)
	}
	var history coachdto.HistoryResponse
	decodeBody(t, resp, &history)
	if len(history.Reviews) != 1 || history.Reviews[0].GameID != "game-42" || history.Reviews[0].Moves != 3 {
		t.Fatalf("history = %+v", history)
	}
}

func TestReviewConflictAndCancel(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ts, _ := newTestServer(t, completer)

	resp := postReview(t, ts, "game-42", reviewRequestFixture())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST review status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postReview(t, ts, "game-42", reviewRequestFixture())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting POST status = %d", resp.StatusCode)
	}
	var apiErr coachdto.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "review_in_progress" {
		t.Fatalf("conflict code = %q", apiErr.Code)
	}

	resp = httpDo(t, http.MethodDelete, ts.URL+"/api/games/game-42/review", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	waitForStatus(t, ts.URL+"/api/games/game-42/progress", http.StatusNotFound).Body.Close()

	resp = httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/explanations", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("explanations after cancel status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = httpDo(t, http.MethodDelete, ts.URL+"/api/games/game-42/review", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second DELETE status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStartReviewRejectsBadPayloads(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	resp := httpDo(t, http.MethodPost, ts.URL+"/api/games/game-42/review", []byte("{"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed JSON status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	bad := reviewRequestFixture()
	bad.Positions = bad.Positions[:3]
	resp = postReview(t, ts, "game-42", bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched trace status = %d", resp.StatusCode)
	}
	var apiErr coachdto.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "bad_request" {
		t.Fatalf("bad payload code = %q", apiErr.Code)
	}
}

func TestProgressEndpoint(t *testing.T) {
	block := make(chan struct{})
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		<-block
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	resp := httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/progress", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("idle progress status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	postReview(t, ts, "game-42", reviewRequestFixture()).Body.Close()

	resp = waitForStatus(t, ts.URL+"/api/games/game-42/progress", http.StatusOK)
	var snap coachdto.ProgressSnapshot
	decodeBody(t, resp, &snap)
	if snap.GameID != "game-42" || snap.Total != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}

	close(block)
	waitForStatus(t, ts.URL+"/api/games/game-42/progress", http.StatusNotFound).Body.Close()
	waitForStatus(t, ts.URL+"/api/games/game-42/explanations", http.StatusOK).Body.Close()
}

func TestProgressWebsocket(t *testing.T) {
	block := make(chan struct{})
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		<-block
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	resp := httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/progress/ws", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("idle ws status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	postReview(t, ts, "game-42", reviewRequestFixture()).Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/games/game-42/progress/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	close(block)

	var last coachdto.ProgressSnapshot
	seen := 0
	for {
		var snap coachdto.ProgressSnapshot
		if err := wsjson.Read(ctx, conn, &snap); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("stream ended abnormally after %d frames: %v", seen, err)
			}
			break
		}
		if snap.Completed < last.Completed {
			t.Fatalf("completed went backwards: %d -> %d", last.Completed, snap.Completed)
		}
		last = snap
		seen++
	}
	if seen == 0 {
		t.Fatal("no progress frames received")
	}
	if last.Total != 3 || last.Completed != 3 {
		t.Fatalf("final frame = %+v, want 3/3", last)
	}
}

func TestBoardThumbnail(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	resp := httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/moves/3/board.png", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("board without analysis status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	postReview(t, ts, "game-42", reviewRequestFixture()).Body.Close()
	waitForStatus(t, ts.URL+"/api/games/game-42/explanations", http.StatusOK).Body.Close()

	resp = httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/moves/3/board.png", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("board status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("board content type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if side := img.Bounds().Dx(); side != 32*8+32 {
		t.Fatalf("board side = %d", side)
	}

	for _, ply := range []string{"0", "9", "x"} {
		resp = httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/moves/"+ply+"/board.png", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("ply %s status = %d", ply, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestSettingsOverrides(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	req := reviewRequestFixture()
	req.Positions[2].Classification = "excellent"
	postReview(t, ts, "game-default", req).Body.Close()

	excellent := true
	req.Settings = &coachdto.ReviewSettings{ExplainExcellent: &excellent}
	postReview(t, ts, "game-wide", req).Body.Close()

	resp := waitForStatus(t, ts.URL+"/api/games/game-default/explanations", http.StatusOK)
	var ge coachdto.GameExplanations
	decodeBody(t, resp, &ge)
	if len(ge.Moves) != 3 {
		t.Fatalf("default selection = %d moves, want 3", len(ge.Moves))
	}

	resp = waitForStatus(t, ts.URL+"/api/games/game-wide/explanations", http.StatusOK)
	decodeBody(t, resp, &ge)
	if len(ge.Moves) != 4 {
		t.Fatalf("widened selection = %d moves, want 4", len(ge.Moves))
	}
}

func TestHealth(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return okReply, nil
	})
	ts, mr := newTestServer(t, completer)

	resp := httpDo(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	mr.Close()
	resp = httpDo(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz with dead redis status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnknownRoutes(t *testing.T) {
	completer := explain.CompleterFunc(func(ctx context.Context, system, user string) (string, error) {
		return okReply, nil
	})
	ts, _ := newTestServer(t, completer)

	resp := httpDo(t, http.MethodGet, ts.URL+"/api/games/game-42/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown resource status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = httpDo(t, http.MethodPut, ts.URL+"/api/games/game-42/review", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("PUT review status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
