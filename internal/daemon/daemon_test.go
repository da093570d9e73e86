package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"corrflow/internal/api"
	"corrflow/internal/daemon"
	"corrflow/internal/logging"
	"corrflow/internal/testsupport"
)

type harness struct {
	t      *testing.T
	daemon *daemon.Daemon
	org    testsupport.Org
	base   string
}

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	org := testsupport.SeedOrg(t, st)
	d, err := daemon.New(cfg, st, logging.NewNop(), daemon.WithSessionID("test-session"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)
	return &harness{t: t, daemon: d, org: org, base: "http://" + d.Addr()}
}

func (h *harness) do(method, path string, userID int64, body any) (int, []byte) {
	h.t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.base+path, reader)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if userID > 0 {
		req.Header.Set("Authorization", "Bearer "+testsupport.Token(h.t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, data
}

func (h *harness) decode(data []byte, dst any) {
	h.t.Helper()
	if err := json.Unmarshal(data, dst); err != nil {
		h.t.Fatalf("decode %s: %v", data, err)
	}
}

func (h *harness) sign(id, userID int64, decision string) (int, api.SignResponse) {
	h.t.Helper()
	code, data := h.do(http.MethodPost, "/api/correspondences/"+itoa(id)+"/sign", userID, api.SignRequest{Decision: decision})
	var out api.SignResponse
	if code == http.StatusOK {
		h.decode(data, &out)
	}
	return code, out
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if status := d.Status(ctx); !status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestNewRequiresSecret(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Auth.JWTSecret = ""
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := daemon.New(cfg, st, logging.NewNop()); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestHealthIsPublic(t *testing.T) {
	h := startDaemon(t)
	code, data := h.do(http.MethodGet, "/api/health", 0, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, data)
	}
	var health api.Health
	h.decode(data, &health)
	if health.Status != "ok" || !health.Integrity {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestAuthentication(t *testing.T) {
	h := startDaemon(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "malformed", header: "Token abc"},
		{name: "wrong secret", header: "Bearer " + testsupport.SignToken(t, "other-secret", h.org.Sender, time.Hour)},
		{name: "expired", header: "Bearer " + testsupport.SignToken(t, testsupport.TestJWTSecret, h.org.Sender, -time.Minute)},
		{name: "unknown user", header: "Bearer " + testsupport.Token(t, 999)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, h.base+"/api/correspondences", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
			var body api.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Kind != "unauthenticated" || body.Error == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestApprovalChainOverHTTP(t *testing.T) {
	h := startDaemon(t)
	org := h.org

	code, data := h.do(http.MethodPost, "/api/correspondences", org.Sender, api.CreateRequest{
		Subject:    "طلب إجازة",
		Content:    "نص المراسلة",
		ReceiverID: org.Final,
		CC:         []api.CCRecipient{{Type: "user", RecipientID: org.CCUser}},
	})
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", code, data)
	}
	var created api.CreateResponse
	h.decode(data, &created)
	if created.Status != "pending" || created.Handler != org.DivManager {
		t.Fatalf("unexpected create response %+v", created)
	}

	if code, _ := h.sign(created.ID, org.DeptManager, "موافق"); code != http.StatusForbidden {
		t.Fatalf("out-of-turn sign: expected 403, got %d", code)
	}

	steps := []struct {
		user    int64
		status  string
		handler int64
	}{
		{org.DivManager, "pending", org.DeptManager},
		{org.DeptManager, "pending", org.Final},
		{org.Final, "approved", 0},
	}
	for _, step := range steps {
		code, res := h.sign(created.ID, step.user, "موافق")
		if code != http.StatusOK {
			t.Fatalf("sign by %d: expected 200, got %d", step.user, code)
		}
		if res.Status != step.status || res.NextHandler != step.handler {
			t.Fatalf("sign by %d: unexpected result %+v", step.user, res)
		}
	}

	if code, _ := h.sign(created.ID, org.Final, "موافق"); code != http.StatusForbidden {
		t.Fatalf("repeat sign: expected 403, got %d", code)
	}

	code, data = h.do(http.MethodGet, "/api/correspondences/"+itoa(created.ID), org.Sender, nil)
	if code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", code, data)
	}
	var detail api.CorrespondenceDetail
	h.decode(data, &detail)
	if detail.Status != "approved" || len(detail.Stages) != 3 || len(detail.Signatures) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	for _, stage := range detail.Stages {
		if stage.Status != "approved" {
			t.Fatalf("stage %s not approved: %+v", stage.Name, stage)
		}
	}

	if code, _ := h.do(http.MethodGet, "/api/correspondences/"+itoa(created.ID), org.Outsider, nil); code != http.StatusForbidden {
		t.Fatalf("outsider get: expected 403, got %d", code)
	}

	// Notifications are written by the background dispatcher.
	deadline := time.Now().Add(5 * time.Second)
	for {
		code, data = h.do(http.MethodGet, "/api/notifications", org.CCUser, nil)
		if code != http.StatusOK {
			t.Fatalf("notifications: expected 200, got %d", code)
		}
		var inbox api.NotificationList
		h.decode(data, &inbox)
		if len(inbox.Items) > 0 {
			if inbox.Unread != 1 || inbox.Items[0].RelatedID != created.ID {
				t.Fatalf("unexpected inbox %+v", inbox)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("copy notification never arrived")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if code, _ := h.do(http.MethodPut, "/api/notifications/read-all", org.CCUser, nil); code != http.StatusOK {
		t.Fatalf("read-all: expected 200, got %d", code)
	}
}

func TestRejectionOverHTTP(t *testing.T) {
	h := startDaemon(t)
	code, data := h.do(http.MethodPost, "/api/correspondences", h.org.Sender, api.CreateRequest{Subject: "مذكرة", ReceiverID: h.org.Final})
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", code, data)
	}
	var created api.CreateResponse
	h.decode(data, &created)

	code, res := h.sign(created.ID, h.org.DivManager, "مرفوض")
	if code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", code)
	}
	if res.Status != "rejected" || !res.Terminal || res.Decision != "reject" {
		t.Fatalf("unexpected rejection %+v", res)
	}
	if code, _ := h.sign(created.ID, h.org.DeptManager, "موافق"); code != http.StatusForbidden {
		t.Fatalf("sign after rejection: expected 403, got %d", code)
	}
}

func TestRequestValidation(t *testing.T) {
	h := startDaemon(t)
	cases := []struct {
		name string
		body string
	}{
		{name: "missing subject", body: `{"receiverId": 5}`},
		{name: "unknown field", body: `{"subject": "x", "colour": "red"}`},
		{name: "bad priority", body: `{"subject": "x", "priority": "asap"}`},
		{name: "malformed", body: `{"subject": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, data := h.do(http.MethodPost, "/api/correspondences", h.org.Sender, tc.body)
			if code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", code, data)
			}
		})
	}

	if code, _ := h.do(http.MethodGet, "/api/correspondences/abc", h.org.Sender, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", code)
	}
	if code, _ := h.do(http.MethodGet, "/api/correspondences?archived=maybe", h.org.Sender, nil); code != http.StatusBadRequest {
		t.Fatalf("bad filter: expected 400, got %d", code)
	}
}

func TestDraftEndpoints(t *testing.T) {
	h := startDaemon(t)
	code, data := h.do(http.MethodPost, "/api/correspondences", h.org.Sender, api.CreateRequest{Subject: "مسودة", ReceiverID: h.org.Final, Draft: true})
	if code != http.StatusCreated {
		t.Fatalf("create draft: expected 201, got %d: %s", code, data)
	}
	var created api.CreateResponse
	h.decode(data, &created)
	if created.Status != "draft" {
		t.Fatalf("expected draft, got %+v", created)
	}
	path := "/api/correspondences/" + itoa(created.ID)

	code, data = h.do(http.MethodPut, path, h.org.Sender, `{"subject": "مسودة معدلة", "priority": "urgent"}`)
	if code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", code, data)
	}
	var detail api.CorrespondenceDetail
	h.decode(data, &detail)
	if detail.Subject != "مسودة معدلة" || detail.Priority != "urgent" {
		t.Fatalf("update not applied: %+v", detail.Correspondence)
	}

	code, data = h.do(http.MethodPost, path+"/submit", h.org.Sender, nil)
	if code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", code, data)
	}
	if code, _ := h.do(http.MethodPut, path, h.org.Sender, `{"subject": "late"}`); code != http.StatusConflict {
		t.Fatalf("update after submit: expected 409, got %d", code)
	}

	code, data = h.do(http.MethodPost, path+"/comments", h.org.DivManager, api.CommentRequest{Text: "يرجى المراجعة"})
	if code != http.StatusCreated {
		t.Fatalf("comment: expected 201, got %d: %s", code, data)
	}
	code, data = h.do(http.MethodGet, path+"/comments", h.org.Sender, nil)
	var comments []api.Comment
	h.decode(data, &comments)
	if code != http.StatusOK || len(comments) != 1 {
		t.Fatalf("comments: got %d %s", code, data)
	}

	code, data = h.do(http.MethodPost, path+"/archive", h.org.Sender, nil)
	var archived api.ArchiveResponse
	h.decode(data, &archived)
	if code != http.StatusOK || !archived.Changed {
		t.Fatalf("archive: got %d %s", code, data)
	}

	if code, _ := h.do(http.MethodDelete, path, h.org.Sender, nil); code != http.StatusForbidden {
		t.Fatalf("delete by sender: expected 403, got %d", code)
	}
	if code, _ := h.do(http.MethodDelete, path, h.org.Admin, nil); code != http.StatusNoContent {
		t.Fatalf("delete by admin: expected 204, got %d", code)
	}
	if code, _ := h.do(http.MethodGet, path, h.org.Admin, nil); code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", code)
	}
}

func TestManagerOnlyRoutes(t *testing.T) {
	h := startDaemon(t)
	if code, _ := h.do(http.MethodGet, "/api/audit-logs", h.org.Sender, nil); code != http.StatusForbidden {
		t.Fatalf("audit as employee: expected 403, got %d", code)
	}
	if code, _ := h.do(http.MethodGet, "/api/audit-logs?page=1&limit=10", h.org.Admin, nil); code != http.StatusOK {
		t.Fatalf("audit as admin: expected 200, got %d", code)
	}
	code, data := h.do(http.MethodGet, "/api/status", h.org.Admin, nil)
	var status api.DaemonStatus
	h.decode(data, &status)
	if code != http.StatusOK || !status.Running || status.SessionID != "test-session" {
		t.Fatalf("status: got %d %s", code, data)
	}
	if code, _ := h.do(http.MethodPut, "/api/org/divisions/20/manager", h.org.DeptManager, `{"managerId": 6}`); code != http.StatusForbidden {
		t.Fatalf("set manager as manager: expected 403, got %d", code)
	}
	if code, data := h.do(http.MethodPut, "/api/org/divisions/20/manager", h.org.Admin, `{"managerId": 6}`); code != http.StatusOK {
		t.Fatalf("set manager as admin: expected 200, got %d: %s", code, data)
	}
	code, data = h.do(http.MethodPost, "/api/correspondences", h.org.Sender, api.CreateRequest{Subject: "بعد التغيير", ReceiverID: h.org.Final})
	var created api.CreateResponse
	h.decode(data, &created)
	if code != http.StatusCreated || created.Handler != h.org.CCUser {
		t.Fatalf("new division manager not used: %d %s", code, data)
	}
}

func TestRateLimit(t *testing.T) {
	h := startDaemon(t, testsupport.WithRateLimit(1, 60, 2))
	var limited bool
	for i := 0; i < 4; i++ {
		code, _ := h.do(http.MethodGet, "/api/health", 0, nil)
		if code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected the limiter to reject a burst of requests")
	}
}

func TestNotificationStream(t *testing.T) {
	h := startDaemon(t)
	url := "ws://" + h.daemon.Addr() + "/api/notifications/stream?token=" + testsupport.Token(t, h.org.DivManager)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close()

	if _, _, err := websocket.DefaultDialer.Dial("ws://"+h.daemon.Addr()+"/api/notifications/stream", nil); err == nil {
		t.Fatal("expected unauthenticated stream to be refused")
	}

	// Wait until the hub has registered the subscriber before publishing.
	time.Sleep(50 * time.Millisecond)
	code, data := h.do(http.MethodPost, "/api/correspondences", h.org.Sender, api.CreateRequest{Subject: "عاجل", ReceiverID: h.org.Final})
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", code, data)
	}
	var created api.CreateResponse
	h.decode(data, &created)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame struct {
		Type      string `json:"type"`
		RelatedID int64  `json:"relatedId"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "approval_needed" || frame.RelatedID != created.ID {
		t.Fatalf("unexpected frame %+v", frame)
	}
}
