package webr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	ch chan Event
}

func newRecorder(c *Client) *recorder {
	r := &recorder{ch: make(chan Event, 64)}
	c.Subscribe(ListenerFunc(func(evt Event) { r.ch <- evt }))
	return r
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case evt := <-r.ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case evt := <-r.ch:
		t.Fatalf("unexpected event %#v", evt)
	case <-time.After(d):
	}
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	c := New(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func waitCall(t *testing.T, call *Call) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := call.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return res
}

func TestDefaults(t *testing.T) {
	c := newTestClient(t, Options{})
	if !c.Async() {
		t.Fatalf("async should default to true")
	}
	if c.BaseURL() != "" || c.Data() != "" || len(c.Headers()) != 0 {
		t.Fatalf("unexpected initial configuration")
	}
}

func TestURLIsLiteralConcatenation(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.RequestURI
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	c.SetAsync(false)
	c.SetBaseURL(srv.URL + "/api/")
	call := c.Get(context.Background(), "/v1//items?q=1", "t1")

	res := waitCall(t, call)
	if res.Request.URL != srv.URL+"/api//v1//items?q=1" {
		t.Fatalf("URL = %s", res.Request.URL)
	}
	if gotURI != "/api//v1//items?q=1" {
		t.Fatalf("server saw %s", gotURI)
	}
}

func TestGetNeverWritesBody(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	c.SetAsync(false)
	c.SetBaseURL(srv.URL)
	c.SetData(`{"ignored":true}`)
	waitCall(t, c.Get(context.Background(), "/", "g"))

	if len(gotBody) != 0 {
		t.Fatalf("GET carried body %q", gotBody)
	}
}

func TestNonGetVerbsWriteConfiguredBody(t *testing.T) {
	type seen struct {
		method string
		body   string
		header string
	}
	var mu sync.Mutex
	var got []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, seen{method: r.Method, body: string(raw), header: r.Header.Get("X-Api-Key")})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	c.SetAsync(false)
	c.SetBaseURL(srv.URL)
	c.SetHeaders(map[string]string{"X-Api-Key": "secret"})
	c.SetData("payload")

	ctx := context.Background()
	waitCall(t, c.Post(ctx, "/p", "post"))
	waitCall(t, c.Put(ctx, "/p", "put"))
	waitCall(t, c.Patch(ctx, "/p", "patch"))
	waitCall(t, c.Delete(ctx, "/p", "delete"))

	want := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	if len(got) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(got))
	}
	for i, m := range want {
		if got[i].method != m || got[i].body != "payload" || got[i].header != "secret" {
			t.Fatalf("request %d = %#v", i, got[i])
		}
	}
}

func TestEmptyDataIsNotWritten(t *testing.T) {
	var contentLength int64 = -2
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentLength = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	c.SetAsync(false)
	c.SetBaseURL(srv.URL)
	waitCall(t, c.Post(context.Background(), "", "empty"))

	if contentLength > 0 {
		t.Fatalf("expected no body, content length %d", contentLength)
	}
}

func TestSuccessDeliversCompletedWithJoinedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "line one\nline two\r\nline three\n")
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL(srv.URL)
	call := c.Get(context.Background(), "/ok", "tag-ok")

	evt := rec.next(t)
	if evt.Name != EventRequestCompleted {
		t.Fatalf("event = %s", evt.Name)
	}
	if evt.Tag != "tag-ok" {
		t.Fatalf("tag = %s", evt.Tag)
	}
	if evt.Payload != "line oneline twoline three" {
		t.Fatalf("payload = %q", evt.Payload)
	}
	if evt.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", evt.StatusCode)
	}
	res := waitCall(t, call)
	if res.Err != nil {
		t.Fatalf("unexpected result error %v", res.Err)
	}
	rec.none(t, 50*time.Millisecond)
}

func TestNon2xxDeliversFailedWithStatusAndBody(t *testing.T) {
	for _, status := range []int{http.StatusMultipleChoices, http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, "nope\n")
		}))

		c := newTestClient(t, Options{})
		rec := newRecorder(c)
		c.SetBaseURL(srv.URL)
		call := c.Get(context.Background(), "/missing", "tag-fail")

		evt := rec.next(t)
		if evt.Name != EventRequestFailed || evt.Tag != "tag-fail" {
			t.Fatalf("status %d: event = %#v", status, evt)
		}
		if want := fmt.Sprintf("Response code: %d. Response: nope", status); evt.Payload != want {
			t.Fatalf("payload = %q, want %q", evt.Payload, want)
		}
		if evt.StatusCode != status {
			t.Fatalf("status = %d, want %d", evt.StatusCode, status)
		}
		res := waitCall(t, call)
		if !errors.Is(res.Err, ErrRequestFailed) {
			t.Fatalf("status %d: result err = %v", status, res.Err)
		}
		srv.Close()
	}
}

func TestRedirectIsReportedAsFailure(t *testing.T) {
	var landed atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/from", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/to", http.StatusFound)
	})
	mux.HandleFunc("/to", func(w http.ResponseWriter, _ *http.Request) {
		landed.Store(true)
		_, _ = io.WriteString(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL(srv.URL)
	call := c.Get(context.Background(), "/from", "redirect")

	evt := rec.next(t)
	if evt.Name != EventRequestFailed || evt.StatusCode != http.StatusFound {
		t.Fatalf("event = %#v", evt)
	}
	if !strings.HasPrefix(evt.Payload, "Response code: 302. Response: ") {
		t.Fatalf("payload = %q", evt.Payload)
	}
	if res := waitCall(t, call); !errors.Is(res.Err, ErrRequestFailed) {
		t.Fatalf("result err = %v", res.Err)
	}
	if landed.Load() {
		t.Fatalf("redirect target was requested")
	}
}

func TestTransportFailureDeliversIOError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL(base)
	c.Get(context.Background(), "/", "io")

	evt := rec.next(t)
	if evt.Name != EventRequestFailed || evt.Tag != "io" {
		t.Fatalf("event = %#v", evt)
	}
	if !strings.HasPrefix(evt.Payload, "IO error: ") {
		t.Fatalf("payload = %q", evt.Payload)
	}
}

func TestEmptyBaseURLIsRejectedAndPreviousKept(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL("https://api.example.com")

	c.SetBaseURL("")
	evt := rec.next(t)
	if evt.Name != EventError || evt.Code != CodeBaseURL {
		t.Fatalf("event = %#v", evt)
	}
	if c.BaseURL() != "https://api.example.com" {
		t.Fatalf("base URL changed to %q", c.BaseURL())
	}

	// Only the empty string is rejected; blanks are stored and fail per call.
	c.SetBaseURL("   ")
	if c.BaseURL() != "   " {
		t.Fatalf("base URL = %q", c.BaseURL())
	}
	c.Get(context.Background(), "/x", "blank")
	if evt := rec.next(t); evt.Code != CodeMalformedURL {
		t.Fatalf("event = %#v", evt)
	}
}

func TestMalformedURLIsConfigurationError(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL("not a url")
	call := c.Get(context.Background(), "/x", "bad")

	evt := rec.next(t)
	if evt.Name != EventError || evt.Code != CodeMalformedURL {
		t.Fatalf("event = %#v", evt)
	}
	if evt.Code != "MalformedURLException" {
		t.Fatalf("code = %q", evt.Code)
	}
	if !strings.HasPrefix(evt.Payload, "Invalid URL: ") {
		t.Fatalf("payload = %q", evt.Payload)
	}
	res := waitCall(t, call)
	if !errors.Is(res.Err, ErrConfiguration) {
		t.Fatalf("result err = %v", res.Err)
	}
}

func TestUnsupportedSchemeIsMalformed(t *testing.T) {
	c := newTestClient(t, Options{})
	c.SetAsync(false)
	c.SetBaseURL("ftp://files.example.com")
	res := waitCall(t, c.Get(context.Background(), "/a", "ftp"))
	if res.Event.Code != CodeMalformedURL {
		t.Fatalf("event = %#v", res.Event)
	}
}

func TestEmptyURLIsRequestError(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.Get(context.Background(), "", "empty")

	evt := rec.next(t)
	if evt.Name != EventError || evt.Code != CodeRequest {
		t.Fatalf("event = %#v", evt)
	}
	if evt.Payload != "The URL cannot be null or empty." {
		t.Fatalf("payload = %q", evt.Payload)
	}
}

func TestSyncCallResolvesBeforeReturning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "done")
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	c.SetAsync(false)
	c.SetBaseURL(srv.URL)
	call := c.Get(context.Background(), "", "sync")

	res, ok := call.Result()
	if !ok {
		t.Fatalf("sync call returned unresolved")
	}
	if res.Event.Payload != "done" {
		t.Fatalf("payload = %q", res.Event.Payload)
	}
}

func TestConcurrentAsyncCallsEachDeliverOwnTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(50 * time.Millisecond)
		}
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL(srv.URL)
	c.Get(context.Background(), "/slow", "a")
	c.Get(context.Background(), "/fast", "b")

	seen := map[string]string{}
	for i := 0; i < 2; i++ {
		evt := rec.next(t)
		if _, dup := seen[evt.Tag]; dup {
			t.Fatalf("duplicate event for tag %s", evt.Tag)
		}
		seen[evt.Tag] = evt.Payload
	}
	if seen["a"] != "/slow" || seen["b"] != "/fast" {
		t.Fatalf("events = %#v", seen)
	}
	rec.none(t, 100*time.Millisecond)
}

func TestConfigurationIsSnapshottedPerCall(t *testing.T) {
	release := make(chan struct{})
	gotHeader := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		gotHeader <- r.Header.Get("X-Version")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	c.SetBaseURL(srv.URL)
	c.SetHeaders(map[string]string{"X-Version": "1"})
	call := c.Get(context.Background(), "", "snap")

	c.SetHeaders(map[string]string{"X-Version": "2"})
	c.SetBaseURL("http://127.0.0.1:1")
	close(release)

	res := waitCall(t, call)
	if res.Event.Name != EventRequestCompleted {
		t.Fatalf("event = %#v", res.Event)
	}
	if got := <-gotHeader; got != "1" {
		t.Fatalf("header = %q, want snapshot value 1", got)
	}
	if res.Request.Config.Headers["X-Version"] != "1" {
		t.Fatalf("snapshot = %#v", res.Request.Config)
	}
}

func TestCancelResolvesAsFailed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetBaseURL(srv.URL)
	call := c.Get(context.Background(), "/hang", "cancel-me")
	call.Cancel()

	evt := rec.next(t)
	if evt.Name != EventRequestFailed || evt.Tag != "cancel-me" {
		t.Fatalf("event = %#v", evt)
	}
	if !strings.HasPrefix(evt.Payload, "Request cancelled: ") {
		t.Fatalf("payload = %q", evt.Payload)
	}
	res := waitCall(t, call)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("result err = %v", res.Err)
	}
	rec.none(t, 50*time.Millisecond)
}

func TestMaxConcurrentBoundsAsyncExchanges(t *testing.T) {
	var active, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{MaxConcurrent: 2})
	c.SetBaseURL(srv.URL)
	calls := make([]*Call, 0, 6)
	for i := 0; i < 6; i++ {
		calls = append(calls, c.Get(context.Background(), "", "p"))
	}
	for _, call := range calls {
		waitCall(t, call)
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Fatalf("peak concurrency %d exceeds limit", got)
	}
}

func TestInvalidHeadersAreRejected(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)
	c.SetHeaders(map[string]string{"Accept": "application/json"})

	c.SetHeaders(map[string]string{"Bad Name": "x"})
	if evt := rec.next(t); evt.Code != CodeHeaders {
		t.Fatalf("event = %#v", evt)
	}
	c.SetHeaders(map[string]string{"X-Ok": "line\nbreak"})
	if evt := rec.next(t); evt.Code != CodeHeaders {
		t.Fatalf("event = %#v", evt)
	}
	if got := c.Headers(); len(got) != 1 || got["Accept"] != "application/json" {
		t.Fatalf("headers = %#v", got)
	}

	c.SetHeaders(nil)
	if len(c.Headers()) != 0 {
		t.Fatalf("nil should clear headers")
	}
}

func TestHeadersReturnsCopy(t *testing.T) {
	c := newTestClient(t, Options{})
	c.SetHeaders(map[string]string{"A": "1"})
	h := c.Headers()
	h["A"] = "changed"
	if c.Headers()["A"] != "1" {
		t.Fatalf("Headers leaked internal map")
	}
}

func TestJSONToDictionaryFailureReportsErrorAndReturnsEmpty(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)

	m := c.JSONToDictionary("{")
	if m == nil || len(m) != 0 {
		t.Fatalf("expected empty map, got %#v", m)
	}
	evt := rec.next(t)
	if evt.Name != EventError || evt.Code != CodeJSONToDictionary {
		t.Fatalf("event = %#v", evt)
	}
}

func TestDictionaryJSONRoundTrip(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)

	in := map[string]any{"a": "1", "b": "two"}
	out := c.JSONToDictionary(c.DictionaryToJSON(in))
	if len(out) != 2 || out["a"] != "1" || out["b"] != "two" {
		t.Fatalf("round trip = %#v", out)
	}
	rec.none(t, 50*time.Millisecond)
}

func TestDictionaryToJSONFailureReturnsEmptyObject(t *testing.T) {
	c := newTestClient(t, Options{})
	rec := newRecorder(c)

	if got := c.DictionaryToJSON(map[string]any{"ch": make(chan int)}); got != "{}" {
		t.Fatalf("got %q", got)
	}
	if evt := rec.next(t); evt.Code != CodeDictionaryToJSON {
		t.Fatalf("event = %#v", evt)
	}
}

func TestCallsAfterCloseResolveWithErrClosed(t *testing.T) {
	c := New(Options{})
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	call := c.Get(context.Background(), "/x", "late")
	res, ok := call.Result()
	if !ok || !errors.Is(res.Err, ErrClosed) {
		t.Fatalf("result = %#v ok=%v", res, ok)
	}
}

func TestCloseDeliversPendingEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{})
	var count int32
	c.Subscribe(ListenerFunc(func(Event) { atomic.AddInt32(&count, 1) }))
	c.SetBaseURL(srv.URL)
	for i := 0; i < 3; i++ {
		c.Get(context.Background(), "", "pending")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := atomic.LoadInt32(&count); got != 3 {
		t.Fatalf("delivered %d events, want 3", got)
	}
}

func TestPanickingListenerDoesNotStopDelivery(t *testing.T) {
	c := newTestClient(t, Options{})
	c.Subscribe(ListenerFunc(func(Event) { panic("boom") }))
	rec := newRecorder(c)

	c.SetBaseURL("")
	c.SetBaseURL("")
	rec.next(t)
	rec.next(t)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := newTestClient(t, Options{})
	var count int32
	unsubscribe := c.Subscribe(ListenerFunc(func(Event) { atomic.AddInt32(&count, 1) }))
	rec := newRecorder(c)

	c.SetBaseURL("")
	rec.next(t)
	unsubscribe()
	c.SetBaseURL("")
	rec.next(t)

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("unsubscribed listener saw %d events", got)
	}
}

func TestCallbacksRouteByEventName(t *testing.T) {
	var completed, failed, errored []string
	cb := Callbacks{
		OnCompleted: func(tag, body string) { completed = append(completed, tag+"="+body) },
		OnFailed:    func(tag, msg string) { failed = append(failed, tag+"="+msg) },
		OnError:     func(code, msg string) { errored = append(errored, code+"="+msg) },
	}
	cb.HandleEvent(Event{Name: EventRequestCompleted, Tag: "t1", Payload: "ok"})
	cb.HandleEvent(Event{Name: EventRequestFailed, Tag: "t2", Payload: "bad"})
	cb.HandleEvent(Event{Name: EventError, Code: CodeBaseURL, Tag: "ignored", Payload: "empty"})
	Callbacks{}.HandleEvent(Event{Name: EventRequestCompleted})

	if len(completed) != 1 || completed[0] != "t1=ok" {
		t.Fatalf("completed = %v", completed)
	}
	if len(failed) != 1 || failed[0] != "t2=bad" {
		t.Fatalf("failed = %v", failed)
	}
	if len(errored) != 1 || errored[0] != CodeBaseURL+"=empty" {
		t.Fatalf("errored = %v", errored)
	}
}

func TestRateLimitedClientStillDelivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{RequestsPerSecond: 50})
	c.SetBaseURL(srv.URL)
	a := c.Get(context.Background(), "", "r1")
	b := c.Get(context.Background(), "", "r2")
	if res := waitCall(t, a); res.Event.Name != EventRequestCompleted {
		t.Fatalf("r1 = %#v", res.Event)
	}
	if res := waitCall(t, b); res.Event.Name != EventRequestCompleted {
		t.Fatalf("r2 = %#v", res.Event)
	}
}
