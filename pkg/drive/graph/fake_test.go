package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/marmos91/onedrivefs/pkg/drive/memory"
	"golang.org/x/oauth2"
)

const (
	fakeToken  = "test-token"
	apiPrefix  = "/v1.0/me/drive/"
	listPageSz = 2
)

// fakeGraph is an httptest server speaking the subset of the Graph drive API
// the client uses, backed by a memory drive.
type fakeGraph struct {
	mem *memory.MemoryDrive
	srv *httptest.Server

	mu         sync.Mutex
	requests   []string
	apiAuth    []string
	uploadAuth []string
	sessions   map[string]*drive.UploadSession
	monitors   map[string]*pendingCopy
	nextID     int

	// throttle answers the next n API requests with 429
	throttle int
	// partial answers content downloads with 206
	partial bool
	// copyPolls is how many monitor polls report inProgress before the copy runs
	copyPolls int
}

type pendingCopy struct {
	remaining int
	run       func() error
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	f := &fakeGraph{
		mem:      memory.New(),
		sessions: make(map[string]*drive.UploadSession),
		monitors: make(map[string]*pendingCopy),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// client returns a Client authenticated with a static token.
func (f *fakeGraph) client(cfg Config) *Client {
	cfg.BaseURL = f.srv.URL + "/v1.0"
	cfg.DriveRoot = "me/drive"
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = oauth2.NewClient(context.Background(),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: fakeToken, TokenType: "Bearer"}))
	}
	if cfg.CopyPollInterval == 0 {
		cfg.CopyPollInterval = time.Millisecond
	}
	return New(cfg)
}

// configure mutates the fake's behaviour under its lock.
func (f *fakeGraph) configure(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

// count returns how many requests matched method and contained fragment.
func (f *fakeGraph) count(method, fragment string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, method+" ") && strings.Contains(r, fragment) {
			n++
		}
	}
	return n
}

func (f *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path

	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+p)
	isAPI := strings.HasPrefix(p, apiPrefix)
	if isAPI {
		f.apiAuth = append(f.apiAuth, r.Header.Get("Authorization"))
		if f.throttle > 0 {
			f.throttle--
			f.mu.Unlock()
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusTooManyRequests, graphError("activityLimitReached", "throttled"))
			return
		}
	}
	if strings.HasPrefix(p, "/upload/") {
		f.uploadAuth = append(f.uploadAuth, r.Header.Get("Authorization"))
	}
	f.mu.Unlock()

	switch {
	case isAPI:
		f.serveAPI(w, r, strings.TrimPrefix(p, apiPrefix))
	case strings.HasPrefix(p, "/upload/"):
		f.serveUpload(w, r, strings.TrimPrefix(p, "/upload/"))
	case strings.HasPrefix(p, "/monitor/"):
		f.serveMonitor(w, strings.TrimPrefix(p, "/monitor/"))
	case p == "/download":
		f.serveDownload(w, r)
	default:
		writeJSON(w, http.StatusNotFound, graphError("itemNotFound", p))
	}
}

func (f *fakeGraph) serveAPI(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "root":
		f.servePath(w, r, "/", "")
	case strings.HasPrefix(rest, "root/"):
		f.servePath(w, r, "/", strings.TrimPrefix(rest, "root/"))
	case strings.HasPrefix(rest, "root:"):
		body := strings.TrimPrefix(rest, "root:")
		if i := strings.Index(body, ":/"); i >= 0 {
			f.servePath(w, r, body[:i], body[i+2:])
		} else {
			f.servePath(w, r, body, "")
		}
	case strings.HasPrefix(rest, "items/"):
		f.serveItem(w, r, strings.TrimPrefix(rest, "items/"))
	default:
		writeJSON(w, http.StatusBadRequest, graphError("invalidRequest", rest))
	}
}

func (f *fakeGraph) servePath(w http.ResponseWriter, r *http.Request, p, action string) {
	ctx := r.Context()

	switch {
	case r.Method == http.MethodGet && action == "":
		item, err := f.mem.GetItem(ctx, p)
		respond(w, http.StatusOK, item, err)

	case r.Method == http.MethodGet && action == "children":
		items, err := f.mem.ListChildren(ctx, p)
		if err != nil {
			writeDriveError(w, err)
			return
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		end := min(skip+listPageSz, len(items))
		page := map[string]any{"value": items[min(skip, len(items)):end]}
		if end < len(items) {
			page["@odata.nextLink"] = fmt.Sprintf("%s%s?skip=%d", f.srv.URL, r.URL.Path, end)
		}
		writeJSON(w, http.StatusOK, page)

	case r.Method == http.MethodGet && action == "content":
		item, err := f.mem.GetItem(ctx, p)
		if err != nil {
			writeDriveError(w, err)
			return
		}
		if item.IsDir() {
			writeJSON(w, http.StatusNotFound, graphError("itemNotFound", p))
			return
		}
		f.mu.Lock()
		partial := f.partial
		f.mu.Unlock()
		if partial {
			w.WriteHeader(http.StatusPartialContent)
			return
		}
		http.Redirect(w, r, f.srv.URL+"/download?path="+url.QueryEscape(p), http.StatusFound)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, graphError("invalidRequest", r.Method+" "+action))
	}
}

func (f *fakeGraph) serveItem(w http.ResponseWriter, r *http.Request, rest string) {
	ctx := r.Context()

	// items/{parent}:/{name}:/{action}
	if i := strings.Index(rest, ":/"); i >= 0 {
		parent := drive.ItemID(rest[:i])
		tail := rest[i+2:]
		j := strings.Index(tail, ":/")
		if j < 0 {
			writeJSON(w, http.StatusBadRequest, graphError("invalidRequest", rest))
			return
		}
		name, action := tail[:j], tail[j+2:]

		switch {
		case r.Method == http.MethodPut && action == "content":
			data, _ := io.ReadAll(r.Body)
			item, err := f.mem.UploadNew(ctx, parent, name, data)
			respond(w, http.StatusCreated, item, err)
		case r.Method == http.MethodPost && action == "createUploadSession":
			s, err := f.mem.CreateUploadSession(ctx, parent, name)
			if err != nil {
				writeDriveError(w, err)
				return
			}
			f.mu.Lock()
			f.nextID++
			token := strconv.Itoa(f.nextID)
			f.sessions[token] = s
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, drive.UploadSession{
				UploadURL:          f.srv.URL + "/upload/" + token,
				ExpirationDateTime: s.ExpirationDateTime,
			})
		default:
			writeJSON(w, http.StatusMethodNotAllowed, graphError("invalidRequest", action))
		}
		return
	}

	// items/{id}[/{action}]
	id, action, _ := strings.Cut(rest, "/")
	itemID := drive.ItemID(id)

	switch {
	case r.Method == http.MethodGet && action == "":
		item, err := f.mem.GetItemByID(ctx, itemID)
		respond(w, http.StatusOK, item, err)

	case r.Method == http.MethodPatch && action == "":
		var update drive.ItemUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeJSON(w, http.StatusBadRequest, graphError("invalidRequest", err.Error()))
			return
		}
		item, err := f.mem.UpdateItem(ctx, itemID, update)
		respond(w, http.StatusOK, item, err)

	case r.Method == http.MethodDelete && action == "":
		if err := f.mem.DeleteItem(ctx, itemID); err != nil {
			writeDriveError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut && action == "content":
		data, _ := io.ReadAll(r.Body)
		item, err := f.mem.UploadReplace(ctx, itemID, data)
		respond(w, http.StatusOK, item, err)

	case r.Method == http.MethodPost && action == "children":
		var body struct {
			Name     string `json:"name"`
			Conflict string `json:"@microsoft.graph.conflictBehavior"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Conflict != "fail" {
			writeJSON(w, http.StatusBadRequest, graphError("invalidRequest", "bad folder request"))
			return
		}
		item, err := f.mem.CreateFolder(ctx, itemID, body.Name)
		respond(w, http.StatusCreated, item, err)

	case r.Method == http.MethodPost && action == "copy":
		var body struct {
			ParentReference drive.ItemReference `json:"parentReference"`
			Name            string              `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, graphError("invalidRequest", err.Error()))
			return
		}
		f.mu.Lock()
		f.nextID++
		token := strconv.Itoa(f.nextID)
		f.monitors[token] = &pendingCopy{
			remaining: f.copyPolls,
			run: func() error {
				return f.mem.Copy(context.Background(), itemID, body.ParentReference, body.Name)
			},
		}
		f.mu.Unlock()
		w.Header().Set("Location", f.srv.URL+"/monitor/"+token)
		w.WriteHeader(http.StatusAccepted)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, graphError("invalidRequest", r.Method+" "+action))
	}
}

func (f *fakeGraph) serveUpload(w http.ResponseWriter, r *http.Request, token string) {
	f.mu.Lock()
	s, ok := f.sessions[token]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, graphError("itemNotFound", "upload session"))
		return
	}

	var br drive.ByteRange
	if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &br.Start, &br.End, &br.Total); err != nil {
		writeJSON(w, http.StatusBadRequest, graphError("invalidRange", err.Error()))
		return
	}
	data, _ := io.ReadAll(r.Body)
	if r.ContentLength != int64(len(data)) {
		writeJSON(w, http.StatusBadRequest, graphError("invalidRequest", "content length does not match body"))
		return
	}

	if err := f.mem.UploadChunk(r.Context(), s, br, data); err != nil {
		writeDriveError(w, err)
		return
	}
	if br.Final() {
		writeJSON(w, http.StatusCreated, map[string]any{})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"nextExpectedRanges": []string{fmt.Sprintf("%d-", br.End+1)},
	})
}

func (f *fakeGraph) serveMonitor(w http.ResponseWriter, token string) {
	f.mu.Lock()
	job, ok := f.monitors[token]
	if ok && job.remaining > 0 {
		job.remaining--
		f.mu.Unlock()
		writeJSON(w, http.StatusAccepted, copyStatus{Operation: "itemCopy", Status: "inProgress"})
		return
	}
	delete(f.monitors, token)
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, graphError("itemNotFound", "monitor"))
		return
	}
	if err := job.run(); err != nil {
		writeJSON(w, http.StatusOK, copyStatus{Operation: "itemCopy", Status: "failed"})
		return
	}
	writeJSON(w, http.StatusOK, copyStatus{Operation: "itemCopy", Status: "completed"})
}

func (f *fakeGraph) serveDownload(w http.ResponseWriter, r *http.Request) {
	data, err := f.mem.Download(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeDriveError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func graphError(code, message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": message}}
}

func respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		writeDriveError(w, err)
		return
	}
	writeJSON(w, status, v)
}

func writeDriveError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, drive.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, drive.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, drive.ErrInvalidRange):
		status = http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, drive.ErrNotSupported):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, graphError(http.StatusText(status), err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
