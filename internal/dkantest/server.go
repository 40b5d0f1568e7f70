// Package dkantest provides a fake DKAN portal for adapter tests.
//
// The server speaks the subset of the DKAN 7 API the dkan adapter uses:
// the package list, package_show, the services node resource with
// attach_file, session login, taxonomy admin pages and plain file
// downloads. State lives in memory and can be seeded and inspected.
package dkantest

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// Session values handed out by the fake login.
const (
	SessionName = "SESSdkantest"
	SessionID   = "dkantest-session"
	CSRFToken   = "dkantest-csrf"
)

// Upload records an attach_file call.
type Upload struct {
	NodeID   string
	Field    string
	Filename string
	Content  string
}

type failure struct {
	status int
	times  int
}

// Server is a fake DKAN portal.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	username string
	password string
	packages []map[string]any
	nodes    map[string]map[string]any
	vocabs   map[string]map[string]string
	files    map[string]string
	uploads  []Upload
	requests []string
	fail     *failure
	nextNID  int
}

// New starts a fake portal that accepts the given account. The server is
// closed when the test ends.
func New(t testing.TB, username, password string) *Server {
	t.Helper()
	s := &Server{
		username: username,
		password: password,
		nodes:    make(map[string]map[string]any),
		vocabs:   make(map[string]map[string]string),
		files:    make(map[string]string),
		nextNID:  100,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record)

	r.HandleFunc("/api/dataset/user/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/services/session/token", s.token).Methods(http.MethodGet)
	r.HandleFunc("/api/3/action/current_package_list_with_resources", s.packageList).Methods(http.MethodGet)
	r.HandleFunc("/api/3/action/package_show", s.packageShow).Methods(http.MethodGet)
	r.HandleFunc("/api/dataset/node.json", s.nodeIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/dataset/node/{nid:[0-9]+}.json", s.nodeRetrieve).Methods(http.MethodGet)
	r.HandleFunc("/api/dataset/node", s.authed(s.nodeCreate)).Methods(http.MethodPost)
	r.HandleFunc("/api/dataset/node/{nid:[0-9]+}", s.authed(s.nodeUpdate)).Methods(http.MethodPut)
	r.HandleFunc("/api/dataset/node/{nid:[0-9]+}", s.authed(s.nodeDelete)).Methods(http.MethodDelete)
	r.HandleFunc("/api/dataset/node/{nid:[0-9]+}/attach_file", s.authed(s.attachFile)).Methods(http.MethodPost)
	r.HandleFunc("/admin/structure/taxonomy/{name}", s.authed(s.taxonomy)).Methods(http.MethodGet)
	r.HandleFunc("/files/{name}", s.file).Methods(http.MethodGet, http.MethodHead)
	return r
}

// record logs each request and injects configured failures.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		var status int
		if s.fail != nil && s.fail.times > 0 {
			status = s.fail.status
			s.fail.times--
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, []string{http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionName)
		if err != nil || cookie.Value != SessionID {
			writeJSON(w, http.StatusForbidden, []string{"Access denied for user anonymous"})
			return
		}
		if r.Method != http.MethodGet && r.Header.Get("X-CSRF-Token") != CSRFToken {
			writeJSON(w, http.StatusUnauthorized, []string{"CSRF validation failed"})
			return
		}
		next(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, []string{err.Error()})
		return
	}
	if creds.Username != s.username || creds.Password != s.password {
		writeJSON(w, http.StatusUnauthorized, []string{"Wrong username or password."})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionName, Value: SessionID, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{
		"sessid":       SessionID,
		"session_name": SessionName,
		"token":        CSRFToken,
		"user":         map[string]any{"name": creds.Username},
	})
}

func (s *Server) token(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, CSRFToken)
}

func (s *Server) packageList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  []any{s.packages},
	})
}

func (s *Server) packageShow(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pkg := range s.packages {
		if pkg["id"] == id || pkg["name"] == id {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": []any{pkg}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"error":   map[string]any{"message": "Not found", "__type": "Not Found Error"},
	})
}

func (s *Server) nodeIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uuid := q.Get("parameters[uuid]")
	typ := q.Get("parameters[type]")
	pageSize, _ := strconv.Atoi(q.Get("pagesize"))
	if pageSize <= 0 {
		pageSize = 20
	}
	page, _ := strconv.Atoi(q.Get("page"))

	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []map[string]any
	for _, nid := range s.sortedNIDs() {
		node := s.nodes[nid]
		if uuid != "" && node["uuid"] != uuid {
			continue
		}
		if typ != "" && node["type"] != typ {
			continue
		}
		matches = append(matches, map[string]any{
			"nid":   nid,
			"title": node["title"],
			"type":  node["type"],
			"uuid":  node["uuid"],
			"uri":   s.URL + "/api/dataset/node/" + nid,
		})
	}

	start := min(page*pageSize, len(matches))
	end := min(start+pageSize, len(matches))
	result := matches[start:end]
	if result == nil {
		result = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) sortedNIDs() []string {
	nids := make([]string, 0, len(s.nodes))
	for nid := range s.nodes {
		nids = append(nids, nid)
	}
	sort.Slice(nids, func(i, j int) bool {
		a, _ := strconv.Atoi(nids[i])
		b, _ := strconv.Atoi(nids[j])
		return a < b
	})
	return nids
}

func (s *Server) nodeRetrieve(w http.ResponseWriter, r *http.Request) {
	nid := mux.Vars(r)["nid"]
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nid]
	if !ok {
		writeJSON(w, http.StatusNotFound, []string{fmt.Sprintf("Node %s not found", nid)})
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) nodeCreate(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusNotAcceptable, []string{err.Error()})
		return
	}
	if doc["title"] == nil || doc["title"] == "" {
		writeJSON(w, http.StatusNotAcceptable, map[string]any{"form_errors": map[string]string{"title": "Title field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNID++
	nid := strconv.Itoa(s.nextNID)
	doc["nid"] = nid
	if doc["uuid"] == nil {
		doc["uuid"] = fmt.Sprintf("uuid-%s", nid)
	}
	doc["changed"] = strconv.FormatInt(time.Now().Unix(), 10)
	s.nodes[nid] = doc
	writeJSON(w, http.StatusOK, map[string]any{"nid": nid, "uri": s.URL + "/api/dataset/node/" + nid})
}

func (s *Server) nodeUpdate(w http.ResponseWriter, r *http.Request) {
	nid := mux.Vars(r)["nid"]
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusNotAcceptable, []string{err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nid]
	if !ok {
		writeJSON(w, http.StatusNotFound, []string{fmt.Sprintf("Node %s not found", nid)})
		return
	}
	for k, v := range doc {
		node[k] = v
	}
	node["nid"] = nid
	writeJSON(w, http.StatusOK, map[string]any{"nid": nid})
}

func (s *Server) nodeDelete(w http.ResponseWriter, r *http.Request) {
	nid := mux.Vars(r)["nid"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[nid]; !ok {
		writeJSON(w, http.StatusNotFound, []string{fmt.Sprintf("Node %s not found", nid)})
		return
	}
	delete(s.nodes, nid)
	writeJSON(w, http.StatusOK, []bool{true})
}

func (s *Server) attachFile(w http.ResponseWriter, r *http.Request) {
	nid := mux.Vars(r)["nid"]
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, []string{err.Error()})
		return
	}
	file, header, err := r.FormFile("files[file]")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, []string{err.Error()})
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)
	field := r.FormValue("field_name")

	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nid]
	if !ok {
		writeJSON(w, http.StatusNotFound, []string{fmt.Sprintf("Node %s not found", nid)})
		return
	}
	node[field] = map[string]any{"und": []any{map[string]any{
		"filename": header.Filename,
		"uri":      "public://" + header.Filename,
	}}}
	s.uploads = append(s.uploads, Upload{NodeID: nid, Field: field, Filename: header.Filename, Content: string(content)})
	writeJSON(w, http.StatusOK, []map[string]any{{"fid": strconv.Itoa(len(s.uploads)), "uri": "public://" + header.Filename}})
}

func (s *Server) taxonomy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.mu.Lock()
	terms, ok := s.vocabs[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	ids := make([]string, 0, len(terms))
	for id := range terms {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	b.WriteString(`<html><body><table id="taxonomy">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<tr><td><a href="/taxonomy/term/%s" id="edit-tid%s0-view">%s</a></td></tr>`, id, id, html.EscapeString(terms[id]))
	}
	b.WriteString(`</table></body></html>`)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, b.String())
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.mu.Lock()
	content, ok := s.files[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, time.Time{}, strings.NewReader(content))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
