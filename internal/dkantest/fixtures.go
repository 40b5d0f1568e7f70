package dkantest

import (
	"maps"
	"slices"
)

// AddPackage appends an entry to the package list.
func (s *Server) AddPackage(pkg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages = append(s.packages, pkg)
}

// AddNode stores a node under nid.
func (s *Server) AddNode(nid string, node map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node = maps.Clone(node)
	node["nid"] = nid
	s.nodes[nid] = node
}

// AddTerm adds a taxonomy term to a vocabulary admin page.
func (s *Server) AddTerm(vocabulary, tid, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vocabs[vocabulary] == nil {
		s.vocabs[vocabulary] = make(map[string]string)
	}
	s.vocabs[vocabulary][tid] = name
}

// AddFile serves content at /files/name and returns its url.
func (s *Server) AddFile(name, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = content
	return s.URL + "/files/" + name
}

// FailNext answers the next times requests with status.
func (s *Server) FailNext(times, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = &failure{status: status, times: times}
}

// Node returns a copy of a stored node.
func (s *Server) Node(nid string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nid]
	return maps.Clone(node), ok
}

// NodeCount returns the number of stored nodes.
func (s *Server) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Uploads returns the attach_file calls received.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploads)
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// CountRequests counts requests matching "METHOD /path".
func (s *Server) CountRequests(request string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == request {
			n++
		}
	}
	return n
}
