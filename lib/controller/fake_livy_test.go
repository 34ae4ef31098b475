// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/livyctl/lib/clock"
	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/livy"
)

// fakeLivy is an in-memory job server. Tests set its knobs before the
// first request and read its counters afterwards.
type fakeLivy struct {
	t *testing.T

	mu       sync.Mutex
	nextID   int
	sessions map[int]*fakeSession

	// initialState is the state of newly created sessions. Default idle.
	initialState string
	// createStatus and deleteStatus, when non-zero, fail those calls.
	createStatus int
	deleteStatus int
	// pendingPolls is how many statement polls answer "running" before
	// the statement finishes.
	pendingPolls int
	// output produces the result of a finished statement.
	output func(code string) *livy.StatementOutput

	creates      int
	deletes      []int
	lists        int
	submitted    []livy.StatementRequest
	cancels      int
	createBodies []map[string]any
}

type fakeSession struct {
	session    livy.Session
	statePolls []string
	statements []*fakeStatement
}

type fakeStatement struct {
	statement livy.Statement
	remaining int
}

func newFakeLivy(t *testing.T) *fakeLivy {
	return &fakeLivy{t: t, sessions: make(map[int]*fakeSession), initialState: "idle"}
}

// addRemote registers a session that exists before the test starts.
func (f *fakeLivy) addRemote(name, state string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.sessions[id] = &fakeSession{session: livy.Session{ID: id, Name: name, Kind: "pyspark", State: state}}
	return id
}

// queueStates makes the next GETs of session id report states in order.
func (f *fakeLivy) queueStates(id int, states ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].statePolls = append(f.sessions[id].statePolls, states...)
}

// forget removes a session behind the controller's back.
func (f *fakeLivy) forget(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

func (f *fakeLivy) remoteIDs() map[int]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[int]bool, len(f.sessions))
	for id := range f.sessions {
		ids[id] = true
	}
	return ids
}

func (f *fakeLivy) counts() (creates, deletes, lists, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, len(f.deletes), f.lists, f.cancels
}

func (f *fakeLivy) finish(statement *fakeStatement) {
	statement.statement.State = livy.StatementAvailable
	if f.output != nil {
		statement.statement.Output = f.output(statement.statement.Code)
		return
	}
	text, _ := json.Marshal("ran: " + statement.statement.Code)
	statement.statement.Output = &livy.StatementOutput{
		Status: livy.OutputOK,
		Data:   map[string]json.RawMessage{livy.MIMEPlainText: text},
	}
}

func (f *fakeLivy) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.creates++
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decoding create body: %v", err)
		}
		f.createBodies = append(f.createBodies, body)
		if f.createStatus != 0 {
			f.reply(w, f.createStatus, map[string]string{"msg": "create refused"})
			return
		}
		id := f.nextID
		f.nextID++
		name, _ := body["name"].(string)
		kind, _ := body["kind"].(string)
		created := &fakeSession{session: livy.Session{ID: id, Name: name, Kind: kind, State: f.initialState, AppID: "application_" + strconv.Itoa(id)}}
		f.sessions[id] = created
		f.reply(w, http.StatusCreated, created.session)
	})
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lists++
		list := livy.SessionList{Total: len(f.sessions)}
		for id := 0; id < f.nextID; id++ {
			if found, ok := f.sessions[id]; ok {
				list.Sessions = append(list.Sessions, found.session)
			}
		}
		f.reply(w, http.StatusOK, list)
	})
	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		found := f.lookup(w, r)
		if found == nil {
			return
		}
		if len(found.statePolls) > 0 {
			found.session.State = found.statePolls[0]
			found.statePolls = found.statePolls[1:]
		}
		f.reply(w, http.StatusOK, found.session)
	})
	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.Atoi(r.PathValue("id"))
		f.deletes = append(f.deletes, id)
		if f.deleteStatus != 0 {
			f.reply(w, f.deleteStatus, map[string]string{"msg": "delete refused"})
			return
		}
		if f.lookup(w, r) == nil {
			return
		}
		delete(f.sessions, id)
		f.reply(w, http.StatusOK, map[string]string{"msg": "deleted"})
	})
	mux.HandleFunc("GET /sessions/{id}/log", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		found := f.lookup(w, r)
		if found == nil {
			return
		}
		f.reply(w, http.StatusOK, livy.SessionLog{ID: found.session.ID, Total: 2, Log: []string{"stdout: ", "line two"}})
	})
	mux.HandleFunc("POST /sessions/{id}/statements", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		found := f.lookup(w, r)
		if found == nil {
			return
		}
		var request livy.StatementRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			f.t.Errorf("decoding statement: %v", err)
		}
		f.submitted = append(f.submitted, request)
		statement := &fakeStatement{
			statement: livy.Statement{ID: len(found.statements), Code: request.Code, State: livy.StatementRunning},
			remaining: f.pendingPolls,
		}
		if statement.remaining == 0 {
			f.finish(statement)
		}
		found.statements = append(found.statements, statement)
		f.reply(w, http.StatusCreated, statement.statement)
	})
	mux.HandleFunc("GET /sessions/{id}/statements/{statement}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		statement := f.lookupStatement(w, r)
		if statement == nil {
			return
		}
		if statement.statement.State == livy.StatementRunning {
			statement.remaining--
			if statement.remaining <= 0 {
				f.finish(statement)
			}
		}
		f.reply(w, http.StatusOK, statement.statement)
	})
	mux.HandleFunc("POST /sessions/{id}/statements/{statement}/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		statement := f.lookupStatement(w, r)
		if statement == nil {
			return
		}
		f.cancels++
		statement.statement.State = livy.StatementCancelled
		f.reply(w, http.StatusOK, map[string]string{"msg": "canceled"})
	})
	return mux
}

// lookup resolves {id}; caller holds f.mu.
func (f *fakeLivy) lookup(w http.ResponseWriter, r *http.Request) *fakeSession {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		f.reply(w, http.StatusBadRequest, map[string]string{"msg": "bad id"})
		return nil
	}
	found, ok := f.sessions[id]
	if !ok {
		f.reply(w, http.StatusNotFound, map[string]string{"msg": "Session '" + r.PathValue("id") + "' not found."})
		return nil
	}
	return found
}

func (f *fakeLivy) lookupStatement(w http.ResponseWriter, r *http.Request) *fakeStatement {
	found := f.lookup(w, r)
	if found == nil {
		return nil
	}
	index, err := strconv.Atoi(r.PathValue("statement"))
	if err != nil || index < 0 || index >= len(found.statements) {
		f.reply(w, http.StatusNotFound, map[string]string{"msg": "statement not found"})
		return nil
	}
	return found.statements[index]
}

func (f *fakeLivy) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encoding reply: %v", err)
	}
}

type harness struct {
	controller *Controller
	livy       *fakeLivy
	endpoint   *endpoint.Endpoint
	clock      *clock.FakeClock
}

// serveFakeLivy starts a fakeLivy behind an httptest server and returns
// the endpoint that reaches it.
func serveFakeLivy(t *testing.T) (*fakeLivy, *endpoint.Endpoint) {
	t.Helper()
	fake := newFakeLivy(t)
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	ep, err := endpoint.New(endpoint.Config{URL: server.URL})
	if err != nil {
		t.Fatalf("endpoint.New: %v", err)
	}
	return fake, ep
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake, ep := serveFakeLivy(t)
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	controller := New(Config{
		Clock: fakeClock,
		Retry: livy.RetryPolicy{MaxAttempts: 1},
		Polling: PollingConfig{
			StartTimeout:    time.Second,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     time.Second,
		},
	})
	return &harness{controller: controller, livy: fake, endpoint: ep, clock: fakeClock}
}
