// Package memory is a process-local repository.Store used by tests and by
// deployments that run without DATABASE_URL.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
)

type tables struct {
	users      map[int64]model.User
	chats      map[int64]model.Chat
	executions []model.Execution
	links      []model.MessageLink
	trello     map[int64]model.TrelloBinding
	pairing    map[string]model.PairingToken
	timers     map[int64]model.Timer
	nextID     int64
}

// Store keeps every table in maps guarded by one mutex. Transactions run
// concurrently: each keeps an undo log of its writes and replays it backwards
// on rollback. Writes are visible to other transactions before commit, so
// callers serialize transactions touching the same rows.
type Store struct {
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		data: &tables{
			users:   make(map[int64]model.User),
			chats:   make(map[int64]model.Chat),
			trello:  make(map[int64]model.TrelloBinding),
			pairing: make(map[string]model.PairingToken),
			timers:  make(map[int64]model.Timer),
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for created_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

var _ repository.Store = (*Store)(nil)

// undoLog holds the inverse of every write of one transaction. Entries are
// added and replayed with Store.mu held. A nil log belongs to writes made
// outside a transaction, which are not recorded.
type undoLog struct {
	ops []func()
}

func (l *undoLog) add(op func()) {
	if l != nil {
		l.ops = append(l.ops, op)
	}
}

// saveRow records how to put m[key] back to its current state.
func saveRow[K comparable, V any](l *undoLog, m map[K]V, key K) {
	if l == nil {
		return
	}
	prev, existed := m[key]
	l.add(func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

func (s *Store) rollback(l *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(l.ops) - 1; i >= 0; i-- {
		l.ops[i]()
	}
	l.ops = nil
}

func (s *Store) InTx(ctx context.Context, fn func(repository.Repos) error) error {
	tx := view{s: s, log: &undoLog{}}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx.log)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		s.rollback(tx.log)
		return err
	}
	return nil
}

func (s *Store) Users() repository.UserRepository                   { return view{s: s}.Users() }
func (s *Store) Chats() repository.ChatRepository                   { return view{s: s}.Chats() }
func (s *Store) Executions() repository.ExecutionRepository         { return view{s: s}.Executions() }
func (s *Store) MessageLinks() repository.MessageLinkRepository     { return view{s: s}.MessageLinks() }
func (s *Store) TrelloBindings() repository.TrelloBindingRepository { return view{s: s}.TrelloBindings() }
func (s *Store) PairingTokens() repository.PairingTokenRepository   { return view{s: s}.PairingTokens() }
func (s *Store) Timers() repository.TimerRepository                 { return view{s: s}.Timers() }

// view is the store seen from one transaction, or from outside any
// transaction when log is nil.
type view struct {
	s   *Store
	log *undoLog
}

func (v view) Users() repository.UserRepository                   { return userRepo{v} }
func (v view) Chats() repository.ChatRepository                   { return chatRepo{v} }
func (v view) Executions() repository.ExecutionRepository         { return executionRepo{v} }
func (v view) MessageLinks() repository.MessageLinkRepository     { return messageLinkRepo{v} }
func (v view) TrelloBindings() repository.TrelloBindingRepository { return trelloRepo{v} }
func (v view) PairingTokens() repository.PairingTokenRepository   { return pairingRepo{v} }
func (v view) Timers() repository.TimerRepository                 { return timerRepo{v} }

// lock returns the live tables with the mutex held.
func (v view) lock() (*tables, func()) {
	v.s.mu.Lock()
	return v.s.data, v.s.mu.Unlock
}

// id hands out row ids. Ids are not reused after a rollback.
func (t *tables) id() int64 {
	t.nextID++
	return t.nextID
}

type userRepo struct{ view }

func (r userRepo) WithTx(*sqlx.Tx) repository.UserRepository { return r }

func (r userRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	t, unlock := r.lock()
	defer unlock()
	if u, ok := t.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r userRepo) FindByTgID(_ context.Context, tgID int64) (*model.User, error) {
	t, unlock := r.lock()
	defer unlock()
	return findUserByTgID(t, tgID), nil
}

func findUserByTgID(t *tables, tgID int64) *model.User {
	for _, u := range t.users {
		if u.TgID == tgID {
			return &u
		}
	}
	return nil
}

func (r userRepo) FindByTgIDOrID(_ context.Context, value int64) (*model.User, error) {
	t, unlock := r.lock()
	defer unlock()
	if u := findUserByTgID(t, value); u != nil {
		return u, nil
	}
	if u, ok := t.users[value]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r userRepo) Upsert(_ context.Context, params model.UpsertUserParams) (*model.User, error) {
	t, unlock := r.lock()
	defer unlock()
	now := r.s.now()
	u := findUserByTgID(t, params.TgID)
	if u == nil {
		u = &model.User{ID: t.id(), TgID: params.TgID, CreatedAt: now}
	}
	u.Username = params.Username
	u.FirstName = params.FirstName
	u.LastName = params.LastName
	u.Active = true
	u.UpdatedAt = now
	saveRow(r.log, t.users, u.ID)
	t.users[u.ID] = *u
	return u, nil
}

func (r userRepo) Update(_ context.Context, user *model.User) error {
	t, unlock := r.lock()
	defer unlock()
	if _, ok := t.users[user.ID]; !ok {
		return nil
	}
	u := *user
	u.UpdatedAt = r.s.now()
	saveRow(r.log, t.users, u.ID)
	t.users[u.ID] = u
	return nil
}

func (r userRepo) SetActive(_ context.Context, id int64, active bool) error {
	t, unlock := r.lock()
	defer unlock()
	if u, ok := t.users[id]; ok {
		saveRow(r.log, t.users, id)
		u.Active = active
		u.UpdatedAt = r.s.now()
		t.users[id] = u
	}
	return nil
}

func (r userRepo) Delete(_ context.Context, id int64) error {
	t, unlock := r.lock()
	defer unlock()
	saveRow(r.log, t.users, id)
	saveRow(r.log, t.trello, id)
	delete(t.users, id)
	delete(t.trello, id)
	for tid, timer := range t.timers {
		if timer.UserID == id {
			saveRow(r.log, t.timers, tid)
			delete(t.timers, tid)
		}
	}
	var orphaned []int64
	for i := range t.executions {
		if e := t.executions[i].UserID; e != nil && *e == id {
			t.executions[i].UserID = nil
			orphaned = append(orphaned, t.executions[i].ID)
		}
	}
	r.log.add(func() {
		for i := range t.executions {
			if slices.Contains(orphaned, t.executions[i].ID) {
				userID := id
				t.executions[i].UserID = &userID
			}
		}
	})
	return nil
}

func (r userRepo) List(_ context.Context, filter model.UserFilter, limit int, afterID int64) ([]model.User, error) {
	t, unlock := r.lock()
	defer unlock()
	var users []model.User
	for _, u := range t.users {
		if u.ID <= afterID || (filter.ActiveOnly && !u.Active) {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

type chatRepo struct{ view }

func (r chatRepo) WithTx(*sqlx.Tx) repository.ChatRepository { return r }

func findChatByTgID(t *tables, tgID int64) *model.Chat {
	for _, c := range t.chats {
		if c.TgID == tgID {
			return &c
		}
	}
	return nil
}

func (r chatRepo) FindByTgID(_ context.Context, tgID int64) (*model.Chat, error) {
	t, unlock := r.lock()
	defer unlock()
	return findChatByTgID(t, tgID), nil
}

func (r chatRepo) Upsert(_ context.Context, params model.UpsertChatParams) (*model.Chat, error) {
	t, unlock := r.lock()
	defer unlock()
	now := r.s.now()
	c := findChatByTgID(t, params.TgID)
	if c == nil {
		c = &model.Chat{ID: t.id(), TgID: params.TgID, Type: params.Type, Title: params.Title, CreatedAt: now}
	}
	c.Active = true
	c.UpdatedAt = now
	saveRow(r.log, t.chats, c.ID)
	t.chats[c.ID] = *c
	return c, nil
}

func (r chatRepo) SetActive(_ context.Context, id int64, active bool) error {
	t, unlock := r.lock()
	defer unlock()
	if c, ok := t.chats[id]; ok {
		saveRow(r.log, t.chats, id)
		c.Active = active
		c.UpdatedAt = r.s.now()
		t.chats[id] = c
	}
	return nil
}

type executionRepo struct{ view }

func (r executionRepo) WithTx(*sqlx.Tx) repository.ExecutionRepository { return r }

func (r executionRepo) Create(_ context.Context, p model.CreateExecutionParams) (*model.Execution, error) {
	t, unlock := r.lock()
	defer unlock()
	exec := model.Execution{
		ID:           t.id(),
		UserID:       p.UserID,
		ChatID:       p.ChatID,
		TgID:         p.TgID,
		FromTgID:     p.FromTgID,
		MessageID:    p.MessageID,
		ChatType:     p.ChatType,
		RequestsMade: p.RequestsMade,
		Fnc:          p.Fnc,
		Result:       p.Result,
		Text:         p.Text,
		Message:      p.Message,
		Date:         p.Date,
		CreatedAt:    r.s.now(),
	}
	t.executions = append(t.executions, exec)
	r.log.add(func() {
		t.executions = slices.DeleteFunc(t.executions, func(e model.Execution) bool { return e.ID == exec.ID })
	})
	return &exec, nil
}

func matchExecution(e model.Execution, f model.ExecutionFilter) bool {
	return (f.TgID == 0 || e.TgID == f.TgID) &&
		(f.Fnc == "" || e.Fnc == f.Fnc) &&
		(f.Result == "" || strings.HasPrefix(e.Result, f.Result)) &&
		(f.ChatType == "" || e.ChatType == f.ChatType)
}

func (r executionRepo) List(_ context.Context, filter model.ExecutionFilter, limit, offset int) ([]model.Execution, error) {
	t, unlock := r.lock()
	defer unlock()
	var execs []model.Execution
	for i := len(t.executions) - 1; i >= 0; i-- {
		if matchExecution(t.executions[i], filter) {
			execs = append(execs, t.executions[i])
		}
	}
	if offset >= len(execs) {
		return nil, nil
	}
	execs = execs[offset:]
	if len(execs) > limit {
		execs = execs[:limit]
	}
	return execs, nil
}

func (r executionRepo) Count(_ context.Context, filter model.ExecutionFilter) (int, error) {
	t, unlock := r.lock()
	defer unlock()
	count := 0
	for _, e := range t.executions {
		if matchExecution(e, filter) {
			count++
		}
	}
	return count, nil
}

func (r executionRepo) FindLastPrivate(_ context.Context, fromTgID int64) (*model.Execution, error) {
	t, unlock := r.lock()
	defer unlock()
	for i := len(t.executions) - 1; i >= 0; i-- {
		e := t.executions[i]
		if e.FromTgID == fromTgID && e.ChatType == model.ChatTypePrivate {
			return &e, nil
		}
	}
	return nil, nil
}

type messageLinkRepo struct{ view }

func (r messageLinkRepo) WithTx(*sqlx.Tx) repository.MessageLinkRepository { return r }

func (r messageLinkRepo) Create(_ context.Context, p model.CreateMessageLinkParams) (*model.MessageLink, error) {
	t, unlock := r.lock()
	defer unlock()
	link := model.MessageLink{
		ID:                t.id(),
		ChatID:            p.ChatID,
		OriginalMessageID: p.OriginalMessageID,
		NewChatID:         p.NewChatID,
		NewMessageID:      p.NewMessageID,
		Extra:             p.Extra,
		CreatedAt:         r.s.now(),
	}
	t.links = append(t.links, link)
	r.log.add(func() {
		t.links = slices.DeleteFunc(t.links, func(l model.MessageLink) bool { return l.ID == link.ID })
	})
	return &link, nil
}

func (r messageLinkRepo) FindByNewMessage(_ context.Context, newChatID, newMessageID int64) (*model.MessageLink, error) {
	t, unlock := r.lock()
	defer unlock()
	for _, l := range t.links {
		if l.NewChatID == newChatID && l.NewMessageID == newMessageID {
			return &l, nil
		}
	}
	return nil, nil
}

type trelloRepo struct{ view }

func (r trelloRepo) WithTx(*sqlx.Tx) repository.TrelloBindingRepository { return r }

func (r trelloRepo) FindByUserID(_ context.Context, userID int64) (*model.TrelloBinding, error) {
	t, unlock := r.lock()
	defer unlock()
	if b, ok := t.trello[userID]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r trelloRepo) Upsert(_ context.Context, userID int64, token string) (*model.TrelloBinding, error) {
	t, unlock := r.lock()
	defer unlock()
	b := model.TrelloBinding{UserID: userID, Token: token, TokenCreatedAt: r.s.now()}
	saveRow(r.log, t.trello, userID)
	t.trello[userID] = b
	return &b, nil
}

func (r trelloRepo) Delete(_ context.Context, userID int64) error {
	t, unlock := r.lock()
	defer unlock()
	saveRow(r.log, t.trello, userID)
	delete(t.trello, userID)
	return nil
}

type pairingRepo struct{ view }

func (r pairingRepo) WithTx(*sqlx.Tx) repository.PairingTokenRepository { return r }

func (r pairingRepo) Create(_ context.Context, id, token string) (*model.PairingToken, error) {
	t, unlock := r.lock()
	defer unlock()
	pt := model.PairingToken{ID: id, Token: token, CreatedAt: r.s.now()}
	saveRow(r.log, t.pairing, id)
	t.pairing[id] = pt
	return &pt, nil
}

func (r pairingRepo) FindValid(_ context.Context, id string, since time.Time) (*model.PairingToken, error) {
	t, unlock := r.lock()
	defer unlock()
	if pt, ok := t.pairing[id]; ok && pt.CreatedAt.After(since) {
		return &pt, nil
	}
	return nil, nil
}

func (r pairingRepo) Delete(_ context.Context, id string) (bool, error) {
	t, unlock := r.lock()
	defer unlock()
	_, ok := t.pairing[id]
	saveRow(r.log, t.pairing, id)
	delete(t.pairing, id)
	return ok, nil
}

func (r pairingRepo) DeleteCreatedBefore(_ context.Context, before time.Time) (int64, error) {
	t, unlock := r.lock()
	defer unlock()
	var n int64
	for id, pt := range t.pairing {
		if pt.CreatedAt.Before(before) {
			saveRow(r.log, t.pairing, id)
			delete(t.pairing, id)
			n++
		}
	}
	return n, nil
}

type timerRepo struct{ view }

func (r timerRepo) WithTx(*sqlx.Tx) repository.TimerRepository { return r }

func (r timerRepo) FindByCard(_ context.Context, userID int64, cardID string) (*model.Timer, error) {
	timers, _ := r.ListByUser(context.Background(), userID)
	for _, timer := range timers {
		if timer.CardID == cardID {
			return &timer, nil
		}
	}
	return nil, nil
}

func (r timerRepo) ListByUser(_ context.Context, userID int64) ([]model.Timer, error) {
	t, unlock := r.lock()
	defer unlock()
	var timers []model.Timer
	for _, timer := range t.timers {
		if timer.UserID == userID {
			timers = append(timers, timer)
		}
	}
	sort.Slice(timers, func(i, j int) bool { return timers[i].ID < timers[j].ID })
	return timers, nil
}

func (r timerRepo) Create(_ context.Context, p model.CreateTimerParams) (*model.Timer, error) {
	t, unlock := r.lock()
	defer unlock()
	for _, existing := range t.timers {
		if existing.UserID == p.UserID && existing.CardID == p.CardID {
			return nil, fmt.Errorf("timer for card %s: %w", p.CardID, repository.ErrDuplicate)
		}
	}
	timer := model.Timer{
		ID:        t.id(),
		UserID:    p.UserID,
		BoardID:   p.BoardID,
		ListID:    p.ListID,
		CardID:    p.CardID,
		MessageID: p.MessageID,
		CreatedAt: r.s.now(),
	}
	saveRow(r.log, t.timers, timer.ID)
	t.timers[timer.ID] = timer
	return &timer, nil
}

func (r timerRepo) UpdateMessageID(_ context.Context, id, messageID int64) error {
	t, unlock := r.lock()
	defer unlock()
	if timer, ok := t.timers[id]; ok {
		saveRow(r.log, t.timers, id)
		timer.MessageID = messageID
		t.timers[id] = timer
	}
	return nil
}

func (r timerRepo) Delete(_ context.Context, id int64) error {
	t, unlock := r.lock()
	defer unlock()
	saveRow(r.log, t.timers, id)
	delete(t.timers, id)
	return nil
}
