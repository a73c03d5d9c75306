package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trelloplus/bot-server-go/internal/database"
)

// Repos groups the repositories bound to one connection or transaction.
type Repos interface {
	Users() UserRepository
	Chats() ChatRepository
	Executions() ExecutionRepository
	MessageLinks() MessageLinkRepository
	TrelloBindings() TrelloBindingRepository
	PairingTokens() PairingTokenRepository
	Timers() TimerRepository
}

// Store is the entry point of the persistence layer. InTx commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(Repos) error) error
}

type repoSet struct {
	users        UserRepository
	chats        ChatRepository
	executions   ExecutionRepository
	messageLinks MessageLinkRepository
	trello       TrelloBindingRepository
	pairing      PairingTokenRepository
	timers       TimerRepository
}

func (s *repoSet) Users() UserRepository                   { return s.users }
func (s *repoSet) Chats() ChatRepository                   { return s.chats }
func (s *repoSet) Executions() ExecutionRepository         { return s.executions }
func (s *repoSet) MessageLinks() MessageLinkRepository     { return s.messageLinks }
func (s *repoSet) TrelloBindings() TrelloBindingRepository { return s.trello }
func (s *repoSet) PairingTokens() PairingTokenRepository   { return s.pairing }
func (s *repoSet) Timers() TimerRepository                 { return s.timers }

func (s *repoSet) withTx(tx *sqlx.Tx) *repoSet {
	return &repoSet{
		users:        s.users.WithTx(tx),
		chats:        s.chats.WithTx(tx),
		executions:   s.executions.WithTx(tx),
		messageLinks: s.messageLinks.WithTx(tx),
		trello:       s.trello.WithTx(tx),
		pairing:      s.pairing.WithTx(tx),
		timers:       s.timers.WithTx(tx),
	}
}

type sqlStore struct {
	*repoSet
	db *database.DB
}

// NewStore returns a Postgres backed Store.
func NewStore(db *database.DB) Store {
	return &sqlStore{
		db: db,
		repoSet: &repoSet{
			users:        NewUserRepository(db.DB),
			chats:        NewChatRepository(db.DB),
			executions:   NewExecutionRepository(db.DB),
			messageLinks: NewMessageLinkRepository(db.DB),
			trello:       NewTrelloBindingRepository(db.DB),
			pairing:      NewPairingTokenRepository(db.DB),
			timers:       NewTimerRepository(db.DB),
		},
	}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Repos) error) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(s.repoSet.withTx(tx))
	})
}
