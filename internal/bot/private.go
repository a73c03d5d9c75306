package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/trelloplus/bot-server-go/internal/audit"
	"github.com/trelloplus/bot-server-go/internal/dispatch"
	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/service"
	"github.com/trelloplus/bot-server-go/internal/session"
	"github.com/trelloplus/bot-server-go/internal/telegram"
	"github.com/trelloplus/bot-server-go/internal/trello"
)

var (
	isPrivate    dispatch.Predicate = (*session.Session).IsPrivate
	isAuthorized dispatch.Predicate = (*session.Session).IsAuthorized
)

func notAuthorized(s *session.Session) bool {
	return !s.IsAuthorized()
}

func awaitingComment(s *session.Session) bool {
	_, ok := s.Dialog().(model.DialogAwaitingComment)
	return ok
}

// PrivateHandlers serve the private chat: authorization and the board, list,
// card and timer screens.
type PrivateHandlers struct {
	b *Bot
}

func (p *PrivateHandlers) DefineHandlers(r *dispatch.Registry) {
	r.Message("start", p.start, dispatch.Filters{Commands: startCommands}, isPrivate)
	r.Message("boards", p.boards, dispatch.Filters{Regexp: BoardsButton.EmojiRegexp()}, isPrivate, isAuthorized)
	r.Message("boards", p.boards, dispatch.Filters{Commands: BoardsButton.Commands}, isPrivate, isAuthorized)
	r.Message("unauthorized", p.unauthorized, dispatch.Filters{Regexp: BoardsButton.EmojiRegexp()}, isPrivate)
	r.Message("unauthorized", p.unauthorized, dispatch.Filters{Commands: BoardsButton.Commands}, isPrivate)

	r.CallbackQuery("board", p.board, dispatch.Filters{DataStartsWith: "/board "}, isAuthorized)
	r.CallbackQuery("board_list", p.boardList, dispatch.Filters{DataStartsWith: "/board_list "}, isAuthorized)
	r.CallbackQuery("card", p.card, dispatch.Filters{DataStartsWith: "/card "}, isAuthorized)
	r.CallbackQuery("timer_start", p.timerStart, dispatch.Filters{DataStartsWith: "/timer_start "}, isAuthorized)
	r.CallbackQuery("timer", p.timer, dispatch.Filters{DataStartsWith: "/timer "}, isAuthorized)
	r.CallbackQuery("timer_stop", p.timerStop, dispatch.Filters{DataStartsWith: "/timer_stop "}, isAuthorized)
	r.CallbackQuery("timer_reset", p.timerReset, dispatch.Filters{DataStartsWith: "/timer_reset "}, isAuthorized)
	r.CallbackQuery("comment", p.comment, dispatch.Filters{DataStartsWith: "/comment "}, isAuthorized)
	r.CallbackQuery("back", p.back, dispatch.Filters{DataStartsWith: "/back "}, isAuthorized)

	r.Message("help", p.help, dispatch.Filters{Regexp: HelpButton.EmojiRegexp()}, isPrivate)
	r.Message("help", p.help, dispatch.Filters{Commands: append([]string{"sos"}, HelpButton.Commands...)}, isPrivate)
	r.Message("settings", p.settings, dispatch.Filters{Commands: []string{"settings"}}, isPrivate)
}

func (p *PrivateHandlers) TextRegexps(r *dispatch.Registry) {
	r.Message("boards", p.boards, dispatch.Filters{Regexp: BoardsButton.TextRegexp()}, isPrivate, isAuthorized)
	r.Message("help", p.help, dispatch.Filters{Regexp: HelpButton.TextRegexp()}, isPrivate)
}

// DefineFallbacks catches buttons pressed after the Trello token was revoked.
// Text typed while a comment is awaited is posted only when no command or
// button matched it.
func (p *PrivateHandlers) DefineFallbacks(r *dispatch.Registry) {
	r.Message("comment_text", p.commentText, dispatch.Filters{ContentTypes: []string{telegram.ContentText}},
		isPrivate, isAuthorized, awaitingComment)
	r.CallbackQuery("unauthorized", p.unauthorized, dispatch.Filters{}, notAuthorized)
}

func (p *PrivateHandlers) start(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	if args := telegram.CommandArgs(s.Message); len(args) == 1 {
		if done, err := p.redeem(ctx, s, args[0]); err != nil || done {
			return dispatch.OK, err
		}
	}
	if !s.IsAuthorized() {
		return dispatch.OK, p.b.unauthorized(ctx, s)
	}
	_, err := p.b.send(ctx, s, tplHelp, nil, session.WithKeyboard(StartKeyboard()))
	return dispatch.OK, err
}

// redeem binds the Trello token parked under a deep link payload.
func (p *PrivateHandlers) redeem(ctx context.Context, s *session.Session, payload string) (bool, error) {
	id, ok := service.DecodeStartPayload(payload)
	if !ok {
		return false, nil
	}

	token, ok, err := p.b.pairing.Redeem(ctx, s.Repos.PairingTokens(), id)
	if err != nil {
		return false, err
	}
	if !ok {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventPairingRejected,
			TgID:    s.User.TgID,
			Details: map[string]any{"pairingId": id},
		})
		return false, nil
	}

	binding, err := p.b.tokens.Bind(ctx, s.Repos.TrelloBindings(), s.User.ID, token)
	if err != nil {
		return false, err
	}
	s.Trello = binding
	audit.Log(ctx, audit.Event{
		Type:    audit.EventPairingRedeemed,
		TgID:    s.User.TgID,
		Details: map[string]any{"pairingId": id},
	})

	_, err = p.b.send(ctx, s, tplAuthorized, nil, session.WithKeyboard(StartKeyboard()))
	return true, err
}

func (p *PrivateHandlers) unauthorized(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	return dispatch.OK, p.b.unauthorized(ctx, s)
}

func (p *PrivateHandlers) boards(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	return dispatch.OK, p.showBoards(ctx, s)
}

func (p *PrivateHandlers) showBoards(ctx context.Context, s *session.Session) error {
	token, err := p.b.token(s)
	if err != nil {
		return err
	}
	boards, err := p.b.trello.Boards(ctx, token)
	if err != nil {
		return p.b.trelloError(ctx, s, err)
	}
	timers, err := s.Repos.Timers().ListByUser(ctx, s.User.ID)
	if err != nil {
		return err
	}

	data := struct{ Empty, HasTimer bool }{Empty: len(boards) == 0, HasTimer: len(timers) > 0}
	kb := BoardsKeyboard(boards, timerIDs(timers, func(t model.Timer) string { return t.BoardID }))
	_, err = p.b.send(ctx, s, tplChooseBoard, data, session.WithKeyboard(kb), session.WithEdit())
	return err
}

func (p *PrivateHandlers) board(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	boardID := s.CallbackArg(1)
	if boardID == "" {
		return dispatch.OK, apperrors.Params("empty_board_id")
	}
	return dispatch.OK, p.showBoard(ctx, s, boardID)
}

func (p *PrivateHandlers) showBoard(ctx context.Context, s *session.Session, boardID string) error {
	token, err := p.b.token(s)
	if err != nil {
		return err
	}
	lists, err := p.b.trello.Lists(ctx, token, boardID)
	if err != nil {
		return p.b.trelloError(ctx, s, err)
	}
	timers, err := s.Repos.Timers().ListByUser(ctx, s.User.ID)
	if err != nil {
		return err
	}

	data := struct{ Empty bool }{Empty: len(lists) == 0}
	kb := ListsKeyboard(lists, timerIDs(timers, func(t model.Timer) string { return t.ListID }))
	_, err = p.b.send(ctx, s, tplChooseList, data, session.WithKeyboard(kb), session.WithEdit())
	return err
}

func (p *PrivateHandlers) boardList(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	listID := s.CallbackArg(1)
	if listID == "" {
		return dispatch.OK, apperrors.Params("empty_list_id")
	}
	return dispatch.OK, p.showList(ctx, s, listID)
}

func (p *PrivateHandlers) showList(ctx context.Context, s *session.Session, listID string) error {
	token, err := p.b.token(s)
	if err != nil {
		return err
	}
	cards, err := p.b.trello.Cards(ctx, token, listID)
	if err != nil {
		return p.b.trelloError(ctx, s, err)
	}
	timers, err := s.Repos.Timers().ListByUser(ctx, s.User.ID)
	if err != nil {
		return err
	}

	data := struct{ Empty bool }{Empty: len(cards) == 0}
	kb := CardsKeyboard(listID, cards, timerIDs(timers, func(t model.Timer) string { return t.CardID }))
	_, err = p.b.send(ctx, s, tplChooseCard, data, session.WithKeyboard(kb), session.WithEdit())
	return err
}

func (p *PrivateHandlers) card(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	c, err := p.loadCard(ctx, s)
	if err != nil {
		return dispatch.OK, err
	}
	timer, err := s.Repos.Timers().FindByCard(ctx, s.User.ID, c.card.ID)
	if err != nil {
		return dispatch.OK, err
	}

	data := struct {
		Card  *trello.Card
		Timer *model.Timer
	}{Card: c.card, Timer: timer}
	msg, err := p.b.send(ctx, s, tplShowCard, data, session.WithKeyboard(CardKeyboard(c.card.ID, timer, p.b.now())), session.WithEdit())
	if err != nil {
		return dispatch.OK, err
	}
	if timer != nil && msg != nil {
		if err := s.Repos.Timers().UpdateMessageID(ctx, timer.ID, int64(msg.MessageID)); err != nil {
			return dispatch.OK, err
		}
	}
	return dispatch.OK, nil
}

func (p *PrivateHandlers) timerStart(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	c, err := p.loadCard(ctx, s)
	if err != nil {
		return dispatch.OK, err
	}

	timers := s.Repos.Timers()
	existing, err := timers.FindByCard(ctx, s.User.ID, c.card.ID)
	if err != nil {
		return dispatch.OK, err
	}
	if existing != nil {
		s.Answer(ctx, "Timer was already started", true)
		return dispatch.OK, apperrors.State("timer_already_started")
	}
	running, err := timers.ListByUser(ctx, s.User.ID)
	if err != nil {
		return dispatch.OK, err
	}
	if len(running) > 0 {
		s.Answer(ctx, "You cannot start more than one timer simultaneously", true)
		return dispatch.OK, apperrors.State("multiple_timers")
	}

	var messageID int64
	if s.CallbackQuery.Message != nil {
		messageID = int64(s.CallbackQuery.Message.MessageID)
	}
	timer, err := timers.Create(ctx, model.CreateTimerParams{
		UserID:    s.User.ID,
		BoardID:   c.card.IDBoard,
		ListID:    c.card.IDList,
		CardID:    c.card.ID,
		MessageID: messageID,
	})
	if err != nil {
		return dispatch.OK, fmt.Errorf("create timer: %w", err)
	}
	s.EditReplyMarkup(ctx, CardKeyboard(c.card.ID, timer, p.b.now()))
	return dispatch.OK, nil
}

func (p *PrivateHandlers) timer(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	c, err := p.loadRunning(ctx, s)
	if err != nil {
		return dispatch.OK, err
	}
	s.EditReplyMarkup(ctx, CardKeyboard(c.card.ID, c.timer, p.b.now()))
	return dispatch.OK, nil
}

func (p *PrivateHandlers) timerStop(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	c, err := p.loadRunning(ctx, s)
	if err != nil {
		return dispatch.OK, err
	}

	elapsed := p.b.now().Sub(c.timer.CreatedAt)
	hours := fmt.Sprintf("%.2f", elapsed.Hours())
	if err := p.b.trello.AddComment(ctx, c.token, c.card.ID, fmt.Sprintf("plus! %s/%s", hours, hours)); err != nil {
		return dispatch.OK, p.b.trelloError(ctx, s, err)
	}
	if err := s.Repos.Timers().Delete(ctx, c.timer.ID); err != nil {
		return dispatch.OK, err
	}

	s.Answer(ctx, "Logged "+formatDuration(elapsed), false)
	s.EditReplyMarkup(ctx, CardKeyboard(c.card.ID, nil, p.b.now()))
	return dispatch.OK, nil
}

func (p *PrivateHandlers) timerReset(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	c, err := p.loadRunning(ctx, s)
	if err != nil {
		return dispatch.OK, err
	}
	if err := s.Repos.Timers().Delete(ctx, c.timer.ID); err != nil {
		return dispatch.OK, err
	}

	s.Answer(ctx, "Timer was reset!", false)
	s.EditReplyMarkup(ctx, CardKeyboard(c.card.ID, nil, p.b.now()))
	return dispatch.OK, nil
}

// comment asks for the text of a card comment.
func (p *PrivateHandlers) comment(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	c, err := p.loadCard(ctx, s)
	if err != nil {
		return dispatch.OK, err
	}
	s.SetDialog(model.DialogAwaitingComment{CardID: c.card.ID})
	s.Answer(ctx, "", false)
	_, err = p.b.send(ctx, s, tplAskComment, c.card, session.WithKeyboard(CancelKeyboard()))
	return dispatch.OK, err
}

func (p *PrivateHandlers) commentText(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	dialog := s.Dialog().(model.DialogAwaitingComment)
	text := strings.TrimSpace(s.Message.Text)
	if text == "" {
		return dispatch.OK, apperrors.Params("empty_comment")
	}
	token, err := p.b.token(s)
	if err != nil {
		return dispatch.OK, err
	}
	card, err := p.b.trello.Card(ctx, token, dialog.CardID)
	if err == nil {
		err = p.b.trello.AddComment(ctx, token, card.ID, text)
	}
	if err != nil {
		s.Reset()
		return dispatch.OK, p.b.trelloError(ctx, s, err)
	}

	s.Reset()
	_, err = p.b.send(ctx, s, tplCommentAdded, card, session.WithKeyboard(StartKeyboard()))
	return dispatch.OK, err
}

// back returns to the parent screen: card to its list, list to its board,
// anything else to the boards.
func (p *PrivateHandlers) back(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	kind, id := s.CallbackArg(1), s.CallbackArg(2)
	if id == "" {
		return dispatch.OK, p.showBoards(ctx, s)
	}

	token, err := p.b.token(s)
	if err != nil {
		return dispatch.OK, err
	}
	switch kind {
	case "card":
		card, err := p.b.trello.Card(ctx, token, id)
		if err != nil {
			return dispatch.OK, p.b.trelloError(ctx, s, err)
		}
		return dispatch.OK, p.showList(ctx, s, card.IDList)
	case "list":
		list, err := p.b.trello.List(ctx, token, id)
		if err != nil {
			return dispatch.OK, p.b.trelloError(ctx, s, err)
		}
		return dispatch.OK, p.showBoard(ctx, s, list.IDBoard)
	}
	return dispatch.OK, p.showBoards(ctx, s)
}

func (p *PrivateHandlers) help(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	_, err := p.b.send(ctx, s, tplHelp, nil, session.WithKeyboard(StartKeyboard()))
	return dispatch.OK, err
}

func (p *PrivateHandlers) settings(ctx context.Context, s *session.Session) (dispatch.Result, error) {
	s.SendMessage(ctx, "No settings yet", session.WithKeyboard(StartKeyboard()))
	return dispatch.OK, nil
}

type cardContext struct {
	token string
	card  *trello.Card
	timer *model.Timer
}

// loadCard fetches the card named by the first callback argument.
func (p *PrivateHandlers) loadCard(ctx context.Context, s *session.Session) (*cardContext, error) {
	cardID := s.CallbackArg(1)
	if cardID == "" {
		return nil, apperrors.Params("empty_card_id")
	}
	token, err := p.b.token(s)
	if err != nil {
		return nil, err
	}
	card, err := p.b.trello.Card(ctx, token, cardID)
	if err != nil {
		return nil, p.b.trelloError(ctx, s, err)
	}
	return &cardContext{token: token, card: card}, nil
}

// loadRunning is loadCard for screens that need a running timer.
func (p *PrivateHandlers) loadRunning(ctx context.Context, s *session.Session) (*cardContext, error) {
	c, err := p.loadCard(ctx, s)
	if err != nil {
		return nil, err
	}
	c.timer, err = s.Repos.Timers().FindByCard(ctx, s.User.ID, c.card.ID)
	if err != nil {
		return nil, err
	}
	if c.timer == nil {
		s.Answer(ctx, "Timer was not started", true)
		return nil, apperrors.State("timer_not_started")
	}
	return c, nil
}
