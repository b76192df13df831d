package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cybercalc/internal/app"
	"cybercalc/internal/domain"
	"cybercalc/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const defaultLeaderboardLimit = 10

const (
	finishQuiz      = "quiz"
	finishChallenge = "challenge"
)

type WSHandler struct {
	auth        *app.AuthService
	quiz        *app.QuizService
	leaderboard *app.LeaderboardService
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	upgrader    websocket.Upgrader
}

func NewWSHandler(auth *app.AuthService, quiz *app.QuizService, leaderboard *app.LeaderboardService, m *metrics.Metrics, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		auth:        auth,
		quiz:        quiz,
		leaderboard: leaderboard,
		metrics:     m,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type questionPayload struct {
	Level *int `json:"level"`
}

type answerPayload struct {
	QuestionID int    `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type finishPayload struct {
	Kind string `json:"kind"`
}

type leaderboardPayload struct {
	Limit int `json:"limit"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is what a client sees of a question before answering it.
type questionView struct {
	ID         int               `json:"id"`
	Level      int               `json:"level"`
	Prompt     string            `json:"prompt"`
	Formula    string            `json:"formula"`
	Options    []optionView      `json:"options"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

type optionView struct {
	ID      string `json:"id"`
	Formula string `json:"formula"`
}

func newQuestionView(q domain.Question, level int) questionView {
	opts := make([]optionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, optionView{ID: o.ID, Formula: o.Formula})
	}
	return questionView{
		ID:         q.ID,
		Level:      level,
		Prompt:     q.Prompt,
		Formula:    q.Formula,
		Options:    opts,
		Difficulty: q.Difficulty,
	}
}

// attempt accumulates answered questions until the client finishes a quiz or challenge.
type attempt struct {
	questions []domain.Question
	score     int
	mistakes  int
}

func (a *attempt) record(q domain.Question, res domain.AnswerResult) {
	a.questions = append(a.questions, q)
	a.score += res.Awarded
	if !res.Correct {
		a.mistakes++
	}
}

// difficulty is the hardest difficulty answered in the attempt.
func (a *attempt) difficulty() domain.Difficulty {
	hardest := domain.DifficultyEasy
	for _, q := range a.questions {
		if q.Difficulty.Reward() > hardest.Reward() {
			hardest = q.Difficulty
		}
	}
	return hardest
}

// connection is the per-socket state. It is only touched by the read loop.
type connection struct {
	auth    *app.AuthService
	log     logrus.FieldLogger
	pending map[int]domain.Question
	current attempt
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
// Every connection gets its own session scope, cleared when the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	scope := uuid.NewString()
	c := &connection{
		auth:    h.auth.ForScope(scope),
		log:     h.log.WithField("scope", scope),
		pending: make(map[int]domain.Question),
	}
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	// Session pointers must not outlive the socket.
	defer c.auth.Logout(context.Background())

	updates, cancel, err := h.leaderboard.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections allow one concurrent writer only.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	c.log.Debug("connection opened")
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.metrics.ObserveMessage(inbound.Type)
		msgType, payload, err := h.dispatch(ctx, c, inbound)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			continue
		}
		send <- outboundMessage[any]{Type: msgType, Payload: payload}
	}
	c.log.Debug("connection closed")

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errUnsupported = errors.New("unsupported message type")

func (h *WSHandler) dispatch(ctx context.Context, c *connection, in inboundMessage) (string, any, error) {
	switch in.Type {
	case "register", "login":
		var p credentialsPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		var (
			user domain.User
			err  error
		)
		if in.Type == "register" {
			user, err = c.auth.Register(ctx, p.Username, p.Password)
		} else {
			user, err = c.auth.Login(ctx, p.Username, p.Password)
		}
		if err != nil {
			return "", nil, err
		}
		c.reset()
		return "user", user, nil

	case "logout":
		c.auth.Logout(ctx)
		c.reset()
		return "loggedOut", struct{}{}, nil

	case "me":
		user, err := c.auth.CurrentUser(ctx)
		if err != nil {
			return "", nil, err
		}
		return "user", user, nil

	case "question":
		var p questionPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		level, err := h.level(ctx, c, p.Level)
		if err != nil {
			return "", nil, err
		}
		q, err := h.quiz.NextQuestion(ctx, level)
		if err != nil {
			return "", nil, err
		}
		c.pending[q.ID] = q
		return "question", newQuestionView(q, level), nil

	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		user, err := c.auth.CurrentUser(ctx)
		if err != nil {
			return "", nil, err
		}
		q, ok := c.pending[p.QuestionID]
		if !ok {
			return "", nil, domain.ErrQuestionNotFound
		}
		res, err := h.quiz.SubmitAnswer(ctx, user.ID, q, p.OptionID)
		if err != nil {
			return "", nil, err
		}
		delete(c.pending, p.QuestionID)
		c.current.record(q, res)
		return "answerResult", res, nil

	case "finish":
		var p finishPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		return h.finish(ctx, c, p.Kind)

	case "leaderboard":
		var p leaderboardPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		if p.Limit == 0 {
			p.Limit = defaultLeaderboardLimit
		}
		lb, err := h.leaderboard.Snapshot(ctx, p.Limit)
		if err != nil {
			return "", nil, err
		}
		return "leaderboard", lb, nil

	case "progress":
		user, err := c.auth.CurrentUser(ctx)
		if err != nil {
			return "", nil, err
		}
		progress, err := h.quiz.Progress(ctx, user.ID)
		if err != nil {
			return "", nil, err
		}
		return "progress", progress, nil
	}
	return "", nil, errUnsupported
}

func (h *WSHandler) finish(ctx context.Context, c *connection, kind string) (string, any, error) {
	user, err := c.auth.CurrentUser(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(c.current.questions) == 0 {
		return "", nil, fmt.Errorf("%w: no answered questions to finish", domain.ErrInvalidInput)
	}

	switch kind {
	case finishQuiz:
		quiz, err := h.quiz.CompleteQuiz(ctx, user.ID, c.current.difficulty(), c.current.questions, c.current.score)
		if err != nil {
			return "", nil, err
		}
		c.current = attempt{}
		return "quiz", quiz, nil
	case finishChallenge:
		completed := c.current.mistakes == 0
		challenge, err := h.quiz.CompleteChallenge(ctx, user.ID, c.current.questions, c.current.score, completed)
		if err != nil {
			return "", nil, err
		}
		c.current = attempt{}
		return "challenge", challenge, nil
	}
	return "", nil, fmt.Errorf("%w: unknown finish kind %q", domain.ErrInvalidInput, kind)
}

// level resolves the requested level, defaulting to the user's suggested level when logged in.
func (h *WSHandler) level(ctx context.Context, c *connection, requested *int) (int, error) {
	if requested != nil {
		return *requested, nil
	}
	user, err := c.auth.CurrentUser(ctx)
	if errors.Is(err, domain.ErrNotLoggedIn) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return h.quiz.SuggestedLevel(ctx, user.ID)
}

func (c *connection) reset() {
	c.pending = make(map[int]domain.Question)
	c.current = attempt{}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrInvalidInput)
	}
	return nil
}
