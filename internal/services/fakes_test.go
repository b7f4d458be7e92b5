package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"mime/multipart"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	chatws "github.com/Gokhangurbuz92/sami-app-sub000/internal/websocket"
	"github.com/jackc/pgx/v5"
)

// memDB is an in-memory stand-in for the PostgreSQL repositories. WithinTx
// serialises transactions and restores a snapshot when fn fails.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users         map[string]*models.User
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message

	created  int
	failures map[string]error

	// afterListPage runs once ListPage has collected its rows.
	afterListPage func()
}

func newMemDB(users ...*models.User) *memDB {
	db := &memDB{
		users:         make(map[string]*models.User),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
		failures:      make(map[string]error),
	}
	for _, user := range users {
		db.users[user.ID] = user
	}
	return db
}

func (db *memDB) failOn(operation string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[operation] = err
}

// fail must be called with db.mu held.
func (db *memDB) fail(operation string) error {
	return db.failures[operation]
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	conversations := make(map[string]*models.Conversation, len(db.conversations))
	for id, conversation := range db.conversations {
		conversations[id] = cloneConversation(conversation)
	}
	messages := make(map[string]*models.Message, len(db.messages))
	for id, message := range db.messages {
		messages[id] = cloneMessage(message)
	}
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.conversations = conversations
		db.messages = messages
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) conversation(id string) *models.Conversation {
	db.mu.Lock()
	defer db.mu.Unlock()
	if conversation, ok := db.conversations[id]; ok {
		return cloneConversation(conversation)
	}
	return nil
}

func (db *memDB) messageCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.messages)
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = slices.Clone(c.Participants)
	out.UnreadCount = maps.Clone(c.UnreadCount)
	out.ParticipantNames = maps.Clone(c.ParticipantNames)
	if c.LastMessageAt != nil {
		at := *c.LastMessageAt
		out.LastMessageAt = &at
	}
	return &out
}

func cloneMessage(m *models.Message) *models.Message {
	out := *m
	out.Attachments = slices.Clone(m.Attachments)
	out.Translations = maps.Clone(m.Translations)
	out.ReadBy = maps.Clone(m.ReadBy)
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for user, emojis := range m.Reactions {
			out.Reactions[user] = slices.Clone(emojis)
		}
	}
	return &out
}

type memUsers struct{ db *memDB }

func (u memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	user, ok := u.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (u memUsers) GetDisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if user, ok := u.db.users[id]; ok {
			names[id] = user.DisplayName
		}
	}
	return names, nil
}

type memConversations struct{ db *memDB }

func (c memConversations) CreateIfAbsent(_ context.Context, conversation *models.Conversation) (*models.Conversation, bool, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.fail("CreateIfAbsent"); err != nil {
		return nil, false, err
	}
	if existing, ok := c.db.conversations[conversation.ID]; ok {
		return cloneConversation(existing), false, nil
	}
	stored := cloneConversation(conversation)
	stored.UpdatedAt = stored.CreatedAt
	c.db.conversations[stored.ID] = stored
	c.db.created++
	return cloneConversation(stored), true, nil
}

func (c memConversations) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if err := c.db.fail("GetConversation"); err != nil {
		return nil, err
	}
	conversation, ok := c.db.conversations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneConversation(conversation), nil
}

func (c memConversations) GetByIDForUpdate(ctx context.Context, id string) (*models.Conversation, error) {
	return c.GetByID(ctx, id)
}

func (c memConversations) ListForParticipant(_ context.Context, participantID string) ([]models.Conversation, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	var out []models.Conversation
	for _, conversation := range c.db.conversations {
		if conversation.HasParticipant(participantID) {
			out = append(out, *cloneConversation(conversation))
		}
	}
	activity := func(conversation models.Conversation) time.Time {
		if conversation.LastMessageAt != nil {
			return *conversation.LastMessageAt
		}
		return conversation.CreatedAt
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := activity(out[i]), activity(out[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c memConversations) mutate(id string, fn func(*models.Conversation)) (*models.Conversation, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	conversation, ok := c.db.conversations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	fn(conversation)
	conversation.Version++
	return cloneConversation(conversation), nil
}

func (c memConversations) ApplyMessage(_ context.Context, id, senderID, preview string, sentAt time.Time) (*models.Conversation, error) {
	c.db.mu.Lock()
	err := c.db.fail("ApplyMessage")
	c.db.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.mutate(id, func(conversation *models.Conversation) {
		conversation.LastMessage = preview
		at := sentAt
		conversation.LastMessageAt = &at
		conversation.LastSenderID = senderID
		conversation.UpdatedAt = sentAt
		for _, participant := range conversation.Participants {
			if participant != senderID {
				conversation.UnreadCount[participant]++
			}
		}
	})
}

func (c memConversations) ResetUnread(_ context.Context, id, participantID string, newerThan *models.MessageCursor) (*models.Conversation, error) {
	return c.mutate(id, func(conversation *models.Conversation) {
		remaining := 0
		for _, message := range c.db.messages {
			if message.ConversationID != id || message.SenderID == participantID || message.IsReadBy(participantID) {
				continue
			}
			if newerThan == nil || newerThanCursor(message, newerThan) {
				remaining++
			}
		}
		conversation.UnreadCount[participantID] = remaining
	})
}

func (c memConversations) Touch(_ context.Context, id string) (*models.Conversation, error) {
	return c.mutate(id, func(*models.Conversation) {})
}

type memMessages struct{ db *memDB }

func (m memMessages) Create(_ context.Context, message *models.Message) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.messages[message.ID] = cloneMessage(message)
	return nil
}

func (m memMessages) GetByID(_ context.Context, id string) (*models.Message, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	message, ok := m.db.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneMessage(message), nil
}

func (m memMessages) GetByIDForUpdate(ctx context.Context, id string) (*models.Message, error) {
	return m.GetByID(ctx, id)
}

func (m memMessages) ListPage(_ context.Context, conversationID string, before *models.MessageCursor, limit int) ([]models.Message, error) {
	out := m.listPage(conversationID, before, limit)
	if m.db.afterListPage != nil {
		m.db.afterListPage()
	}
	return out, nil
}

func (m memMessages) listPage(conversationID string, before *models.MessageCursor, limit int) []models.Message {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Message
	for _, message := range m.db.messages {
		if message.ConversationID != conversationID {
			continue
		}
		if before != nil && !olderThan(message, before) {
			continue
		}
		out = append(out, *cloneMessage(message))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func olderThan(message *models.Message, cursor *models.MessageCursor) bool {
	if message.CreatedAt.Equal(cursor.CreatedAt) {
		return message.ID < cursor.ID
	}
	return message.CreatedAt.Before(cursor.CreatedAt)
}

func newerThanCursor(message *models.Message, cursor *models.MessageCursor) bool {
	if message.CreatedAt.Equal(cursor.CreatedAt) {
		return message.ID > cursor.ID
	}
	return message.CreatedAt.After(cursor.CreatedAt)
}

func (m memMessages) MarkRead(_ context.Context, ids []string, readerID string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var marked int64
	for _, id := range ids {
		message, ok := m.db.messages[id]
		if !ok || message.SenderID == readerID || message.ReadBy[readerID] {
			continue
		}
		message.ReadBy[readerID] = true
		marked++
	}
	return marked, nil
}

func (m memMessages) SetReactions(_ context.Context, id string, reactions map[string][]string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	message, ok := m.db.messages[id]
	if !ok {
		return pgx.ErrNoRows
	}
	message.Reactions = reactions
	return nil
}

func (m memMessages) SetTranslation(_ context.Context, id, language, text string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	message, ok := m.db.messages[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if message.Translations == nil {
		message.Translations = make(map[string]string)
	}
	message.Translations[language] = text
	return nil
}

// recordingBroker records published events and forwards them to a running
// hub so subscriptions behave as in production.
type recordingBroker struct {
	*chatws.Hub
	mu     sync.Mutex
	events []models.ConversationEvent
}

func newRecordingBroker(t *testing.T) *recordingBroker {
	t.Helper()
	hub := chatws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return &recordingBroker{Hub: hub}
}

func (b *recordingBroker) Publish(event models.ConversationEvent) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
	b.Hub.Publish(event)
}

func (b *recordingBroker) ofType(eventType string) []models.ConversationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.ConversationEvent
	for _, event := range b.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fakePush struct {
	mu         sync.Mutex
	err        error
	recipients [][]string
}

func (p *fakePush) EnqueueMessagePush(_ context.Context, _ *models.Message, recipientIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recipients = append(p.recipients, slices.Clone(recipientIDs))
	return p.err
}

type fakeTranslator struct {
	calls int
	err   error
}

func (t *fakeTranslator) Translate(_ context.Context, text, targetLanguage string) (string, error) {
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	return "[" + targetLanguage + "] " + text, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type fakeStorage struct {
	uploads []string
	deleted []string
	err     error
}

func (s *fakeStorage) UploadFile(_ context.Context, file multipart.File, filename string, folder string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, folder+"/"+filename)
	return "https://cdn.example.org/" + folder + "/" + filename, nil
}

func (s *fakeStorage) DeleteFile(_ context.Context, fileURL string) error {
	s.deleted = append(s.deleted, fileURL)
	return nil
}

func (s *fakeStorage) GetSignedURL(_ context.Context, fileURL string) (string, error) {
	return fileURL + "?signed", nil
}

// memFile satisfies multipart.File over a byte slice.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func newMemFile(content []byte) multipart.File {
	return memFile{Reader: bytes.NewReader(content)}
}

// stepClock advances by one second on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var errDriver = errors.New("connection reset by peer")
