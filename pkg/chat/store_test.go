package chat

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatledger/pkg/bus"
	"chatledger/pkg/logger"
	"chatledger/pkg/models"
	"chatledger/pkg/store"
)

func init() { logger.Init("error") }

var testOpts = Options{
	WelcomeTitle: "New Chat",
	WelcomeText:  "Hello! Upload an image and I'll tell you what objects I can detect.",
}

func newTestStore(t *testing.T) (*Store, *store.KV, *bus.Bus) {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	hub := bus.New()
	return New(kv, hub, "owner1", testOpts), kv, hub
}

func TestBootstrapCreatesWelcomeThread(t *testing.T) {
	s, _, _ := newTestStore(t)

	threads := s.ListThreads()
	require.Len(t, threads, 1)
	require.Equal(t, "New Chat", threads[0].Title)
	require.Len(t, threads[0].Messages, 1)
	require.Equal(t, models.AuthorBot, threads[0].Messages[0].Author)
}

func TestAppendAndReloadRoundTrip(t *testing.T) {
	kv, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer kv.Close()
	hub := bus.New()

	s := New(kv, hub, "owner1", testOpts)
	th := s.CreateThread("roundtrip")
	texts := []string{"one", "two", "three", "four", "five"}
	for _, txt := range texts {
		require.True(t, s.AppendMessage(th.ID, models.Message{Author: models.AuthorUser, Text: txt}))
	}

	// a fresh store over the same kv sees the same messages in order
	s2 := New(kv, hub, "owner1", testOpts)
	got, ok := s2.GetThread(th.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, len(texts))
	for i, txt := range texts {
		require.Equal(t, txt, got.Messages[i].Text)
	}
}

func TestAppendToUnknownThread(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.False(t, s.AppendMessage("nope", models.Message{Text: "x"}))
}

func TestUpdateMessageFinalizesPlaceholder(t *testing.T) {
	s, _, _ := newTestStore(t)
	th := s.CreateThread("t")
	require.True(t, s.AppendMessage(th.ID, models.Message{Author: models.AuthorBot, Processing: true}))

	got, _ := s.GetThread(th.ID)
	id := got.Messages[0].ID
	require.True(t, s.UpdateMessage(th.ID, id, "final"))

	got, _ = s.GetThread(th.ID)
	require.Equal(t, "final", got.Messages[0].Text)
	require.False(t, got.Messages[0].Processing)

	require.False(t, s.UpdateMessage(th.ID, "missing", "x"))
	require.False(t, s.UpdateMessage("missing", id, "x"))
}

func TestRemoveAndClearMessages(t *testing.T) {
	s, _, _ := newTestStore(t)
	th := s.CreateThread("t")
	s.AppendMessage(th.ID, models.Message{Text: "a"})
	s.AppendMessage(th.ID, models.Message{Text: "b"})

	got, _ := s.GetThread(th.ID)
	require.True(t, s.RemoveMessage(th.ID, got.Messages[0].ID))
	got, _ = s.GetThread(th.ID)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "b", got.Messages[0].Text)

	require.True(t, s.ClearMessages(th.ID))
	got, _ = s.GetThread(th.ID)
	require.Empty(t, got.Messages)

	require.False(t, s.RemoveMessage(th.ID, "missing"))
	require.False(t, s.ClearMessages("missing"))
}

func TestDeleteThreadIsSoft(t *testing.T) {
	s, _, _ := newTestStore(t)
	th := s.CreateThread("doomed")
	require.True(t, s.DeleteThread(th.ID))

	_, ok := s.GetThread(th.ID)
	require.False(t, ok)
	for _, lt := range s.ListThreads() {
		require.NotEqual(t, th.ID, lt.ID)
	}
	// already deleted
	require.False(t, s.DeleteThread(th.ID))
}

func TestPurgeTombstones(t *testing.T) {
	s, kv, _ := newTestStore(t)
	th := s.CreateThread("doomed")
	require.True(t, s.DeleteThread(th.ID))

	// too young to purge
	require.Empty(t, s.PurgeTombstones(time.Hour, false))

	// dry run reports but keeps the key
	ids := s.PurgeTombstones(0, true)
	require.Equal(t, []string{th.ID}, ids)
	require.True(t, kv.Exists("chats:owner1:"+th.ID))

	ids = s.PurgeTombstones(0, false)
	require.Equal(t, []string{th.ID}, ids)
	require.False(t, kv.Exists("chats:owner1:"+th.ID))
}

func TestSearchCaseInsensitive(t *testing.T) {
	s, _, _ := newTestStore(t)
	th := s.CreateThread("pets")
	s.AppendMessage(th.ID, models.Message{Author: models.AuthorUser, Text: "I saw a Cat today"})
	s.AppendMessage(th.ID, models.Message{Author: models.AuthorBot, Text: "Dogs are fine too"})

	res := s.Search("cat")
	require.Len(t, res, 1)
	require.Equal(t, th.ID, res[0].Thread.ID)
	require.Len(t, res[0].Messages, 1)

	require.Empty(t, s.Search("zebra"))
	require.Empty(t, s.Search("  "))
}

func TestOwnerSwitchScopesThreads(t *testing.T) {
	s, _, _ := newTestStore(t)
	th := s.CreateThread("owner1 thread")
	s.AppendMessage(th.ID, models.Message{Author: models.AuthorUser, Text: "hello"})

	s.SetOwner("owner2")
	// fresh owner gets a bootstrap thread, not owner1's data
	threads := s.ListThreads()
	require.Len(t, threads, 1)
	require.Equal(t, "New Chat", threads[0].Title)
	_, ok := s.GetThread(th.ID)
	require.False(t, ok)

	// switching back restores owner1's threads
	s.SetOwner("owner1")
	got, ok := s.GetThread(th.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, 1)
}

func TestThreadCreatedAndMessageAppendedEvents(t *testing.T) {
	s, _, hub := newTestStore(t)

	var created []string
	var appended []models.MessageAppended
	bus.Subscribe(hub, bus.ThreadCreated, func(e models.ThreadCreated) { created = append(created, e.Thread.ID) })
	bus.Subscribe(hub, bus.MessageAppended, func(e models.MessageAppended) { appended = append(appended, e) })

	th := s.CreateThread("evt")
	s.AppendMessage(th.ID, models.Message{Author: models.AuthorUser, Text: "hi"})

	require.Equal(t, []string{th.ID}, created)
	require.Len(t, appended, 1)
	require.Equal(t, models.AuthorUser, appended[0].Message.Author)
}

func TestSnapshotsAreCopies(t *testing.T) {
	s, _, _ := newTestStore(t)
	th := s.CreateThread("iso")
	s.AppendMessage(th.ID, models.Message{Text: "original"})

	got, _ := s.GetThread(th.ID)
	got.Messages[0].Text = "mutated"

	again, _ := s.GetThread(th.ID)
	require.Equal(t, "original", again.Messages[0].Text)
}
