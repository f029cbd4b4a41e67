package repositories

import (
	"chat-broker/domain"
	"chat-broker/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func openDB(t *testing.T, dir string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	return db
}

func newRepository(t *testing.T) *MessageRepository {
	t.Helper()
	db := openDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	repository, err := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	require.NoError(t, err)
	return repository
}

func draft(channel domain.Channel, author, content string) domain.Draft {
	return domain.Draft{Channel: channel, AuthorID: author, Content: content}
}

func Test_Append_And_ReadPage_Chronological(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	// Given three messages posted in dsa
	var appended []domain.Message
	for _, author := range []string{"Alice", "Bob", "Clara"} {
		message, err := repository.Append(ctx, draft(domain.ChannelDSA, author, "hello from "+author), nil)
		req.NoError(err)
		appended = append(appended, message)
	}

	// When fetching the newest page
	page, err := repository.ReadPage(ctx, domain.ChannelDSA, nil, 50)

	// Then messages come back oldest first, exactly as persisted
	req.NoError(err)
	req.Equal(appended, page)
	req.True(page[0].CreatedAt.Before(page[1].CreatedAt))
	req.True(page[1].CreatedAt.Before(page[2].CreatedAt))
}

func Test_Append_Keeps_Code_Snippet(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	d := draft(domain.ChannelDBMS, "Alice", "index this")
	d.Code = &domain.CodeSnippet{Language: "sql", Content: "CREATE INDEX i ON t(c);"}
	message, err := repository.Append(ctx, d, nil)
	req.NoError(err)

	// Mutating the draft afterwards never reaches the stored record
	d.Code.Content = "DROP TABLE t;"

	page, err := repository.ReadPage(ctx, domain.ChannelDBMS, nil, 1)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(message, page[0])
	req.Equal("CREATE INDEX i ON t(c);", page[0].Code.Content)
}

func Test_ReadPage_Limit_Returns_Most_Recent(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := repository.Append(ctx, draft(domain.ChannelGeneral, fmt.Sprintf("user_%d", i), "hi"), nil)
		req.NoError(err)
	}

	page, err := repository.ReadPage(ctx, domain.ChannelGeneral, nil, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("user_4", page[0].AuthorID)
	req.Equal("user_5", page[1].AuthorID)
}

func Test_MessageRepository_Pagination(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	// Given a frozen clock, every append must still get a distinct timestamp
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repository.now = func() time.Time { return frozen }

	// 1. Insert 10 messages, oldest first
	for i := 1; i <= 10; i++ {
		_, err := repository.Append(ctx, draft(domain.ChannelCareer, fmt.Sprintf("user_%d", i), "msg"), nil)
		req.NoError(err)
	}

	// 2. Walk backwards with the oldest CreatedAt of each page as the cursor
	var pages [][]domain.Message
	var before *time.Time
	for {
		page, err := repository.ReadPage(ctx, domain.ChannelCareer, before, 4)
		req.NoError(err)
		if len(page) == 0 {
			break
		}
		pages = append(pages, page)
		oldest := page[0].CreatedAt
		before = &oldest
	}

	// Then pages have 4, 4 and 2 messages
	req.Len(pages, 3)
	req.Equal("user_7", pages[0][0].AuthorID)
	req.Equal("user_10", pages[0][3].AuthorID)
	req.Equal("user_3", pages[1][0].AuthorID)
	req.Equal("user_6", pages[1][3].AuthorID)
	req.Len(pages[2], 2)
	req.Equal("user_1", pages[2][0].AuthorID)

	// And all messages were visited exactly once in increasing order
	var all []domain.Message
	for i := len(pages) - 1; i >= 0; i-- {
		all = append(all, pages[i]...)
	}
	req.Len(all, 10)
	seen := map[string]struct{}{}
	for i, m := range all {
		seen[m.ID.String()] = struct{}{}
		req.Equal(fmt.Sprintf("user_%d", i+1), m.AuthorID)
		if i > 0 {
			req.True(all[i-1].CreatedAt.Before(m.CreatedAt))
		}
	}
	req.Len(seen, 10)
}

func Test_ReadPage_Before_Is_Exclusive(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	first, err := repository.Append(ctx, draft(domain.ChannelDSA, "Alice", "one"), nil)
	req.NoError(err)
	second, err := repository.Append(ctx, draft(domain.ChannelDSA, "Bob", "two"), nil)
	req.NoError(err)

	page, err := repository.ReadPage(ctx, domain.ChannelDSA, &second.CreatedAt, 10)
	req.NoError(err)
	req.Equal([]domain.Message{first}, page)

	page, err = repository.ReadPage(ctx, domain.ChannelDSA, &first.CreatedAt, 10)
	req.NoError(err)
	req.Empty(page)
}

func Test_ReadPage_Before_Outside_Key_Range(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	// Given three stored messages
	var stored []domain.Message
	for _, content := range []string{"one", "two", "three"} {
		message, err := repository.Append(ctx, draft(domain.ChannelDSA, "Alice", content), nil)
		req.NoError(err)
		stored = append(stored, message)
	}

	tests := []struct {
		name   string
		before time.Time
		want   []domain.Message
	}{
		{"last encodable year", time.Date(2261, 1, 1, 0, 0, 0, 0, time.UTC), stored},
		{"after the last encodable instant", time.Date(2263, 1, 1, 0, 0, 0, 0, time.UTC), stored},
		{"far future", time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), stored},
		{"epoch", time.Unix(0, 0).UTC(), []domain.Message{}},
		{"before the first encodable instant", time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), []domain.Message{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When reading before the cursor
			page, err := repository.ReadPage(ctx, domain.ChannelDSA, &tt.before, 10)

			// Then only messages strictly older than the cursor are returned
			require.NoError(t, err)
			require.Equal(t, tt.want, page)
		})
	}
}

func Test_Channels_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	_, err := repository.Append(ctx, draft(domain.ChannelDSA, "Alice", "in dsa"), nil)
	req.NoError(err)

	page, err := repository.ReadPage(ctx, domain.ChannelDBMS, nil, 10)
	req.NoError(err)
	req.Empty(page)
}

func Test_Invalid_Drafts_Are_Not_Stored(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()
	called := false

	_, err := repository.Append(ctx, draft("random", "Alice", "hi"), func(domain.Message) { called = true })
	req.ErrorIs(err, errors.ErrUnknownChannel)

	_, err = repository.Append(ctx, draft(domain.ChannelDSA, "Alice", ""), func(domain.Message) { called = true })
	req.ErrorIs(err, errors.ErrContentInvalid)
	req.False(called)

	for _, channel := range domain.Channels() {
		page, err := repository.ReadPage(ctx, channel, nil, 10)
		req.NoError(err)
		req.Empty(page)
	}

	_, err = repository.ReadPage(ctx, "random", nil, 10)
	req.ErrorIs(err, errors.ErrUnknownChannel)
}

func Test_Concurrent_Appends_Commit_In_CreatedAt_Order(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	ctx := context.Background()

	// committed runs under the channel lock, so no extra synchronisation is needed
	var observed []domain.Message
	committed := func(m domain.Message) { observed = append(observed, m) }

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repository.Append(ctx, draft(domain.ChannelSystemDesign, fmt.Sprintf("user_%d", i), "sharding"), committed)
			req.NoError(err)
		}(i)
	}
	wg.Wait()

	page, err := repository.ReadPage(ctx, domain.ChannelSystemDesign, nil, domain.MaxPageLimit)
	req.NoError(err)
	req.Len(observed, 40)
	req.Equal(page, observed)
	for i := 1; i < len(observed); i++ {
		req.True(observed[i-1].CreatedAt.Before(observed[i].CreatedAt))
	}
}

func Test_Timestamps_Survive_Restart(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db := openDB(t, dir)
	repository, err := NewMessageRepository(db, log)
	req.NoError(err)
	before, err := repository.Append(ctx, draft(domain.ChannelDSA, "Alice", "before restart"), nil)
	req.NoError(err)
	req.NoError(db.Close())

	// Given the clock went one hour backwards while the broker was down
	db = openDB(t, dir)
	defer db.Close()
	repository, err = NewMessageRepository(db, log)
	req.NoError(err)
	repository.now = func() time.Time { return before.CreatedAt.Add(-time.Hour) }

	after, err := repository.Append(ctx, draft(domain.ChannelDSA, "Bob", "after restart"), nil)
	req.NoError(err)
	req.True(after.CreatedAt.After(before.CreatedAt))

	page, err := repository.ReadPage(ctx, domain.ChannelDSA, nil, 10)
	req.NoError(err)
	req.Equal([]domain.Message{before, after}, page)
}

func Test_Closed_Store_Is_Unavailable(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	repository, err := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)
	req.NoError(db.Close())

	called := false
	_, err = repository.Append(context.Background(), draft(domain.ChannelDSA, "Alice", "lost"),
		func(domain.Message) { called = true })
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.False(called)
}

func Test_DecodeMessage_Skips_Unknown_Fields(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	message, err := repository.Append(context.Background(), draft(domain.ChannelDSA, "Alice", "hi"), nil)
	req.NoError(err)

	b := encodeMessage(message)
	b = protowire.AppendTag(b, 42, protowire.BytesType)
	b = protowire.AppendString(b, "added by a newer broker")

	decoded, err := decodeMessage(b)
	req.NoError(err)
	req.Equal(message, decoded)

	_, err = decodeMessage([]byte{0xff})
	req.Error(err)
}

func Test_Replicate_Is_Idempotent_And_Keeps_Order(t *testing.T) {
	req := require.New(t)
	origin := newRepository(t)
	replica := newRepository(t)
	ctx := context.Background()

	// Given a message appended on another node
	remote, err := origin.Append(ctx, draft(domain.ChannelDBMS, "Alice", "normal forms"), nil)
	req.NoError(err)

	// When it is replicated twice
	stored, err := replica.Replicate(ctx, remote)
	req.NoError(err)
	req.True(stored)
	stored, err = replica.Replicate(ctx, remote)
	req.NoError(err)
	req.False(stored)

	// Then it is stored once, and local appends come after it
	local, err := replica.Append(ctx, draft(domain.ChannelDBMS, "Bob", "indexes"), nil)
	req.NoError(err)
	req.True(local.CreatedAt.After(remote.CreatedAt))

	page, err := replica.ReadPage(ctx, domain.ChannelDBMS, nil, 10)
	req.NoError(err)
	req.Equal([]domain.Message{remote, local}, page)

	_, err = replica.Replicate(ctx, domain.Message{Channel: "nope"})
	req.ErrorIs(err, errors.ErrUnknownChannel)
}
