package internal

import (
	"chat-broker/repositories"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

const defaultInspectLimit = 200

type InspectRow struct {
	Key       string
	Channel   string
	Timestamp string
	MessageID string
	Author    string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

// InspectHandler prints the raw store content as a text table.
// ?prefix=msg:dsa: narrows the scan, ?limit=N bounds it.
func InspectHandler(db *badger.DB, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultInspectLimit
		}

		var rows []InspectRow
		err = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(rows) < limit; it.Next() {
				item := it.Item()
				if err := item.Value(func(val []byte) error {
					rows = append(rows, mapper(string(item.KeyCopy(nil)), val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if statsProvider != nil {
			stats := statsProvider()
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "%s: %v\n", k, stats[k])
			}
			fmt.Fprintln(w)
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Channel", "Time", "Message", "Author", "Detail"})
		table.SetAutoWrapText(false)
		for _, row := range rows {
			table.Append([]string{row.Channel, row.Timestamp, row.MessageID, row.Author, row.Detail})
		}
		table.Render()
	})
}

// StartDebugServer serves the inspector until the returned server is shut down.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, endpoint string,
	mapper RowMapper, statsProvider StatsProvider) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(endpoint, InspectHandler(db, mapper, statsProvider))
	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
	return server
}

// DefaultMapper understands msg:{channel}:{unixnano}:{id} keys without decoding the value.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Timestamp: "--:--:--",
		MessageID: "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	if len(parts) >= 4 {
		row.Channel = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format(time.RFC3339Nano)
		}
		row.MessageID = parts[3]
		if len(row.MessageID) > 8 {
			row.MessageID = row.MessageID[:8]
		}
	}
	return row
}

// MessageMapper decodes the stored record to show its author and content.
func MessageMapper(key string, val []byte) InspectRow {
	row := DefaultMapper(key, val)
	message, err := repositories.DecodeRecord(val)
	if err != nil {
		row.Detail = "Error: decode failed"
		return row
	}
	row.Author = message.AuthorID
	row.Detail = message.Content
	if message.Code != nil {
		row.Detail += fmt.Sprintf(" [%s snippet, %d chars]", message.Code.Language, len([]rune(message.Code.Content)))
	}
	if len([]rune(row.Detail)) > 80 {
		row.Detail = string([]rune(row.Detail)[:77]) + "..."
	}
	return row
}
