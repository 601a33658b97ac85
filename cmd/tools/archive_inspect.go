// Command archive_inspect dumps the local chat archive as a table.
// It opens the Badger directory read-only, so it can run next to a live
// relay.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chat-relay/archive"
)

func main() {
	dbPath := flag.String("db", "./archive", "Path to the archive directory")
	prefix := flag.String("prefix", archive.PrefixChat, "Prefix to scan (chat: or file:)")
	limit := flag.Int("limit", 100, "Maximum entries to print (0 = all)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening archive: ", err)
	}
	defer db.Close()

	records, err := archive.OpenDB(db, slog.Default()).List(*prefix, *limit)
	if err != nil {
		log.Fatal("Error while scanning archive: ", err)
	}

	color.Bold.Printf("%d record(s) under %q\n", len(records), *prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "At", "Author", "Recipient", "Size", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	table.AppendBulk(lo.Map(records, func(record archive.Record, _ int) []string {
		size := ""
		if record.SizeBytes > 0 {
			size = fmt.Sprintf("%d", record.SizeBytes)
		}
		return []string{
			record.ID.String(),
			record.At.Format(time.RFC3339),
			record.Author,
			record.Recipient,
			size,
			truncate(record.Content, 80),
		}
	}))
	table.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
